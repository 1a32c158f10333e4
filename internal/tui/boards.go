package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/model"
	"github.com/Makepad-fr/smartboard/internal/ui"
)

// boardItem adapts model.Board to list.Item.
type boardItem struct {
	b     model.Board
	owner bool
}

func (i boardItem) Title() string { return i.b.Title }
func (i boardItem) Description() string {
	n := len(i.b.Members)
	if n == 1 {
		return "1 member"
	}
	return fmt.Sprintf("%d members", n)
}
func (i boardItem) FilterValue() string { return i.b.Title }

// boardDelegate renders one board per line.
type boardDelegate struct{ st ui.Styles }

func (d boardDelegate) Height() int                         { return 1 }
func (d boardDelegate) Spacing() int                        { return 0 }
func (d boardDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (d boardDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(boardItem)
	mark := " "
	if it.owner {
		mark = d.st.Accent.Render(ui.Current().Owner)
	}
	line := fmt.Sprintf("%s %s  %s", mark, it.Title(), d.st.Muted.Render(it.Description()))
	prefix := "  "
	if index == m.Index() {
		prefix = d.st.Selected.Render(ui.Current().Cursor + " ")
	}
	fmt.Fprintln(w, prefix+line)
}

type (
	boardsLoadedMsg struct {
		boards []model.Board
		err    error
	}
	boardsChangedMsg struct{ err error }
)

type boardsModel struct {
	ctx  context.Context
	deps Deps
	st   ui.Styles

	list    list.Model
	ti      textinput.Model
	adding  bool
	pending bool
	err     string

	width, height int
}

var (
	keyNew     = key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new board"))
	keyDelete  = key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	keyRefresh = key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "refresh"))
	keyLogout  = key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log out"))
	keyOpen    = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open"))
)

func newBoardsModel(ctx context.Context, deps Deps, st ui.Styles) *boardsModel {
	l := list.New(nil, boardDelegate{st: st}, 0, 0)
	l.Title = "Boards"
	l.SetShowHelp(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = st.Title
	l.Styles.HelpStyle = st.Help
	l.Styles.PaginationStyle = st.Help
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("board", "boards")
	extra := func() []key.Binding { return []key.Binding{keyOpen, keyNew, keyDelete, keyRefresh, keyLogout} }
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Board title..."
	ti.CharLimit = 100

	return &boardsModel{ctx: ctx, deps: deps, st: st, list: l, ti: ti, width: 80, height: 24}
}

func (m *boardsModel) setSize(w, h int) {
	m.width, m.height = w, h
	listHeight := h - 4
	if m.adding {
		listHeight = h - 8
	}
	m.list.SetSize(max(w-4, 10), max(listHeight, 3))
}

func (m *boardsModel) refresh() tea.Cmd {
	ctx, boards := m.ctx, m.deps.Boards
	return func() tea.Msg {
		bs, err := boards.List(ctx)
		return boardsLoadedMsg{boards: bs, err: err}
	}
}

func (m *boardsModel) selected() (model.Board, bool) {
	it, ok := m.list.SelectedItem().(boardItem)
	return it.b, ok
}

func (m *boardsModel) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case boardsLoadedMsg:
		if msg.err != nil {
			m.err = message(msg.err)
			return nil
		}
		m.err = ""
		me, _ := m.deps.Session.User()
		items := make([]list.Item, 0, len(msg.boards))
		for _, b := range msg.boards {
			items = append(items, boardItem{b: b, owner: me.ID != "" && b.Owner.ID == me.ID})
		}
		return m.list.SetItems(items)

	case boardsChangedMsg:
		m.pending = false
		if msg.err != nil {
			m.err = message(msg.err)
			return nil
		}
		m.err = ""
		if m.adding {
			m.adding = false
			m.ti.SetValue("")
			m.ti.Blur()
			m.setSize(m.width, m.height)
		}
		return m.refresh()

	case tea.KeyMsg:
		if m.adding {
			return m.updateForm(msg)
		}
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case msg.String() == "q":
			return tea.Quit
		case key.Matches(msg, keyOpen):
			if b, ok := m.selected(); ok {
				return func() tea.Msg { return openBoardMsg{id: b.ID} }
			}
			return nil
		case key.Matches(msg, keyNew):
			m.adding = true
			m.err = ""
			m.setSize(m.width, m.height)
			return m.ti.Focus()
		case key.Matches(msg, keyDelete):
			b, ok := m.selected()
			if !ok || m.pending {
				return nil
			}
			m.pending = true
			ctx, boards := m.ctx, m.deps.Boards
			return func() tea.Msg { return boardsChangedMsg{err: boards.Delete(ctx, b.ID)} }
		case key.Matches(msg, keyRefresh):
			return m.refresh()
		case key.Matches(msg, keyLogout):
			m.deps.Session.Logout()
			return nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

func (m *boardsModel) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.adding = false
		m.err = ""
		m.ti.SetValue("")
		m.ti.Blur()
		m.setSize(m.width, m.height)
		return nil
	case "enter":
		if m.pending {
			return nil
		}
		title := strings.TrimSpace(m.ti.Value())
		if title == "" {
			m.err = "Please enter a board title"
			return nil
		}
		m.pending = true
		in := api.BoardInput{Title: title, Background: model.BoardColors[0]}
		ctx, boards := m.ctx, m.deps.Boards
		return func() tea.Msg {
			_, err := boards.Create(ctx, in)
			return boardsChangedMsg{err: err}
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return cmd
}

func (m *boardsModel) view() string {
	content := m.list.View()
	if m.adding {
		title := "New board"
		if m.pending {
			title += " " + m.st.Muted.Render("(saving...)")
		}
		content += "\n" + m.st.Form.Render(title+"\n"+m.ti.View())
	}
	if m.err != "" {
		content += "\n" + m.st.Error.Render(m.err)
	}
	return m.st.Frame.Render(content)
}
