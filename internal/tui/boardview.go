package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/board"
	"github.com/Makepad-fr/smartboard/internal/model"
	"github.com/Makepad-fr/smartboard/internal/recommend"
	"github.com/Makepad-fr/smartboard/internal/share"
	"github.com/Makepad-fr/smartboard/internal/ui"
)

type mode int

const (
	modeNormal mode = iota
	modeAddCard
	modeAddList
	modeInvite
	modeRecs
	modeShare
)

type (
	loadedMsg struct{ err error }
	opMsg     struct {
		form bool   // the op was submitted from a form
		done string // status text on success
		err  error
	}
	recsMsg struct {
		cardID string
		card   *model.Card // fresh copy of the card, nil when the refresh failed
		items  []recommend.Suggestion
		err    error
	}
	redrawMsg struct{}
)

// boardKeys are the board view bindings.
type boardKeys struct {
	Left, Right, Up, Down      key.Binding
	CardUp, CardDown           key.Binding
	MoveLeft, MoveRight        key.Binding
	ListLeft, ListRight        key.Binding
	AddCard, AddList, Invite   key.Binding
	Recs, Share, Delete, Retry key.Binding
	Back, Quit                 key.Binding
}

var bk = boardKeys{
	Left:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/l", "focus list")),
	Right:     key.NewBinding(key.WithKeys("l", "right")),
	Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "select")),
	Down:      key.NewBinding(key.WithKeys("j", "down")),
	CardUp:    key.NewBinding(key.WithKeys("K"), key.WithHelp("J/K", "reorder")),
	CardDown:  key.NewBinding(key.WithKeys("J")),
	MoveLeft:  key.NewBinding(key.WithKeys("H"), key.WithHelp("H/L", "move card")),
	MoveRight: key.NewBinding(key.WithKeys("L")),
	ListLeft:  key.NewBinding(key.WithKeys("<"), key.WithHelp("</>", "move list")),
	ListRight: key.NewBinding(key.WithKeys(">")),
	AddCard:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add card")),
	AddList:   key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "add list")),
	Invite:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "invite")),
	Recs:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "suggestions")),
	Share:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "share")),
	Delete:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete card")),
	Retry:     key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "retry")),
	Back:      key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "boards")),
	Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
}

type boardModel struct {
	ctx  context.Context
	deps Deps
	st   ui.Styles
	sync *board.Synchronizer
	id   string

	focus int            // index of the focused list
	sel   map[string]int // selected card per list

	mode    mode
	input   textinput.Model
	pending bool // a form request is outstanding
	status  string
	failed  bool

	recsFor     string
	recs        []recommend.Suggestion
	recsErr     string
	recsLoading bool

	width, height int
}

func newBoardModel(ctx context.Context, deps Deps, st ui.Styles, boardID string) *boardModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200
	sync := board.Open(ctx, deps.Boards, deps.Lists, deps.Cards, board.Options{
		PersistOrder: deps.Config.PersistOrder,
		Logger:       deps.Logger,
	})
	return &boardModel{
		ctx:    ctx,
		deps:   deps,
		st:     st,
		sync:   sync,
		id:     boardID,
		sel:    map[string]int{},
		input:  ti,
		width:  80,
		height: 24,
	}
}

func (b *boardModel) init() tea.Cmd { return b.load(false) }

func (b *boardModel) close() { b.sync.Close() }

func (b *boardModel) setSize(w, h int) { b.width, b.height = w, h }

func (b *boardModel) load(retry bool) tea.Cmd {
	ctx, s, id := b.ctx, b.sync, b.id
	return func() tea.Msg {
		if retry {
			return loadedMsg{err: s.Retry(ctx)}
		}
		return loadedMsg{err: s.Load(ctx, id)}
	}
}

// run executes op off the UI goroutine. Reorders change local state before
// their request, so a redraw is scheduled right away.
func (b *boardModel) run(form bool, done string, op func(context.Context) error) tea.Cmd {
	ctx := b.ctx
	return tea.Batch(
		func() tea.Msg { return opMsg{form: form, done: done, err: op(ctx)} },
		tea.Tick(30*time.Millisecond, func(time.Time) tea.Msg { return redrawMsg{} }),
	)
}

func (b *boardModel) lists() []model.List { return b.sync.Lists() }

// current returns the focused list, its cards and the selected index.
func (b *boardModel) current() (model.List, []model.Card, int, bool) {
	ls := b.lists()
	if len(ls) == 0 {
		return model.List{}, nil, 0, false
	}
	b.focus = clamp(b.focus, 0, len(ls)-1)
	l := ls[b.focus]
	cards := b.sync.CardsByList(l.ID)
	i := clamp(b.sel[l.ID], 0, max(len(cards)-1, 0))
	b.sel[l.ID] = i
	return l, cards, i, true
}

func (b *boardModel) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.err != nil {
			b.deps.Logger.Debug("board load failed", "board", b.id, "err", msg.err)
		}
		return nil
	case redrawMsg:
		return nil
	case opMsg:
		if msg.form {
			b.pending = false
		}
		if msg.err != nil {
			b.status, b.failed = message(msg.err), true
			return nil
		}
		b.status, b.failed = msg.done, false
		if msg.form {
			b.closeForm()
		}
		return nil
	case recsMsg:
		if msg.cardID != b.recsFor {
			return nil
		}
		b.recsLoading = false
		if msg.card != nil {
			if err := b.sync.ApplyCard(*msg.card); err != nil {
				b.deps.Logger.Debug("apply card", "card", msg.cardID, "err", err)
			}
		}
		if msg.err != nil {
			b.recsErr = message(msg.err)
			return nil
		}
		b.recs = msg.items
		return nil
	case tea.KeyMsg:
		switch b.mode {
		case modeAddCard, modeAddList, modeInvite:
			return b.updateForm(msg)
		case modeRecs:
			return b.updateRecs(msg)
		case modeShare:
			return b.updateShare(msg)
		}
		return b.updateNormal(msg)
	}
	return nil
}

func (b *boardModel) updateNormal(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, bk.Quit):
		return tea.Quit
	case key.Matches(msg, bk.Back):
		return func() tea.Msg { return closeBoardMsg{} }
	case key.Matches(msg, bk.Retry):
		if b.sync.Status() == board.StatusError {
			return b.load(true)
		}
		return nil
	}
	if b.sync.Status() != board.StatusReady {
		return nil
	}

	l, cards, i, ok := b.current()
	n := len(b.lists())
	switch {
	case key.Matches(msg, bk.Left):
		b.focus = max(b.focus-1, 0)
	case key.Matches(msg, bk.Right):
		b.focus = min(b.focus+1, max(n-1, 0))
	case key.Matches(msg, bk.Up):
		if ok {
			b.sel[l.ID] = max(i-1, 0)
		}
	case key.Matches(msg, bk.Down):
		if ok {
			b.sel[l.ID] = min(i+1, max(len(cards)-1, 0))
		}

	case key.Matches(msg, bk.CardUp), key.Matches(msg, bk.CardDown):
		to := i + 1
		if key.Matches(msg, bk.CardUp) {
			to = i - 1
		}
		if !ok || len(cards) == 0 || to < 0 || to >= len(cards) {
			return nil
		}
		b.sel[l.ID] = to
		return b.run(false, "", func(ctx context.Context) error {
			return b.sync.HandleDrag(ctx, model.DragEvent{
				Type:        model.ItemCard,
				ItemID:      cards[i].ID,
				Source:      model.Location{ContainerID: l.ID, Index: i},
				Destination: &model.Location{ContainerID: l.ID, Index: to},
			})
		})

	case key.Matches(msg, bk.MoveLeft), key.Matches(msg, bk.MoveRight):
		dest := b.focus + 1
		if key.Matches(msg, bk.MoveLeft) {
			dest = b.focus - 1
		}
		if !ok || len(cards) == 0 || dest < 0 || dest >= n {
			return nil
		}
		to := b.lists()[dest]
		at := min(i, len(b.sync.CardsByList(to.ID)))
		card := cards[i]
		b.focus = dest
		b.sel[to.ID] = at
		return b.run(false, "Moved to "+to.Title, func(ctx context.Context) error {
			return b.sync.HandleDrag(ctx, model.DragEvent{
				Type:        model.ItemCard,
				ItemID:      card.ID,
				Source:      model.Location{ContainerID: l.ID, Index: i},
				Destination: &model.Location{ContainerID: to.ID, Index: at},
			})
		})

	case key.Matches(msg, bk.ListLeft), key.Matches(msg, bk.ListRight):
		to := b.focus + 1
		if key.Matches(msg, bk.ListLeft) {
			to = b.focus - 1
		}
		if to < 0 || to >= n {
			return nil
		}
		from := b.focus
		b.focus = to
		return b.run(false, "", func(ctx context.Context) error {
			return b.sync.HandleDrag(ctx, model.DragEvent{
				Type:        model.ItemList,
				ItemID:      l.ID,
				Source:      model.Location{Index: from},
				Destination: &model.Location{Index: to},
			})
		})

	case key.Matches(msg, bk.AddCard):
		if !ok {
			return nil
		}
		return b.openForm(modeAddCard, "Card title...", "")
	case key.Matches(msg, bk.AddList):
		return b.openForm(modeAddList, "List title...", "")
	case key.Matches(msg, bk.Invite):
		return b.openForm(modeInvite, "Email address...", "")

	case key.Matches(msg, bk.Delete):
		if !ok || len(cards) == 0 {
			return nil
		}
		id := cards[i].ID
		return b.run(false, "Card deleted", func(ctx context.Context) error {
			return b.sync.DeleteCard(ctx, id)
		})

	case key.Matches(msg, bk.Recs):
		if !ok || len(cards) == 0 {
			return nil
		}
		return b.openRecs(cards[i].ID)
	case key.Matches(msg, bk.Share):
		b.mode = modeShare
		return nil
	}
	return nil
}

func (b *boardModel) openForm(m mode, placeholder, value string) tea.Cmd {
	b.mode = m
	b.status, b.failed = "", false
	b.input.Placeholder = placeholder
	b.input.SetValue(value)
	return b.input.Focus()
}

func (b *boardModel) closeForm() {
	b.mode = modeNormal
	b.input.SetValue("")
	b.input.Blur()
}

func (b *boardModel) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		if !b.pending {
			b.closeForm()
		}
		return nil
	case "enter":
		if b.pending {
			return nil
		}
		value := b.input.Value()
		var op func(context.Context) error
		var done string
		switch b.mode {
		case modeAddCard:
			l, _, _, ok := b.current()
			if !ok {
				return nil
			}
			done = "Card added"
			op = func(ctx context.Context) error {
				_, err := b.sync.CreateCard(ctx, l.ID, value, "")
				return err
			}
		case modeAddList:
			done = "List added"
			op = func(ctx context.Context) error {
				_, err := b.sync.CreateList(ctx, value)
				return err
			}
		case modeInvite:
			done = "Invitation sent to " + strings.TrimSpace(value)
			op = func(ctx context.Context) error { return b.sync.Invite(ctx, value) }
		}
		b.pending = true
		return b.run(true, done, op)
	}
	var cmd tea.Cmd
	b.input, cmd = b.input.Update(msg)
	return cmd
}

func (b *boardModel) openRecs(cardID string) tea.Cmd {
	b.mode = modeRecs
	b.recsFor = cardID
	b.recs, b.recsErr, b.recsLoading = nil, "", true
	ctx, cards := b.ctx, b.deps.Cards
	return func() tea.Msg {
		items, err := recommend.Fetch(ctx, cards, cardID)
		msg := recsMsg{cardID: cardID, items: items, err: err}
		if c, cerr := cards.Get(ctx, cardID); cerr == nil {
			msg.card = c
		}
		return msg
	}
}

func (b *boardModel) updateRecs(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "q":
		b.mode = modeNormal
		return nil
	case "r":
		return b.openRecs(b.recsFor)
	case "d":
		due, ok := recommend.SuggestedDueDate(b.recs)
		if !ok {
			return nil
		}
		id, date := b.recsFor, due.Date
		b.mode = modeNormal
		return b.run(false, "Due date set to "+date.Format("2 Jan 2006"), func(ctx context.Context) error {
			_, err := b.sync.UpdateCard(ctx, id, api.CardPatch{DueDate: &date})
			return err
		})
	case "m":
		titles := map[string]string{}
		for _, l := range b.lists() {
			titles[strings.ToLower(l.Title)] = l.ID
		}
		listID, ok := recommend.SuggestedList(b.recs, titles)
		if !ok {
			return nil
		}
		id := b.recsFor
		b.mode = modeNormal
		return b.run(false, "Card moved", func(ctx context.Context) error {
			return b.sync.MoveToList(ctx, id, listID, 0)
		})
	}
	return nil
}

func (b *boardModel) updateShare(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "q":
		b.mode = modeNormal
	case "w":
		link := share.Link(b.deps.Config.ShareBaseURL, b.id)
		name := share.PNGName(b.id)
		if err := share.WriteQRPNG(link, name, 512); err != nil {
			b.status, b.failed = err.Error(), true
		} else {
			b.status, b.failed = "QR code saved to "+name, false
		}
		b.mode = modeNormal
	}
	return nil
}

// ---------------------------------------------------
// rendering
// ---------------------------------------------------

func (b *boardModel) view() string {
	v := b.sync.Snapshot()
	switch v.Status {
	case board.StatusIdle, board.StatusLoading:
		return b.st.Frame.Render(b.st.Muted.Render("Loading board..."))
	case board.StatusError:
		return b.st.Frame.Render(
			b.st.Error.Render("Could not load the board: "+message(v.Err)) + "\n\n" +
				b.st.Help.Render("R retry • esc boards • q quit"))
	}

	header := b.st.Title.Render(v.Board.Title) + "  " +
		b.st.Muted.Render(fmt.Sprintf("%d members", len(v.Board.Members)))

	var body string
	switch b.mode {
	case modeRecs:
		body = b.viewRecs()
	case modeShare:
		body = b.viewShare(v.Board)
	default:
		body = b.viewColumns()
	}

	var footer []string
	switch b.mode {
	case modeAddCard, modeAddList, modeInvite:
		footer = append(footer, b.viewForm())
	}
	if b.status != "" {
		st := b.st.Success
		if b.failed {
			st = b.st.Error
		}
		footer = append(footer, st.Render(b.status))
	}
	if b.mode == modeNormal {
		footer = append(footer, b.st.Help.Render(
			"h/l focus • j/k select • J/K reorder • H/L move • </> move list • a card • A list • i invite • r suggestions • s share • esc boards • q quit"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, append([]string{header, "", body}, footer...)...)
}

func (b *boardModel) viewColumns() string {
	ls := b.lists()
	if len(ls) == 0 {
		return b.st.Muted.Render("This board has no lists yet. Press A to add one.")
	}
	b.focus = clamp(b.focus, 0, len(ls)-1)
	cols := make([]string, 0, len(ls))
	for li, l := range ls {
		cards := b.sync.CardsByList(l.ID)
		lines := []string{b.st.Title.Render(ui.Truncate(l.Title, 24)), ""}
		if len(cards) == 0 {
			lines = append(lines, b.st.Muted.Render("(empty)"))
		}
		sel := clamp(b.sel[l.ID], 0, max(len(cards)-1, 0))
		for ci, c := range cards {
			text := ui.Truncate(c.Title, 22)
			if c.DueDate != nil {
				text += " " + b.st.Muted.Render(ui.Current().Due+" "+c.DueDate.Format("2 Jan"))
			}
			if li == b.focus && ci == sel {
				lines = append(lines, b.st.SelectedCard.Render(ui.Current().Cursor+" "+text))
			} else {
				lines = append(lines, b.st.Card.Render("  "+text))
			}
		}
		style := b.st.Column
		if li == b.focus {
			style = b.st.FocusedColumn
		}
		cols = append(cols, style.Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (b *boardModel) viewForm() string {
	title := map[mode]string{
		modeAddCard: "New card",
		modeAddList: "New list",
		modeInvite:  "Invite a member",
	}[b.mode]
	if b.pending {
		title += " " + b.st.Muted.Render("(saving...)")
	}
	return b.st.Form.Render(title + "\n" + b.input.View())
}

func (b *boardModel) viewRecs() string {
	card, _ := b.sync.Card(b.recsFor)
	lines := []string{b.st.Title.Render("Suggestions for " + card.Title), ""}
	switch {
	case b.recsLoading:
		lines = append(lines, b.st.Muted.Render("Loading suggestions..."))
	case b.recsErr != "":
		lines = append(lines, b.st.Error.Render(b.recsErr))
	default:
		meter := func(f float64) string { return ui.Meter(f, 10) }
		for _, s := range b.recs {
			title, body := recommend.Describe(s, meter)
			lines = append(lines, b.st.Accent.Render(title))
			for _, ln := range body {
				lines = append(lines, "  "+ln)
			}
			lines = append(lines, "")
		}
	}
	help := "r reload • esc close"
	if _, ok := recommend.SuggestedDueDate(b.recs); ok {
		help = "d set due date • " + help
	}
	if _, ok := recommend.SuggestedList(b.recs, nil); ok {
		help = "m move card • " + help
	}
	lines = append(lines, b.st.Help.Render(help))
	return b.st.Frame.Render(strings.Join(lines, "\n"))
}

func (b *boardModel) viewShare(bd model.Board) string {
	link := share.Link(b.deps.Config.ShareBaseURL, bd.ID)
	lines := []string{b.st.Title.Render("Share " + bd.Title), "", link, ""}
	if qr, err := share.QR(link); err == nil {
		lines = append(lines, qr)
	}
	for _, ch := range share.Channels(bd.Title, link) {
		lines = append(lines, b.st.Accent.Render(ch.Name)+"  "+b.st.Muted.Render(ch.URL))
	}
	lines = append(lines, "", b.st.Help.Render("w save QR as PNG • esc close"))
	return b.st.Frame.Render(strings.Join(lines, "\n"))
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
