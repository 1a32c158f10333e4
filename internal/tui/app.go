// Package tui is the interactive terminal interface: a login form, the
// boards list and the board view.
package tui

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/board"
	"github.com/Makepad-fr/smartboard/internal/config"
	"github.com/Makepad-fr/smartboard/internal/session"
	"github.com/Makepad-fr/smartboard/internal/ui"
)

// Deps are the services the views call.
type Deps struct {
	Session *session.Manager
	Boards  *api.Boards
	Lists   *api.Lists
	Cards   *api.Cards
	Config  config.Config
	Logger  *log.Logger
}

type screen int

const (
	screenLoading screen = iota
	screenLogin
	screenBoards
	screenBoard
)

// messages shared by the views
type (
	sessionMsg    session.State
	openBoardMsg  struct{ id string }
	closeBoardMsg struct{}
)

type app struct {
	ctx  context.Context
	deps Deps
	st   ui.Styles
	sub  <-chan session.State

	screen     screen
	spin       spinner.Model
	login      *loginModel
	boards     *boardsModel
	board      *boardModel
	startBoard string

	width, height int
}

// Run starts the interface and blocks until the user quits. With a
// boardID the board view opens first, otherwise the boards list.
func Run(ctx context.Context, deps Deps, boardID string) error {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	sub, cancel := deps.Session.Subscribe()
	defer cancel()

	m := newApp(ctx, deps, sub, boardID)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if fm, ok := final.(*app); ok && fm.board != nil {
		fm.board.close()
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func newApp(ctx context.Context, deps Deps, sub <-chan session.State, boardID string) *app {
	st := ui.NewStyles()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = st.Accent
	return &app{
		ctx:        ctx,
		deps:       deps,
		st:         st,
		sub:        sub,
		spin:       sp,
		boards:     newBoardsModel(ctx, deps, st),
		startBoard: boardID,
		width:      80,
		height:     24,
	}
}

func waitSession(ch <-chan session.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return sessionMsg(s)
	}
}

func (m *app) Init() tea.Cmd {
	return tea.Batch(waitSession(m.sub), m.route())
}

// route moves to the screen the session allows.
func (m *app) route() tea.Cmd {
	switch m.deps.Session.Guard() {
	case session.RouteLogin:
		if m.board != nil {
			m.board.close()
			m.board = nil
		}
		if m.screen == screenLogin {
			return nil
		}
		m.screen = screenLogin
		m.login = newLoginModel(m.ctx, m.deps.Session, m.st, m.deps.Session.Expired())
		return m.login.init()
	case session.RouteRender:
		if m.screen != screenLoading && m.screen != screenLogin {
			return nil
		}
		m.login = nil
		if id := m.startBoard; id != "" {
			m.startBoard = ""
			return m.openBoard(id)
		}
		m.screen = screenBoards
		return m.boards.refresh()
	default:
		m.screen = screenLoading
		return m.spin.Tick
	}
}

func (m *app) openBoard(id string) tea.Cmd {
	if m.board != nil {
		m.board.close()
	}
	m.board = newBoardModel(m.ctx, m.deps, m.st, id)
	m.board.setSize(m.width, m.height)
	m.screen = screenBoard
	return m.board.init()
}

func (m *app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.boards.setSize(msg.Width, msg.Height)
		if m.board != nil {
			m.board.setSize(msg.Width, msg.Height)
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case sessionMsg:
		return m, tea.Batch(m.route(), waitSession(m.sub))
	case spinner.TickMsg:
		if m.screen != screenLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case openBoardMsg:
		return m, m.openBoard(msg.id)
	case closeBoardMsg:
		if m.board != nil {
			m.board.close()
			m.board = nil
		}
		m.screen = screenBoards
		return m, m.boards.refresh()
	}

	switch m.screen {
	case screenLogin:
		return m, m.login.update(msg)
	case screenBoards:
		return m, m.boards.update(msg)
	case screenBoard:
		return m, m.board.update(msg)
	}
	return m, nil
}

func (m *app) View() string {
	switch m.screen {
	case screenLogin:
		return m.login.view()
	case screenBoards:
		return m.boards.view()
	case screenBoard:
		return m.board.view()
	}
	return m.st.Frame.Render(m.spin.View() + " Checking your session...")
}

// message is the text shown for a failed operation.
func message(err error) string {
	var ve *board.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, session.ErrMissingFields):
		return session.ErrMissingFields.Error()
	case errors.Is(err, board.ErrBusy):
		return "Still saving the previous change"
	}
	return api.Message(err)
}
