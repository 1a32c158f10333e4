package tui

import (
	"context"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/apitest"
	"github.com/Makepad-fr/smartboard/internal/board"
	"github.com/Makepad-fr/smartboard/internal/config"
	"github.com/Makepad-fr/smartboard/internal/session"
	"github.com/Makepad-fr/smartboard/internal/store/credstore"
	"github.com/Makepad-fr/smartboard/internal/ui"
)

type env struct {
	srv     *apitest.Server
	deps    Deps
	boardID string
	lists   []string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	srv.AddUser("Ada", "ada@x.com", "pw")
	boardID, lists := srv.SeedBoard("ada@x.com", "Roadmap", []string{"Todo", "Doing"}, 2)

	store := &credstore.Memory{}
	g := api.NewGateway(store, api.Options{BaseURL: srv.BaseURL()})
	sess := session.NewManager(api.NewAuth(g), store, nil)
	g.SetUnauthorizedHook(sess.Expire)
	_, err := sess.Login(context.Background(), "ada@x.com", "pw")
	require.NoError(t, err)

	cfg := config.Defaults()
	return &env{
		srv: srv,
		deps: Deps{
			Session: sess,
			Boards:  api.NewBoards(g),
			Lists:   api.NewLists(g),
			Cards:   api.NewCards(g),
			Config:  cfg,
			Logger:  discardLogger(),
		},
		boardID: boardID,
		lists:   lists,
	}
}

// drain runs cmd and every command it batches, returning the messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func discardLogger() *log.Logger { return log.New(io.Discard) }

func keys(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func openBoard(t *testing.T, e *env) *boardModel {
	t.Helper()
	b := newBoardModel(context.Background(), e.deps, ui.NewStyles(), e.boardID)
	t.Cleanup(b.close)
	for _, msg := range drain(b.init()) {
		b.update(msg)
	}
	require.Equal(t, board.StatusReady, b.sync.Status())
	return b
}

func TestLoginFormValidates(t *testing.T) {
	e := newEnv(t)
	e.deps.Session.Logout()
	m := newLoginModel(context.Background(), e.deps.Session, ui.NewStyles(), false)
	m.init()

	m.update(enter) // email -> password
	before := e.srv.CallCount("POST /api/auth/login")
	for _, msg := range drain(m.update(enter)) {
		m.update(msg)
	}
	assert.Equal(t, "Please fill in all fields", m.err)
	assert.Equal(t, before, e.srv.CallCount("POST /api/auth/login"))
	assert.Equal(t, session.Anonymous, e.deps.Session.State())
}

func TestLoginFormSignsIn(t *testing.T) {
	e := newEnv(t)
	e.deps.Session.Logout()
	m := newLoginModel(context.Background(), e.deps.Session, ui.NewStyles(), true)
	m.init()
	assert.Contains(t, m.view(), "expired")

	m.update(keys("ada@x.com"))
	m.update(enter)
	m.update(keys("pw"))
	cmd := m.update(enter)
	require.True(t, m.pending)
	assert.Nil(t, m.update(enter), "second submit while pending")

	for _, msg := range drain(cmd) {
		m.update(msg)
	}
	assert.False(t, m.pending)
	assert.Empty(t, m.err)
	assert.Equal(t, session.Authenticated, e.deps.Session.State())
}

func TestBoardViewRendersColumns(t *testing.T) {
	e := newEnv(t)
	b := openBoard(t, e)
	out := b.view()
	assert.Contains(t, out, "Roadmap")
	assert.Contains(t, out, "Todo")
	assert.Contains(t, out, "Doing")
}

func TestBoardViewReorderKey(t *testing.T) {
	e := newEnv(t)
	b := openBoard(t, e)
	first := b.sync.CardsByList(e.lists[0])[0]

	for _, msg := range drain(b.update(keys("J"))) {
		b.update(msg)
	}
	got := b.sync.CardsByList(e.lists[0])
	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, 1, b.sel[e.lists[0]])
	assert.False(t, b.failed, b.status)
}

func TestBoardViewMoveKey(t *testing.T) {
	e := newEnv(t)
	b := openBoard(t, e)
	card := b.sync.CardsByList(e.lists[0])[0]

	for _, msg := range drain(b.update(keys("L"))) {
		b.update(msg)
	}
	c, ok := b.sync.Card(card.ID)
	require.True(t, ok)
	assert.Equal(t, e.lists[1], c.ListID)
	assert.Equal(t, 1, b.focus)
	assert.Equal(t, "Moved to Doing", b.status)
}

func TestBoardViewAddCardForm(t *testing.T) {
	e := newEnv(t)
	b := openBoard(t, e)

	b.update(keys("a"))
	require.Equal(t, modeAddCard, b.mode)

	for _, msg := range drain(b.update(enter)) {
		b.update(msg)
	}
	assert.Equal(t, board.MsgCardTitle, b.status)
	assert.Equal(t, modeAddCard, b.mode)

	b.update(keys("Write docs"))
	cmd := b.update(enter)
	require.True(t, b.pending)
	assert.Nil(t, b.update(enter))
	for _, msg := range drain(cmd) {
		b.update(msg)
	}
	assert.Equal(t, modeNormal, b.mode)
	assert.Equal(t, "Card added", b.status)
	assert.Len(t, b.sync.CardsByList(e.lists[0]), 3)
}

func TestBoardViewRecommendations(t *testing.T) {
	e := newEnv(t)
	b := openBoard(t, e)
	card := b.sync.CardsByList(e.lists[0])[0]
	e.srv.SetRecommendations(card.ID, `{"suggestedListMovement":{"listId":"`+e.lists[1]+`","listTitle":"Doing","reason":"started"}}`)

	for _, msg := range drain(b.update(keys("r"))) {
		b.update(msg)
	}
	require.Equal(t, modeRecs, b.mode)
	assert.Contains(t, b.view(), "Move card")

	for _, msg := range drain(b.update(keys("m"))) {
		b.update(msg)
	}
	c, _ := b.sync.Card(card.ID)
	assert.Equal(t, e.lists[1], c.ListID)
	assert.Equal(t, 0, c.Position)
}

func TestBoardViewLoadErrorAndRetry(t *testing.T) {
	e := newEnv(t)
	e.srv.Fail("GET /api/cards/board/{boardId}", 500, "")
	b := newBoardModel(context.Background(), e.deps, ui.NewStyles(), e.boardID)
	t.Cleanup(b.close)
	for _, msg := range drain(b.init()) {
		b.update(msg)
	}
	assert.Contains(t, b.view(), "Could not load the board")

	e.srv.Heal("GET /api/cards/board/{boardId}")
	for _, msg := range drain(b.update(keys("R"))) {
		b.update(msg)
	}
	assert.Equal(t, board.StatusReady, b.sync.Status())
}

func TestAppRoutesToLoginOn401(t *testing.T) {
	e := newEnv(t)
	sub, cancel := e.deps.Session.Subscribe()
	defer cancel()
	m := newApp(context.Background(), e.deps, sub, e.boardID)
	m.route()
	require.Equal(t, screenBoard, m.screen)

	e.srv.RevokeTokens()
	_, err := e.deps.Boards.List(context.Background())
	require.ErrorIs(t, err, api.ErrUnauthorized)

	m.Update(sessionMsg(<-sub))
	assert.Equal(t, screenLogin, m.screen)
	assert.Nil(t, m.board)
	assert.Contains(t, m.View(), "expired")
}
