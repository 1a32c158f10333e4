package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/apitest"
	"github.com/Makepad-fr/smartboard/internal/config"
	"github.com/Makepad-fr/smartboard/internal/export"
	"github.com/Makepad-fr/smartboard/internal/model"
	"github.com/Makepad-fr/smartboard/internal/session"
	"github.com/Makepad-fr/smartboard/internal/store/credstore"
	"github.com/Makepad-fr/smartboard/internal/ui"
)

type harness struct {
	srv      *apitest.Server
	app      *App
	store    *credstore.Memory
	out, err *bytes.Buffer
}

func newHarness(t *testing.T, stdin string) *harness {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)

	store := &credstore.Memory{}
	cfg := config.Defaults()
	cfg.APIURL = srv.BaseURL()
	g := api.NewGateway(store, api.Options{BaseURL: cfg.APIURL})
	auth := api.NewAuth(g)
	sess := session.NewManager(auth, store, nil)
	g.SetUnauthorizedHook(sess.Expire)

	h := &harness{
		srv:   srv,
		store: store,
		out:   &bytes.Buffer{},
		err:   &bytes.Buffer{},
		app: &App{
			Config:  cfg,
			Store:   store,
			Session: sess,
			Auth:    auth,
			Boards:  api.NewBoards(g),
			Lists:   api.NewLists(g),
			Cards:   api.NewCards(g),
			Logger:  log.New(io.Discard),
			In:      strings.NewReader(stdin),
		},
	}

	oldOut, oldErr := ui.Stdout, ui.Stderr
	ui.Stdout, ui.Stderr = h.out, h.err
	t.Cleanup(func() { ui.Stdout, ui.Stderr = oldOut, oldErr })
	return h
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	id, token := h.srv.AddUser("Ada", "ada@x.com", "pw")
	require.NoError(t, h.store.Save(model.Credential{
		Token: token,
		User:  &model.User{ID: id, Name: "Ada", Email: "ada@x.com"},
	}))
}

func (h *harness) run(args ...string) int {
	return h.app.Run(context.Background(), args)
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t, "")
	assert.Equal(t, 2, h.run())
	assert.Equal(t, 2, h.run("nope"))
	assert.Equal(t, 2, h.run("card", "mv", "b1"))
	assert.Equal(t, 2, h.run("auth"))
	assert.Equal(t, 0, h.run("help"))
	assert.Contains(t, h.out.String(), "smartboard")
}

func TestAuthLoginPromptsAndSaves(t *testing.T) {
	h := newHarness(t, "ada@x.com\npw\n")
	h.srv.AddUser("Ada", "ada@x.com", "pw")

	require.Equal(t, 0, h.run("auth", "login"), h.err.String())
	assert.Contains(t, h.out.String(), "logged in as Ada <ada@x.com>")

	cred, err := h.store.Load()
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.NotEmpty(t, cred.Token)
}

func TestAuthLoginEmptyFields(t *testing.T) {
	h := newHarness(t, "\n\n")
	assert.Equal(t, 2, h.run("auth", "login"))
	assert.Contains(t, h.err.String(), "Please fill in all fields")
	assert.Zero(t, h.srv.CallCount("POST /api/auth/login"))
}

func TestAuthLoginRejected(t *testing.T) {
	h := newHarness(t, "ada@x.com\nwrong\n")
	h.srv.AddUser("Ada", "ada@x.com", "pw")
	assert.Equal(t, 1, h.run("auth", "login"))
	assert.Contains(t, h.err.String(), "Invalid email or password")
}

func TestAuthLogout(t *testing.T) {
	h := newHarness(t, "")
	h.login(t)
	require.Equal(t, 0, h.run("auth", "logout"))
	cred, _ := h.store.Load()
	assert.Nil(t, cred)
}

func TestNotLoggedIn(t *testing.T) {
	h := newHarness(t, "")
	assert.Equal(t, 2, h.run("boards", "ls"))
	assert.Contains(t, h.err.String(), "not logged in")
}

func TestExpiredTokenIsCleared(t *testing.T) {
	h := newHarness(t, "")
	h.login(t)
	h.srv.RevokeTokens()

	assert.Equal(t, 1, h.run("boards", "ls"))
	cred, _ := h.store.Load()
	assert.Nil(t, cred)
	assert.Contains(t, h.err.String(), "auth login")
}

func TestBoardsCreateAndList(t *testing.T) {
	h := newHarness(t, "")
	h.login(t)

	require.Equal(t, 0, h.run("boards", "create", "Sprint", "12", "--bg", "#519839"), h.err.String())
	assert.Equal(t, 2, h.run("boards", "create", "X", "--bg", "pink"))

	h.out.Reset()
	require.Equal(t, 0, h.run("boards", "ls"))
	assert.Contains(t, h.out.String(), "Sprint 12")
}

func TestCardCommands(t *testing.T) {
	h := newHarness(t, "")
	h.login(t)
	boardID, lists := h.srv.SeedBoard("ada@x.com", "Roadmap", []string{"Todo", "Doing"}, 2)

	require.Equal(t, 0, h.run("card", "add", boardID, lists[1], "Write", "docs"), h.err.String())
	assert.Equal(t, 2, h.run("card", "add", boardID, lists[1], " "))
	assert.Contains(t, h.err.String(), "Please enter a card title")

	require.Equal(t, 0, h.run("list", "add", boardID, "Done"), h.err.String())

	// move the first card of Todo to the top of Doing
	var first string
	cards, err := h.app.Cards.ByList(context.Background(), lists[0])
	require.NoError(t, err)
	for _, c := range cards {
		if c.Position == 0 {
			first = c.ID
		}
	}
	require.Equal(t, 0, h.run("card", "mv", boardID, first, lists[1], "0"), h.err.String())
	listID, pos, ok := h.srv.CardPosition(first)
	require.True(t, ok)
	assert.Equal(t, lists[1], listID)
	assert.Equal(t, 0, pos)
	assert.Contains(t, h.out.String(), "moved to Doing at position 0")

	assert.Equal(t, 2, h.run("card", "mv", boardID, first, lists[1], "x"))
	require.Equal(t, 0, h.run("card", "rm", first))
	_, _, ok = h.srv.CardPosition(first)
	assert.False(t, ok)
}

func TestRecommendCommand(t *testing.T) {
	h := newHarness(t, "")
	h.login(t)
	boardID, lists := h.srv.SeedBoard("ada@x.com", "Roadmap", []string{"Todo"}, 1)
	cards, err := h.app.Cards.ByList(context.Background(), lists[0])
	require.NoError(t, err)
	h.srv.SetRecommendations(cards[0].ID, `{"relatedCards":[{"_id":"x","title":"Login page","similarity":0.5}],"smartTips":["Add a due date"]}`)

	require.Equal(t, 0, h.run("recommend", boardID, cards[0].ID), h.err.String())
	out := h.out.String()
	assert.Contains(t, out, "Related cards")
	assert.Contains(t, out, "Login page")
	assert.Contains(t, out, "Add a due date")
}

func TestInviteCommand(t *testing.T) {
	h := newHarness(t, "")
	h.login(t)
	h.srv.AddUser("Bob", "bob@x.com", "pw")
	boardID, _ := h.srv.SeedBoard("ada@x.com", "Roadmap", []string{"Todo"}, 0)

	require.Equal(t, 0, h.run("invite", boardID, "bob@x.com"), h.err.String())
	assert.Contains(t, h.out.String(), "2 members")
	assert.Equal(t, 1, h.run("invite", boardID, "bob@x.com"))
	assert.Contains(t, h.err.String(), "User is already a member")
}

func TestShareCommand(t *testing.T) {
	h := newHarness(t, "")
	h.login(t)
	boardID, _ := h.srv.SeedBoard("ada@x.com", "Roadmap", []string{"Todo"}, 0)
	png := filepath.Join(t.TempDir(), "qr.png")

	require.Equal(t, 0, h.run("share", boardID, "--png", png), h.err.String())
	assert.Contains(t, h.out.String(), "http://localhost:5173/board/"+boardID)
	assert.Contains(t, h.out.String(), "WhatsApp")
	assert.FileExists(t, png)
}

func TestExportCommand(t *testing.T) {
	h := newHarness(t, "")
	h.login(t)
	boardID, _ := h.srv.SeedBoard("ada@x.com", "Roadmap", []string{"Todo", "Doing"}, 2)
	out := filepath.Join(t.TempDir(), "board.json")

	require.Equal(t, 0, h.run("export", boardID, "--out", out), h.err.String())
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	var snap export.Snapshot
	require.NoError(t, json.Unmarshal(b, &snap))
	assert.Equal(t, boardID, snap.Board.ID)
	assert.Len(t, snap.Lists, 2)
	assert.Len(t, snap.Cards, 4)
}

func TestWhoAmIDecodesJWT(t *testing.T) {
	claims, ok := tokenClaims("eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJpZCI6InUxIiwiZXhwIjo0MTAyNDQ0ODAwfQ.c2ln")
	require.True(t, ok)
	assert.Equal(t, "u1", claims["id"])

	exp, ok := tokenExpiry("eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJpZCI6InUxIiwiZXhwIjo0MTAyNDQ0ODAwfQ.c2ln")
	require.True(t, ok)
	assert.Equal(t, 2100, exp.UTC().Year())

	_, ok = tokenClaims("tok-001")
	assert.False(t, ok)
}
