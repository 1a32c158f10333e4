package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/smartboard/internal/apitest"
	"github.com/Makepad-fr/smartboard/internal/model"
	"github.com/Makepad-fr/smartboard/internal/store/credstore"
)

func TestGatewayAttachesBearerToken(t *testing.T) {
	var gotAuth, gotReqID, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		gotCustom = r.Header.Get("X-Custom")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	store := &credstore.Memory{}
	require.NoError(t, store.Save(model.Credential{Token: "abc"}))
	g := NewGateway(store, Options{BaseURL: srv.URL})

	var out struct{ OK bool }
	require.NoError(t, g.Do(context.Background(), http.MethodGet, "/x", nil, &out, WithHeader("X-Custom", "1")))
	assert.True(t, out.OK)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.NotEmpty(t, gotReqID)
	assert.Equal(t, "1", gotCustom)
}

func TestGatewayWithoutTokenSendsNoAuthorization(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	g := NewGateway(&credstore.Memory{}, Options{BaseURL: srv.URL})
	require.NoError(t, g.Do(context.Background(), http.MethodDelete, "/x", nil, nil))
	assert.Empty(t, gotAuth)
}

func TestGatewayErrorMessages(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	_, token := srv.AddUser("Ada", "ada@x.com", "pw")
	store := &credstore.Memory{}
	require.NoError(t, store.Save(model.Credential{Token: token}))
	g := NewGateway(store, Options{BaseURL: srv.BaseURL()})

	_, err := NewBoards(g).Get(context.Background(), "missing")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Board not found", apiErr.Message)
	assert.False(t, errors.Is(err, ErrUnauthorized))

	srv.Fail("GET /api/boards", http.StatusInternalServerError, "")
	_, err = NewBoards(g).List(context.Background())
	assert.Equal(t, GenericMessage, Message(err))
}

func TestGateway401ClearsStoreAndCallsHook(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	store := &credstore.Memory{}
	require.NoError(t, store.Save(model.Credential{Token: "stale", User: &model.User{ID: "1"}}))

	var hooked atomic.Int32
	g := NewGateway(store, Options{BaseURL: srv.BaseURL(), OnUnauthorized: func() { hooked.Add(1) }})

	_, err := NewBoards(g).List(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), hooked.Load())

	cred, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestGateway401DropsEnvToken(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	t.Setenv(credstore.EnvToken, "stale-token")
	store := &credstore.File{Dir: t.TempDir()}
	g := NewGateway(store, Options{BaseURL: srv.BaseURL()})

	_, err := NewBoards(g).List(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)

	cred, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cred)

	// a new login is not hidden behind the rejected env token
	_, token := srv.AddUser("Ada", "ada@x.com", "pw")
	require.NoError(t, store.Save(model.Credential{Token: token, User: &model.User{ID: "1"}}))
	_, err = NewBoards(g).List(context.Background())
	assert.NoError(t, err)
}

func TestGateway401WithEmptyStore(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	store := &credstore.Memory{}
	g := NewGateway(store, Options{BaseURL: srv.BaseURL()})

	_, err := NewAuth(g).Me(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	cred, _ := store.Load()
	assert.Nil(t, cred)
}

func TestGatewayNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := NewGateway(&credstore.Memory{}, Options{BaseURL: url, Timeout: time.Second})
	err := g.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.Equal(t, "Cannot reach the server", Message(err))
}

func TestGatewayRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	g := NewGateway(&credstore.Memory{}, Options{BaseURL: srv.URL, RateLimit: 0.001, RateBurst: 1})

	require.NoError(t, g.Do(context.Background(), http.MethodGet, "/x", nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := g.Do(ctx, http.MethodGet, "/x", nil, nil)
	assert.Error(t, err)
}

func TestAuthResponseDecoding(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	g := NewGateway(&credstore.Memory{}, Options{BaseURL: srv.BaseURL()})

	resp, err := NewAuth(g).Register(context.Background(), RegisterRequest{Name: "Ada", Email: "ada@x.com", Password: "pw"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Ada", resp.Name)
}
