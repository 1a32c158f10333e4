package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/apitest"
	"github.com/Makepad-fr/smartboard/internal/model"
	"github.com/Makepad-fr/smartboard/internal/store/credstore"
)

func newManager(t *testing.T) (*Manager, *credstore.Memory, *apitest.Server) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	store := &credstore.Memory{}
	gw := api.NewGateway(store, api.Options{BaseURL: srv.BaseURL()})
	m := NewManager(api.NewAuth(gw), store, nil)
	gw.SetUnauthorizedHook(m.Expire)
	return m, store, srv
}

func TestLoginStoresCredential(t *testing.T) {
	m, store, srv := newManager(t)
	srv.AddUser("Ada", "ada@x.com", "pw")

	u, err := m.Login(context.Background(), "ada@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, Authenticated, m.State())
	assert.Equal(t, RouteRender, m.Guard())

	cred, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.NotEmpty(t, cred.Token)
	require.True(t, cred.HasProfile())
	assert.Equal(t, "ada@x.com", cred.User.Email)
}

func TestLoginFailureStaysAnonymous(t *testing.T) {
	m, store, srv := newManager(t)
	srv.AddUser("Ada", "ada@x.com", "pw")

	_, err := m.Login(context.Background(), "ada@x.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", api.Message(err))
	assert.Equal(t, Anonymous, m.State())
	assert.False(t, m.Expired())

	cred, _ := store.Load()
	assert.Nil(t, cred)
}

func TestLoginValidationSkipsNetwork(t *testing.T) {
	m, _, srv := newManager(t)

	_, err := m.Login(context.Background(), "  ", "pw")
	assert.ErrorIs(t, err, ErrMissingFields)
	_, err = m.Register(context.Background(), "", "a@x.com", "pw")
	assert.ErrorIs(t, err, ErrMissingFields)
	assert.Empty(t, srv.Calls())
}

func TestRegister(t *testing.T) {
	m, store, _ := newManager(t)

	u, err := m.Register(context.Background(), "Bob", "bob@x.com", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, Authenticated, m.State())

	cred, _ := store.Load()
	require.NotNil(t, cred)

	_, err = m.Register(context.Background(), "Bob", "bob@x.com", "pw")
	assert.EqualError(t, err, "User already exists")
}

func TestLogout(t *testing.T) {
	m, store, srv := newManager(t)
	srv.AddUser("Ada", "ada@x.com", "pw")
	_, err := m.Login(context.Background(), "ada@x.com", "pw")
	require.NoError(t, err)

	m.Logout()
	assert.Equal(t, Anonymous, m.State())
	assert.Equal(t, RouteLogin, m.Guard())
	_, ok := m.User()
	assert.False(t, ok)
	cred, _ := store.Load()
	assert.Nil(t, cred)
}

func TestRestoreWithoutCredential(t *testing.T) {
	m, _, srv := newManager(t)
	assert.Equal(t, RouteLoading, m.Guard(), "uninitialized shows loading")

	err := <-m.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Anonymous, m.State())
	assert.Empty(t, srv.Calls())
}

// blockingAuth holds Me until released so the optimistic state can be observed.
type blockingAuth struct {
	release chan struct{}
	err     error
	user    *model.User
}

func (b *blockingAuth) Login(context.Context, api.LoginRequest) (*api.AuthResponse, error) {
	return nil, errors.New("unused")
}

func (b *blockingAuth) Register(context.Context, api.RegisterRequest) (*api.AuthResponse, error) {
	return nil, errors.New("unused")
}

func (b *blockingAuth) Me(ctx context.Context) (*model.User, error) {
	<-b.release
	return b.user, b.err
}

func TestColdStartOptimisticThenRejected(t *testing.T) {
	store := &credstore.Memory{}
	cached := model.User{ID: "1", Name: "A", Email: "a@x.com"}
	require.NoError(t, store.Save(model.Credential{Token: "abc", User: &cached}))

	auth := &blockingAuth{release: make(chan struct{}), err: &api.Error{Status: 401, Message: "Not authorized"}}
	m := NewManager(auth, store, nil)

	done := m.Restore(context.Background())
	assert.Equal(t, Authenticated, m.State())
	u, ok := m.User()
	require.True(t, ok)
	assert.Equal(t, cached, u)

	close(auth.release)
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("verification did not finish")
	}
	assert.Equal(t, Anonymous, m.State())
	cred, _ := store.Load()
	assert.Nil(t, cred)
}

func TestColdStartVerifiedRefreshesProfile(t *testing.T) {
	store := &credstore.Memory{}
	require.NoError(t, store.Save(model.Credential{Token: "abc", User: &model.User{ID: "1", Name: "Old"}}))

	fresh := &model.User{ID: "1", Name: "New", Email: "a@x.com"}
	auth := &blockingAuth{release: make(chan struct{}), user: fresh}
	close(auth.release)
	m := NewManager(auth, store, nil)

	require.NoError(t, <-m.Restore(context.Background()))
	u, ok := m.User()
	require.True(t, ok)
	assert.Equal(t, "New", u.Name)

	cred, _ := store.Load()
	assert.Equal(t, "New", cred.User.Name)
}

func TestColdStartAgainstServer(t *testing.T) {
	m, store, srv := newManager(t)
	id, token := srv.AddUser("Ada", "ada@x.com", "pw")
	require.NoError(t, store.Save(model.Credential{Token: token, User: &model.User{ID: id, Name: "Ada"}}))

	srv.RevokeTokens()
	err := <-m.Restore(context.Background())
	require.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, Anonymous, m.State())
	assert.True(t, m.Expired())
	cred, _ := store.Load()
	assert.Nil(t, cred)
}

func TestTokenWithoutProfileWaitsForVerification(t *testing.T) {
	store := &credstore.Memory{}
	require.NoError(t, store.Save(model.Credential{Token: "abc"}))
	auth := &blockingAuth{release: make(chan struct{}), user: &model.User{ID: "9", Name: "Env"}}
	m := NewManager(auth, store, nil)

	done := m.Restore(context.Background())
	assert.Equal(t, Restoring, m.State())
	assert.Equal(t, RouteLoading, m.Guard())

	close(auth.release)
	require.NoError(t, <-done)
	assert.Equal(t, Authenticated, m.State())
}

func TestSubscribeSeesTransitions(t *testing.T) {
	m, _, srv := newManager(t)
	srv.AddUser("Ada", "ada@x.com", "pw")
	ch, cancel := m.Subscribe()
	defer cancel()

	_, err := m.Login(context.Background(), "ada@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, Authenticated, <-ch)

	m.Logout()
	assert.Equal(t, Anonymous, <-ch)
}
