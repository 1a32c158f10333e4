// Package session owns who is logged in.
//
// A Manager is created once by the application and handed to every view that
// needs the current user. It reads the credential store on Restore and writes
// it on Login, Register and Logout; nothing else writes the store except the
// gateway clearing it on a 401.
package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/model"
	"github.com/Makepad-fr/smartboard/internal/store/credstore"
)

// State of the session.
type State int

const (
	Uninitialized State = iota
	Restoring
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return "unknown"
}

// Route is what a view that requires a user must do right now.
type Route int

const (
	RouteLoading Route = iota // show a loading indicator
	RouteRender               // render the view
	RouteLogin                // go to the login entry point
)

// ErrMissingFields is returned before any request when a form is incomplete.
var ErrMissingFields = errors.New("Please fill in all fields")

// Authenticator is the subset of the auth API the manager needs.
type Authenticator interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)
	Me(ctx context.Context) (*model.User, error)
}

type Manager struct {
	auth   Authenticator
	store  credstore.Store
	logger *log.Logger

	mu      sync.Mutex
	state   State
	user    *model.User
	expired bool
	gen     uint64 // bumped on every transition
	subs    map[int]chan State
	nextSub int
}

func NewManager(auth Authenticator, store credstore.Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{
		auth:   auth,
		store:  store,
		logger: logger,
		subs:   map[int]chan State{},
	}
}

// Restore reads the stored credential. With a cached profile the manager is
// Authenticated before Restore returns; the token is then checked against
// the server in the background. The returned channel receives the outcome of
// that check (nil when there was nothing to check) and is closed.
func (m *Manager) Restore(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	cred, err := m.store.Load()
	if err != nil {
		m.logger.Warn("credential store unreadable", "err", err)
	}

	m.mu.Lock()
	m.setLocked(Restoring, nil)
	if cred == nil || cred.Token == "" {
		m.setLocked(Anonymous, nil)
		m.mu.Unlock()
		done <- nil
		close(done)
		return done
	}
	if cred.HasProfile() {
		u := *cred.User
		m.setLocked(Authenticated, &u)
	}
	gen := m.gen
	m.mu.Unlock()

	go func() {
		defer close(done)
		done <- m.verify(ctx, gen)
	}()
	return done
}

func (m *Manager) verify(ctx context.Context, gen uint64) error {
	u, err := m.auth.Me(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		// A login, logout or expiry happened meanwhile; it wins.
		return err
	}
	if err != nil {
		m.logger.Info("stored session rejected", "err", err)
		if cerr := m.store.Clear(); cerr != nil {
			m.logger.Error("clear credentials", "err", cerr)
		}
		m.setLocked(Anonymous, nil)
		return err
	}
	if cred, lerr := m.store.Load(); lerr == nil && cred != nil && cred.Source != "env" {
		cred.User = u
		if serr := m.store.Save(*cred); serr != nil {
			m.logger.Warn("refresh cached profile", "err", serr)
		}
	}
	m.setLocked(Authenticated, u)
	return nil
}

// Login exchanges email and password for a token. On failure the manager
// stays Anonymous and the server's error is returned as is.
func (m *Manager) Login(ctx context.Context, email, password string) (model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.User{}, ErrMissingFields
	}
	resp, err := m.auth.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		m.failed()
		return model.User{}, err
	}
	return m.establish(resp)
}

// Register creates an account and logs into it.
func (m *Manager) Register(ctx context.Context, name, email, password string) (model.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return model.User{}, ErrMissingFields
	}
	resp, err := m.auth.Register(ctx, api.RegisterRequest{Name: name, Email: email, Password: password})
	if err != nil {
		m.failed()
		return model.User{}, err
	}
	return m.establish(resp)
}

func (m *Manager) establish(resp *api.AuthResponse) (model.User, error) {
	if resp.Token == "" {
		m.failed()
		return model.User{}, errors.New("server returned no token")
	}
	u := resp.User
	if err := m.store.Save(model.Credential{Token: resp.Token, User: &u}); err != nil {
		m.failed()
		return model.User{}, err
	}
	m.mu.Lock()
	m.expired = false
	m.setLocked(Authenticated, &u)
	m.mu.Unlock()
	return u, nil
}

func (m *Manager) failed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Authenticated {
		m.setLocked(Anonymous, nil)
	}
}

// Logout forgets the credential. It never fails.
func (m *Manager) Logout() {
	if err := m.store.Clear(); err != nil {
		m.logger.Error("clear credentials", "err", err)
	}
	m.mu.Lock()
	m.expired = false
	m.setLocked(Anonymous, nil)
	m.mu.Unlock()
}

// Expire is the gateway's 401 hook. The store is already cleared.
func (m *Manager) Expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Authenticated || m.state == Restoring {
		m.expired = true
	}
	m.setLocked(Anonymous, nil)
}

// Expired reports whether the last transition to Anonymous was a server
// rejection rather than a logout.
func (m *Manager) Expired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expired
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// User returns the current profile when Authenticated.
func (m *Manager) User() (model.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Authenticated || m.user == nil {
		return model.User{}, false
	}
	return *m.user, true
}

// Guard tells a view that requires a user what to do.
func (m *Manager) Guard() Route {
	switch m.State() {
	case Authenticated:
		return RouteRender
	case Anonymous:
		return RouteLogin
	default:
		return RouteLoading
	}
}

// Subscribe delivers every state change. Slow readers miss intermediate
// states but always see the latest one. Call cancel to stop.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan State, 1)
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

func (m *Manager) setLocked(s State, u *model.User) {
	m.gen++
	changed := m.state != s
	m.state = s
	m.user = u
	if !changed {
		return
	}
	m.logger.Debug("session", "state", s)
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}
