package credstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Makepad-fr/smartboard/internal/model"
	"github.com/Makepad-fr/smartboard/internal/store/jsonstore"
)

const (
	credFileName = "credentials.json"

	// EnvToken overrides the stored token when set.
	EnvToken = "SMARTBOARD_TOKEN"
)

// Store persists the auth token together with the cached user profile.
// Load returns (nil, nil) when nothing is stored.
type Store interface {
	Save(cred model.Credential) error
	Load() (*model.Credential, error)
	Clear() error
}

// DefaultDir is ~/.smartboard.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".smartboard"), nil
}

// File keeps the credential in <Dir>/credentials.json with owner-only permissions.
// The SMARTBOARD_TOKEN override stops applying once the store has been saved
// to or cleared, so a rejected env token is not sent again and a fresh login
// is not hidden behind it.
type File struct {
	Dir string

	// IgnoreEnv disables the SMARTBOARD_TOKEN override.
	IgnoreEnv bool

	mu     sync.Mutex
	envOff bool
}

func (f *File) file() jsonstore.File {
	return jsonstore.File{Path: filepath.Join(f.Dir, credFileName), Perm: 0o600}
}

func (f *File) Load() (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// 1) env override
	if !f.IgnoreEnv && !f.envOff {
		if env := strings.TrimSpace(os.Getenv(EnvToken)); env != "" {
			return &model.Credential{Token: StripBearer(env), Source: "env"}, nil
		}
	}

	// 2) file
	var cred model.Credential
	found, err := f.file().Load(&cred)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if !found {
		return nil, nil // not logged in
	}
	cred.Token = StripBearer(cred.Token)
	if cred.Token == "" {
		return nil, nil
	}
	return &cred, nil
}

func (f *File) Save(cred model.Credential) error {
	cred, err := normalize(cred)
	if err != nil {
		return err
	}
	cred.Source = "file"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.file().Save(cred); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	f.envOff = true
	return nil
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envOff = true
	return f.file().Remove()
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.Mutex
	cred *model.Credential
}

func (m *Memory) Load() (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, nil
	}
	c := *m.cred
	if c.User != nil {
		u := *c.User
		c.User = &u
	}
	return &c, nil
}

func (m *Memory) Save(cred model.Credential) error {
	cred, err := normalize(cred)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cred.Source == "" {
		cred.Source = "memory"
	}
	m.cred = &cred
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}

func normalize(cred model.Credential) (model.Credential, error) {
	cred.Token = StripBearer(strings.TrimSpace(cred.Token))
	if cred.Token == "" {
		return cred, fmt.Errorf("empty token")
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}
	return cred, nil
}

// StripBearer removes a leading "Bearer " scheme.
func StripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
