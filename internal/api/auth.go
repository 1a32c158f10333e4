package api

import (
	"context"
	"encoding/json"

	"github.com/Makepad-fr/smartboard/internal/model"
)

// AuthResponse is returned by register and login.
type AuthResponse struct {
	model.User
	Token string `json:"token"`
}

// UnmarshalJSON keeps the token next to the embedded user's custom decoding.
func (a *AuthResponse) UnmarshalJSON(b []byte) error {
	if err := a.User.UnmarshalJSON(b); err != nil {
		return err
	}
	var t struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	a.Token = t.Token
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Auth covers /auth. Register and login do not need a token.
type Auth struct{ g *Gateway }

func NewAuth(g *Gateway) *Auth { return &Auth{g: g} }

func (a *Auth) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := a.g.post(ctx, "/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Auth) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := a.g.post(ctx, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the profile bound to the current token.
func (a *Auth) Me(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := a.g.get(ctx, "/auth/me", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
