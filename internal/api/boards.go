package api

import (
	"context"
	"net/url"

	"github.com/Makepad-fr/smartboard/internal/model"
)

func id(s string) string { return url.PathEscape(s) }

// BoardInput is the body for creating or updating a board.
type BoardInput struct {
	Title      string `json:"title,omitempty"`
	Background string `json:"background,omitempty"`
}

type Boards struct{ g *Gateway }

func NewBoards(g *Gateway) *Boards { return &Boards{g: g} }

func (b *Boards) List(ctx context.Context) ([]model.Board, error) {
	var out []model.Board
	if err := b.g.get(ctx, "/boards", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Boards) Create(ctx context.Context, in BoardInput) (*model.Board, error) {
	var out model.Board
	if err := b.g.post(ctx, "/boards", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get includes owner and members.
func (b *Boards) Get(ctx context.Context, boardID string) (*model.Board, error) {
	var out model.Board
	if err := b.g.get(ctx, "/boards/"+id(boardID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Boards) Update(ctx context.Context, boardID string, in BoardInput) (*model.Board, error) {
	var out model.Board
	if err := b.g.put(ctx, "/boards/"+id(boardID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Boards) Delete(ctx context.Context, boardID string) error {
	return b.g.del(ctx, "/boards/"+id(boardID))
}

// Invite asks the server to add the user with email to the board.
func (b *Boards) Invite(ctx context.Context, boardID, email string) error {
	body := struct {
		Email string `json:"email"`
	}{email}
	return b.g.post(ctx, "/boards/"+id(boardID)+"/invite", body, nil)
}
