package api

import (
	"context"

	"github.com/Makepad-fr/smartboard/internal/model"
)

type ListInput struct {
	Title    string `json:"title"`
	Board    string `json:"board"`
	Position int    `json:"position"`
}

// ListPatch updates a list. Nil fields are left alone.
type ListPatch struct {
	Title    *string `json:"title,omitempty"`
	Position *int    `json:"position,omitempty"`
}

type Lists struct{ g *Gateway }

func NewLists(g *Gateway) *Lists { return &Lists{g: g} }

func (l *Lists) ByBoard(ctx context.Context, boardID string) ([]model.List, error) {
	var out []model.List
	if err := l.g.get(ctx, "/lists/board/"+id(boardID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Lists) Create(ctx context.Context, in ListInput) (*model.List, error) {
	var out model.List
	if err := l.g.post(ctx, "/lists", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *Lists) Update(ctx context.Context, listID string, p ListPatch) (*model.List, error) {
	var out model.List
	if err := l.g.put(ctx, "/lists/"+id(listID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *Lists) Delete(ctx context.Context, listID string) error {
	return l.g.del(ctx, "/lists/"+id(listID))
}
