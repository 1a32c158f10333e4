package api

import (
	"context"
	"time"

	"github.com/Makepad-fr/smartboard/internal/model"
)

type CardInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	List        string `json:"list"`
	Board       string `json:"board"`
	Position    int    `json:"position"`
}

// CardPatch updates a card. Nil fields are left alone.
type CardPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Position    *int       `json:"position,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
}

// MoveRequest is the body of PUT /cards/:id/move.
type MoveRequest struct {
	ListID   string `json:"listId"`
	Position int    `json:"position"`
}

// Recommendations is the raw payload of GET /cards/:id/recommendations.
// Every field may be absent.
type Recommendations struct {
	SuggestedDueDates []struct {
		Date   time.Time `json:"date"`
		Reason string    `json:"reason"`
	} `json:"suggestedDueDates"`
	SuggestedListMovement *struct {
		ListID    string `json:"listId"`
		ListTitle string `json:"listTitle"`
		Reason    string `json:"reason"`
	} `json:"suggestedListMovement"`
	RelatedCards []struct {
		ID          string  `json:"_id"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Similarity  float64 `json:"similarity"`
		List        *struct {
			Title string `json:"title"`
		} `json:"list"`
	} `json:"relatedCards"`
	AIInsights *struct {
		DueDateSuggestion *struct {
			HasDate       bool       `json:"hasDate"`
			SuggestedDate *time.Time `json:"suggestedDate"`
			Reason        string     `json:"reason"`
		} `json:"dueDateSuggestion"`
		ListMovement *struct {
			ShouldMove    bool   `json:"shouldMove"`
			SuggestedList string `json:"suggestedList"`
			Reason        string `json:"reason"`
		} `json:"listMovement"`
		Insights *struct {
			Priority          string   `json:"priority"`
			EstimatedEffort   string   `json:"estimatedEffort"`
			ActionableSteps   []string `json:"actionableSteps"`
			PotentialBlockers []string `json:"potentialBlockers"`
		} `json:"insights"`
	} `json:"aiInsights"`
	SmartTips []string `json:"smartTips"`
}

type Cards struct{ g *Gateway }

func NewCards(g *Gateway) *Cards { return &Cards{g: g} }

func (c *Cards) ByBoard(ctx context.Context, boardID string) ([]model.Card, error) {
	var out []model.Card
	if err := c.g.get(ctx, "/cards/board/"+id(boardID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Cards) ByList(ctx context.Context, listID string) ([]model.Card, error) {
	var out []model.Card
	if err := c.g.get(ctx, "/cards/list/"+id(listID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Cards) Get(ctx context.Context, cardID string) (*model.Card, error) {
	var out model.Card
	if err := c.g.get(ctx, "/cards/"+id(cardID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Cards) Create(ctx context.Context, in CardInput) (*model.Card, error) {
	var out model.Card
	if err := c.g.post(ctx, "/cards", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Cards) Update(ctx context.Context, cardID string, p CardPatch) (*model.Card, error) {
	var out model.Card
	if err := c.g.put(ctx, "/cards/"+id(cardID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Cards) Delete(ctx context.Context, cardID string) error {
	return c.g.del(ctx, "/cards/"+id(cardID))
}

// Move sends the card to listID at position. The response body is ignored;
// callers only need to know the move was accepted.
func (c *Cards) Move(ctx context.Context, cardID string, req MoveRequest) error {
	return c.g.put(ctx, "/cards/"+id(cardID)+"/move", req, nil)
}

func (c *Cards) Recommendations(ctx context.Context, cardID string) (*Recommendations, error) {
	var out Recommendations
	if err := c.g.get(ctx, "/cards/"+id(cardID)+"/recommendations", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
