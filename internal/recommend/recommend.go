// Package recommend turns the server's card recommendation payload into a
// closed set of suggestion kinds the UI can switch over.
package recommend

import (
	"context"
	"strings"
	"time"

	"github.com/Makepad-fr/smartboard/internal/api"
)

// Suggestion is one panel entry. The set of kinds is closed: DueDates,
// ListMove, RelatedCards, AIInsight, Tips and None.
type Suggestion interface {
	Kind() string
	suggestion()
}

type DueDate struct {
	Date   time.Time
	Reason string
}

// DueDates proposes dates the card could be due on.
type DueDates struct {
	Dates []DueDate
}

// ListMove proposes moving the card to another list.
type ListMove struct {
	ListID    string
	ListTitle string
	Reason    string
}

type Related struct {
	ID          string
	Title       string
	Description string
	Similarity  float64 // 0..1
	ListTitle   string
}

// RelatedCards lists cards with similar content.
type RelatedCards struct {
	Cards []Related
}

// AIInsight carries the model generated hints. Pointer fields are nil when
// the server sent no hint of that kind.
type AIInsight struct {
	DueDate         *time.Time
	DueDateReason   string
	MoveTo          string
	MoveReason      string
	Priority        string
	EstimatedEffort string
	Steps           []string
	Blockers        []string
}

type Tips struct {
	Tips []string
}

// None means the server had nothing to suggest.
type None struct{}

func (DueDates) Kind() string     { return "due-dates" }
func (ListMove) Kind() string     { return "list-move" }
func (RelatedCards) Kind() string { return "related" }
func (AIInsight) Kind() string    { return "ai-insight" }
func (Tips) Kind() string         { return "tips" }
func (None) Kind() string         { return "none" }

func (DueDates) suggestion()     {}
func (ListMove) suggestion()     {}
func (RelatedCards) suggestion() {}
func (AIInsight) suggestion()    {}
func (Tips) suggestion()         {}
func (None) suggestion()         {}

// FromResponse converts the raw payload. Empty sections are skipped; when
// every section is empty the result is a single None.
func FromResponse(r api.Recommendations) []Suggestion {
	var out []Suggestion

	if len(r.SuggestedDueDates) > 0 {
		dd := DueDates{}
		for _, d := range r.SuggestedDueDates {
			if d.Date.IsZero() {
				continue
			}
			dd.Dates = append(dd.Dates, DueDate{Date: d.Date, Reason: d.Reason})
		}
		if len(dd.Dates) > 0 {
			out = append(out, dd)
		}
	}

	if m := r.SuggestedListMovement; m != nil && m.ListID != "" {
		out = append(out, ListMove{ListID: m.ListID, ListTitle: m.ListTitle, Reason: m.Reason})
	}

	if len(r.RelatedCards) > 0 {
		rc := RelatedCards{}
		for _, c := range r.RelatedCards {
			rel := Related{
				ID:          c.ID,
				Title:       c.Title,
				Description: c.Description,
				Similarity:  clamp01(c.Similarity),
			}
			if c.List != nil {
				rel.ListTitle = c.List.Title
			}
			rc.Cards = append(rc.Cards, rel)
		}
		out = append(out, rc)
	}

	if ai := r.AIInsights; ai != nil {
		in := AIInsight{}
		if d := ai.DueDateSuggestion; d != nil && d.HasDate && d.SuggestedDate != nil {
			t := *d.SuggestedDate
			in.DueDate = &t
			in.DueDateReason = d.Reason
		}
		if m := ai.ListMovement; m != nil && m.ShouldMove {
			in.MoveTo = m.SuggestedList
			in.MoveReason = m.Reason
		}
		if x := ai.Insights; x != nil {
			in.Priority = x.Priority
			in.EstimatedEffort = x.EstimatedEffort
			in.Steps = nonEmpty(x.ActionableSteps)
			in.Blockers = nonEmpty(x.PotentialBlockers)
		}
		if !in.empty() {
			out = append(out, in)
		}
	}

	if tips := nonEmpty(r.SmartTips); len(tips) > 0 {
		out = append(out, Tips{Tips: tips})
	}

	if len(out) == 0 {
		return []Suggestion{None{}}
	}
	return out
}

// CardSource is the part of api.Cards Fetch needs.
type CardSource interface {
	Recommendations(ctx context.Context, cardID string) (*api.Recommendations, error)
}

// Fetch loads and converts the recommendations for a card. Errors are
// returned as is so the panel can show them.
func Fetch(ctx context.Context, cards CardSource, cardID string) ([]Suggestion, error) {
	r, err := cards.Recommendations(ctx, cardID)
	if err != nil {
		return nil, err
	}
	return FromResponse(*r), nil
}

func (a AIInsight) empty() bool {
	return a.DueDate == nil && a.MoveTo == "" && a.Priority == "" &&
		a.EstimatedEffort == "" && len(a.Steps) == 0 && len(a.Blockers) == 0
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
