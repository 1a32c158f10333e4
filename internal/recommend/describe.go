package recommend

import (
	"fmt"
	"strings"
)

const dateLayout = "Mon 2 Jan 2006"

// Describe renders a suggestion as a heading and plain text lines. meter
// draws a similarity in [0,1]; nil prints a percentage.
func Describe(s Suggestion, meter func(float64) string) (string, []string) {
	if meter == nil {
		meter = func(f float64) string { return fmt.Sprintf("%d%%", int(f*100+0.5)) }
	}
	switch v := s.(type) {
	case DueDates:
		var lines []string
		for _, d := range v.Dates {
			lines = append(lines, withReason(d.Date.Format(dateLayout), d.Reason))
		}
		return "Suggested due dates", lines

	case ListMove:
		return "Move card", []string{withReason("to "+v.ListTitle, v.Reason)}

	case RelatedCards:
		var lines []string
		for _, c := range v.Cards {
			ln := meter(c.Similarity) + "  " + c.Title
			if c.ListTitle != "" {
				ln += " (" + c.ListTitle + ")"
			}
			lines = append(lines, ln)
		}
		return "Related cards", lines

	case AIInsight:
		var lines []string
		if v.Priority != "" {
			lines = append(lines, "Priority: "+v.Priority)
		}
		if v.EstimatedEffort != "" {
			lines = append(lines, "Effort: "+v.EstimatedEffort)
		}
		if v.DueDate != nil {
			lines = append(lines, withReason("Due "+v.DueDate.Format(dateLayout), v.DueDateReason))
		}
		if v.MoveTo != "" {
			lines = append(lines, withReason("Move to "+v.MoveTo, v.MoveReason))
		}
		for _, st := range v.Steps {
			lines = append(lines, "- "+st)
		}
		if len(v.Blockers) > 0 {
			lines = append(lines, "Blockers: "+strings.Join(v.Blockers, "; "))
		}
		return "AI insights", lines

	case Tips:
		lines := make([]string, len(v.Tips))
		for i, t := range v.Tips {
			lines[i] = "- " + t
		}
		return "Tips", lines

	case None:
		return "No suggestions", []string{"Nothing to suggest for this card yet."}
	}
	return s.Kind(), nil
}

func withReason(what, reason string) string {
	if reason == "" {
		return what
	}
	return what + ": " + reason
}

// SuggestedDueDate returns the first concrete date among the suggestions.
func SuggestedDueDate(items []Suggestion) (DueDate, bool) {
	for _, s := range items {
		switch v := s.(type) {
		case DueDates:
			if len(v.Dates) > 0 {
				return v.Dates[0], true
			}
		case AIInsight:
			if v.DueDate != nil {
				return DueDate{Date: *v.DueDate, Reason: v.DueDateReason}, true
			}
		}
	}
	return DueDate{}, false
}

// SuggestedList returns the list a card should move to. AI hints name the
// list by title, so titles resolves them to an id.
func SuggestedList(items []Suggestion, titles map[string]string) (string, bool) {
	for _, s := range items {
		switch v := s.(type) {
		case ListMove:
			return v.ListID, true
		case AIInsight:
			if id, ok := titles[strings.ToLower(v.MoveTo)]; ok && v.MoveTo != "" {
				return id, true
			}
		}
	}
	return "", false
}
