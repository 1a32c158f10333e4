package model

import (
	"encoding/json"
	"time"
)

// Member roles.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// BoardColors are the backgrounds offered when creating a board. The first
// one is the default.
var BoardColors = []string{
	"#0079bf", "#d29034", "#519839", "#b04632", "#89609e",
	"#cd5a91", "#4bbf6b", "#00aecc", "#838c91",
}

// Board is the top-level container of lists.
type Board struct {
	ID         string   `json:"_id"`
	Title      string   `json:"title"`
	Background string   `json:"background"`
	Owner      User     `json:"owner"`
	Members    []Member `json:"members"`
}

// Member is a user with a role on a board.
type Member struct {
	User User   `json:"user"`
	Role string `json:"role"`
}

// UnmarshalJSON decodes a board and makes sure the owner is listed as a member.
func (b *Board) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string   `json:"_id"`
		AltID      string   `json:"id"`
		Title      string   `json:"title"`
		Background string   `json:"background"`
		Owner      User     `json:"owner"`
		Members    []Member `json:"members"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.ID = firstNonEmpty(raw.ID, raw.AltID)
	b.Title = raw.Title
	b.Background = raw.Background
	b.Owner = raw.Owner
	b.Members = raw.Members
	b.ensureOwnerMember()
	return nil
}

func (b *Board) ensureOwnerMember() {
	if b.Owner.ID == "" {
		return
	}
	for _, m := range b.Members {
		if m.User.ID == b.Owner.ID {
			return
		}
	}
	b.Members = append([]Member{{User: b.Owner, Role: RoleOwner}}, b.Members...)
}

// List is an ordered column within a board.
type List struct {
	ID       string `json:"_id"`
	BoardID  string `json:"board"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// UnmarshalJSON accepts a populated or bare board reference.
func (l *List) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string `json:"_id"`
		AltID    string `json:"id"`
		Board    ref    `json:"board"`
		Title    string `json:"title"`
		Position int    `json:"position"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.ID = firstNonEmpty(raw.ID, raw.AltID)
	l.BoardID = string(raw.Board)
	l.Title = raw.Title
	l.Position = raw.Position
	return nil
}

// Card is a task unit within a list.
type Card struct {
	ID          string     `json:"_id"`
	ListID      string     `json:"list"`
	BoardID     string     `json:"board"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Position    int        `json:"position"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Labels      []string   `json:"labels"`
}

// UnmarshalJSON accepts populated or bare list/board references.
func (c *Card) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string     `json:"_id"`
		AltID       string     `json:"id"`
		List        ref        `json:"list"`
		Board       ref        `json:"board"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Position    int        `json:"position"`
		DueDate     *time.Time `json:"dueDate"`
		Labels      []string   `json:"labels"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ID = firstNonEmpty(raw.ID, raw.AltID)
	c.ListID = string(raw.List)
	c.BoardID = string(raw.Board)
	c.Title = raw.Title
	c.Description = raw.Description
	c.Position = raw.Position
	c.DueDate = raw.DueDate
	c.Labels = raw.Labels
	if c.Labels == nil {
		c.Labels = []string{}
	}
	return nil
}

// ref is an entity reference that the backend sends either as an id string
// or as a populated object.
type ref string

func (r *ref) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = ref(s)
		return nil
	}
	var obj struct {
		ID    string `json:"_id"`
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = ref(firstNonEmpty(obj.ID, obj.AltID))
	return nil
}
