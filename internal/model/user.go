package model

import (
	"encoding/json"
	"time"
)

// User is the profile snapshot shown in the UI.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UnmarshalJSON accepts both "_id" and "id", and a bare id string when the
// server did not populate the reference.
func (u *User) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		*u = User{}
		return json.Unmarshal(b, &u.ID)
	}
	var raw struct {
		ID    string `json:"_id"`
		AltID string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	u.ID = firstNonEmpty(raw.ID, raw.AltID)
	u.Name = raw.Name
	u.Email = raw.Email
	return nil
}

// Credential is what the credential store persists.
// Token and User are always written and cleared together.
type Credential struct {
	Token     string    `json:"token"`
	User      *User     `json:"user,omitempty"`
	Source    string    `json:"source"`     // "env" | "file"
	CreatedAt time.Time `json:"created_at"` // when we saved to file
}

// HasProfile reports whether a cached profile came with the token.
func (c *Credential) HasProfile() bool {
	return c != nil && c.User != nil && c.User.ID != ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
