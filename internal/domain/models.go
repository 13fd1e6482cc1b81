package domain

import (
	"strings"
	"time"
)

// User is the directory view of an application user. Profile and
// provider fields are optional; DisplayNameOf derives a human-readable
// label from whatever is present.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        *string   `db:"email" json:"email,omitempty"`
	FirstName    *string   `db:"first_name" json:"first_name,omitempty"`
	LastName     *string   `db:"last_name" json:"last_name,omitempty"`
	DisplayName  *string   `db:"display_name" json:"display_name,omitempty"`
	ProviderName *string   `db:"provider_name" json:"provider_name,omitempty"`
	Avatar       *string   `db:"avatar" json:"avatar,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Message is a single persisted chat message. ReceiverID is nil for
// public messages; every stored row satisfies
// (ReceiverID == nil) == !IsPrivate. Messages are immutable once created.
type Message struct {
	ID         int64     `db:"id"`
	Text       string    `db:"text"` // encrypted at rest
	SenderID   string    `db:"sender_id"`
	ReceiverID *string   `db:"receiver_id"`
	IsPrivate  bool      `db:"is_private"`
	CreatedAt  time.Time `db:"created_at"`
}

// DisplayNameOf resolves the name shown for a user, in priority order:
// profile display name, first+last name, provider-supplied name, email.
// A nil user (e.g. a message whose sender has been deleted) resolves to
// "Deleted User".
func DisplayNameOf(u *User) string {
	if u == nil {
		return "Deleted User"
	}
	if v := deref(u.DisplayName); v != "" {
		return v
	}
	first, last := deref(u.FirstName), deref(u.LastName)
	if first != "" || last != "" {
		return strings.TrimSpace(first + " " + last)
	}
	if v := deref(u.ProviderName); v != "" {
		return v
	}
	if v := deref(u.Email); v != "" {
		return v
	}
	return "Unknown User"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
