package domain

import (
	"context"
)

// UserDirectory is the lookup facade over the external user store. The
// messaging core only reads from it.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*User, error)
	ListActive(ctx context.Context) ([]*User, error)
}

// MessageStore is the durable, append-only home of chat messages.
// Queries return the most recent rows newest-first; callers reverse the
// slice when they need chronological replay order.
type MessageStore interface {
	Append(ctx context.Context, m *Message) error
	QueryPublic(ctx context.Context, limit int) ([]*Message, error)
	// QueryPrivate matches private messages between the two users in
	// either sender/receiver orientation.
	QueryPrivate(ctx context.Context, userA, userB string, limit int) ([]*Message, error)
	// PrunePublic deletes the oldest public messages beyond keep.
	PrunePublic(ctx context.Context, keep int) error
}
