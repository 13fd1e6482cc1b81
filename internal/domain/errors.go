package domain

import "errors"

// Sentinel errors for the application.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrActorInvalid = errors.New("actor not found or inactive")
	ErrNotAnnounced = errors.New("connection has not announced a user")
	ErrInvalidInput = errors.New("invalid input")
)

// ActorInvalidError reports a sender or receiver that is missing from
// the user directory or marked inactive. Role is the word used in the
// client-facing error message ("User", "Sender" or "Receiver").
type ActorInvalidError struct {
	Role string
}

func (e *ActorInvalidError) Error() string {
	return e.Role + " not found or inactive"
}

func (e *ActorInvalidError) Is(target error) bool {
	return target == ErrActorInvalid
}
