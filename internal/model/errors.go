package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Identity errors
	ErrUnauthorized   = errors.New("unauthorized")
	ErrPlayerNotFound = errors.New("player not found")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrNotAMember      = errors.New("player is not a member of the session")
	ErrInvalidState    = errors.New("session is not in a valid phase for this operation")
	ErrInvalidDelay    = errors.New("countdown delay is out of range")

	// ErrCollision is returned when id or join code generation keeps colliding
	// with active sessions. Callers retry internally; it should not reach a client.
	ErrCollision = errors.New("identifier collision")
)

// DeliveryError reports a failed send to a single connection.
// It is logged by the broadcaster and never returned to request callers.
type DeliveryError struct {
	Handle string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to connection %s failed: %v", e.Handle, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
