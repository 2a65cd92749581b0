package session

import (
	"context"

	"github.com/mcoot/holdem-lobby/internal/model"
)

// Conn is one live outbound channel to a member, such as a websocket or
// an event stream. ID must be unique among the connections of a session.
type Conn interface {
	ID() string
	Send(ctx context.Context, view model.SessionView) error
}
