package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/mcoot/holdem-lobby/internal/model"
)

// ErrConnBroken is returned by a RecordingConn set to fail
var ErrConnBroken = errors.New("connection broken")

// RecordingConn is an in-memory connection that keeps every view it receives
type RecordingConn struct {
	id string

	mu    sync.Mutex
	views []model.SessionView
	fail   bool
	stall  bool
	strict bool
}

// NewRecordingConn creates a working connection
func NewRecordingConn(id string) *RecordingConn {
	return &RecordingConn{id: id}
}

// NewFailingConn creates a connection whose every send fails
func NewFailingConn(id string) *RecordingConn {
	return &RecordingConn{id: id, fail: true}
}

// NewStalledConn creates a connection whose sends block until cancelled
func NewStalledConn(id string) *RecordingConn {
	return &RecordingConn{id: id, stall: true}
}

// NewStrictConn creates a connection that refuses sends on a done context
func NewStrictConn(id string) *RecordingConn {
	return &RecordingConn{id: id, strict: true}
}

func (c *RecordingConn) ID() string {
	return c.id
}

func (c *RecordingConn) Send(ctx context.Context, view model.SessionView) error {
	c.mu.Lock()
	fail, stall, strict := c.fail, c.stall, c.strict
	c.mu.Unlock()

	if strict && ctx.Err() != nil {
		return ctx.Err()
	}
	if stall {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return ErrConnBroken
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = append(c.views, view)
	return nil
}

// Views returns a copy of everything received so far
func (c *RecordingConn) Views() []model.SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.SessionView(nil), c.views...)
}

// Last returns the most recent view, if any
func (c *RecordingConn) Last() (model.SessionView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.views) == 0 {
		return model.SessionView{}, false
	}
	return c.views[len(c.views)-1], true
}

// Count returns the number of views received
func (c *RecordingConn) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.views)
}
