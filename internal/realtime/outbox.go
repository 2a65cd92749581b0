package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mcoot/holdem-lobby/internal/model"
)

// ErrClosed is returned when sending to a connection that has gone away
var ErrClosed = errors.New("connection closed")

// ErrBacklogged is returned when a connection's send queue is full
var ErrBacklogged = errors.New("connection backlogged")

// Config holds transport settings shared by websocket and SSE connections
type Config struct {
	// SendQueueSize is how many snapshots may wait for the writer
	SendQueueSize int

	// WriteTimeout bounds a single frame write
	WriteTimeout time.Duration

	// PingInterval is the websocket ping and SSE keepalive cadence
	PingInterval time.Duration

	// OriginPatterns are host patterns allowed to open cross-origin websockets
	OriginPatterns []string
}

// DefaultConfig returns default transport configuration
func DefaultConfig() Config {
	return Config{
		SendQueueSize: 16,
		WriteTimeout:  5 * time.Second,
		PingInterval:  30 * time.Second,
	}
}

// outbox is the session-facing half of a connection. Sessions enqueue
// snapshots; the transport's writer drains them in order.
type outbox struct {
	id    string
	queue chan model.SessionView
	done  chan struct{}
	once  sync.Once
}

func newOutbox(id string, size int) *outbox {
	if size <= 0 {
		size = DefaultConfig().SendQueueSize
	}
	return &outbox{
		id:    id,
		queue: make(chan model.SessionView, size),
		done:  make(chan struct{}),
	}
}

func (o *outbox) ID() string {
	return o.id
}

// Send enqueues view without waiting. A writer that has fallen a whole
// queue behind gets ErrBacklogged instead of holding up the sender.
func (o *outbox) Send(_ context.Context, view model.SessionView) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}

	select {
	case o.queue <- view:
		return nil
	default:
		return ErrBacklogged
	}
}

func (o *outbox) close() {
	o.once.Do(func() { close(o.done) })
}
