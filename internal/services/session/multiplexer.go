package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/holdem-lobby/internal/metrics"
	"github.com/mcoot/holdem-lobby/internal/model"
)

// FanoutResult counts the outcome of one fan-out. Deferred counts
// connections that were still busy with an earlier send; they receive the
// newest snapshot once that send finishes.
type FanoutResult struct {
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Deferred int `json:"deferred,omitempty"`
}

// Multiplexer holds the live connections of one session, keyed by member.
// A member may hold any number of connections.
//
// Each registered connection has a lane that keeps one send in flight and
// drops snapshots older than the last one handed over, so a slow connection
// only ever delays itself.
type Multiplexer struct {
	mu    sync.RWMutex
	conns map[model.PlayerID]map[string]Conn
	lanes map[string]*lane
	seq   atomic.Uint64

	sendTimeout time.Duration
	maxParallel int
	metrics     metrics.Recorder
	logger      *slog.Logger
}

// NewMultiplexer creates an empty multiplexer
func NewMultiplexer(cfg Config, recorder metrics.Recorder, logger *slog.Logger) *Multiplexer {
	return &Multiplexer{
		conns:       make(map[model.PlayerID]map[string]Conn),
		lanes:       make(map[string]*lane),
		sendTimeout: cfg.SendTimeout,
		maxParallel: cfg.MaxParallelSends,
		metrics:     recorder,
		logger:      logger,
	}
}

// Add registers conn for the member. Re-adding the same handle replaces it.
func (m *Multiplexer) Add(playerID model.PlayerID, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byHandle, ok := m.conns[playerID]
	if !ok {
		byHandle = make(map[string]Conn)
		m.conns[playerID] = byHandle
	}
	if _, exists := byHandle[conn.ID()]; !exists {
		m.metrics.ConnectionOpened()
	}
	byHandle[conn.ID()] = conn
	if _, ok := m.lanes[conn.ID()]; !ok {
		m.lanes[conn.ID()] = &lane{}
	}
}

// Remove drops the connection. It reports whether anything was removed.
func (m *Multiplexer) Remove(playerID model.PlayerID, handle string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	byHandle, ok := m.conns[playerID]
	if !ok {
		return false
	}
	if _, ok := byHandle[handle]; !ok {
		return false
	}
	delete(byHandle, handle)
	delete(m.lanes, handle)
	if len(byHandle) == 0 {
		delete(m.conns, playerID)
	}
	m.metrics.ConnectionClosed()
	return true
}

// Connections returns every live connection across all members
func (m *Multiplexer) Connections() []Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Conn
	for _, byHandle := range m.conns {
		for _, conn := range byHandle {
			out = append(out, conn)
		}
	}
	return out
}

// Count returns the number of live connections held by the member
func (m *Multiplexer) Count(playerID model.PlayerID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns[playerID])
}

// Send delivers view to one connection within the send timeout.
// Failures come back as *model.DeliveryError tagged with the handle.
func (m *Multiplexer) Send(ctx context.Context, conn Conn, view model.SessionView) error {
	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	if err := conn.Send(sendCtx, view); err != nil {
		m.metrics.Delivery(false)
		return &model.DeliveryError{Handle: conn.ID(), Err: err}
	}
	m.metrics.Delivery(true)
	return nil
}

// Stamp returns the next snapshot sequence number. Callers take the stamp
// together with the snapshot so that stamps follow snapshot order.
func (m *Multiplexer) Stamp() uint64 {
	return m.seq.Add(1)
}

// Fanout stamps view and sends it to every connection.
func (m *Multiplexer) Fanout(ctx context.Context, conns []Conn, view model.SessionView) FanoutResult {
	return m.Deliver(ctx, conns, view, m.Stamp())
}

// Deliver sends the stamped view to every connection concurrently and waits
// for all of them. A failed send is logged and counted; it never stops the
// others.
func (m *Multiplexer) Deliver(ctx context.Context, conns []Conn, view model.SessionView, seq uint64) FanoutResult {
	var (
		g        errgroup.Group
		sent     atomic.Int64
		failed   atomic.Int64
		deferred atomic.Int64
	)
	if m.maxParallel > 0 {
		g.SetLimit(m.maxParallel)
	}

	for _, conn := range conns {
		g.Go(func() error {
			queued, err := m.sendOrdered(ctx, conn, view, seq)
			switch {
			case err != nil:
				failed.Add(1)
				m.logger.Warn("delivery failed",
					slog.String("connection", conn.ID()),
					slog.String("error", err.Error()),
				)
			case queued:
				deferred.Add(1)
			default:
				sent.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return FanoutResult{
		Sent:     int(sent.Load()),
		Failed:   int(failed.Load()),
		Deferred: int(deferred.Load()),
	}
}

// lane orders deliveries to one connection. At most one send is in flight;
// a snapshot stamped meanwhile waits in pending, replacing any older one.
type lane struct {
	mu      sync.Mutex
	busy    bool
	last    uint64
	pending *stamped
}

type stamped struct {
	view model.SessionView
	seq  uint64
}

func (m *Multiplexer) laneFor(handle string) *lane {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lanes[handle]
}

// sendOrdered reports queued when the view was parked behind an in-flight
// send. A view older than one already handed over is skipped.
func (m *Multiplexer) sendOrdered(ctx context.Context, conn Conn, view model.SessionView, seq uint64) (bool, error) {
	l := m.laneFor(conn.ID())
	if l == nil {
		return false, m.Send(ctx, conn, view)
	}

	l.mu.Lock()
	if seq <= l.last {
		l.mu.Unlock()
		return false, nil
	}
	if l.busy {
		if l.pending == nil || seq > l.pending.seq {
			l.pending = &stamped{view: view, seq: seq}
		}
		l.mu.Unlock()
		return true, nil
	}
	l.busy = true
	l.last = seq
	l.mu.Unlock()

	err := m.Send(ctx, conn, view)
	m.release(context.WithoutCancel(ctx), conn, l)
	return false, err
}

// release frees the lane, or drains the pending view in the background
func (m *Multiplexer) release(ctx context.Context, conn Conn, l *lane) {
	l.mu.Lock()
	next := l.pending
	l.pending = nil
	if next == nil {
		l.busy = false
		l.mu.Unlock()
		return
	}
	l.last = next.seq
	l.mu.Unlock()

	go func() {
		if err := m.Send(ctx, conn, next.view); err != nil {
			m.logger.Warn("deferred delivery failed",
				slog.String("connection", conn.ID()),
				slog.String("error", err.Error()),
			)
		}
		m.release(ctx, conn, l)
	}()
}
