package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/mcoot/holdem-lobby/internal/dependencies/clock"
	"github.com/mcoot/holdem-lobby/internal/metrics"
	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/storage"
)

// Deps are the collaborators a session needs. They are usually shared by
// every session in a registry.
type Deps struct {
	Clock     clock.Clock
	Storage   storage.Storage
	Scheduler *Scheduler
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// Session is one table: its identity, members, phase and live connections.
//
// mu guards the observable state. bmu pairs each outbound snapshot with its
// multiplexer stamp, so stamps follow snapshot order and a connection never
// sees an older snapshot after a newer one. When both are needed bmu is
// taken first. No lock is held while sending.
//
// Broadcasts triggered by a request run on a context detached from that
// request: the state change has already happened and every member must hear
// about it even if the caller goes away.
type Session struct {
	id        model.SessionID
	joinCode  model.JoinCode
	createdAt time.Time

	clock     clock.Clock
	storage   storage.Storage
	scheduler *Scheduler
	metrics   metrics.Recorder
	logger    *slog.Logger
	mux       *Multiplexer

	mu        sync.Mutex
	phase     model.Phase
	deadline  *time.Time
	members   []model.Identity
	memberIdx map[model.PlayerID]int
	updatedAt time.Time

	bmu sync.Mutex

	// pmu orders record saves so a stale record never overwrites a newer one
	pmu sync.Mutex
}

// New creates a session in the Lobby phase with creator as its only member.
// The creator holds no connections yet.
func New(ctx context.Context, id model.SessionID, code model.JoinCode, creator model.Identity, deps Deps, cfg Config) *Session {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOp{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = NewScheduler(deps.Clock, cfg.TickInterval, deps.Logger)
	}
	logger := deps.Logger.With(
		slog.String("component", "session"),
		slog.String("session_id", string(id)),
	)

	now := deps.Clock.Now()
	s := &Session{
		id:        id,
		joinCode:  code,
		createdAt: now,
		clock:     deps.Clock,
		storage:   deps.Storage,
		scheduler: deps.Scheduler,
		metrics:   deps.Metrics,
		logger:    logger,
		mux:       NewMultiplexer(cfg, deps.Metrics, logger),
		phase:     model.PhaseLobby,
		members:   []model.Identity{creator},
		memberIdx: map[model.PlayerID]int{creator.ID: 0},
		updatedAt: now,
	}
	s.metrics.MemberJoined()
	s.persist(ctx)
	return s
}

// ID returns the session id
func (s *Session) ID() model.SessionID {
	return s.id
}

// JoinCode returns the code players use to join
func (s *Session) JoinCode() model.JoinCode {
	return s.joinCode
}

// Phase returns the current phase
func (s *Session) Phase() model.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// AddMember adds identity with no connections. Adding an existing member
// changes nothing. Every member is re-sent the snapshot either way.
func (s *Session) AddMember(ctx context.Context, identity model.Identity) bool {
	s.mu.Lock()
	_, exists := s.memberIdx[identity.ID]
	if !exists {
		s.memberIdx[identity.ID] = len(s.members)
		s.members = append(s.members, identity)
		s.updatedAt = s.clock.Now()
	}
	s.mu.Unlock()

	if !exists {
		s.metrics.MemberJoined()
		s.logger.Info("member joined",
			slog.String("player_id", string(identity.ID)),
			slog.String("display_name", identity.DisplayName),
		)
		s.persist(ctx)
	}

	s.broadcast(ctx, model.EventMemberJoined)
	return !exists
}

// IsMember reports whether identity has joined the session
func (s *Session) IsMember(identity model.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.memberIdx[identity.ID]
	return ok
}

// AttachConnection registers conn for a member and primes it with the
// current snapshot. Only the new connection is sent to.
func (s *Session) AttachConnection(ctx context.Context, conn Conn, identity model.Identity) error {
	s.bmu.Lock()
	if !s.IsMember(identity) {
		s.bmu.Unlock()
		return model.ErrNotAMember
	}
	s.mux.Add(identity.ID, conn)
	view := s.Snapshot()
	seq := s.mux.Stamp()
	s.bmu.Unlock()

	s.logger.Debug("connection attached",
		slog.String("player_id", string(identity.ID)),
		slog.String("connection", conn.ID()),
	)

	if result := s.mux.Deliver(ctx, []Conn{conn}, view, seq); result.Failed > 0 {
		s.logger.Warn("priming snapshot failed", slog.String("connection", conn.ID()))
	}
	return nil
}

// DetachConnection removes conn. Detaching an unknown handle is a no-op.
func (s *Session) DetachConnection(handle string, identity model.Identity) {
	if s.mux.Remove(identity.ID, handle) {
		s.logger.Debug("connection detached",
			slog.String("player_id", string(identity.ID)),
			slog.String("connection", handle),
		)
	}
}

// ConnectionCount returns how many live connections the member holds
func (s *Session) ConnectionCount(identity model.Identity) int {
	return s.mux.Count(identity.ID)
}

// StartCountdown sets the deadline for leaving the Lobby and hands it to the
// scheduler. It fails with ErrInvalidState unless the session is in the Lobby
// with no countdown already running.
func (s *Session) StartCountdown(ctx context.Context, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	if s.phase != model.PhaseLobby {
		phase := s.phase
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start countdown in %s", model.ErrInvalidState, phase)
	}
	if s.deadline != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: countdown already running", model.ErrInvalidState)
	}
	now := s.clock.Now()
	deadline := now.Add(delay)
	s.deadline = &deadline
	s.updatedAt = now
	s.mu.Unlock()

	s.logger.Info("countdown started", slog.Duration("delay", delay))
	s.scheduler.Schedule(deadline,
		func() { s.broadcast(context.Background(), model.EventCountdownTick) },
		func() { s.expireCountdown(context.Background()) },
	)
	s.persist(ctx)
	s.broadcast(ctx, model.EventCountdownStarted)
	return nil
}

// expireCountdown moves the session from Lobby to Ante and clears the deadline
func (s *Session) expireCountdown(ctx context.Context) {
	s.mu.Lock()
	if s.phase != model.PhaseLobby || s.deadline == nil {
		s.mu.Unlock()
		return
	}
	s.phase = model.PhaseAnte
	s.deadline = nil
	s.updatedAt = s.clock.Now()
	s.mu.Unlock()

	s.metrics.PhaseChanged(model.PhaseAnte)
	s.logger.Info("phase changed", slog.String("phase", string(model.PhaseAnte)))
	s.persist(ctx)
	s.broadcast(ctx, model.EventPhaseChanged)
}

// Advance moves a dealt hand to its next street. It fails with
// ErrInvalidState in the Lobby, where only the countdown may move the
// phase, and in the River, which is terminal.
func (s *Session) Advance(ctx context.Context) (model.Phase, error) {
	s.mu.Lock()
	if s.phase == model.PhaseLobby {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: the lobby is left by countdown", model.ErrInvalidState)
	}
	next, ok := s.phase.Next()
	if !ok {
		phase := s.phase
		s.mu.Unlock()
		return "", fmt.Errorf("%w: no phase after %s", model.ErrInvalidState, phase)
	}
	s.phase = next
	s.updatedAt = s.clock.Now()
	s.mu.Unlock()

	s.metrics.PhaseChanged(next)
	s.logger.Info("phase changed", slog.String("phase", string(next)))
	s.persist(ctx)
	s.broadcast(ctx, model.EventPhaseChanged)
	return next, nil
}

// Snapshot projects the current state. It has no side effects.
func (s *Session) Snapshot() model.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.members))
	for i, m := range s.members {
		names[i] = m.DisplayName
	}

	view := model.SessionView{
		SessionID:   s.id,
		JoinCode:    s.joinCode,
		Phase:       s.phase,
		MemberNames: names,
	}
	if s.deadline != nil {
		remaining := secondsUntil(*s.deadline, s.clock.Now())
		view.SecondsRemaining = &remaining
	}
	return view
}

// Broadcast sends the current snapshot to every connection of every member.
// Individual delivery failures are logged and never returned.
func (s *Session) Broadcast(ctx context.Context) FanoutResult {
	return s.broadcast(ctx, model.EventManual)
}

func (s *Session) broadcast(ctx context.Context, cause model.EventType) FanoutResult {
	ctx = context.WithoutCancel(ctx)

	s.bmu.Lock()
	conns := s.mux.Connections()
	view := s.Snapshot()
	seq := s.mux.Stamp()
	s.bmu.Unlock()

	s.metrics.Broadcast(cause)
	if len(conns) == 0 {
		return FanoutResult{}
	}

	result := s.mux.Deliver(ctx, conns, view, seq)
	if result.Failed > 0 {
		s.logger.Info("broadcast completed with failures",
			slog.String("cause", string(cause)),
			slog.Int("sent", result.Sent),
			slog.Int("failed", result.Failed),
		)
	}
	return result
}

// Record returns the storable summary of the session
func (s *Session) Record() model.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := model.SessionRecord{
		ID:        s.id,
		JoinCode:  s.joinCode,
		Phase:     s.phase,
		Members:   append([]model.Identity(nil), s.members...),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.deadline != nil {
		deadline := *s.deadline
		record.Deadline = &deadline
	}
	return record
}

// persist saves the record. Live state is authoritative, so a failed save
// is logged and otherwise ignored.
func (s *Session) persist(ctx context.Context) {
	if s.storage == nil {
		return
	}
	s.pmu.Lock()
	defer s.pmu.Unlock()

	record := s.Record()
	if err := s.storage.SaveSession(context.WithoutCancel(ctx), &record); err != nil {
		s.logger.Warn("failed to save session record", slog.String("error", err.Error()))
	}
}

// secondsUntil rounds the remaining time up to whole seconds, floored at zero
func secondsUntil(deadline, now time.Time) int {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}
