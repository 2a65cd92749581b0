package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/holdem-lobby/internal/dependencies/clock"
	"github.com/mcoot/holdem-lobby/internal/dependencies/random"
	"github.com/mcoot/holdem-lobby/internal/metrics"
	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/services/session"
	"github.com/mcoot/holdem-lobby/internal/storage"
)

const (
	// JoinCodeLength is the length of generated join codes
	JoinCodeLength = 4
	// JoinCodeAlphabet is the characters used in join codes
	JoinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	maxGenerateAttempts = 64
)

// Config holds registry configuration
type Config struct {
	Session session.Config

	// DefaultCountdown is used when a start request gives no delay
	DefaultCountdown time.Duration
	// MaxCountdown is the longest delay a start request may ask for
	MaxCountdown time.Duration
}

// DefaultConfig returns default registry configuration
func DefaultConfig() Config {
	return Config{
		Session:          session.DefaultConfig(),
		DefaultCountdown: 30 * time.Second,
		MaxCountdown:     5 * time.Minute,
	}
}

// Registry is the process-wide directory of live sessions. It owns the
// session id and join code namespaces. Both maps are only ever changed
// together under mu. An id and code being set up by CreateSession are held
// in the pending sets until the session is published.
type Registry struct {
	storage   storage.Storage
	clock     clock.Clock
	random    random.Random
	metrics   metrics.Recorder
	base      *slog.Logger
	logger    *slog.Logger
	scheduler *session.Scheduler
	cfg       Config

	mu       sync.RWMutex
	sessions map[model.SessionID]*session.Session
	codes    map[model.JoinCode]model.SessionID

	pendingIDs   map[model.SessionID]struct{}
	pendingCodes map[model.JoinCode]struct{}
}

// New creates an empty registry
func New(
	storage storage.Storage,
	clock clock.Clock,
	random random.Random,
	recorder metrics.Recorder,
	cfg Config,
	logger *slog.Logger,
) *Registry {
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &Registry{
		storage:   storage,
		clock:     clock,
		random:    random,
		metrics:   recorder,
		base:      logger,
		logger:    logger.With(slog.String("component", "registry")),
		scheduler: session.NewScheduler(clock, cfg.Session.TickInterval, logger.With(slog.String("component", "scheduler"))),
		cfg:       cfg,
		sessions:  make(map[model.SessionID]*session.Session),
		codes:     make(map[model.JoinCode]model.SessionID),

		pendingIDs:   make(map[model.SessionID]struct{}),
		pendingCodes: make(map[model.JoinCode]struct{}),
	}
}

// CreateSession opens a new session in the Lobby with identity as its
// first member. Colliding ids or codes are regenerated.
func (r *Registry) CreateSession(ctx context.Context, identity model.Identity) (model.SessionRef, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		id := model.SessionID(r.random.Token())
		code := model.JoinCode(r.random.String(JoinCodeLength, JoinCodeAlphabet))
		if id == "" || code == "" || !r.claim(id, code) {
			continue
		}

		reserved, err := r.storage.ReserveJoinCode(ctx, code, id)
		if err != nil {
			r.unclaim(id, code)
			return model.SessionRef{}, fmt.Errorf("reserving join code: %w", err)
		}
		if !reserved {
			r.unclaim(id, code)
			continue
		}

		deps := session.Deps{
			Clock:     r.clock,
			Storage:   r.storage,
			Scheduler: r.scheduler,
			Metrics:   r.metrics,
			Logger:    r.base,
		}

		sess := session.New(ctx, id, code, identity, deps, r.cfg.Session)
		r.publish(sess)

		r.metrics.SessionCreated()
		r.logger.Info("session created",
			slog.String("session_id", string(id)),
			slog.String("join_code", string(code)),
			slog.String("creator", string(identity.ID)),
			slog.Int("attempts", attempt+1),
		)
		return model.SessionRef{ID: id, JoinCode: code}, nil
	}

	r.logger.Error("gave up generating session identifiers", slog.Int("attempts", maxGenerateAttempts))
	return model.SessionRef{}, model.ErrCollision
}

// claim holds id and code for one CreateSession call. It fails when either
// is live or held by a concurrent create, before anything touches storage.
func (r *Registry) claim(id model.SessionID, code model.JoinCode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, idLive := r.sessions[id]
	_, codeLive := r.codes[code]
	_, idPending := r.pendingIDs[id]
	_, codePending := r.pendingCodes[code]
	if idLive || codeLive || idPending || codePending {
		return false
	}
	r.pendingIDs[id] = struct{}{}
	r.pendingCodes[code] = struct{}{}
	return true
}

func (r *Registry) unclaim(id model.SessionID, code model.JoinCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pendingIDs, id)
	delete(r.pendingCodes, code)
}

// publish makes a claimed session visible to lookups
func (r *Registry) publish(sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pendingIDs, sess.ID())
	delete(r.pendingCodes, sess.JoinCode())
	r.sessions[sess.ID()] = sess
	r.codes[sess.JoinCode()] = sess.ID()
}

// JoinSession adds identity to the session behind code. Joining a session
// you already belong to succeeds without adding a second entry.
func (r *Registry) JoinSession(ctx context.Context, code model.JoinCode, identity model.Identity) (model.SessionRef, error) {
	code = NormalizeJoinCode(string(code))

	r.mu.RLock()
	id, ok := r.codes[code]
	sess := r.sessions[id]
	r.mu.RUnlock()

	if !ok || sess == nil {
		return model.SessionRef{}, model.ErrSessionNotFound
	}

	sess.AddMember(ctx, identity)
	return model.SessionRef{ID: sess.ID(), JoinCode: sess.JoinCode()}, nil
}

// GetSession returns the live session with the given id
func (r *Registry) GetSession(id model.SessionID) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return sess, nil
}

// GetMemberSession returns the session only if identity belongs to it
func (r *Registry) GetMemberSession(id model.SessionID, identity model.Identity) (*session.Session, error) {
	sess, err := r.GetSession(id)
	if err != nil {
		return nil, err
	}
	if !sess.IsMember(identity) {
		return nil, model.ErrNotAMember
	}
	return sess, nil
}

// ListActiveCodes returns a copy of the join code directory
func (r *Registry) ListActiveCodes() map[model.JoinCode]model.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[model.JoinCode]model.SessionID, len(r.codes))
	for code, id := range r.codes {
		out[code] = id
	}
	return out
}

// StartCountdown starts the Lobby countdown on behalf of a member. A nil
// delay uses the configured default.
func (r *Registry) StartCountdown(ctx context.Context, id model.SessionID, identity model.Identity, delay *time.Duration) error {
	sess, err := r.GetMemberSession(id, identity)
	if err != nil {
		return err
	}

	d := r.cfg.DefaultCountdown
	if delay != nil {
		d = *delay
	}
	if d < 0 || (r.cfg.MaxCountdown > 0 && d > r.cfg.MaxCountdown) {
		return fmt.Errorf("%w: %s not in [0, %s]", model.ErrInvalidDelay, d, r.cfg.MaxCountdown)
	}

	return sess.StartCountdown(ctx, d)
}

// Advance moves a member's session to its next street
func (r *Registry) Advance(ctx context.Context, id model.SessionID, identity model.Identity) (model.Phase, error) {
	sess, err := r.GetMemberSession(id, identity)
	if err != nil {
		return "", err
	}
	return sess.Advance(ctx)
}

// Wait blocks until every running countdown has fired
func (r *Registry) Wait() {
	r.scheduler.Wait()
}

// NormalizeJoinCode upper-cases and trims user input
func NormalizeJoinCode(s string) model.JoinCode {
	return model.JoinCode(strings.ToUpper(strings.TrimSpace(s)))
}

// Interface for dependency injection
type RegistryInterface interface {
	CreateSession(ctx context.Context, identity model.Identity) (model.SessionRef, error)
	JoinSession(ctx context.Context, code model.JoinCode, identity model.Identity) (model.SessionRef, error)
	GetSession(id model.SessionID) (*session.Session, error)
	GetMemberSession(id model.SessionID, identity model.Identity) (*session.Session, error)
	ListActiveCodes() map[model.JoinCode]model.SessionID
	StartCountdown(ctx context.Context, id model.SessionID, identity model.Identity, delay *time.Duration) error
	Advance(ctx context.Context, id model.SessionID, identity model.Identity) (model.Phase, error)
}

var _ RegistryInterface = (*Registry)(nil)
