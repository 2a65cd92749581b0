package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/holdem-lobby/internal/dependencies/clock"
	"github.com/mcoot/holdem-lobby/internal/dependencies/random"
	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/storage"
)

// Errors. Everything a caller may see for a bad credential wraps
// model.ErrUnauthorized.
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", model.ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid or expired token", model.ErrUnauthorized)
	ErrMissingToken       = fmt.Errorf("%w: missing token", model.ErrUnauthorized)
	ErrUnverified         = fmt.Errorf("%w: identity is not verified", model.ErrUnauthorized)
	ErrUsernameExists     = errors.New("username already exists")
)

// Credential is an issued bearer token and the player it belongs to
type Credential struct {
	Token     string
	PlayerID  model.PlayerID
	Player    model.Player
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Service issues tokens and resolves them back to identities
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	mu          sync.RWMutex
	credentials map[string]*Credential

	tokenDuration   time.Duration
	allowUnverified bool
}

// Config holds configuration for the auth service
type Config struct {
	TokenDuration time.Duration

	// AllowUnverified lets guest identities through resolution. By default
	// only verified players may act on sessions.
	AllowUnverified bool
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		TokenDuration: 24 * time.Hour,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Service {
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = DefaultConfig().TokenDuration
	}
	return &Service{
		storage:         storage,
		clock:           clock,
		random:          random,
		logger:          logger.With(slog.String("component", "auth")),
		credentials:     make(map[string]*Credential),
		tokenDuration:   cfg.TokenDuration,
		allowUnverified: cfg.AllowUnverified,
	}
}

// CreateGuestPlayer creates an unverified player and a token for it
func (s *Service) CreateGuestPlayer(ctx context.Context, displayName string) (*Credential, error) {
	player := &model.Player{
		ID:          model.PlayerID("p_" + s.random.Token()),
		DisplayName: displayName,
		IsGuest:     true,
		CreatedAt:   s.clock.Now(),
	}

	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	s.logger.Info("guest created", slog.String("player_id", string(player.ID)))
	return s.issue(player), nil
}

// RegisterPlayer creates a verified account and a token for it
func (s *Service) RegisterPlayer(ctx context.Context, username, password, displayName string) (*Credential, error) {
	_, err := s.storage.GetRegisteredPlayerByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameExists
	}
	if !errors.Is(err, model.ErrPlayerNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	playerID := model.PlayerID("p_" + s.random.Token())
	now := s.clock.Now()

	player := &model.Player{
		ID:          playerID,
		DisplayName: displayName,
		IsGuest:     false,
		CreatedAt:   now,
	}

	registeredPlayer := &model.RegisteredPlayer{
		PlayerID:     playerID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	if err := s.storage.SaveRegisteredPlayer(ctx, registeredPlayer); err != nil {
		return nil, err
	}

	s.logger.Info("player registered",
		slog.String("player_id", string(playerID)),
		slog.String("username", username),
	)
	return s.issue(player), nil
}

// Login checks a password and issues a fresh token
func (s *Service) Login(ctx context.Context, username, password string) (*Credential, error) {
	rp, err := s.storage.GetRegisteredPlayerByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rp.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	player, err := s.storage.GetPlayer(ctx, rp.PlayerID)
	if err != nil {
		return nil, err
	}

	return s.issue(player), nil
}

// ValidateToken returns the credential behind a live token
func (s *Service) ValidateToken(token string) (*Credential, error) {
	s.mu.RLock()
	cred, ok := s.credentials[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidToken
	}

	if s.clock.Now().After(cred.ExpiresAt) {
		s.mu.Lock()
		delete(s.credentials, token)
		s.mu.Unlock()
		return nil, ErrInvalidToken
	}

	return cred, nil
}

// ResolveIdentity turns a bearer token into the identity the session core
// works with. Missing, unknown or expired tokens are rejected, and so are
// guests when verification is required.
func (s *Service) ResolveIdentity(token string) (model.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Identity{}, ErrMissingToken
	}

	cred, err := s.ValidateToken(token)
	if err != nil {
		return model.Identity{}, err
	}

	identity := cred.Player.Identity()
	if !s.allowUnverified && !identity.Verified {
		return model.Identity{}, ErrUnverified
	}
	return identity, nil
}

// RevokeToken removes a token
func (s *Service) RevokeToken(token string) {
	s.mu.Lock()
	delete(s.credentials, token)
	s.mu.Unlock()
}

// GetPlayer returns the player for a token
func (s *Service) GetPlayer(token string) (*model.Player, error) {
	cred, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &cred.Player, nil
}

// issue creates a token for a player
func (s *Service) issue(player *model.Player) *Credential {
	now := s.clock.Now()

	cred := &Credential{
		Token:     "sess_" + s.random.Token(),
		PlayerID:  player.ID,
		Player:    *player,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenDuration),
	}

	s.mu.Lock()
	s.credentials[cred.Token] = cred
	s.mu.Unlock()

	return cred
}

// CleanExpiredTokens removes expired tokens and reports how many went
func (s *Service) CleanExpiredTokens() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, cred := range s.credentials {
		if now.After(cred.ExpiresAt) {
			delete(s.credentials, token)
			removed++
		}
	}
	return removed
}

// RunCleanup calls CleanExpiredTokens every interval until ctx is done
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := s.CleanExpiredTokens(); n > 0 {
				s.logger.Debug("expired tokens removed", slog.Int("count", n))
			}
		}
	}
}
