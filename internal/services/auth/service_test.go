package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/holdem-lobby/internal/dependencies/mocks"
	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/storage/memory"
	"github.com/mcoot/holdem-lobby/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.service = New(s.storage, s.clock, s.random, DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

// CreateGuestPlayer tests

func (s *ServiceSuite) TestCreateGuestPlayerSucceeds() {
	s.random.QueueToken("alice", "tok1")

	cred, err := s.service.CreateGuestPlayer(s.ctx, "Alice")
	s.Require().NoError(err)

	s.Equal("sess_tok1", cred.Token)
	s.Equal(model.PlayerID("p_alice"), cred.PlayerID)
	s.Equal("Alice", cred.Player.DisplayName)
	s.True(cred.Player.IsGuest)
	s.Equal(s.clock.Now().Add(24*time.Hour), cred.ExpiresAt)
}

func (s *ServiceSuite) TestCreateGuestPlayerPersistsPlayer() {
	cred, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	player, err := s.storage.GetPlayer(s.ctx, cred.PlayerID)
	s.Require().NoError(err)
	s.Equal("Alice", player.DisplayName)
}

// RegisterPlayer tests

func (s *ServiceSuite) TestRegisterPlayerSucceeds() {
	cred, err := s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	s.NotEmpty(cred.Token)
	s.Equal("Alice", cred.Player.DisplayName)
	s.False(cred.Player.IsGuest)
}

func (s *ServiceSuite) TestRegisterPlayerPersistsRegistration() {
	_, _ = s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")

	rp, err := s.storage.GetRegisteredPlayerByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", rp.Username)
	s.NotEmpty(rp.PasswordHash)
	s.NotEqual("password123", rp.PasswordHash)
}

func (s *ServiceSuite) TestRegisterPlayerFailsIfUsernameExists() {
	_, _ = s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")

	_, err := s.service.RegisterPlayer(s.ctx, "alice", "different", "Alice2")
	s.ErrorIs(err, ErrUsernameExists)
}

// Login tests

func (s *ServiceSuite) TestLoginSucceeds() {
	registered, _ := s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")

	cred, err := s.service.Login(s.ctx, "alice", "password123")
	s.Require().NoError(err)

	s.NotEqual(registered.Token, cred.Token)
	s.Equal(registered.PlayerID, cred.PlayerID)
}

func (s *ServiceSuite) TestLoginFailsWithWrongPassword() {
	_, _ = s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")

	_, err := s.service.Login(s.ctx, "alice", "wrongpassword")
	s.ErrorIs(err, ErrInvalidCredentials)
	s.ErrorIs(err, model.ErrUnauthorized)
}

func (s *ServiceSuite) TestLoginFailsWithUnknownUser() {
	_, err := s.service.Login(s.ctx, "nobody", "password123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

// ValidateToken tests

func (s *ServiceSuite) TestValidateTokenFailsWhenExpired() {
	cred, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	s.clock.Advance(25 * time.Hour)

	_, err := s.service.ValidateToken(cred.Token)
	s.ErrorIs(err, ErrInvalidToken)
}

// ResolveIdentity tests

func (s *ServiceSuite) TestResolveIdentityRejectsGuestByDefault() {
	cred, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	_, err := s.service.ResolveIdentity(cred.Token)

	s.ErrorIs(err, ErrUnverified)
	s.ErrorIs(err, model.ErrUnauthorized)
}

func (s *ServiceSuite) TestResolveIdentityForGuestWhenAllowed() {
	cfg := DefaultConfig()
	cfg.AllowUnverified = true
	service := New(s.storage, s.clock, s.random, cfg, testutil.NopLogger())
	cred, _ := service.CreateGuestPlayer(s.ctx, "Alice")

	identity, err := service.ResolveIdentity(cred.Token)
	s.Require().NoError(err)

	s.Equal(cred.PlayerID, identity.ID)
	s.Equal("Alice", identity.DisplayName)
	s.False(identity.Verified)
}

func (s *ServiceSuite) TestResolveIdentityForRegisteredPlayerIsVerified() {
	cred, _ := s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")

	identity, err := s.service.ResolveIdentity(cred.Token)
	s.Require().NoError(err)
	s.True(identity.Verified)
}

func (s *ServiceSuite) TestResolveIdentityRejectsMissingToken() {
	_, err := s.service.ResolveIdentity("  ")

	s.ErrorIs(err, ErrMissingToken)
	s.ErrorIs(err, model.ErrUnauthorized)
}

func (s *ServiceSuite) TestResolveIdentityRejectsUnknownToken() {
	_, err := s.service.ResolveIdentity("sess_forged")

	s.ErrorIs(err, model.ErrUnauthorized)
}

// RevokeToken tests

func (s *ServiceSuite) TestRevokeTokenRemovesToken() {
	cred, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	s.service.RevokeToken(cred.Token)

	_, err := s.service.ValidateToken(cred.Token)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestRevokeTokenNoopForUnknownToken() {
	s.service.RevokeToken("unknown_token")
}

// GetPlayer tests

func (s *ServiceSuite) TestGetPlayerSucceeds() {
	cred, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	player, err := s.service.GetPlayer(cred.Token)
	s.Require().NoError(err)
	s.Equal("Alice", player.DisplayName)
}

// Cleanup tests

func (s *ServiceSuite) TestCleanExpiredTokensRemovesExpired() {
	old, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")
	s.clock.Advance(25 * time.Hour)
	fresh, _ := s.service.CreateGuestPlayer(s.ctx, "Bob")

	removed := s.service.CleanExpiredTokens()

	s.Equal(1, removed)
	_, err := s.service.ValidateToken(old.Token)
	s.ErrorIs(err, ErrInvalidToken)
	_, err = s.service.ValidateToken(fresh.Token)
	s.NoError(err)
}

func (s *ServiceSuite) TestRunCleanupStopsWithContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		s.service.RunCleanup(ctx, time.Minute)
		close(done)
	}()

	_, _ = s.service.CreateGuestPlayer(s.ctx, "Alice")
	s.Require().NoError(s.clock.BlockUntilContext(s.ctx, 1))
	s.clock.Advance(25 * time.Hour)

	s.Eventually(func() bool {
		s.service.mu.RLock()
		defer s.service.mu.RUnlock()
		return len(s.service.credentials) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.Eventually(func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
