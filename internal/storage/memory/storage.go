package memory

import (
	"context"
	"sync"

	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players           map[model.PlayerID]*model.Player
	registeredPlayers map[model.PlayerID]*model.RegisteredPlayer
	usernameIndex     map[string]model.PlayerID
	sessions          map[model.SessionID]*model.SessionRecord
	joinCodes         map[model.JoinCode]model.SessionID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:           make(map[model.PlayerID]*model.Player),
		registeredPlayers: make(map[model.PlayerID]*model.RegisteredPlayer),
		usernameIndex:     make(map[string]model.PlayerID),
		sessions:          make(map[model.SessionID]*model.SessionRecord),
		joinCodes:         make(map[model.JoinCode]model.SessionID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID] = player
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return player, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
	return nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registeredPlayers[rp.PlayerID] = rp
	s.usernameIndex[rp.Username] = rp.PlayerID
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rp, nil
}

// Session record operations

func (s *Storage) SaveSession(ctx context.Context, record *model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[record.ID] = cloneRecord(record)
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return cloneRecord(record), nil
}

func (s *Storage) ReserveJoinCode(ctx context.Context, code model.JoinCode, id model.SessionID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.joinCodes[code]; taken {
		return false, nil
	}
	s.joinCodes[code] = id
	return true, nil
}

func (s *Storage) LookupJoinCode(ctx context.Context, code model.JoinCode) (model.SessionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.joinCodes[code]
	if !ok {
		return "", model.ErrSessionNotFound
	}
	return id, nil
}

// cloneRecord copies the member slice so callers never share backing arrays
func cloneRecord(record *model.SessionRecord) *model.SessionRecord {
	out := *record
	out.Members = append([]model.Identity(nil), record.Members...)
	if record.Deadline != nil {
		deadline := *record.Deadline
		out.Deadline = &deadline
	}
	return &out
}
