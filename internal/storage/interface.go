package storage

import (
	"context"

	"github.com/mcoot/holdem-lobby/internal/model"
)

// Storage defines the interface for data persistence.
// Live session state stays in the registry; records saved here are
// snapshots used for inspection and for join code reservation.
type Storage interface {
	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	DeletePlayer(ctx context.Context, id model.PlayerID) error

	// Registered player operations
	SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error
	GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error)
	GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error)

	// Session record operations
	SaveSession(ctx context.Context, record *model.SessionRecord) error
	GetSession(ctx context.Context, id model.SessionID) (*model.SessionRecord, error)

	// ReserveJoinCode claims code for the session. It returns false without
	// error if the code is already held by another session.
	ReserveJoinCode(ctx context.Context, code model.JoinCode, id model.SessionID) (bool, error)
	LookupJoinCode(ctx context.Context, code model.JoinCode) (model.SessionID, error)
}
