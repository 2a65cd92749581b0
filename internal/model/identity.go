package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Identity is the validated caller reference handed to the session core.
// The core copies it and never mutates it.
type Identity struct {
	ID          PlayerID
	DisplayName string
	Verified    bool
}

// Player represents a known participant
type Player struct {
	ID          PlayerID
	DisplayName string
	IsGuest     bool // true for unregistered players
	CreatedAt   time.Time
}

// Identity projects the player into the reference used by sessions.
// Registered accounts are verified; guests are not.
func (p *Player) Identity() Identity {
	return Identity{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Verified:    !p.IsGuest,
	}
}

// RegisteredPlayer extends Player with authentication data
// Stored separately for security (password never in memory with session)
type RegisteredPlayer struct {
	PlayerID     PlayerID
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
