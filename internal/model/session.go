package model

import "time"

// SessionID is the opaque, URL-safe identifier of a session
type SessionID string

// JoinCode is the short human-typeable code used to join a session
type JoinCode string

// Phase is a stage of a hand. Phases only move forward.
type Phase string

const (
	PhaseLobby Phase = "Lobby"
	PhaseAnte  Phase = "Ante"
	PhaseFlop  Phase = "Flop"
	PhaseTurn  Phase = "Turn"
	PhaseRiver Phase = "River"
)

var phaseOrder = []Phase{PhaseLobby, PhaseAnte, PhaseFlop, PhaseTurn, PhaseRiver}

// Phases returns every phase in order
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// Index returns the position of the phase in the fixed order, or -1 if unknown
func (p Phase) Index() int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p. The second result is false for
// River and for unknown phases.
func (p Phase) Next() (Phase, bool) {
	i := p.Index()
	if i < 0 || i+1 >= len(phaseOrder) {
		return "", false
	}
	return phaseOrder[i+1], true
}

// Valid reports whether p is one of the known phases
func (p Phase) Valid() bool {
	return p.Index() >= 0
}

// SessionRef is what create and join hand back to the caller
type SessionRef struct {
	ID       SessionID `json:"session_id"`
	JoinCode JoinCode  `json:"join_code"`
}

// SessionView is the point-in-time projection sent to every connection
type SessionView struct {
	SessionID        SessionID `json:"session_id"`
	JoinCode         JoinCode  `json:"join_code"`
	Phase            Phase     `json:"phase"`
	SecondsRemaining *int      `json:"seconds_remaining,omitempty"`
	MemberNames      []string  `json:"member_names"`
}

// SessionRecord is the storable summary of a session
type SessionRecord struct {
	ID        SessionID
	JoinCode  JoinCode
	Phase     Phase
	Deadline  *time.Time
	Members   []Identity
	CreatedAt time.Time
	UpdatedAt time.Time
}
