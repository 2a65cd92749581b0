package model

// EventType names what caused a broadcast
type EventType string

const (
	EventMemberJoined     EventType = "member_joined"
	EventCountdownStarted EventType = "countdown_started"
	EventCountdownTick    EventType = "countdown_tick"
	EventPhaseChanged     EventType = "phase_changed"
	EventManual           EventType = "manual"
)

// EventTypes returns every broadcast cause, used to pre-register metric labels
func EventTypes() []EventType {
	return []EventType{
		EventMemberJoined,
		EventCountdownStarted,
		EventCountdownTick,
		EventPhaseChanged,
		EventManual,
	}
}
