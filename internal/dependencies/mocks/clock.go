package mocks

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/holdem-lobby/internal/dependencies/clock"
)

// MockClock is a controllable clock for testing.
// Advance fires any timers and tickers whose deadline has passed.
type MockClock = clockwork.FakeClock

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return clockwork.NewFakeClockAt(t)
}
