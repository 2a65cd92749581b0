package clock

import "github.com/jonboulle/clockwork"

// Clock provides time operations that can be faked in tests.
// Timers and tickers come from the same source as Now so that
// countdowns can be driven deterministically.
type Clock = clockwork.Clock

// New creates a Clock backed by the system clock
func New() Clock {
	return clockwork.NewRealClock()
}
