package session

import "time"

// Config holds timing settings shared by every session
type Config struct {
	// TickInterval is how often a running countdown re-broadcasts
	TickInterval time.Duration

	// SendTimeout bounds a single delivery to one connection
	SendTimeout time.Duration

	// MaxParallelSends caps concurrent deliveries within one broadcast.
	// Zero means unlimited.
	MaxParallelSends int
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		TickInterval:     time.Second,
		SendTimeout:      5 * time.Second,
		MaxParallelSends: 64,
	}
}
