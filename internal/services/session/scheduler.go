package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/holdem-lobby/internal/dependencies/clock"
)

// Scheduler drives countdowns in the background. While a deadline is
// pending it calls onTick on a fixed cadence, then calls onExpire exactly
// once when the deadline passes. A started countdown cannot be cancelled.
type Scheduler struct {
	clock  clock.Clock
	tick   time.Duration
	logger *slog.Logger

	wg sync.WaitGroup
}

// NewScheduler creates a scheduler ticking every tick
func NewScheduler(clk clock.Clock, tick time.Duration, logger *slog.Logger) *Scheduler {
	if tick <= 0 {
		tick = DefaultConfig().TickInterval
	}
	return &Scheduler{
		clock:  clk,
		tick:   tick,
		logger: logger,
	}
}

// Schedule starts a countdown to deadline and returns immediately.
// The ticker and timer exist by the time Schedule returns.
//
// Ticks run on their own worker so a slow tick never delays the expiry.
// A tick that arrives while another is still running and one is already
// waiting is dropped.
func (s *Scheduler) Schedule(deadline time.Time, onTick, onExpire func()) {
	ticker := s.clock.NewTicker(s.tick)
	timer := s.clock.NewTimer(s.clock.Until(deadline))
	ticks := make(chan struct{}, 1)
	stop := make(chan struct{})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-stop:
				return
			case <-ticks:
				s.run("tick", onTick)
			}
		}
	}()

	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		defer timer.Stop()

		expire := func() {
			close(stop)
			s.run("expire", onExpire)
		}
		for {
			select {
			case <-timer.Chan():
				expire()
				return
			case <-ticker.Chan():
				if !s.clock.Now().Before(deadline) {
					expire()
					return
				}
				select {
				case ticks <- struct{}{}:
				default:
				}
			}
		}
	}()
}

// Wait blocks until every scheduled countdown has fired
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// run keeps a panicking callback from killing the countdown goroutine
func (s *Scheduler) run(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("countdown callback panicked",
				slog.String("step", step),
				slog.Any("panic", r),
			)
		}
	}()
	fn()
}
