package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/holdem-lobby/internal/dependencies/clock"
	"github.com/mcoot/holdem-lobby/internal/dependencies/mocks"
	"github.com/mcoot/holdem-lobby/internal/testutil"
)

type SchedulerSuite struct {
	suite.Suite
	clock     *mocks.MockClock
	scheduler *Scheduler
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.scheduler = NewScheduler(s.clock, time.Second, testutil.NopLogger())
}

func (s *SchedulerSuite) TestTicksUntilDeadlineThenExpiresOnce() {
	var ticks, expiries atomic.Int32
	deadline := s.clock.Now().Add(3 * time.Second)

	s.scheduler.Schedule(deadline,
		func() { ticks.Add(1) },
		func() { expiries.Add(1) },
	)

	for i := 1; i <= 2; i++ {
		s.clock.Advance(time.Second)
		want := int32(i)
		s.Require().Eventually(func() bool { return ticks.Load() == want }, time.Second, 5*time.Millisecond)
	}
	s.clock.Advance(time.Second)
	s.scheduler.Wait()

	s.Equal(int32(2), ticks.Load())
	s.Equal(int32(1), expiries.Load())
}

func (s *SchedulerSuite) TestPastDeadlineExpiresWithoutTicking() {
	var ticks, expiries atomic.Int32

	s.scheduler.Schedule(s.clock.Now().Add(-time.Second),
		func() { ticks.Add(1) },
		func() { expiries.Add(1) },
	)
	s.scheduler.Wait()

	s.Equal(int32(0), ticks.Load())
	s.Equal(int32(1), expiries.Load())
}

func (s *SchedulerSuite) TestPanickingTickDoesNotStopCountdown() {
	var expiries atomic.Int32
	deadline := s.clock.Now().Add(2 * time.Second)

	s.scheduler.Schedule(deadline,
		func() { panic("tick failed") },
		func() { expiries.Add(1) },
	)

	s.clock.Advance(time.Second)
	s.clock.Advance(time.Second)
	s.scheduler.Wait()

	s.Equal(int32(1), expiries.Load())
}

func (s *SchedulerSuite) TestRealClockCountdown() {
	scheduler := NewScheduler(clock.New(), 10*time.Millisecond, testutil.NopLogger())
	var ticks, expiries atomic.Int32

	scheduler.Schedule(time.Now().Add(60*time.Millisecond),
		func() { ticks.Add(1) },
		func() { expiries.Add(1) },
	)

	s.Eventually(func() bool { return expiries.Load() == 1 }, time.Second, 5*time.Millisecond)
	scheduler.Wait()
	s.GreaterOrEqual(ticks.Load(), int32(1))
}

func (s *SchedulerSuite) TestSlowTickDoesNotDelayExpiry() {
	scheduler := NewScheduler(clock.New(), 10*time.Millisecond, testutil.NopLogger())
	release := make(chan struct{})
	defer close(release)
	var expiries atomic.Int32

	start := time.Now()
	scheduler.Schedule(start.Add(100*time.Millisecond),
		func() { <-release },
		func() { expiries.Add(1) },
	)

	s.Require().Eventually(func() bool { return expiries.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Less(time.Since(start), 500*time.Millisecond)
}
