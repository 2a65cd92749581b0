package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/holdem-lobby/internal/metrics"
	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/testutil"
)

type MultiplexerSuite struct {
	suite.Suite
	mux *Multiplexer
	ctx context.Context
}

func TestMultiplexerSuite(t *testing.T) {
	suite.Run(t, new(MultiplexerSuite))
}

func (s *MultiplexerSuite) SetupTest() {
	cfg := DefaultConfig()
	cfg.SendTimeout = 50 * time.Millisecond
	cfg.MaxParallelSends = 4
	s.mux = NewMultiplexer(cfg, metrics.NoOp{}, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *MultiplexerSuite) TestAddAndRemove() {
	s.mux.Add("p1", testutil.NewRecordingConn("a"))
	s.mux.Add("p1", testutil.NewRecordingConn("b"))
	s.mux.Add("p2", testutil.NewRecordingConn("c"))

	s.Equal(2, s.mux.Count("p1"))
	s.Len(s.mux.Connections(), 3)

	s.True(s.mux.Remove("p1", "a"))
	s.False(s.mux.Remove("p1", "a"))
	s.False(s.mux.Remove("p3", "a"))
	s.Equal(1, s.mux.Count("p1"))
}

func (s *MultiplexerSuite) TestAddSameHandleReplaces() {
	s.mux.Add("p1", testutil.NewRecordingConn("a"))
	s.mux.Add("p1", testutil.NewRecordingConn("a"))

	s.Equal(1, s.mux.Count("p1"))
}

func (s *MultiplexerSuite) TestSendTagsFailureWithHandle() {
	err := s.mux.Send(s.ctx, testutil.NewFailingConn("broken"), model.SessionView{})

	var delivery *model.DeliveryError
	s.Require().True(errors.As(err, &delivery))
	s.Equal("broken", delivery.Handle)
	s.ErrorIs(err, testutil.ErrConnBroken)
}

func (s *MultiplexerSuite) TestSendTimesOut() {
	err := s.mux.Send(s.ctx, testutil.NewStalledConn("stalled"), model.SessionView{})

	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *MultiplexerSuite) TestFanoutDeliversPastFailures() {
	var conns []Conn
	var good []*testutil.RecordingConn
	for i := 0; i < 10; i++ {
		if i%3 == 0 {
			conns = append(conns, testutil.NewFailingConn(fmt.Sprintf("bad-%d", i)))
			continue
		}
		c := testutil.NewRecordingConn(fmt.Sprintf("good-%d", i))
		good = append(good, c)
		conns = append(conns, c)
	}

	result := s.mux.Fanout(s.ctx, conns, model.SessionView{Phase: model.PhaseTurn})

	s.Equal(len(good), result.Sent)
	s.Equal(len(conns)-len(good), result.Failed)
	for _, c := range good {
		last, ok := c.Last()
		s.Require().True(ok)
		s.Equal(model.PhaseTurn, last.Phase)
	}
}

// gatedConn holds every send until the gate opens
type gatedConn struct {
	id      string
	entered chan struct{}
	gate    chan struct{}

	mu    sync.Mutex
	views []model.SessionView
}

func newGatedConn(id string) *gatedConn {
	return &gatedConn{id: id, entered: make(chan struct{}, 8), gate: make(chan struct{})}
}

func (c *gatedConn) ID() string { return c.id }

func (c *gatedConn) Send(ctx context.Context, view model.SessionView) error {
	c.entered <- struct{}{}
	select {
	case <-c.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = append(c.views, view)
	return nil
}

func (c *gatedConn) phases() []model.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Phase
	for _, v := range c.views {
		out = append(out, v.Phase)
	}
	return out
}

func (s *MultiplexerSuite) TestSlowConnectionOnlyDelaysItself() {
	cfg := DefaultConfig()
	cfg.SendTimeout = 5 * time.Second
	mux := NewMultiplexer(cfg, metrics.NoOp{}, testutil.NopLogger())
	slow := newGatedConn("slow")
	fast := testutil.NewRecordingConn("fast")
	mux.Add("p1", slow)
	mux.Add("p2", fast)
	conns := mux.Connections()

	first := make(chan FanoutResult, 1)
	go func() { first <- mux.Fanout(s.ctx, conns, model.SessionView{Phase: model.PhaseFlop}) }()
	<-slow.entered

	start := time.Now()
	turn := mux.Fanout(s.ctx, conns, model.SessionView{Phase: model.PhaseTurn})
	river := mux.Fanout(s.ctx, conns, model.SessionView{Phase: model.PhaseRiver})
	s.Less(time.Since(start), time.Second)
	s.Equal(FanoutResult{Sent: 1, Deferred: 1}, turn)
	s.Equal(FanoutResult{Sent: 1, Deferred: 1}, river)

	close(slow.gate)
	s.Equal(FanoutResult{Sent: 2}, <-first)
	s.Require().Eventually(func() bool {
		return len(slow.phases()) == 2
	}, time.Second, 5*time.Millisecond)

	s.Equal([]model.Phase{model.PhaseFlop, model.PhaseRiver}, slow.phases())
	s.Equal(3, fast.Count())
}

func (s *MultiplexerSuite) TestDeliverSkipsOlderStamp() {
	conn := testutil.NewRecordingConn("c1")
	s.mux.Add("p1", conn)
	newer := s.mux.Stamp() + 1

	s.mux.Deliver(s.ctx, []Conn{conn}, model.SessionView{Phase: model.PhaseTurn}, newer)
	result := s.mux.Deliver(s.ctx, []Conn{conn}, model.SessionView{Phase: model.PhaseFlop}, newer-1)

	s.Equal(1, result.Sent)
	s.Equal(1, conn.Count())
	last, _ := conn.Last()
	s.Equal(model.PhaseTurn, last.Phase)
}
