package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/holdem-lobby/internal/model"
)

type PrometheusSuite struct {
	suite.Suite
	recorder *Prometheus
}

func TestPrometheusSuite(t *testing.T) {
	suite.Run(t, new(PrometheusSuite))
}

func (s *PrometheusSuite) SetupTest() {
	s.recorder = NewPrometheusWithRegistry(prometheus.NewRegistry())
}

func (s *PrometheusSuite) TestSessionCounters() {
	s.recorder.SessionCreated()
	s.recorder.SessionCreated()
	s.recorder.MemberJoined()

	s.Equal(2.0, testutil.ToFloat64(s.recorder.sessionsCreated))
	s.Equal(2.0, testutil.ToFloat64(s.recorder.activeSessions))
	s.Equal(1.0, testutil.ToFloat64(s.recorder.joins))
}

func (s *PrometheusSuite) TestLabelledCounters() {
	s.recorder.PhaseChanged(model.PhaseAnte)
	s.recorder.PhaseChanged(model.PhaseFlop)
	s.recorder.PhaseChanged(model.PhaseFlop)
	s.recorder.Broadcast(model.EventCountdownTick)
	s.recorder.Delivery(true)
	s.recorder.Delivery(false)
	s.recorder.Delivery(false)

	s.Equal(1.0, testutil.ToFloat64(s.recorder.phaseTransitions.WithLabelValues("Ante")))
	s.Equal(2.0, testutil.ToFloat64(s.recorder.phaseTransitions.WithLabelValues("Flop")))
	s.Equal(0.0, testutil.ToFloat64(s.recorder.phaseTransitions.WithLabelValues("River")))
	s.Equal(1.0, testutil.ToFloat64(s.recorder.broadcasts.WithLabelValues(string(model.EventCountdownTick))))
	s.Equal(1.0, testutil.ToFloat64(s.recorder.deliveries.WithLabelValues("ok")))
	s.Equal(2.0, testutil.ToFloat64(s.recorder.deliveries.WithLabelValues("failed")))
}

func (s *PrometheusSuite) TestConnectionGauge() {
	s.recorder.ConnectionOpened()
	s.recorder.ConnectionOpened()
	s.recorder.ConnectionClosed()

	s.Equal(1.0, testutil.ToFloat64(s.recorder.connections))
}

func (s *PrometheusSuite) TestHandlerExposesLabelsUpFront() {
	rec := httptest.NewRecorder()
	s.recorder.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	s.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, `holdem_lobby_phase_transitions_total{phase="River"} 0`)
	s.Contains(body, `holdem_lobby_broadcasts_total{cause="member_joined"} 0`)
	s.Contains(body, `holdem_lobby_deliveries_total{result="failed"} 0`)
	s.Contains(body, "holdem_lobby_sessions_active 0")
}

func TestNoOpSatisfiesRecorder(t *testing.T) {
	var r Recorder = NoOp{}
	r.SessionCreated()
	r.PhaseChanged(model.PhaseRiver)
	r.Delivery(false)
}
