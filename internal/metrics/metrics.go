package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcoot/holdem-lobby/internal/model"
)

const namespace = "holdem_lobby"

// Recorder collects lobby metrics
type Recorder interface {
	SessionCreated()
	MemberJoined()
	PhaseChanged(phase model.Phase)
	Broadcast(cause model.EventType)
	Delivery(ok bool)
	ConnectionOpened()
	ConnectionClosed()
}

// NoOp discards everything. It is the default when metrics are disabled.
type NoOp struct{}

var _ Recorder = NoOp{}

func (NoOp) SessionCreated() {}
func (NoOp) MemberJoined() {}
func (NoOp) PhaseChanged(model.Phase) {}
func (NoOp) Broadcast(model.EventType) {}
func (NoOp) Delivery(bool) {}
func (NoOp) ConnectionOpened() {}
func (NoOp) ConnectionClosed() {}

// Prometheus implements Recorder with prometheus collectors
type Prometheus struct {
	gatherer prometheus.Gatherer

	sessionsCreated  prometheus.Counter
	activeSessions   prometheus.Gauge
	joins            prometheus.Counter
	phaseTransitions *prometheus.CounterVec
	broadcasts       *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	connections      prometheus.Gauge
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus registers the lobby collectors on a fresh registry
func NewPrometheus() *Prometheus {
	return NewPrometheusWithRegistry(prometheus.NewRegistry())
}

// NewPrometheusWithRegistry registers the lobby collectors on reg
func NewPrometheusWithRegistry(reg *prometheus.Registry) *Prometheus {
	factory := promauto.With(reg)

	p := &Prometheus{
		gatherer: reg,
		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created since process start.",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions held by the registry.",
		}),
		joins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "members_joined_total",
			Help:      "Members added to sessions, including creators.",
		}),
		phaseTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Phase transitions by destination phase.",
		}, []string{"phase"}),
		broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Session broadcasts by cause.",
		}, []string{"cause"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Snapshot deliveries to single connections by result.",
		}, []string{"result"}),
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Live connections attached to sessions.",
		}),
	}

	for _, phase := range model.Phases() {
		p.phaseTransitions.WithLabelValues(string(phase))
	}
	for _, cause := range model.EventTypes() {
		p.broadcasts.WithLabelValues(string(cause))
	}
	p.deliveries.WithLabelValues("ok")
	p.deliveries.WithLabelValues("failed")

	return p
}

func (p *Prometheus) SessionCreated() {
	p.sessionsCreated.Inc()
	p.activeSessions.Inc()
}

func (p *Prometheus) MemberJoined() {
	p.joins.Inc()
}

func (p *Prometheus) PhaseChanged(phase model.Phase) {
	p.phaseTransitions.WithLabelValues(string(phase)).Inc()
}

func (p *Prometheus) Broadcast(cause model.EventType) {
	p.broadcasts.WithLabelValues(string(cause)).Inc()
}

func (p *Prometheus) Delivery(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	p.deliveries.WithLabelValues(result).Inc()
}

func (p *Prometheus) ConnectionOpened() {
	p.connections.Inc()
}

func (p *Prometheus) ConnectionClosed() {
	p.connections.Dec()
}

// Handler exposes the registry in the prometheus text format
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
