package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded per handled event.
const (
	OutcomeOK        = "ok"
	OutcomeMalformed = "malformed"
	OutcomeNoRoom    = "no_room"
	OutcomeUnknown   = "unknown"
	OutcomePanic     = "panic"
	OutcomeFailed    = "failed"
)

// Metrics groups the service collectors.
type Metrics struct {
	Events        *prometheus.CounterVec
	Rooms         prometheus.Gauge
	Connections   prometheus.Gauge
	FramesDropped prometheus.Counter
	RoomsEvicted  prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Tests pass a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchparty",
			Name:      "events_total",
			Help:      "Inbound socket events by name and outcome.",
		}, []string{"event", "outcome"}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "watchparty",
			Name:      "rooms",
			Help:      "Live rooms.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "watchparty",
			Name:      "connections",
			Help:      "Open socket connections.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchparty",
			Name:      "frames_dropped_total",
			Help:      "Outbound frames dropped because a send buffer was full.",
		}),
		RoomsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchparty",
			Name:      "rooms_evicted_total",
			Help:      "Rooms removed after sitting idle and empty.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.Events, m.Rooms, m.Connections, m.FramesDropped, m.RoomsEvicted)
	return m
}

// NewDefault registers on a fresh registry that also carries the Go and
// process collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return New(reg)
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Event counts one handled event.
func (m *Metrics) Event(name, outcome string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.Rooms.Set(float64(n))
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(n))
}

func (m *Metrics) FramesDroppedAdd(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FramesDropped.Add(float64(n))
}

func (m *Metrics) RoomsEvictedAdd(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RoomsEvicted.Add(float64(n))
}
