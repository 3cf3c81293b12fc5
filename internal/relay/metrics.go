package relay

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's Prometheus collectors on a private registry so
// tests and multiple relays in one process do not collide.
type Metrics struct {
	registry    *prometheus.Registry
	subscribers *prometheus.GaugeVec
	frames      *prometheus.CounterVec
	dropped     *prometheus.CounterVec
}

// NewMetrics registers the relay collectors plus the Go runtime collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chat_relay",
			Name:      "subscribers",
			Help:      "Currently attached subscribers by transport.",
		}, []string{"transport"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Name:      "frames_broadcast_total",
			Help:      "Frames accepted and broadcast, by event.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped, by reason.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(
		m.subscribers,
		m.frames,
		m.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) joined(transport string) {
	if m != nil {
		m.subscribers.WithLabelValues(transport).Inc()
	}
}

func (m *Metrics) left(transport string) {
	if m != nil {
		m.subscribers.WithLabelValues(transport).Dec()
	}
}

func (m *Metrics) broadcast(event string) {
	if m != nil {
		m.frames.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) drop(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

// Drop reasons.
const (
	DropUnknownEvent = "unknown_event"
	DropRateLimited  = "rate_limited"
	DropSlowReader   = "slow_reader"
	DropMalformed    = "malformed"
)
