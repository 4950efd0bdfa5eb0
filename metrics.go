package meshchat

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons recorded by the router.
const (
	dropMalformed     = "malformed"
	dropTopicMismatch = "topic_mismatch"
	dropSelf          = "self"
	dropNotAddressed  = "not_addressed"
	dropSpoofed       = "spoofed"
	dropRejected      = "rejected"
)

// Metrics counts routed events, queue activity and publish failures. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	eventsRouted    *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	queueEntries    *prometheus.CounterVec
	queueFlushes    prometheus.Counter
	publishFailures prometheus.Counter
}

// NewMetrics creates the counters on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshchat",
			Name:      "events_routed_total",
			Help:      "Inbound events dispatched to a component.",
		}, []string{"topic", "type"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshchat",
			Name:      "events_dropped_total",
			Help:      "Inbound events discarded by the router.",
		}, []string{"reason"}),
		queueEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meshchat",
			Name:      "queue_entries_total",
			Help:      "Entries filed in the delivery queue for absent recipients.",
		}, []string{"kind"}),
		queueFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshchat",
			Name:      "queue_flushes_total",
			Help:      "Non-empty delivery queue flushes.",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshchat",
			Name:      "publish_failures_total",
			Help:      "Records the transport failed to publish.",
		}),
	}

	m.registry.MustRegister(m.eventsRouted, m.eventsDropped, m.queueEntries, m.queueFlushes, m.publishFailures)
	return m
}

// Registry returns the registry holding the counters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the counters in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) routed(topic, eventType string) {
	if m != nil {
		m.eventsRouted.WithLabelValues(topic, eventType).Inc()
	}
}

func (m *Metrics) dropped(reason string) {
	if m != nil {
		m.eventsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) queued(kind string) {
	if m != nil {
		m.queueEntries.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) flushed() {
	if m != nil {
		m.queueFlushes.Inc()
	}
}

func (m *Metrics) publishFailed() {
	if m != nil {
		m.publishFailures.Inc()
	}
}
