// Package metrics exposes prometheus instrumentation for the event pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "caseprocessor"

// Metrics holds the pipeline's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	MessagesProcessed *prometheus.CounterVec
	MessagesFailed    *prometheus.CounterVec
	PoisonOutcomes    *prometheus.CounterVec
	EventsEmitted     *prometheus.CounterVec
	ProcessingSeconds *prometheus.HistogramVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Messages processed successfully, by queue.",
		}, []string{"queue"}),
		MessagesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_failed_total",
			Help:      "Messages whose processing failed, by queue.",
		}, []string{"queue"}),
		PoisonOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poison_outcomes_total",
			Help:      "Poison protocol decisions applied, by outcome.",
		}, []string{"outcome"}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Derived events published downstream, by stream.",
		}, []string{"stream"}),
		ProcessingSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "End-to-end processing duration per message, by queue.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),
	}

	registry.MustRegister(
		m.MessagesProcessed,
		m.MessagesFailed,
		m.PoisonOutcomes,
		m.EventsEmitted,
		m.ProcessingSeconds,
	)

	return m
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
