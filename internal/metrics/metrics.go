// Package metrics provides Prometheus counters for annotation runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Record statuses.
const (
	StatusAnnotated   = "annotated"
	StatusUnannotated = "unannotated"
	StatusSkipped     = "skipped"
)

// Query outcomes.
const (
	OutcomeHit      = "hit"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
	OutcomeCacheHit = "cache_hit"
)

// Metrics holds the collectors for one run. Collectors are registered on a
// private registry so several runs (or tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	Records       *prometheus.CounterVec
	Queries       *prometheus.CounterVec
	QueryDuration prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vibemm_records_total",
			Help: "VCF records processed, by annotation status",
		}, []string{"status"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vibemm_queries_total",
			Help: "Evidence queries issued, by outcome",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vibemm_query_duration_seconds",
			Help:    "Latency of evidence queries",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	reg.MustRegister(m.Records, m.Queries, m.QueryDuration)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncrementRecords(status string) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementQueries(outcome string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveQuery(d time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.Observe(d.Seconds())
}

// WriteTextfile writes the current values in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
