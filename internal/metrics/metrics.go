// Package metrics exposes the pipeline's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/securerights/copyright-detection-go/internal/db/models"
)

// Metrics holds the pipeline's Prometheus collectors.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Metrics struct {
	CyclesTotal          *prometheus.CounterVec
	CycleDuration        prometheus.Histogram
	QueriesAttempted     prometheus.Counter
	QueriesSucceeded     prometheus.Counter
	CandidatesDiscovered prometheus.Counter
	CandidatesEnqueued   prometheus.Counter
	ScoringAttempts      prometheus.Counter
	ScoringSuccesses     prometheus.Counter
	ScoringFailures      prometheus.Counter
	ReportsSubmitted     prometheus.Counter
	NoticesBuilt         prometheus.Counter
}

// New registers the pipeline collectors on a registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "detection_cycles_total",
			Help: "Survey cycles run, by final status.",
		}, []string{"status"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "detection_cycle_duration_seconds",
			Help:    "Wall-clock duration of survey cycles.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		QueriesAttempted: factory.NewCounter(prometheus.CounterOpts{
			Name: "detection_queries_attempted_total",
			Help: "Catalog queries attempted across all cycles.",
		}),
		QueriesSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "detection_queries_succeeded_total",
			Help: "Catalog queries that completed without error.",
		}),
		CandidatesDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "detection_candidates_discovered_total",
			Help: "Descriptors returned by catalog searches.",
		}),
		CandidatesEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "detection_candidates_enqueued_total",
			Help: "Candidates that survived filtering and were enqueued.",
		}),
		ScoringAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "detection_scoring_attempts_total",
			Help: "Scorer invocations.",
		}),
		ScoringSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "detection_scoring_successes_total",
			Help: "Scorer invocations that produced a completed result.",
		}),
		ScoringFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "detection_scoring_failures_total",
			Help: "Scorer invocations that produced a failed result.",
		}),
		ReportsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "detection_reports_submitted_total",
			Help: "Takedown reports submitted by users.",
		}),
		NoticesBuilt: factory.NewCounter(prometheus.CounterOpts{
			Name: "detection_notices_built_total",
			Help: "Notices rendered and attached to reports.",
		}),
	}
}

// ObserveCycle records the counters of a finished cycle.
func (m *Metrics) ObserveCycle(record *models.CycleRecord) {
	m.CyclesTotal.WithLabelValues(string(record.Status)).Inc()
	if record.FinishedAt != nil {
		m.CycleDuration.Observe(record.FinishedAt.Sub(record.StartedAt).Seconds())
	}
	m.QueriesAttempted.Add(float64(record.QueriesAttempted))
	m.QueriesSucceeded.Add(float64(record.QueriesSucceeded))
	m.CandidatesDiscovered.Add(float64(record.CandidatesDiscovered))
	m.CandidatesEnqueued.Add(float64(record.CandidatesEnqueued))
	m.ScoringAttempts.Add(float64(record.ScoringAttempts))
	m.ScoringSuccesses.Add(float64(record.ScoringSuccesses))
	m.ScoringFailures.Add(float64(record.ScoringFailures))
}
