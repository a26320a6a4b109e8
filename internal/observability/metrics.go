package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Duplicate check result labels.
const (
	CheckResultDuplicate = "duplicate"
	CheckResultUnique    = "unique"
	CheckResultError     = "error"
)

// Metrics contains all Prometheus metrics for the feedback dedup service.
// Metrics are organized by subsystem: duplicate checks, comparisons, audit,
// submissions, policy, events and tuning. All collectors are registered via
// promauto with the default Prometheus registry.
//
// Every Record method is safe to call on a nil *Metrics.
type Metrics struct {
	// DuplicateChecks counts duplicate checks, labeled by result (duplicate, unique, error).
	DuplicateChecks *prometheus.CounterVec

	// DuplicateCheckDuration observes end-to-end duplicate check latency in seconds.
	DuplicateCheckDuration prometheus.Histogram

	// CandidatePoolSize observes the number of active items fetched per check.
	CandidatePoolSize prometheus.Histogram

	// Comparisons counts candidate comparisons, labeled by decision (duplicate, not_duplicate).
	Comparisons *prometheus.CounterVec

	// SimilarityScores observes overall similarity scores of compared candidates.
	SimilarityScores prometheus.Histogram

	// AuditFailures counts comparison log operations that failed, labeled by operation.
	AuditFailures *prometheus.CounterVec

	// FeedbackSubmissions counts submission attempts, labeled by outcome (created, warned, forced).
	FeedbackSubmissions *prometheus.CounterVec

	// UserActions counts user actions recorded against comparison logs, labeled by action.
	UserActions *prometheus.CounterVec

	// PolicyChanges counts policy mutations, labeled by operation (update, reset, adjust).
	PolicyChanges *prometheus.CounterVec

	// PolicyThreshold reports the current global similarity threshold.
	PolicyThreshold prometheus.Gauge

	// EventsPublished counts published events, labeled by event type and status.
	EventsPublished *prometheus.CounterVec

	// TuningRuns counts adaptive tuning runs, labeled by result (adjusted, unchanged, error).
	TuningRuns *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		DuplicateChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_checks_total",
			Help:      "Total number of duplicate checks by result",
		}, []string{"result"}),
		DuplicateCheckDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duplicate_check_duration_seconds",
			Help:      "Duration of duplicate checks in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		CandidatePoolSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_pool_size",
			Help:      "Number of active feedback items compared per check",
			Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		Comparisons: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_total",
			Help:      "Total number of candidate comparisons by decision",
		}, []string{"decision"}),
		SimilarityScores: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "similarity_score",
			Help:      "Overall similarity scores of compared candidates",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		AuditFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Total number of failed comparison log operations",
		}, []string{"operation"}),
		FeedbackSubmissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_submissions_total",
			Help:      "Total number of feedback submissions by outcome",
		}, []string{"outcome"}),
		UserActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_actions_total",
			Help:      "Total number of user actions recorded on duplicate decisions",
		}, []string{"action"}),
		PolicyChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_changes_total",
			Help:      "Total number of detection policy changes by operation",
		}, []string{"operation"}),
		PolicyThreshold: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "policy_similarity_threshold",
			Help:      "Current global similarity threshold",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of events published by type and status",
		}, []string{"event", "status"}),
		TuningRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tuning_runs_total",
			Help:      "Total number of adaptive threshold tuning runs by result",
		}, []string{"result"}),
	}
}

// RecordDuplicateCheck records a finished duplicate check.
func (m *Metrics) RecordDuplicateCheck(result string, duration time.Duration, poolSize int) {
	if m == nil {
		return
	}
	m.DuplicateChecks.WithLabelValues(result).Inc()
	m.DuplicateCheckDuration.Observe(duration.Seconds())
	m.CandidatePoolSize.Observe(float64(poolSize))
}

// RecordComparison records one candidate comparison.
func (m *Metrics) RecordComparison(isDuplicate bool, score int) {
	if m == nil {
		return
	}
	decision := "not_duplicate"
	if isDuplicate {
		decision = "duplicate"
	}
	m.Comparisons.WithLabelValues(decision).Inc()
	m.SimilarityScores.Observe(float64(score))
}

// RecordAuditFailure records a failed comparison log operation.
func (m *Metrics) RecordAuditFailure(operation string) {
	if m == nil {
		return
	}
	m.AuditFailures.WithLabelValues(operation).Inc()
}

// RecordSubmission records a feedback submission outcome.
func (m *Metrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.FeedbackSubmissions.WithLabelValues(outcome).Inc()
}

// RecordUserAction records a user action on a duplicate decision.
func (m *Metrics) RecordUserAction(action string) {
	if m == nil {
		return
	}
	m.UserActions.WithLabelValues(action).Inc()
}

// RecordPolicyChange records a policy mutation and the resulting global threshold.
func (m *Metrics) RecordPolicyChange(operation string, threshold int) {
	if m == nil {
		return
	}
	m.PolicyChanges.WithLabelValues(operation).Inc()
	m.PolicyThreshold.Set(float64(threshold))
}

// RecordEventPublished records an event publish attempt.
func (m *Metrics) RecordEventPublished(event string, success bool) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(event, strconv.FormatBool(success)).Inc()
}

// RecordTuningRun records an adaptive tuning run.
func (m *Metrics) RecordTuningRun(result string) {
	if m == nil {
		return
	}
	m.TuningRuns.WithLabelValues(result).Inc()
}
