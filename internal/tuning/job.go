// Package tuning runs the adaptive threshold job: it periodically derives
// false positive and false negative rates from the comparison log and feeds
// them to the detection policy.
package tuning

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/feedback-dedup-service/internal/audit"
	"github.com/helixir/feedback-dedup-service/internal/domain"
	"github.com/helixir/feedback-dedup-service/internal/observability"
	"github.com/helixir/feedback-dedup-service/internal/policy"
)

// Run result labels.
const (
	ResultAdjusted  = "adjusted"
	ResultUnchanged = "unchanged"
	ResultSkipped   = "skipped"
	ResultError     = "error"
)

// Defaults applied by NewJob to zero Config fields.
const (
	DefaultInterval   = time.Hour
	DefaultWindow     = 7 * 24 * time.Hour
	DefaultMinSamples = 20
)

// LogQuerier reads comparison log entries.
type LogQuerier interface {
	Query(ctx context.Context, filter domain.LogFilter) ([]domain.ComparisonLogEntry, error)
}

// Pruner removes comparison log entries older than cutoff. Stores that
// implement it are pruned on every run when a retention is configured.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// ThresholdAdjuster applies rate-driven threshold changes. The feedback
// service implements it and announces every change to the other replicas.
type ThresholdAdjuster interface {
	Policy(category string) (policy.Config, error)
	AdjustPolicy(ctx context.Context, falsePositiveRate, falseNegativeRate float64) (policy.Config, error)
}

// Config holds tuning job settings.
type Config struct {
	// Interval is the time between runs.
	Interval time.Duration
	// Window is how far back each run looks in the comparison log.
	Window time.Duration
	// MinSamples is the minimum number of comparisons in the window before
	// the threshold is allowed to move.
	MinSamples int
	// Retention prunes log entries older than this on every run. Zero disables pruning.
	Retention time.Duration
}

// Report describes one run.
type Report struct {
	Result          string           `json:"result"`
	Rates           audit.ErrorRates `json:"rates"`
	ThresholdBefore int              `json:"threshold_before"`
	ThresholdAfter  int              `json:"threshold_after"`
	Pruned          int64            `json:"pruned"`
}

// Job periodically adapts the global similarity threshold.
type Job struct {
	cfg      Config
	logs     LogQuerier
	policies ThresholdAdjuster
	clock   func() time.Time
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewJob creates a tuning job.
func NewJob(cfg Config, logs LogQuerier, policies ThresholdAdjuster, logger zerolog.Logger, metrics *observability.Metrics) *Job {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultMinSamples
	}
	return &Job{
		cfg:      cfg,
		logs:     logs,
		policies: policies,
		clock:    time.Now,
		logger:   logger.With().Str("component", "tuning_job").Logger(),
		metrics:  metrics,
	}
}

// Run executes RunOnce every interval. Blocks until context is cancelled.
// A failed run is logged and retried on the next tick.
func (j *Job) Run(ctx context.Context) error {
	j.logger.Info().
		Dur("interval", j.cfg.Interval).
		Dur("window", j.cfg.Window).
		Int("min_samples", j.cfg.MinSamples).
		Msg("starting tuning job")

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("tuning job stopped via context cancellation")
			return ctx.Err()
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				j.logger.Error().Err(err).Msg("tuning run failed")
			}
		}
	}
}

// RunOnce prunes expired entries, computes error rates over the window and
// adjusts the threshold when enough comparisons were logged.
func (j *Job) RunOnce(ctx context.Context) (*Report, error) {
	now := j.clock()
	report := &Report{}

	if pruner, ok := j.logs.(Pruner); ok && j.cfg.Retention > 0 {
		removed, err := pruner.Prune(ctx, now.Add(-j.cfg.Retention))
		if err != nil {
			j.metrics.RecordAuditFailure("prune")
			j.logger.Warn().Err(err).Msg("failed to prune comparison log")
		} else {
			report.Pruned = removed
		}
	}

	entries, err := j.logs.Query(ctx, domain.LogFilter{From: now.Add(-j.cfg.Window), To: now})
	if err != nil {
		j.metrics.RecordTuningRun(ResultError)
		return nil, fmt.Errorf("query comparison log: %w", err)
	}
	report.Rates = audit.ComputeRates(entries)

	current, err := j.policies.Policy("")
	if err != nil {
		j.metrics.RecordTuningRun(ResultError)
		return nil, fmt.Errorf("read policy: %w", err)
	}
	report.ThresholdBefore = current.SimilarityThreshold

	if report.Rates.TotalComparisons < j.cfg.MinSamples {
		report.Result = ResultSkipped
		report.ThresholdAfter = report.ThresholdBefore
		j.metrics.RecordTuningRun(ResultSkipped)
		j.logger.Debug().
			Int("comparisons", report.Rates.TotalComparisons).
			Int("min_samples", j.cfg.MinSamples).
			Msg("not enough comparisons to tune")
		return report, nil
	}

	cfg, err := j.policies.AdjustPolicy(ctx, report.Rates.FalsePositiveRate, report.Rates.FalseNegativeRate)
	if err != nil {
		j.metrics.RecordTuningRun(ResultError)
		return nil, fmt.Errorf("adjust policy: %w", err)
	}
	report.ThresholdAfter = cfg.SimilarityThreshold

	report.Result = ResultUnchanged
	if report.ThresholdAfter != report.ThresholdBefore {
		report.Result = ResultAdjusted
	}
	j.metrics.RecordTuningRun(report.Result)

	j.logger.Info().
		Str("result", report.Result).
		Int("comparisons", report.Rates.TotalComparisons).
		Float64("false_positive_rate", report.Rates.FalsePositiveRate).
		Float64("false_negative_rate", report.Rates.FalseNegativeRate).
		Int("threshold_before", report.ThresholdBefore).
		Int("threshold_after", report.ThresholdAfter).
		Int64("pruned", report.Pruned).
		Msg("tuning run completed")

	return report, nil
}
