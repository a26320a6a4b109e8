package tuning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/feedback-dedup-service/internal/domain"
	"github.com/helixir/feedback-dedup-service/internal/policy"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeLog implements LogQuerier and Pruner.
type fakeLog struct {
	mu         sync.Mutex
	entries    []domain.ComparisonLogEntry
	queryErr   error
	pruneErr   error
	filters    []domain.LogFilter
	pruneCalls []time.Time
}

func (l *fakeLog) Query(_ context.Context, filter domain.LogFilter) ([]domain.ComparisonLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filters = append(l.filters, filter)
	if l.queryErr != nil {
		return nil, l.queryErr
	}
	return l.entries, nil
}

func (l *fakeLog) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneCalls = append(l.pruneCalls, cutoff)
	if l.pruneErr != nil {
		return 0, l.pruneErr
	}
	return 3, nil
}

func (l *fakeLog) queries() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.filters)
}

// queryOnly implements LogQuerier without Prune.
type queryOnly struct {
	entries []domain.ComparisonLogEntry
}

func (q queryOnly) Query(context.Context, domain.LogFilter) ([]domain.ComparisonLogEntry, error) {
	return q.entries, nil
}

// decisions builds n duplicate decisions, the first overridden of which were
// answered submitted_anyway.
func decisions(n, overridden int) []domain.ComparisonLogEntry {
	out := make([]domain.ComparisonLogEntry, n)
	for i := range out {
		out[i].FinalDecision.IsDuplicate = true
		out[i].SimilarityResults.OverallSimilarity = 70
		if i < overridden {
			out[i].UserAction = &domain.UserActionRecord{Action: domain.UserActionSubmittedAnyway}
		}
	}
	return out
}

// fakePolicies implements ThresholdAdjuster over a real policy store and
// counts adjustments.
type fakePolicies struct {
	store     *policy.Store
	mu        sync.Mutex
	adjusts   int
	adjustErr error
}

func (p *fakePolicies) Policy(string) (policy.Config, error) {
	return p.store.Snapshot(), nil
}

func (p *fakePolicies) AdjustPolicy(_ context.Context, fp, fn float64) (policy.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.adjustErr != nil {
		return policy.Config{}, p.adjustErr
	}
	p.adjusts++
	return p.store.AdjustThresholds(fp, fn), nil
}

func (p *fakePolicies) threshold() int {
	return p.store.Snapshot().SimilarityThreshold
}

func newTestStore(t *testing.T, adaptive bool) *fakePolicies {
	t.Helper()
	cfg := policy.DefaultConfig()
	cfg.EnableAdaptiveThresholds = adaptive
	store, err := policy.NewStore(cfg)
	require.NoError(t, err)
	return &fakePolicies{store: store}
}

func newTestJob(cfg Config, logs LogQuerier, store ThresholdAdjuster) *Job {
	j := NewJob(cfg, logs, store, zerolog.Nop(), nil)
	j.clock = func() time.Time { return testNow }
	return j
}

func TestNewJob_Defaults(t *testing.T) {
	j := NewJob(Config{}, &fakeLog{}, newTestStore(t, true), zerolog.Nop(), nil)

	assert.Equal(t, DefaultInterval, j.cfg.Interval)
	assert.Equal(t, DefaultWindow, j.cfg.Window)
	assert.Equal(t, DefaultMinSamples, j.cfg.MinSamples)
}

func TestJob_RunOnce(t *testing.T) {
	t.Run("raises threshold on false positives", func(t *testing.T) {
		logs := &fakeLog{entries: decisions(20, 4)}
		store := newTestStore(t, true)
		j := newTestJob(Config{Window: 24 * time.Hour, MinSamples: 10}, logs, store)

		report, err := j.RunOnce(context.Background())
		require.NoError(t, err)

		assert.Equal(t, ResultAdjusted, report.Result)
		assert.Equal(t, float64(20), report.Rates.FalsePositiveRate)
		assert.Equal(t, 65, report.ThresholdBefore)
		assert.Equal(t, 66, report.ThresholdAfter)
		assert.Equal(t, 66, store.threshold())
		assert.Equal(t, 1, store.adjusts)

		require.Len(t, logs.filters, 1)
		assert.Equal(t, testNow.Add(-24*time.Hour), logs.filters[0].From)
		assert.Equal(t, testNow, logs.filters[0].To)
	})

	t.Run("rates under the trigger leave threshold alone", func(t *testing.T) {
		store := newTestStore(t, true)
		j := newTestJob(Config{MinSamples: 10}, &fakeLog{entries: decisions(20, 1)}, store)

		report, err := j.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ResultUnchanged, report.Result)
		assert.Equal(t, 65, store.threshold())
	})

	t.Run("adaptive disabled", func(t *testing.T) {
		store := newTestStore(t, false)
		j := newTestJob(Config{MinSamples: 10}, &fakeLog{entries: decisions(20, 10)}, store)

		report, err := j.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ResultUnchanged, report.Result)
		assert.Equal(t, 65, report.ThresholdAfter)
	})

	t.Run("too few samples", func(t *testing.T) {
		store := newTestStore(t, true)
		j := newTestJob(Config{MinSamples: 50}, &fakeLog{entries: decisions(20, 20)}, store)

		report, err := j.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ResultSkipped, report.Result)
		assert.Equal(t, 65, store.threshold())
		assert.Zero(t, store.adjusts)
	})

	t.Run("query error", func(t *testing.T) {
		queryErr := errors.New("connection reset")
		j := newTestJob(Config{}, &fakeLog{queryErr: queryErr}, newTestStore(t, true))

		_, err := j.RunOnce(context.Background())
		assert.ErrorIs(t, err, queryErr)
	})

	t.Run("adjust error", func(t *testing.T) {
		adjustErr := errors.New("rates out of range")
		store := newTestStore(t, true)
		store.adjustErr = adjustErr
		j := newTestJob(Config{MinSamples: 10}, &fakeLog{entries: decisions(20, 4)}, store)

		_, err := j.RunOnce(context.Background())
		assert.ErrorIs(t, err, adjustErr)
		assert.Equal(t, 65, store.threshold())
	})
}

func TestJob_RunOnce_Pruning(t *testing.T) {
	t.Run("prunes with retention", func(t *testing.T) {
		logs := &fakeLog{}
		j := newTestJob(Config{Retention: 30 * 24 * time.Hour}, logs, newTestStore(t, true))

		report, err := j.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), report.Pruned)
		require.Len(t, logs.pruneCalls, 1)
		assert.Equal(t, testNow.Add(-30*24*time.Hour), logs.pruneCalls[0])
	})

	t.Run("no retention no prune", func(t *testing.T) {
		logs := &fakeLog{}
		j := newTestJob(Config{}, logs, newTestStore(t, true))

		_, err := j.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Empty(t, logs.pruneCalls)
	})

	t.Run("prune failure does not stop the run", func(t *testing.T) {
		logs := &fakeLog{pruneErr: errors.New("lock timeout"), entries: decisions(20, 4)}
		j := newTestJob(Config{Retention: time.Hour, MinSamples: 10}, logs, newTestStore(t, true))

		report, err := j.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, report.Pruned)
		assert.Equal(t, ResultAdjusted, report.Result)
	})

	t.Run("store without prune", func(t *testing.T) {
		j := newTestJob(Config{Retention: time.Hour}, queryOnly{}, newTestStore(t, true))

		report, err := j.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, report.Pruned)
	})
}

func TestJob_Run(t *testing.T) {
	logs := &fakeLog{}
	j := newTestJob(Config{Interval: 10 * time.Millisecond}, logs, newTestStore(t, true))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := j.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, logs.queries(), 1)
}
