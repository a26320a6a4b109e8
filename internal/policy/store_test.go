package policy

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/feedback-dedup-service/internal/domain"
	"github.com/helixir/feedback-dedup-service/internal/similarity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(DefaultConfig())
	require.NoError(t, err)
	return s
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, 65, cfg.SimilarityThreshold)
	assert.Equal(t, 0.7, cfg.TitleWeight)
	assert.Equal(t, 0.3, cfg.DescriptionWeight)
	assert.Equal(t, similarity.AlgorithmMulti, cfg.Algorithm)
	assert.Equal(t, similarity.Weights{Levenshtein: 0.3, Jaccard: 0.4, Cosine: 0.3}, cfg.AlgorithmWeights)
	assert.Equal(t, 24*time.Hour, cfg.TimeThreshold)
	assert.True(t, cfg.CheckIPAddress)
	assert.True(t, cfg.EnableCrossCategoryDetection)
	assert.True(t, cfg.EnableAdaptiveThresholds)
	assert.Equal(t, 0.05, cfg.AdaptationRate)
	assert.Equal(t, 0.8, cfg.NearMissRatio)
	assert.Len(t, cfg.CategorySettings, 2)
}

func TestNewStore_RejectsInvalidBaseline(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 150

	_, err := NewStore(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestStore_CategoryConfig(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	t.Run("override wins per field", func(t *testing.T) {
		t.Parallel()
		cfg := s.CategoryConfig(domain.CategoryFeature)
		assert.Equal(t, 60, cfg.SimilarityThreshold)
		assert.Equal(t, 0.8, cfg.TitleWeight)
		assert.Equal(t, 0.2, cfg.DescriptionWeight)
		// Absent fields inherit the global value.
		assert.Equal(t, similarity.AlgorithmMulti, cfg.Algorithm)
		assert.Equal(t, 24*time.Hour, cfg.TimeThreshold)
	})

	t.Run("category without override", func(t *testing.T) {
		t.Parallel()
		cfg := s.CategoryConfig(domain.CategoryImprovement)
		assert.Equal(t, 65, cfg.SimilarityThreshold)
		assert.Equal(t, 0.7, cfg.TitleWeight)
	})

	t.Run("empty category", func(t *testing.T) {
		t.Parallel()
		cfg := s.CategoryConfig("")
		assert.Equal(t, 65, cfg.SimilarityThreshold)
	})
}

func TestStore_Update(t *testing.T) {
	t.Parallel()

	t.Run("partial update keeps other fields", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		got, err := s.Update(Patch{SimilarityThreshold: ptr(80), CheckIPAddress: ptr(false)})
		require.NoError(t, err)
		assert.Equal(t, 80, got.SimilarityThreshold)
		assert.False(t, got.CheckIPAddress)
		assert.Equal(t, 0.7, got.TitleWeight)
		assert.Equal(t, got, s.Snapshot())
	})

	t.Run("override fields merge over updated global", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		algo := similarity.AlgorithmJaccard
		_, err := s.Update(Patch{Algorithm: &algo})
		require.NoError(t, err)

		cfg := s.CategoryConfig(domain.CategoryBug)
		assert.Equal(t, similarity.AlgorithmJaccard, cfg.Algorithm)
		assert.Equal(t, 60, cfg.SimilarityThreshold)
	})

	t.Run("category override replaced and removed", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		_, err := s.Update(Patch{CategorySettings: map[domain.Category]*Override{
			domain.CategoryGeneral: {SimilarityThreshold: ptr(90)},
			domain.CategoryBug:     nil,
		}})
		require.NoError(t, err)

		assert.Equal(t, 90, s.CategoryConfig(domain.CategoryGeneral).SimilarityThreshold)
		assert.Equal(t, 65, s.CategoryConfig(domain.CategoryBug).SimilarityThreshold)
		assert.Equal(t, 60, s.CategoryConfig(domain.CategoryFeature).SimilarityThreshold)
	})

	t.Run("invalid patch rejected atomically", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		_, err := s.Update(Patch{SimilarityThreshold: ptr(70), AdaptationRate: ptr(1.5)})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)

		var cerr *domain.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "adaptation_rate", cerr.Field)
		assert.Equal(t, 65, s.Snapshot().SimilarityThreshold)
	})

	t.Run("unknown algorithm rejected", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		algo := similarity.Algorithm("soundex")
		_, err := s.Update(Patch{Algorithm: &algo})
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("negative algorithm weight rejected", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		_, err := s.Update(Patch{AlgorithmWeights: &similarity.Weights{Levenshtein: -1, Jaccard: 1, Cosine: 1}})
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("unknown category override rejected", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		_, err := s.Update(Patch{CategorySettings: map[domain.Category]*Override{
			"question": {SimilarityThreshold: ptr(70)},
		}})
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("zero weights accepted", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		_, err := s.Update(Patch{TitleWeight: ptr(0.0), DescriptionWeight: ptr(0.0)})
		require.NoError(t, err)
	})
}

func TestStore_SnapshotIsolation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	snap := s.Snapshot()

	snap.SimilarityThreshold = 10
	*snap.CategorySettings[domain.CategoryBug].SimilarityThreshold = 1

	assert.Equal(t, 65, s.Snapshot().SimilarityThreshold)
	assert.Equal(t, 60, s.CategoryConfig(domain.CategoryBug).SimilarityThreshold)
}

func TestStore_Reset(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	algo := similarity.AlgorithmCosine
	_, err := s.Update(Patch{
		SimilarityThreshold: ptr(90),
		TitleWeight:         ptr(0.1),
		DescriptionWeight:   ptr(0.9),
		Algorithm:           &algo,
	})
	require.NoError(t, err)

	got := s.Reset()
	assert.Equal(t, DefaultConfig(), got)
	assert.Equal(t, 65, got.SimilarityThreshold)
	assert.Equal(t, 0.7, got.TitleWeight)
	assert.Equal(t, 0.3, got.DescriptionWeight)
	assert.Equal(t, similarity.AlgorithmMulti, got.Algorithm)
	assert.Equal(t, DefaultConfig(), s.Snapshot())
}

func TestStore_AdjustThresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		start     int
		adaptive  bool
		fp, fn    float64
		wantAfter int
	}{
		{name: "high false positives raise", start: 65, adaptive: true, fp: 15, wantAfter: 66},
		{name: "high false negatives lower", start: 65, adaptive: true, fn: 15, wantAfter: 64},
		{name: "rates at trigger do nothing", start: 65, adaptive: true, fp: 10, fn: 10, wantAfter: 65},
		{name: "both apply sequentially", start: 65, adaptive: true, fp: 60, fn: 20, wantAfter: 67},
		{name: "capped at 95", start: 94, adaptive: true, fp: 100, wantAfter: 95},
		{name: "floored at 50", start: 51, adaptive: true, fn: 100, wantAfter: 50},
		{name: "disabled is a no-op", start: 65, adaptive: false, fp: 50, fn: 50, wantAfter: 65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestStore(t)
			_, err := s.Update(Patch{
				SimilarityThreshold:      ptr(tt.start),
				EnableAdaptiveThresholds: ptr(tt.adaptive),
			})
			require.NoError(t, err)

			got := s.AdjustThresholds(tt.fp, tt.fn)
			assert.Equal(t, tt.wantAfter, got.SimilarityThreshold)
			assert.Equal(t, tt.wantAfter, s.Snapshot().SimilarityThreshold)
		})
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Update(Patch{SimilarityThreshold: ptr(50 + i%40)})
		}()
		go func() {
			defer wg.Done()
			cfg := s.CategoryConfig(domain.CategoryBug)
			assert.Equal(t, 60, cfg.SimilarityThreshold)
		}()
	}
	wg.Wait()

	th := s.Snapshot().SimilarityThreshold
	assert.GreaterOrEqual(t, th, 50)
	assert.Less(t, th, 90)
}
