package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeights_Normalized(t *testing.T) {
	t.Parallel()

	t.Run("scales to one", func(t *testing.T) {
		t.Parallel()
		w := Weights{Levenshtein: 3, Jaccard: 4, Cosine: 3}.Normalized()
		assert.InDelta(t, 0.3, w.Levenshtein, 1e-9)
		assert.InDelta(t, 0.4, w.Jaccard, 1e-9)
		assert.InDelta(t, 0.3, w.Cosine, 1e-9)
	})

	t.Run("zero sum splits evenly", func(t *testing.T) {
		t.Parallel()
		w := Weights{}.Normalized()
		assert.InDelta(t, 1.0/3, w.Levenshtein, 1e-9)
		assert.InDelta(t, 1.0/3, w.Jaccard, 1e-9)
		assert.InDelta(t, 1.0/3, w.Cosine, 1e-9)
	})
}

func TestParseAlgorithm(t *testing.T) {
	t.Parallel()

	a, err := ParseAlgorithm("cosine")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmCosine, a)

	_, err = ParseAlgorithm("soundex")
	require.Error(t, err)
}

func TestMultiScore(t *testing.T) {
	t.Parallel()

	t.Run("identical text saturates", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 100.0, MultiScore("Search is slow", "search is slow", DefaultWeights()))
	})

	t.Run("short feature request with little overlap scores high", func(t *testing.T) {
		t.Parallel()
		// Shared key term "dark" on two short strings adds 0.35 before the lexical blend.
		score := MultiScore("Dark mode?", "please add a dark theme", DefaultWeights())
		assert.Greater(t, score, 50.0)
		assert.LessOrEqual(t, score, 100.0)
	})

	t.Run("unrelated text", func(t *testing.T) {
		t.Parallel()
		score := MultiScore("abc", "xyz", DefaultWeights())
		assert.Equal(t, 0.0, score)
	})

	t.Run("boosts stack", func(t *testing.T) {
		t.Parallel()
		// Jaccard 0.25, common prefix +0.10, shared term +0.15, short texts +0.20.
		score := MultiScore("login broken", "login works now", Weights{Jaccard: 1})
		assert.InDelta(t, 70.0, score, 1e-9)
	})

	t.Run("boosts clamp at one hundred", func(t *testing.T) {
		t.Parallel()
		score := MultiScore("crash", "crash report", Weights{Jaccard: 1})
		assert.Equal(t, 100.0, score)
	})

	t.Run("one side empty", func(t *testing.T) {
		t.Parallel()
		// The empty string is contained in every string.
		assert.InDelta(t, 20.0, MultiScore("", "something", DefaultWeights()), 1e-9)
	})
}

func TestMultiScore_Symmetric(t *testing.T) {
	t.Parallel()

	for _, p := range symmetryPairs {
		a, b := p[0], p[1]
		assert.Equal(t, MultiScore(a, b, DefaultWeights()), MultiScore(b, a, DefaultWeights()), "%q %q", a, b)
	}
}

func TestScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 57.0, Score("kitten", "sitting", AlgorithmLevenshtein, nil))
	assert.InDelta(t, 100.0/3, Score("dark mode", "dark theme", AlgorithmJaccard, nil), 1e-9)
	assert.InDelta(t, 80.0, Score("a a b", "a b b", AlgorithmCosine, nil), 1e-9)
	assert.Equal(t, 57.0, Score("kitten", "sitting", Algorithm("unknown"), nil))

	custom := Weights{Jaccard: 1}
	assert.Equal(t, MultiScore("x y", "y z", custom), Score("x y", "y z", AlgorithmMulti, &custom))
	assert.Equal(t, MultiScore("x y", "y z", DefaultWeights()), Score("x y", "y z", AlgorithmMulti, nil))
}
