package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var symmetryPairs = [][2]string{
	{"", ""},
	{"", "dark mode"},
	{"kitten", "sitting"},
	{"Add dark mode", "Please add a dark theme option"},
	{"Login page crashes on Safari", "login crashes"},
	{"export export csv", "CSV export"},
	{"Größe ändern", "größe Ändern bitte"},
	{"   ", "x"},
}

func TestLevenshteinDistance(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 0, LevenshteinDistance("same", "same"))
	assert.Equal(t, 4, LevenshteinDistance("", "four"))
	assert.Equal(t, 1, LevenshteinDistance("café", "cafe"))
}

func TestLevenshteinSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want int
	}{
		{name: "classic example", a: "kitten", b: "sitting", want: 57},
		{name: "both empty", a: "", b: "", want: 100},
		{name: "left empty", a: "", b: "abc", want: 0},
		{name: "right empty", a: "abc", b: "", want: 0},
		{name: "case insensitive", a: "Dark Mode", b: "dark mode", want: 100},
		{name: "completely different", a: "abc", b: "xyz", want: 0},
		{name: "one substitution of four", a: "test", b: "tent", want: 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, LevenshteinSimilarity(tt.a, tt.b))
		})
	}
}

func TestJaccardSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0/3.0, JaccardSimilarity("dark mode", "dark theme"), 1e-9)
	assert.InDelta(t, 1.0/3.0, JaccardSimilarity("Dark  MODE", "dark\ttheme"), 1e-9)
	assert.Equal(t, 1.0, JaccardSimilarity("", ""))
	assert.Equal(t, 1.0, JaccardSimilarity("  ", "\n"))
	assert.Equal(t, 0.0, JaccardSimilarity("   ", "x"))
	assert.Equal(t, 0.0, JaccardSimilarity("a b", "c d"))
	assert.Equal(t, 1.0, JaccardSimilarity("b a a", "a b"))
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.8, CosineSimilarity("a a b", "a b b"), 1e-9)
	assert.InDelta(t, 1.0, CosineSimilarity("search is slow", "Search IS slow"), 1e-9)
	assert.Equal(t, 1.0, CosineSimilarity("", ""))
	assert.Equal(t, 0.0, CosineSimilarity("", "word"))
	assert.Equal(t, 0.0, CosineSimilarity("alpha", "beta"))
}

func TestAlgorithms_Reflexive(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"kitten", "Add dark mode", "x", "Größe ändern"} {
		assert.Equal(t, 100, LevenshteinSimilarity(s, s), s)
		assert.InDelta(t, 1.0, JaccardSimilarity(s, s), 1e-9, s)
		assert.InDelta(t, 1.0, CosineSimilarity(s, s), 1e-9, s)
	}
}

func TestAlgorithms_Symmetric(t *testing.T) {
	t.Parallel()

	for _, p := range symmetryPairs {
		a, b := p[0], p[1]
		assert.Equal(t, LevenshteinSimilarity(a, b), LevenshteinSimilarity(b, a), "levenshtein %q %q", a, b)
		assert.Equal(t, JaccardSimilarity(a, b), JaccardSimilarity(b, a), "jaccard %q %q", a, b)
		assert.Equal(t, CosineSimilarity(a, b), CosineSimilarity(b, a), "cosine %q %q", a, b)
	}
}
