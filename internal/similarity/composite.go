package similarity

import (
	"fmt"
	"unicode/utf8"
)

// Algorithm selects how two strings are scored.
type Algorithm string

const (
	AlgorithmLevenshtein Algorithm = "levenshtein"
	AlgorithmJaccard     Algorithm = "jaccard"
	AlgorithmCosine      Algorithm = "cosine"
	AlgorithmMulti       Algorithm = "multi"
)

// IsValid reports whether a names a known algorithm.
func (a Algorithm) IsValid() bool {
	switch a {
	case AlgorithmLevenshtein, AlgorithmJaccard, AlgorithmCosine, AlgorithmMulti:
		return true
	}
	return false
}

// ParseAlgorithm converts a raw name to an Algorithm.
func ParseAlgorithm(raw string) (Algorithm, error) {
	a := Algorithm(raw)
	if !a.IsValid() {
		return "", fmt.Errorf("unknown similarity algorithm %q", raw)
	}
	return a, nil
}

// Heuristic boosts added on top of the weighted composite, as fractions of 1.
const (
	commonPhraseBoost   = 0.10
	containmentBoost    = 0.20
	sharedKeyTermBoost  = 0.15
	shortTextBoost      = 0.20
	shortTextRuneLength = 30
)

// Weights are relative contributions of each algorithm to the composite score.
// They are ratios and are normalized at the point of use.
type Weights struct {
	Levenshtein float64 `json:"levenshtein" mapstructure:"levenshtein" validate:"gte=0"`
	Jaccard     float64 `json:"jaccard" mapstructure:"jaccard" validate:"gte=0"`
	Cosine      float64 `json:"cosine" mapstructure:"cosine" validate:"gte=0"`
}

// DefaultWeights returns the standard 0.3 / 0.4 / 0.3 blend.
func DefaultWeights() Weights {
	return Weights{Levenshtein: 0.3, Jaccard: 0.4, Cosine: 0.3}
}

// Normalized returns w scaled to sum to 1. A zero (or negative) sum yields an even split.
func (w Weights) Normalized() Weights {
	sum := w.Levenshtein + w.Jaccard + w.Cosine
	if sum <= 0 {
		return Weights{Levenshtein: 1.0 / 3, Jaccard: 1.0 / 3, Cosine: 1.0 / 3}
	}
	return Weights{
		Levenshtein: w.Levenshtein / sum,
		Jaccard:     w.Jaccard / sum,
		Cosine:      w.Cosine / sum,
	}
}

// MultiScore blends Levenshtein, Jaccard and Cosine similarity with the given
// weights, adds the heuristic boosts, and returns the clamped result in [0, 100].
//
// Boosts stack:
//   - +0.10 when the strings share a prefix or suffix of five runes
//   - +0.20 when one string contains the other
//   - +0.15 when they share a key term
//   - +0.20 more when both are shorter than 30 runes and share a key term
func MultiScore(a, b string, weights Weights) float64 {
	w := weights.Normalized()

	weighted := float64(LevenshteinSimilarity(a, b))/100*w.Levenshtein +
		JaccardSimilarity(a, b)*w.Jaccard +
		CosineSimilarity(a, b)*w.Cosine

	var boost float64
	if HasCommonPhrases(a, b, DefaultCommonPhraseLength) {
		boost += commonPhraseBoost
	}
	if ContainsSubstring(a, b) {
		boost += containmentBoost
	}
	shared := ShareKeyTerms(a, b, 1)
	if shared {
		boost += sharedKeyTermBoost
	}
	if shared && utf8.RuneCountInString(a) < shortTextRuneLength && utf8.RuneCountInString(b) < shortTextRuneLength {
		boost += shortTextBoost
	}

	return clamp01(weighted+boost) * 100
}

// Score returns the similarity of a and b in [0, 100] using the chosen
// algorithm. weights only affects AlgorithmMulti; nil means DefaultWeights.
// An unrecognized algorithm falls back to Levenshtein.
func Score(a, b string, algorithm Algorithm, weights *Weights) float64 {
	switch algorithm {
	case AlgorithmJaccard:
		return JaccardSimilarity(a, b) * 100
	case AlgorithmCosine:
		return CosineSimilarity(a, b) * 100
	case AlgorithmMulti:
		w := DefaultWeights()
		if weights != nil {
			w = *weights
		}
		return MultiScore(a, b, w)
	default:
		return float64(LevenshteinSimilarity(a, b))
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
