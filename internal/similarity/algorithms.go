// Package similarity implements the text similarity measures used for
// duplicate feedback detection: edit distance, set overlap, term-frequency
// cosine, key-term heuristics and a weighted composite of all three.
//
// Every measure is symmetric and accepts arbitrary UTF-8 input, including
// empty strings.
package similarity

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// LevenshteinDistance returns the unit-cost edit distance between a and b,
// counted in runes. Comparison is case-sensitive; callers lower-case first.
func LevenshteinDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// LevenshteinSimilarity returns round((maxLen - distance) / maxLen * 100)
// over the lower-cased inputs.
//
// Two empty strings are identical (100); exactly one empty string scores 0.
func LevenshteinSimilarity(a, b string) int {
	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	la := strings.ToLower(a)
	lb := strings.ToLower(b)

	maxLen := max(utf8.RuneCountInString(la), utf8.RuneCountInString(lb))
	distance := LevenshteinDistance(la, lb)

	return int(math.Round(float64(maxLen-distance) / float64(maxLen) * 100))
}

// JaccardSimilarity returns |A ∩ B| / |A ∪ B| over the sets of lower-cased
// whitespace-separated tokens of a and b, in [0, 1].
func JaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

// CosineSimilarity returns the cosine of the angle between the term-frequency
// vectors of a and b, in [0, 1].
func CosineSimilarity(a, b string) float64 {
	freqA := termFrequencies(a)
	freqB := termFrequencies(b)

	if len(freqA) == 0 && len(freqB) == 0 {
		return 1
	}
	if len(freqA) == 0 || len(freqB) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for tok, fa := range freqA {
		magA += float64(fa * fa)
		if fb, ok := freqB[tok]; ok {
			dot += float64(fa * fb)
		}
	}
	for _, fb := range freqB {
		magB += float64(fb * fb)
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// tokenize lower-cases s and splits it on runs of whitespace.
func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func tokenSet(s string) map[string]struct{} {
	tokens := tokenize(s)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

func termFrequencies(s string) map[string]int {
	tokens := tokenize(s)
	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}
	return freq
}
