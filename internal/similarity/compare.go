package similarity

import (
	"math"
)

// FeatureMatchFloor is the minimum overall score of a pair whose combined
// texts share a feature-dictionary phrase.
const FeatureMatchFloor = 75.0

// Result is the outcome of comparing two feedback items.
type Result struct {
	TitleSimilarity       int  `json:"title_similarity"`
	DescriptionSimilarity int  `json:"description_similarity"`
	OverallSimilarity     int  `json:"overall_similarity"`
	IsSimilar             bool `json:"is_similar"`
}

// CompareOptions parametrize CompareFeedback.
type CompareOptions struct {
	Algorithm         Algorithm
	AlgorithmWeights  Weights
	TitleWeight       float64
	DescriptionWeight float64
	Threshold         int
}

// CompareFeedback scores the title pair and the description pair with the
// selected algorithm and blends them with the normalized title/description
// weights. A shared feature phrase lifts the overall score to at least
// FeatureMatchFloor. IsSimilar is decided on the unrounded overall score;
// the reported scores are rounded.
func CompareFeedback(title1, desc1, title2, desc2 string, opts CompareOptions) Result {
	titleSim := Score(title1, title2, opts.Algorithm, &opts.AlgorithmWeights)
	descSim := Score(desc1, desc2, opts.Algorithm, &opts.AlgorithmWeights)

	tw, dw := normalizePair(opts.TitleWeight, opts.DescriptionWeight)
	overall := titleSim*tw + descSim*dw

	if SharedFeatureTerm(combinedText(title1, desc1), combinedText(title2, desc2)) != "" {
		overall = math.Max(overall, FeatureMatchFloor)
	}

	return Result{
		TitleSimilarity:       int(math.Round(titleSim)),
		DescriptionSimilarity: int(math.Round(descSim)),
		OverallSimilarity:     int(math.Round(overall)),
		IsSimilar:             overall >= float64(opts.Threshold),
	}
}

// normalizePair scales title and description weights to sum to 1, falling
// back to 0.5 / 0.5 when they sum to zero.
func normalizePair(title, description float64) (float64, float64) {
	sum := title + description
	if sum <= 0 {
		return 0.5, 0.5
	}
	return title / sum, description / sum
}
