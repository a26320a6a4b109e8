package feedback

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/helixir/feedback-dedup-service/internal/audit"
	"github.com/helixir/feedback-dedup-service/internal/domain"
	"github.com/helixir/feedback-dedup-service/internal/repository"
)

// DetectionMetrics summarizes how the duplicate detector has performed.
type DetectionMetrics struct {
	TotalChecks            int     `json:"total_checks"`
	DuplicatesDetected     int64   `json:"duplicates_detected"`
	FalsePositives         int     `json:"false_positives"`
	FalseNegatives         int     `json:"false_negatives"`
	FalsePositiveRate      float64 `json:"false_positive_rate"`
	FalseNegativeRate      float64 `json:"false_negative_rate"`
	AverageSimilarityScore float64 `json:"average_similarity_score"`
	DetectionAccuracy      float64 `json:"detection_accuracy"`
	CurrentThreshold       int     `json:"current_threshold"`
}

// Metrics derives detection metrics from the comparison log between from and
// to (zero values leave that side open). DuplicatesDetected counts stored
// items currently marked duplicate or merged.
func (s *Service) Metrics(ctx context.Context, from, to time.Time) (*DetectionMetrics, error) {
	entries, err := s.audit.Query(ctx, domain.LogFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("query comparison log: %w", err)
	}
	rates := audit.ComputeRates(entries)

	_, resolved, err := s.repo.List(ctx, repository.FeedbackFilter{
		Status: []domain.Status{domain.StatusDuplicate, domain.StatusMerged},
		Limit:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("count resolved duplicates: %w", err)
	}

	return &DetectionMetrics{
		TotalChecks:            rates.TotalComparisons,
		DuplicatesDetected:     resolved,
		FalsePositives:         rates.FalsePositives,
		FalseNegatives:         rates.FalseNegatives,
		FalsePositiveRate:      round2(rates.FalsePositiveRate),
		FalseNegativeRate:      round2(rates.FalseNegativeRate),
		AverageSimilarityScore: round2(rates.AverageSimilarity),
		DetectionAccuracy:      round2(rates.Accuracy()),
		CurrentThreshold:       s.policies.Snapshot().SimilarityThreshold,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
