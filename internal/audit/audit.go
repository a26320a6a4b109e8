// Package audit stores comparison log entries produced by duplicate checks
// and derives detection error rates from them.
//
// Entries are append-only. The single permitted mutation is attaching a
// user action after the fact; recording an action against an id that is not
// (or no longer) stored is a silent no-op.
package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/feedback-dedup-service/internal/domain"
)

// Store is an append-only comparison log.
type Store interface {
	// Append stores a new entry. The entry must carry a non-nil ID.
	Append(ctx context.Context, entry *domain.ComparisonLogEntry) error

	// RecordUserAction annotates an existing entry. Unknown ids are ignored.
	RecordUserAction(ctx context.Context, id uuid.UUID, action domain.UserAction) error

	// Query returns matching entries, oldest first.
	Query(ctx context.Context, filter domain.LogFilter) ([]domain.ComparisonLogEntry, error)
}

// ErrorRates summarizes how often human actions contradicted the engine.
type ErrorRates struct {
	TotalComparisons      int `json:"total_comparisons"`
	DuplicateDecisions    int `json:"duplicate_decisions"`
	NonDuplicateDecisions int `json:"non_duplicate_decisions"`
	FalsePositives        int `json:"false_positives"`
	FalseNegatives        int `json:"false_negatives"`
	// FalsePositiveRate is the percentage of duplicate decisions the submitter overrode.
	FalsePositiveRate float64 `json:"false_positive_rate"`
	// FalseNegativeRate is the percentage of non-duplicate decisions later marked as duplicates.
	FalseNegativeRate float64 `json:"false_negative_rate"`
	// AverageSimilarity is the mean overall similarity across all comparisons.
	AverageSimilarity float64 `json:"average_similarity"`
}

// Accuracy is the share of decisions not contradicted by a user action, in percent.
func (r ErrorRates) Accuracy() float64 {
	if r.TotalComparisons == 0 {
		return 100
	}
	wrong := r.FalsePositives + r.FalseNegatives
	return float64(r.TotalComparisons-wrong) / float64(r.TotalComparisons) * 100
}

// ComputeRates derives error rates from a set of entries.
//
// A false positive is a duplicate decision the submitter answered with
// submitted_anyway. A false negative is a non-duplicate decision later
// annotated marked_as_duplicate.
func ComputeRates(entries []domain.ComparisonLogEntry) ErrorRates {
	var r ErrorRates
	var similaritySum int

	for i := range entries {
		e := &entries[i]
		r.TotalComparisons++
		similaritySum += e.SimilarityResults.OverallSimilarity

		action := domain.UserAction("")
		if e.UserAction != nil {
			action = e.UserAction.Action
		}

		if e.FinalDecision.IsDuplicate {
			r.DuplicateDecisions++
			if action == domain.UserActionSubmittedAnyway {
				r.FalsePositives++
			}
			continue
		}

		r.NonDuplicateDecisions++
		if action == domain.UserActionMarkedAsDuplicate {
			r.FalseNegatives++
		}
	}

	if r.DuplicateDecisions > 0 {
		r.FalsePositiveRate = float64(r.FalsePositives) / float64(r.DuplicateDecisions) * 100
	}
	if r.NonDuplicateDecisions > 0 {
		r.FalseNegativeRate = float64(r.FalseNegatives) / float64(r.NonDuplicateDecisions) * 100
	}
	if r.TotalComparisons > 0 {
		r.AverageSimilarity = float64(similaritySum) / float64(r.TotalComparisons)
	}

	return r
}
