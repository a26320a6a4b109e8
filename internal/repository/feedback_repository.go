package repository

import (
	"context"

	"github.com/helixir/feedback-dedup-service/internal/domain"
)

// FeedbackRepository handles feedback item persistence and lifecycle changes.
type FeedbackRepository interface {
	// ListActive returns every item with status active, newest first.
	// This is the candidate pool for duplicate checks.
	ListActive(ctx context.Context) ([]domain.FeedbackItem, error)

	// List returns items matching the filter, newest first, and the total
	// number of matching items regardless of limit and offset.
	List(ctx context.Context, filter FeedbackFilter) ([]domain.FeedbackItem, int64, error)

	// Get retrieves one item.
	// Returns domain.ErrNotFound if no item has the given ID.
	Get(ctx context.Context, id int64) (*domain.FeedbackItem, error)

	// Create inserts a new item and sets its ID and timestamps.
	// An empty status defaults to active and an empty category to general.
	Create(ctx context.Context, item *domain.FeedbackItem) error

	// UpdateStatus moves an item to status.
	// Returns domain.ErrNotFound if no item has the given ID.
	UpdateStatus(ctx context.Context, id int64, status domain.Status) error

	// Vote adds one up or down vote and returns the updated item.
	Vote(ctx context.Context, id int64, vote domain.VoteType) (*domain.FeedbackItem, error)

	// MarkDuplicate sets the item's status to duplicate and points it at originalID.
	// Returns domain.ErrNotFound if either item is missing.
	MarkDuplicate(ctx context.Context, id, originalID int64) error

	// Merge folds source into target: the source's votes are added to the
	// target and the source becomes merged with duplicate_of = target.
	// Returns the updated target.
	Merge(ctx context.Context, sourceID, targetID int64) (*domain.FeedbackItem, error)
}

// FeedbackFilter specifies criteria for listing feedback items.
type FeedbackFilter struct {
	// Status filters by one or more statuses. Empty matches all.
	Status []domain.Status

	// Category filters by category (optional).
	Category domain.Category

	// SubmitterUserID filters to items submitted by this user (optional).
	SubmitterUserID string

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks filter values and applies pagination defaults.
func (f *FeedbackFilter) Validate() error {
	for _, s := range f.Status {
		if !s.IsValid() {
			return domain.NewValidationError("status", "unknown status "+string(s))
		}
	}
	if f.Category != "" && !f.Category.IsValid() {
		return domain.NewValidationError("category", "unknown category "+string(f.Category))
	}

	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}

func validateMerge(sourceID, targetID int64) error {
	if sourceID == targetID {
		return domain.NewValidationError("target_id", "cannot merge an item into itself")
	}
	return nil
}

func validateMarkDuplicate(id, originalID int64) error {
	if id == originalID {
		return domain.NewValidationError("original_id", "an item cannot duplicate itself")
	}
	return nil
}
