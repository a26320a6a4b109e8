package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/helixir/feedback-dedup-service/internal/domain"
)

// Compile-time interface verification.
var _ FeedbackRepository = (*MemoryFeedbackRepository)(nil)

// MemoryFeedbackRepository keeps feedback items in process memory. IDs are
// assigned sequentially from 1. Returned items are copies.
type MemoryFeedbackRepository struct {
	mu     sync.RWMutex
	items  map[int64]*domain.FeedbackItem
	nextID int64
	now    func() time.Time
}

// NewMemoryFeedbackRepository creates an empty in-memory repository.
func NewMemoryFeedbackRepository() *MemoryFeedbackRepository {
	return &MemoryFeedbackRepository{
		items:  make(map[int64]*domain.FeedbackItem),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListActive returns every active item, newest first.
func (r *MemoryFeedbackRepository) ListActive(_ context.Context) ([]domain.FeedbackItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(it *domain.FeedbackItem) bool { return it.IsActive() }), nil
}

// List returns items matching the filter.
func (r *MemoryFeedbackRepository) List(_ context.Context, filter FeedbackFilter) ([]domain.FeedbackItem, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.collect(func(it *domain.FeedbackItem) bool {
		if len(filter.Status) > 0 && !slices.Contains(filter.Status, it.Status) {
			return false
		}
		if filter.Category != "" && it.Category != filter.Category {
			return false
		}
		if filter.SubmitterUserID != "" && (it.SubmitterInfo == nil || it.SubmitterInfo.UserID != filter.SubmitterUserID) {
			return false
		}
		return true
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []domain.FeedbackItem{}, total, nil
	}
	end := min(len(matched), filter.Offset+filter.Limit)
	return matched[filter.Offset:end], total, nil
}

// Get retrieves one item by ID.
func (r *MemoryFeedbackRepository) Get(_ context.Context, id int64) (*domain.FeedbackItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[id]
	if !ok {
		return nil, notFound(id)
	}
	out := cloneItem(it)
	return &out, nil
}

// Create inserts a new item.
func (r *MemoryFeedbackRepository) Create(_ context.Context, item *domain.FeedbackItem) error {
	if item == nil {
		return domain.NewValidationError("feedback", "feedback cannot be nil")
	}
	if err := prepareCreate(item, r.now()); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if item.DuplicateOf != nil {
		if _, ok := r.items[*item.DuplicateOf]; !ok {
			return notFound(*item.DuplicateOf)
		}
	}

	item.ID = r.nextID
	r.nextID++
	stored := cloneItem(item)
	r.items[item.ID] = &stored
	return nil
}

// UpdateStatus moves an item to status.
func (r *MemoryFeedbackRepository) UpdateStatus(_ context.Context, id int64, status domain.Status) error {
	if !status.IsValid() {
		return domain.NewValidationError("status", "unknown status "+string(status))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return notFound(id)
	}
	it.Status = status
	it.UpdatedAt = r.now()
	return nil
}

// Vote adds one vote to an item.
func (r *MemoryFeedbackRepository) Vote(_ context.Context, id int64, vote domain.VoteType) (*domain.FeedbackItem, error) {
	up, down, err := voteDelta(vote)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return nil, notFound(id)
	}
	it.Upvotes += up
	it.Downvotes += down
	it.UpdatedAt = r.now()

	out := cloneItem(it)
	return &out, nil
}

// MarkDuplicate flags id as a duplicate of originalID.
func (r *MemoryFeedbackRepository) MarkDuplicate(_ context.Context, id, originalID int64) error {
	if err := validateMarkDuplicate(id, originalID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return notFound(id)
	}
	if _, ok := r.items[originalID]; !ok {
		return notFound(originalID)
	}

	it.Status = domain.StatusDuplicate
	it.DuplicateOf = &originalID
	it.UpdatedAt = r.now()
	return nil
}

// Merge folds source into target.
func (r *MemoryFeedbackRepository) Merge(_ context.Context, sourceID, targetID int64) (*domain.FeedbackItem, error) {
	if err := validateMerge(sourceID, targetID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	source, ok := r.items[sourceID]
	if !ok {
		return nil, notFound(sourceID)
	}
	target, ok := r.items[targetID]
	if !ok {
		return nil, notFound(targetID)
	}

	now := r.now()
	target.Upvotes += source.Upvotes
	target.Downvotes += source.Downvotes
	target.UpdatedAt = now

	source.Status = domain.StatusMerged
	source.DuplicateOf = &targetID
	source.UpdatedAt = now

	out := cloneItem(target)
	return &out, nil
}

// collect returns copies of the items accepted by keep, newest first.
// The caller must hold r.mu.
func (r *MemoryFeedbackRepository) collect(keep func(*domain.FeedbackItem) bool) []domain.FeedbackItem {
	out := []domain.FeedbackItem{}
	for _, it := range r.items {
		if keep(it) {
			out = append(out, cloneItem(it))
		}
	}
	slices.SortFunc(out, func(a, b domain.FeedbackItem) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	return out
}

func cloneItem(it *domain.FeedbackItem) domain.FeedbackItem {
	out := *it
	if it.DuplicateOf != nil {
		v := *it.DuplicateOf
		out.DuplicateOf = &v
	}
	if it.SubmitterInfo != nil {
		info := *it.SubmitterInfo
		out.SubmitterInfo = &info
	}
	out.SimilarityChecks = slices.Clone(it.SimilarityChecks)
	return out
}
