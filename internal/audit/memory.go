package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/feedback-dedup-service/internal/domain"
)

// DefaultCapacity bounds the in-memory log when no capacity is configured.
const DefaultCapacity = 10000

// Compile-time interface verification.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is a bounded ring of comparison log entries. When full, the
// oldest entry is overwritten. Entries older than the retention window are
// invisible to queries and user actions.
type MemoryStore struct {
	mu        sync.RWMutex
	ring      []domain.ComparisonLogEntry
	head      int // next write slot
	size      int
	index     map[uuid.UUID]int
	retention time.Duration
	now       func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithRetention hides entries older than d. Zero keeps everything the ring holds.
func WithRetention(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.retention = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates a ring store holding at most capacity entries.
func NewMemoryStore(capacity int, opts ...MemoryOption) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &MemoryStore{
		ring:  make([]domain.ComparisonLogEntry, capacity),
		index: make(map[uuid.UUID]int, capacity),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, entry *domain.ComparisonLogEntry) error {
	if entry == nil || entry.ID == uuid.Nil {
		return domain.NewValidationError("id", "comparison log entry requires an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size == len(s.ring) {
		delete(s.index, s.ring[s.head].ID)
	} else {
		s.size++
	}

	s.ring[s.head] = *entry
	s.index[entry.ID] = s.head
	s.head = (s.head + 1) % len(s.ring)

	return nil
}

// RecordUserAction implements Store.
func (s *MemoryStore) RecordUserAction(_ context.Context, id uuid.UUID, action domain.UserAction) error {
	if !action.IsValid() {
		return domain.NewValidationError("action", "unknown user action")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.index[id]
	if !ok || s.expired(s.ring[slot].Timestamp) {
		return nil
	}

	// Replace rather than mutate: previously returned copies share nothing.
	s.ring[slot].UserAction = &domain.UserActionRecord{
		Action:    action,
		Timestamp: s.now().UTC(),
	}
	return nil
}

// Query implements Store.
func (s *MemoryStore) Query(_ context.Context, filter domain.LogFilter) ([]domain.ComparisonLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ComparisonLogEntry, 0)
	oldest := (s.head - s.size + len(s.ring)) % len(s.ring)

	for i := range s.size {
		e := &s.ring[(oldest+i)%len(s.ring)]
		if s.expired(e.Timestamp) || !filter.Matches(e) {
			continue
		}
		out = append(out, *e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}

	return out, nil
}

// Len reports the number of entries held, including expired ones not yet overwritten.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *MemoryStore) expired(ts time.Time) bool {
	return s.retention > 0 && ts.Before(s.now().Add(-s.retention))
}
