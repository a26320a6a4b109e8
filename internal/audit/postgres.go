package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/feedback-dedup-service/internal/database"
	"github.com/helixir/feedback-dedup-service/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// Compile-time interface verification.
var _ Store = (*PgStore)(nil)

// PgStore persists comparison log entries in the comparison_logs table.
// The full entry is kept as jsonb; the filterable fields are duplicated into
// indexed columns.
type PgStore struct {
	db  DBTX
	now func() time.Time
}

// NewPgStore creates a PostgreSQL-backed audit store.
func NewPgStore(db DBTX) *PgStore {
	return &PgStore{db: db, now: time.Now}
}

// Append implements Store.
func (s *PgStore) Append(ctx context.Context, entry *domain.ComparisonLogEntry) error {
	if entry == nil || entry.ID == uuid.Nil {
		return domain.NewValidationError("id", "comparison log entry requires an id")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode comparison log %s: %w", entry.ID, err)
	}

	query := `
		INSERT INTO comparison_logs (id, created_at, compared_feedback_id, is_duplicate, entry)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = s.db.Exec(ctx, query,
		entry.ID,
		entry.Timestamp,
		entry.ComparedWith.ID,
		entry.FinalDecision.IsDuplicate,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comparison log %s: %w", entry.ID, err)
	}

	return nil
}

// RecordUserAction implements Store.
func (s *PgStore) RecordUserAction(ctx context.Context, id uuid.UUID, action domain.UserAction) error {
	if !action.IsValid() {
		return domain.NewValidationError("action", "unknown user action")
	}

	record, err := json.Marshal(domain.UserActionRecord{
		Action:    action,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode user action: %w", err)
	}

	query := `
		UPDATE comparison_logs
		SET entry = jsonb_set(entry, '{user_action}', $2::jsonb), user_action = $3
		WHERE id = $1`

	// Zero rows affected means the id is unknown or already purged; that is not an error.
	if _, err := s.db.Exec(ctx, query, id, record, string(action)); err != nil {
		return fmt.Errorf("failed to record user action on comparison log %s: %w", id, err)
	}

	return nil
}

// Query implements Store.
func (s *PgStore) Query(ctx context.Context, filter domain.LogFilter) ([]domain.ComparisonLogEntry, error) {
	var from, to *time.Time
	if !filter.From.IsZero() {
		from = &filter.From
	}
	if !filter.To.IsZero() {
		to = &filter.To
	}
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}

	query := `
		SELECT entry
		FROM comparison_logs
		WHERE ($1::bigint IS NULL OR compared_feedback_id = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		  AND ($4::boolean IS NULL OR is_duplicate = $4)
		ORDER BY created_at ASC, id ASC
		LIMIT $5`

	rows, err := s.db.Query(ctx, query, filter.FeedbackID, from, to, filter.IsDuplicate, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparison logs: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.ComparisonLogEntry, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan comparison log: %w", err)
		}
		var e domain.ComparisonLogEntry
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("failed to decode comparison log: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comparison logs: %w", err)
	}

	return entries, nil
}

// Prune deletes entries created before cutoff and returns how many were removed.
func (s *PgStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM comparison_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune comparison logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
