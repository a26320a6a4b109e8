package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/feedback-dedup-service/internal/domain"
)

// txBeginner is implemented by pools (*pgxpool.Pool, *database.DB) but not by pgx.Tx.
// Merge uses it to open its own transaction when it is not already inside one.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgreSQL error codes used for constraint violation detection.
const (
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// feedbackColumns is the select list matched by feedbackScanDest.destinations.
const feedbackColumns = `id, title, description, category, status, upvotes, downvotes,
			duplicate_of, submitter_info, similarity_checks, created_at, updated_at`

// Compile-time interface verification.
var _ FeedbackRepository = (*PgFeedbackRepository)(nil)

// PgFeedbackRepository is a PostgreSQL implementation of FeedbackRepository.
type PgFeedbackRepository struct {
	db DBTX
}

// NewPgFeedbackRepository creates a new PostgreSQL feedback repository.
func NewPgFeedbackRepository(db DBTX) *PgFeedbackRepository {
	return &PgFeedbackRepository{db: db}
}

// ListActive returns every active item, newest first.
func (r *PgFeedbackRepository) ListActive(ctx context.Context) ([]domain.FeedbackItem, error) {
	query := `
		SELECT ` + feedbackColumns + `
		FROM feedback
		WHERE status = 'active'
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active feedback: %w", err)
	}

	items, err := collectFeedback(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list active feedback: %w", err)
	}
	return items, nil
}

// List returns items matching the filter.
func (r *PgFeedbackRepository) List(ctx context.Context, filter FeedbackFilter) ([]domain.FeedbackItem, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, string(s))
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, string(filter.Category))
		argIndex++
	}

	if filter.SubmitterUserID != "" {
		conditions = append(conditions, fmt.Sprintf("submitter_user_id = $%d", argIndex))
		args = append(args, filter.SubmitterUserID)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM feedback %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count feedback: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM feedback
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		feedbackColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list feedback: %w", err)
	}

	items, err := collectFeedback(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list feedback: %w", err)
	}

	return items, totalCount, nil
}

// Get retrieves one item by ID.
func (r *PgFeedbackRepository) Get(ctx context.Context, id int64) (*domain.FeedbackItem, error) {
	query := `
		SELECT ` + feedbackColumns + `
		FROM feedback
		WHERE id = $1`

	item, err := scanFeedback(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}

	return item, nil
}

// Create inserts a new item.
func (r *PgFeedbackRepository) Create(ctx context.Context, item *domain.FeedbackItem) error {
	if item == nil {
		return domain.NewValidationError("feedback", "feedback cannot be nil")
	}
	if err := prepareCreate(item, time.Now().UTC()); err != nil {
		return err
	}

	var submitterJSON []byte
	var submitterUserID *string
	if item.SubmitterInfo != nil {
		b, err := json.Marshal(item.SubmitterInfo)
		if err != nil {
			return fmt.Errorf("failed to marshal submitter info: %w", err)
		}
		submitterJSON = b
		submitterUserID = nullString(item.SubmitterInfo.UserID)
	}

	checksJSON, err := json.Marshal(item.SimilarityChecks)
	if err != nil {
		return fmt.Errorf("failed to marshal similarity checks: %w", err)
	}

	query := `
		INSERT INTO feedback (
			title, description, category, status, upvotes, downvotes,
			duplicate_of, submitter_user_id, submitter_info, similarity_checks,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	err = r.db.QueryRow(ctx, query,
		item.Title, item.Description, string(item.Category), string(item.Status), item.Upvotes, item.Downvotes,
		item.DuplicateOf, submitterUserID, submitterJSON, checksJSON,
		item.CreatedAt, item.UpdatedAt,
	).Scan(&item.ID)
	if err != nil {
		if isPgForeignKeyViolation(err) && item.DuplicateOf != nil {
			return notFound(*item.DuplicateOf)
		}
		return fmt.Errorf("failed to create feedback: %w", err)
	}

	return nil
}

// UpdateStatus moves an item to status.
func (r *PgFeedbackRepository) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	if !status.IsValid() {
		return domain.NewValidationError("status", "unknown status "+string(status))
	}

	query := `
		UPDATE feedback
		SET status = $2, updated_at = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update feedback status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound(id)
	}

	return nil
}

// Vote adds one vote to an item.
func (r *PgFeedbackRepository) Vote(ctx context.Context, id int64, vote domain.VoteType) (*domain.FeedbackItem, error) {
	up, down, err := voteDelta(vote)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE feedback
		SET upvotes = upvotes + $2, downvotes = downvotes + $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + feedbackColumns

	item, err := scanFeedback(r.db.QueryRow(ctx, query, id, up, down, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to vote on feedback: %w", err)
	}

	return item, nil
}

// MarkDuplicate flags id as a duplicate of originalID. A missing original
// surfaces as a foreign key violation.
func (r *PgFeedbackRepository) MarkDuplicate(ctx context.Context, id, originalID int64) error {
	if err := validateMarkDuplicate(id, originalID); err != nil {
		return err
	}

	query := `
		UPDATE feedback
		SET status = 'duplicate', duplicate_of = $2, updated_at = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, originalID, time.Now().UTC())
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return notFound(originalID)
		}
		return fmt.Errorf("failed to mark feedback as duplicate: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound(id)
	}

	return nil
}

// Merge folds source into target in one transaction.
//
// If the underlying DBTX is a pool, Merge begins and commits its own
// transaction. If it is already a transaction, the caller owns commit.
func (r *PgFeedbackRepository) Merge(ctx context.Context, sourceID, targetID int64) (*domain.FeedbackItem, error) {
	if err := validateMerge(sourceID, targetID); err != nil {
		return nil, err
	}

	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction for merge: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txRepo := &PgFeedbackRepository{db: tx}
		target, err := txRepo.mergeInTx(ctx, sourceID, targetID)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit merge: %w", err)
		}
		return target, nil
	}

	return r.mergeInTx(ctx, sourceID, targetID)
}

func (r *PgFeedbackRepository) mergeInTx(ctx context.Context, sourceID, targetID int64) (*domain.FeedbackItem, error) {
	now := time.Now().UTC()

	sourceQuery := `
		UPDATE feedback
		SET status = 'merged', duplicate_of = $2, updated_at = $3
		WHERE id = $1
		RETURNING upvotes, downvotes`

	var up, down int
	if err := r.db.QueryRow(ctx, sourceQuery, sourceID, targetID, now).Scan(&up, &down); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(sourceID)
		}
		if isPgForeignKeyViolation(err) {
			return nil, notFound(targetID)
		}
		return nil, fmt.Errorf("failed to merge source feedback: %w", err)
	}

	targetQuery := `
		UPDATE feedback
		SET upvotes = upvotes + $2, downvotes = downvotes + $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + feedbackColumns

	target, err := scanFeedback(r.db.QueryRow(ctx, targetQuery, targetID, up, down, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(targetID)
		}
		return nil, fmt.Errorf("failed to merge into target feedback: %w", err)
	}

	return target, nil
}

// feedbackScanDest holds the destination pointers for scanning a feedback row.
type feedbackScanDest struct {
	item          domain.FeedbackItem
	category      string
	status        string
	submitterJSON []byte
	checksJSON    []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *feedbackScanDest) destinations() []interface{} {
	return []interface{}{
		&d.item.ID, &d.item.Title, &d.item.Description, &d.category, &d.status,
		&d.item.Upvotes, &d.item.Downvotes,
		&d.item.DuplicateOf, &d.submitterJSON, &d.checksJSON,
		&d.item.CreatedAt, &d.item.UpdatedAt,
	}
}

// finalize converts enum columns and unmarshals JSON.
func (d *feedbackScanDest) finalize() (*domain.FeedbackItem, error) {
	d.item.Category = domain.Category(d.category)
	d.item.Status = domain.Status(d.status)

	if len(d.submitterJSON) > 0 && string(d.submitterJSON) != "null" {
		var info domain.SubmitterInfo
		if err := json.Unmarshal(d.submitterJSON, &info); err != nil {
			return nil, fmt.Errorf("failed to unmarshal submitter info: %w", err)
		}
		d.item.SubmitterInfo = &info
	}

	if len(d.checksJSON) > 0 {
		if err := json.Unmarshal(d.checksJSON, &d.item.SimilarityChecks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal similarity checks: %w", err)
		}
	}

	return &d.item, nil
}

// scanFeedback scans a single row into a FeedbackItem.
func scanFeedback(row pgx.Row) (*domain.FeedbackItem, error) {
	var dest feedbackScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// collectFeedback drains rows into a slice and closes them.
func collectFeedback(rows pgx.Rows) ([]domain.FeedbackItem, error) {
	defer rows.Close()

	items := []domain.FeedbackItem{}
	for rows.Next() {
		var dest feedbackScanDest
		if err := rows.Scan(dest.destinations()...); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		item, err := dest.finalize()
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback: %w", err)
	}

	return items, nil
}

// isPgForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isPgForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}

func notFound(id int64) error {
	return domain.NewNotFoundError("feedback", strconv.FormatInt(id, 10))
}

// prepareCreate validates a new item and fills defaults shared by both implementations.
func prepareCreate(item *domain.FeedbackItem, now time.Time) error {
	if strings.TrimSpace(item.Title) == "" {
		return domain.NewValidationError("title", "title is required")
	}
	if strings.TrimSpace(item.Description) == "" {
		return domain.NewValidationError("description", "description is required")
	}
	if item.Category == "" {
		item.Category = domain.CategoryGeneral
	}
	if !item.Category.IsValid() {
		return domain.NewValidationError("category", "unknown category "+string(item.Category))
	}
	if item.Status == "" {
		item.Status = domain.StatusActive
	}
	if !item.Status.IsValid() {
		return domain.NewValidationError("status", "unknown status "+string(item.Status))
	}
	if item.SimilarityChecks == nil {
		item.SimilarityChecks = []domain.SimilarityCheckRef{}
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

func voteDelta(vote domain.VoteType) (up, down int, err error) {
	switch vote {
	case domain.VoteUp:
		return 1, 0, nil
	case domain.VoteDown:
		return 0, 1, nil
	}
	return 0, 0, domain.NewValidationError("vote_type", "must be upvote or downvote")
}
