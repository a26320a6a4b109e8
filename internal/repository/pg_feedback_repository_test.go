package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/feedback-dedup-service/internal/domain"
)

var feedbackRowColumns = []string{
	"id", "title", "description", "category", "status", "upvotes", "downvotes",
	"duplicate_of", "submitter_info", "similarity_checks", "created_at", "updated_at",
}

// Helper to create a valid feedback item for testing.
func newTestFeedback(id int64) domain.FeedbackItem {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.FeedbackItem{
		ID:          id,
		Title:       "Dark mode please",
		Description: "The app is too bright at night",
		Category:    domain.CategoryFeature,
		Status:      domain.StatusActive,
		Upvotes:     3,
		Downvotes:   1,
		SubmitterInfo: &domain.SubmitterInfo{
			UserID:    "user-1",
			Timestamp: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func feedbackRows(items ...domain.FeedbackItem) *pgxmock.Rows {
	rows := pgxmock.NewRows(feedbackRowColumns)
	for _, it := range items {
		var submitterJSON []byte
		if it.SubmitterInfo != nil {
			submitterJSON, _ = json.Marshal(it.SubmitterInfo)
		}
		checksJSON, _ := json.Marshal(it.SimilarityChecks)
		rows.AddRow(
			it.ID, it.Title, it.Description, string(it.Category), string(it.Status), it.Upvotes, it.Downvotes,
			it.DuplicateOf, submitterJSON, checksJSON, it.CreatedAt, it.UpdatedAt,
		)
	}
	return rows
}

func TestPgFeedbackRepository_ListActive(t *testing.T) {
	ctx := context.Background()

	t.Run("returns active items", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		first, second := newTestFeedback(2), newTestFeedback(1)
		second.SubmitterInfo = nil

		mock.ExpectQuery("SELECT .* FROM feedback WHERE status = 'active' ORDER BY created_at DESC, id DESC").
			WillReturnRows(feedbackRows(first, second))

		items, err := repo.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, int64(2), items[0].ID)
		assert.Equal(t, domain.CategoryFeature, items[0].Category)
		assert.Equal(t, domain.StatusActive, items[0].Status)
		require.NotNil(t, items[0].SubmitterInfo)
		assert.Equal(t, "user-1", items[0].SubmitterInfo.UserID)
		assert.Nil(t, items[1].SubmitterInfo)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty pool is an empty slice", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		mock.ExpectQuery("SELECT .* FROM feedback WHERE status = 'active'").
			WillReturnRows(pgxmock.NewRows(feedbackRowColumns))

		items, err := repo.ListActive(ctx)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps query error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		dbErr := errors.New("connection refused")
		mock.ExpectQuery("SELECT .* FROM feedback WHERE status = 'active'").
			WillReturnError(dbErr)

		items, err := repo.ListActive(ctx)
		assert.Nil(t, items)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgFeedbackRepository_List(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by status and submitter", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM feedback WHERE status IN \\(\\$1\\) AND submitter_user_id = \\$2").
			WithArgs("active", "user-1").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
		mock.ExpectQuery("SELECT .* FROM feedback WHERE status IN \\(\\$1\\) AND submitter_user_id = \\$2 ORDER BY created_at DESC, id DESC LIMIT \\$3 OFFSET \\$4").
			WithArgs("active", "user-1", 100, 0).
			WillReturnRows(feedbackRows(newTestFeedback(1)))

		items, total, err := repo.List(ctx, FeedbackFilter{
			Status:          []domain.Status{domain.StatusActive},
			SubmitterUserID: "user-1",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, items, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no filters lists everything", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM feedback").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mock.ExpectQuery("SELECT .* FROM feedback ORDER BY created_at DESC, id DESC LIMIT \\$1 OFFSET \\$2").
			WithArgs(1000, 20).
			WillReturnRows(pgxmock.NewRows(feedbackRowColumns))

		items, total, err := repo.List(ctx, FeedbackFilter{Limit: 5000, Offset: 20})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, items)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		_, _, err = repo.List(ctx, FeedbackFilter{Status: []domain.Status{"deleted"}})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgFeedbackRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("returns item when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		want := newTestFeedback(9)
		original := int64(4)
		want.DuplicateOf = &original
		want.SimilarityChecks = []domain.SimilarityCheckRef{{LogID: "log-1", Timestamp: want.CreatedAt, Result: true}}

		mock.ExpectQuery("SELECT .* FROM feedback WHERE id = \\$1").
			WithArgs(int64(9)).
			WillReturnRows(feedbackRows(want))

		got, err := repo.Get(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, want.Title, got.Title)
		require.NotNil(t, got.DuplicateOf)
		assert.Equal(t, int64(4), *got.DuplicateOf)
		require.Len(t, got.SimilarityChecks, 1)
		assert.Equal(t, "log-1", got.SimilarityChecks[0].LogID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error when not exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		mock.ExpectQuery("SELECT .* FROM feedback WHERE id = \\$1").
			WithArgs(int64(9)).
			WillReturnError(pgx.ErrNoRows)

		got, err := repo.Get(ctx, 9)
		assert.Nil(t, got)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgFeedbackRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts and sets id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		item := &domain.FeedbackItem{
			Title:         "Export to CSV",
			Description:   "Let me download reports",
			SubmitterInfo: &domain.SubmitterInfo{IP: "10.0.0.1"},
		}

		mock.ExpectQuery("INSERT INTO feedback").
			WithArgs(
				"Export to CSV", "Let me download reports", "general", "active", 0, 0,
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

		require.NoError(t, repo.Create(ctx, item))
		assert.Equal(t, int64(42), item.ID)
		assert.Equal(t, domain.CategoryGeneral, item.Category)
		assert.Equal(t, domain.StatusActive, item.Status)
		assert.False(t, item.CreatedAt.IsZero())
		assert.NotNil(t, item.SimilarityChecks)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("validation errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)

		var validationErr *domain.ValidationError
		err = repo.Create(ctx, &domain.FeedbackItem{Title: " ", Description: "x"})
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "title", validationErr.Field)

		err = repo.Create(ctx, &domain.FeedbackItem{Title: "x", Description: "y", Category: "praise"})
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "category", validationErr.Field)

		err = repo.Create(ctx, nil)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgFeedbackRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("updates status", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		mock.ExpectExec("UPDATE feedback SET status = \\$2, updated_at = \\$3 WHERE id = \\$1").
			WithArgs(int64(5), "planned", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdateStatus(ctx, 5, domain.StatusPlanned))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found when no row updated", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		mock.ExpectExec("UPDATE feedback SET status").
			WithArgs(int64(5), "archived", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.UpdateStatus(ctx, 5, domain.StatusArchived)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		err = repo.UpdateStatus(ctx, 5, "deleted")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgFeedbackRepository_Vote(t *testing.T) {
	ctx := context.Background()

	t.Run("upvote", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		updated := newTestFeedback(3)
		updated.Upvotes = 4

		mock.ExpectQuery("UPDATE feedback SET upvotes = upvotes \\+ \\$2, downvotes = downvotes \\+ \\$3").
			WithArgs(int64(3), 1, 0, pgxmock.AnyArg()).
			WillReturnRows(feedbackRows(updated))

		got, err := repo.Vote(ctx, 3, domain.VoteUp)
		require.NoError(t, err)
		assert.Equal(t, 4, got.Upvotes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing item", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		mock.ExpectQuery("UPDATE feedback SET upvotes").
			WithArgs(int64(3), 0, 1, pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.Vote(ctx, 3, domain.VoteDown)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid vote type", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		_, err = repo.Vote(ctx, 3, "sideways")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgFeedbackRepository_MarkDuplicate(t *testing.T) {
	ctx := context.Background()

	t.Run("marks duplicate", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		mock.ExpectExec("UPDATE feedback SET status = 'duplicate', duplicate_of = \\$2").
			WithArgs(int64(8), int64(2), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkDuplicate(ctx, 8, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing original", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		mock.ExpectExec("UPDATE feedback SET status = 'duplicate'").
			WithArgs(int64(8), int64(2), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

		err = repo.MarkDuplicate(ctx, 8, 2)
		var nf *domain.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "2", nf.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing item", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		mock.ExpectExec("UPDATE feedback SET status = 'duplicate'").
			WithArgs(int64(8), int64(2), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.MarkDuplicate(ctx, 8, 2)
		var nf *domain.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "8", nf.ID)
	})

	t.Run("self reference rejected", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		err = repo.MarkDuplicate(ctx, 8, 8)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgFeedbackRepository_Merge(t *testing.T) {
	ctx := context.Background()

	t.Run("moves votes in a transaction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		target := newTestFeedback(1)
		target.Upvotes = 6
		target.Downvotes = 2

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE feedback SET status = 'merged', duplicate_of = \\$2").
			WithArgs(int64(2), int64(1), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"upvotes", "downvotes"}).AddRow(3, 1))
		mock.ExpectQuery("UPDATE feedback SET upvotes = upvotes \\+ \\$2").
			WithArgs(int64(1), 3, 1, pgxmock.AnyArg()).
			WillReturnRows(feedbackRows(target))
		mock.ExpectCommit()

		got, err := repo.Merge(ctx, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, 6, got.Upvotes)
		assert.Equal(t, 2, got.Downvotes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing target rolls back", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE feedback SET status = 'merged'").
			WithArgs(int64(2), int64(1), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"upvotes", "downvotes"}).AddRow(0, 0))
		mock.ExpectQuery("UPDATE feedback SET upvotes").
			WithArgs(int64(1), 0, 0, pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err = repo.Merge(ctx, 2, 1)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing source", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE feedback SET status = 'merged'").
			WithArgs(int64(2), int64(1), pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err = repo.Merge(ctx, 2, 1)
		var nf *domain.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "2", nf.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self merge rejected", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgFeedbackRepository(mock)
		_, err = repo.Merge(ctx, 1, 1)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}
