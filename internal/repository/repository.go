// Package repository provides data access for feedback items, the
// active-item store that duplicate checks read from.
//
// # Implementations
//
//   - PgFeedbackRepository: PostgreSQL via pgx, for production
//   - MemoryFeedbackRepository: mutex-protected map, for local runs and tests
//
// Both are safe for concurrent use.
//
// # Error Handling
//
// Methods return errors from the domain package:
//
//   - domain.ErrNotFound: the feedback item does not exist
//   - domain.ErrInvalidInput: invalid parameters provided
//
// Database errors are wrapped with fmt.Errorf and %w.
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Merge opens its own transaction when given a pool.
//
//	db, _ := database.New(ctx, cfg, logger)
//	feedbackRepo := repository.NewPgFeedbackRepository(db)
package repository

import (
	"github.com/helixir/feedback-dedup-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// Pass a pgx.Tx instead of the pool to run repository calls inside a
// caller-managed transaction.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

// nullString returns a pointer to the string if non-empty, otherwise nil.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
