// Package feedback implements the feedback submission workflow on top of the
// duplicate detection engine: submit with a duplicate check, submit anyway,
// mark as duplicate, merge, status changes, voting and detection metrics.
package feedback

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/feedback-dedup-service/internal/audit"
	"github.com/helixir/feedback-dedup-service/internal/dedup"
	"github.com/helixir/feedback-dedup-service/internal/domain"
	"github.com/helixir/feedback-dedup-service/internal/events"
	"github.com/helixir/feedback-dedup-service/internal/observability"
	"github.com/helixir/feedback-dedup-service/internal/policy"
	"github.com/helixir/feedback-dedup-service/internal/repository"
)

// Field limits for submissions.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// Warnings returned when a submission is held back as a duplicate.
const (
	WarningExactDuplicate  = "Exact duplicate detected"
	WarningSimilarFeedback = "Similar feedback detected"
)

// Submission outcome labels.
const (
	outcomeCreated = "created"
	outcomeWarned  = "warned"
	outcomeForced  = "forced"
)

// DuplicateChecker runs a duplicate check.
type DuplicateChecker interface {
	Check(ctx context.Context, sub dedup.Submission) (*dedup.Outcome, error)
}

// PolicyStore is the policy surface the service reads and mutates.
type PolicyStore interface {
	Snapshot() policy.Config
	CategoryConfig(category domain.Category) policy.Config
	Update(p policy.Patch) (policy.Config, error)
	Reset() policy.Config
	AdjustThresholds(falsePositiveRate, falseNegativeRate float64) policy.Config
}

// Options configure a Service.
type Options struct {
	Clock   func() time.Time
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Service coordinates feedback storage, duplicate checks and the comparison log.
type Service struct {
	repo      repository.FeedbackRepository
	checker   DuplicateChecker
	audit     audit.Store
	policies  PolicyStore
	publisher events.Publisher
	clock     func() time.Time
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewService creates a new Service. A nil publisher discards events.
func NewService(
	repo repository.FeedbackRepository,
	checker DuplicateChecker,
	auditStore audit.Store,
	policies PolicyStore,
	publisher events.Publisher,
	opts Options,
) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:      repo,
		checker:   checker,
		audit:     auditStore,
		policies:  policies,
		publisher: publisher,
		clock:     clock,
		logger:    opts.Logger.With().Str("component", "feedback_service").Logger(),
		metrics:   opts.Metrics,
	}
}

// Submitter identifies who is submitting. An empty UserID means anonymous.
type Submitter struct {
	UserID    string
	UserName  string
	IP        string
	UserAgent string
}

// SubmitRequest is a new feedback submission.
type SubmitRequest struct {
	Title       string
	Description string
	Category    domain.Category
	Submitter   Submitter
	// ForceDuplicate skips the duplicate check; LogIDs name the comparisons
	// the submitter is overriding.
	ForceDuplicate bool
	LogIDs         []uuid.UUID
}

// SubmitResult is either a created item or a duplicate warning.
type SubmitResult struct {
	Feedback        *domain.FeedbackItem `json:"feedback,omitempty"`
	Warning         string               `json:"warning,omitempty"`
	SimilarFeedback []dedup.Match        `json:"similar_feedback,omitempty"`
	LogIDs          []uuid.UUID          `json:"log_ids,omitempty"`
}

// Created reports whether the submission was stored.
func (r *SubmitResult) Created() bool {
	return r.Feedback != nil
}

// Submit stores a new feedback item unless the duplicate check flags it.
//
// When ForceDuplicate is set, the check is skipped and every given log ID is
// annotated submitted_anyway and attached to the new item.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	req, err := normalizeSubmitRequest(req)
	if err != nil {
		return nil, err
	}

	if !req.ForceDuplicate {
		outcome, err := s.checker.Check(ctx, dedup.Submission{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			IP:          req.Submitter.IP,
			UserID:      req.Submitter.UserID,
		})
		if err != nil {
			return nil, fmt.Errorf("submit feedback: %w", err)
		}

		if outcome.IsDuplicate {
			s.metrics.RecordSubmission(outcomeWarned)
			s.notifyDuplicate(ctx, req, outcome)

			warning := WarningSimilarFeedback
			if outcome.ExactMatch {
				warning = WarningExactDuplicate
			}
			return &SubmitResult{
				Warning:         warning,
				SimilarFeedback: outcome.SimilarFeedback,
				LogIDs:          outcome.LogIDs,
			}, nil
		}
	} else {
		s.annotate(ctx, req.LogIDs, domain.UserActionSubmittedAnyway)
	}

	now := s.clock().UTC()
	item := &domain.FeedbackItem{
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		Status:           domain.StatusActive,
		SubmitterInfo:    submitterInfo(req.Submitter, now),
		SimilarityChecks: make([]domain.SimilarityCheckRef, 0, len(req.LogIDs)),
	}
	if req.ForceDuplicate {
		for _, id := range req.LogIDs {
			item.SimilarityChecks = append(item.SimilarityChecks, domain.SimilarityCheckRef{
				LogID:     id.String(),
				Timestamp: now,
				Result:    false,
			})
		}
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("submit feedback: %w", err)
	}

	outcome := outcomeCreated
	if req.ForceDuplicate {
		outcome = outcomeForced
		if len(req.LogIDs) > 0 {
			s.publish(ctx, events.TypeSubmittedAnyway, strconv.FormatInt(item.ID, 10), events.SubmittedAnywayPayload{
				FeedbackID: item.ID,
				LogIDs:     req.LogIDs,
			})
		}
	}
	s.metrics.RecordSubmission(outcome)

	logger := observability.WithFeedbackContext(s.logger, item.ID)
	logger.Info().
		Str("category", string(item.Category)).
		Bool("forced", req.ForceDuplicate).
		Int("overridden_checks", len(item.SimilarityChecks)).
		Msg("feedback submitted")

	return &SubmitResult{Feedback: item}, nil
}

// Get returns one feedback item.
func (s *Service) Get(ctx context.Context, id int64) (*domain.FeedbackItem, error) {
	return s.repo.Get(ctx, id)
}

// ListOptions selects a page of feedback.
type ListOptions struct {
	// IncludeAll lists every status; otherwise only active items are returned.
	IncludeAll bool
	Category   domain.Category
	Limit      int
	Offset     int
}

// List returns a page of feedback items, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]domain.FeedbackItem, int64, error) {
	filter := repository.FeedbackFilter{
		Category: opts.Category,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	}
	if !opts.IncludeAll {
		filter.Status = []domain.Status{domain.StatusActive}
	}
	return s.repo.List(ctx, filter)
}

// ListByUser returns a page of the feedback submitted by userID.
func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.FeedbackItem, int64, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, 0, domain.NewValidationError("user_id", "user_id is required")
	}
	return s.repo.List(ctx, repository.FeedbackFilter{
		SubmitterUserID: userID,
		Limit:           limit,
		Offset:          offset,
	})
}

// UpdateStatus moves an item to a new lifecycle status.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("update feedback %d status: %w", id, err)
	}
	logger := observability.WithFeedbackContext(s.logger, id)
	logger.Info().Str("status", string(status)).Msg("feedback status updated")
	return nil
}

// Vote records one vote and returns the updated item.
func (s *Service) Vote(ctx context.Context, id int64, vote domain.VoteType) (*domain.FeedbackItem, error) {
	item, err := s.repo.Vote(ctx, id, vote)
	if err != nil {
		return nil, fmt.Errorf("vote on feedback %d: %w", id, err)
	}
	return item, nil
}

// MarkDuplicate flags id as a duplicate of originalID. When logID is set the
// comparison is annotated marked_as_duplicate.
func (s *Service) MarkDuplicate(ctx context.Context, id, originalID int64, logID *uuid.UUID) error {
	if err := s.repo.MarkDuplicate(ctx, id, originalID); err != nil {
		return fmt.Errorf("mark feedback %d as duplicate: %w", id, err)
	}

	if logID != nil {
		s.annotate(ctx, []uuid.UUID{*logID}, domain.UserActionMarkedAsDuplicate)
	}
	s.publish(ctx, events.TypeMarkedDuplicate, strconv.FormatInt(id, 10), events.MarkedDuplicatePayload{
		FeedbackID: id,
		OriginalID: originalID,
	})

	logger := observability.WithFeedbackContext(s.logger, id)
	logger.Info().Int64("original_id", originalID).Msg("feedback marked as duplicate")
	return nil
}

// Merge folds sourceID into targetID and returns the updated target. When
// logID is set the comparison is annotated merged.
func (s *Service) Merge(ctx context.Context, sourceID, targetID int64, logID *uuid.UUID) (*domain.FeedbackItem, error) {
	target, err := s.repo.Merge(ctx, sourceID, targetID)
	if err != nil {
		return nil, fmt.Errorf("merge feedback %d into %d: %w", sourceID, targetID, err)
	}

	if logID != nil {
		s.annotate(ctx, []uuid.UUID{*logID}, domain.UserActionMerged)
	}
	s.publish(ctx, events.TypeMerged, strconv.FormatInt(sourceID, 10), events.MergedPayload{
		SourceID: sourceID,
		TargetID: targetID,
	})

	logger := observability.WithFeedbackContext(s.logger, targetID)
	logger.Info().Int64("source_id", sourceID).Msg("feedback merged")
	return target, nil
}

// RecordAction annotates a comparison log entry. Unknown IDs are ignored.
func (s *Service) RecordAction(ctx context.Context, logID uuid.UUID, action domain.UserAction) error {
	if !action.IsValid() {
		return domain.NewValidationError("action", fmt.Sprintf("unknown action %q", action))
	}
	if err := s.audit.RecordUserAction(ctx, logID, action); err != nil {
		s.metrics.RecordAuditFailure("record_action")
		return fmt.Errorf("record %s on %s: %w", action, logID, err)
	}
	s.metrics.RecordUserAction(string(action))
	return nil
}

// QueryLogs returns comparison log entries matching filter.
func (s *Service) QueryLogs(ctx context.Context, filter domain.LogFilter) ([]domain.ComparisonLogEntry, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, domain.NewValidationError("to", "to must not be before from")
	}
	return s.audit.Query(ctx, filter)
}

// annotate records action on each log ID. Failures are logged, never returned:
// the feedback change they accompany has already been applied.
func (s *Service) annotate(ctx context.Context, ids []uuid.UUID, action domain.UserAction) {
	for _, id := range ids {
		if err := s.audit.RecordUserAction(ctx, id, action); err != nil {
			s.metrics.RecordAuditFailure("record_action")
			s.logger.Warn().Err(err).
				Str("log_id", id.String()).
				Str("action", string(action)).
				Msg("failed to record user action")
			continue
		}
		s.metrics.RecordUserAction(string(action))
	}
}

func (s *Service) notifyDuplicate(ctx context.Context, req SubmitRequest, outcome *dedup.Outcome) {
	if !s.policies.Snapshot().NotifyAdminsOnDuplicate {
		return
	}

	payload := events.DuplicateDetectedPayload{
		Title:      req.Title,
		Category:   string(req.Category),
		MatchedIDs: make([]int64, 0, len(outcome.SimilarFeedback)),
		ExactMatch: outcome.ExactMatch,
		LogIDs:     outcome.LogIDs,
	}
	for _, m := range outcome.SimilarFeedback {
		payload.MatchedIDs = append(payload.MatchedIDs, m.Feedback.ID)
	}
	if len(outcome.SimilarFeedback) > 0 {
		payload.TopScore = outcome.SimilarFeedback[0].SimilarityScore
	}

	aggregate := ""
	if len(payload.MatchedIDs) > 0 {
		aggregate = strconv.FormatInt(payload.MatchedIDs[0], 10)
	}
	s.publish(ctx, events.TypeDuplicateDetected, aggregate, payload)
}

// publish emits one event. Failures are logged and swallowed.
func (s *Service) publish(ctx context.Context, eventType, aggregateID string, payload interface{}) {
	event, err := events.NewEvent(eventType, aggregateID, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

func normalizeSubmitRequest(req SubmitRequest) (SubmitRequest, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	if req.Title == "" || req.Description == "" {
		return req, domain.NewValidationError("title", "title and description are required")
	}
	if utf8.RuneCountInString(req.Title) > MaxTitleLength {
		return req, domain.NewValidationError("title", fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}
	if utf8.RuneCountInString(req.Description) > MaxDescriptionLength {
		return req, domain.NewValidationError("description", fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}

	category, err := domain.ParseCategory(string(req.Category))
	if err != nil {
		return req, err
	}
	req.Category = category

	return req, nil
}

// submitterInfo records the submitter. The IP is kept only for anonymous
// submissions.
func submitterInfo(sub Submitter, now time.Time) *domain.SubmitterInfo {
	info := &domain.SubmitterInfo{
		UserID:    sub.UserID,
		UserName:  sub.UserName,
		UserAgent: sub.UserAgent,
		Timestamp: now,
	}
	if sub.UserID == "" {
		info.IP = sub.IP
	}
	return info
}
