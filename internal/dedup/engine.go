// Package dedup decides whether a new feedback submission duplicates an
// existing active feedback item.
//
// A check is one linear pass over the active pool. Every compared candidate
// produces exactly one comparison log entry; candidates skipped as self or
// by the cross-category gate produce none.
package dedup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/feedback-dedup-service/internal/domain"
	"github.com/helixir/feedback-dedup-service/internal/observability"
	"github.com/helixir/feedback-dedup-service/internal/policy"
	"github.com/helixir/feedback-dedup-service/internal/similarity"
)

// DefaultWorkers bounds concurrent candidate scoring when Options.Workers is unset.
const DefaultWorkers = 4

// ActiveFeedbackSource supplies the candidate pool.
type ActiveFeedbackSource interface {
	ListActive(ctx context.Context) ([]domain.FeedbackItem, error)
}

// PolicySource resolves the effective policy for a category.
type PolicySource interface {
	CategoryConfig(category domain.Category) policy.Config
}

// ComparisonLog receives one entry per compared candidate.
type ComparisonLog interface {
	Append(ctx context.Context, entry *domain.ComparisonLogEntry) error
}

// Submission is the new feedback being checked.
type Submission struct {
	Title       string
	Description string
	Category    domain.Category
	IP          string
	UserID      string
	// ExcludeID skips the candidate with this id, for checks run while editing an existing item.
	ExcludeID *int64
}

// MatchDetails holds the per-field scores of a match.
type MatchDetails struct {
	TitleSimilarity       int `json:"title_similarity"`
	DescriptionSimilarity int `json:"description_similarity"`
}

// Match is a candidate surfaced by a duplicate check.
type Match struct {
	Feedback        domain.FeedbackItem `json:"feedback"`
	SimilarityScore int                 `json:"similarity_score"`
	Details         MatchDetails        `json:"similarity_details"`
	Reason          string              `json:"reason"`
	LogID           uuid.UUID           `json:"log_id"`
}

// Outcome is the result of a duplicate check.
type Outcome struct {
	IsDuplicate     bool        `json:"is_duplicate"`
	SimilarFeedback []Match     `json:"similar_feedback"`
	ExactMatch      bool        `json:"exact_match"`
	LogIDs          []uuid.UUID `json:"log_ids"`
	// Threshold is the category-resolved threshold the check ran under.
	Threshold int `json:"threshold"`
	// Compared is the number of candidates that were scored and logged.
	Compared int `json:"compared"`
}

// Options configure an Engine.
type Options struct {
	Workers int
	Clock   func() time.Time
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Engine runs duplicate checks.
type Engine struct {
	source   ActiveFeedbackSource
	policies PolicySource
	log      ComparisonLog
	workers  int
	clock    func() time.Time
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewEngine creates a new Engine with the given collaborators.
func NewEngine(source ActiveFeedbackSource, policies PolicySource, log ComparisonLog, opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		source:   source,
		policies: policies,
		log:      log,
		workers:  workers,
		clock:    clock,
		logger:   opts.Logger.With().Str("component", "dedup_engine").Logger(),
		metrics:  opts.Metrics,
	}
}

type evalKind int

const (
	evalSkip evalKind = iota
	evalExact
	evalCompared
)

// evaluation is the pure, per-candidate part of a check.
type evaluation struct {
	kind      evalKind
	result    similarity.Result
	proximity *domain.TimeProximity
	ipMatch   bool
	userMatch bool
	decision  domain.FinalDecision
}

// Check runs a duplicate check for sub against the active pool.
//
// The method:
//  1. Rejects submissions with an empty title or description.
//  2. Fetches the active pool; a fetch failure aborts the check.
//  3. Resolves the category policy once and uses it for the whole check.
//  4. Evaluates every candidate, scoring concurrently.
//  5. In pool order, logs each compared candidate and accumulates matches
//     and near misses.
//  6. Sorts matches by score, descending, and keeps only those at or above
//     the threshold.
func (e *Engine) Check(ctx context.Context, sub Submission) (*Outcome, error) {
	start := time.Now()

	sub, err := normalizeSubmission(sub)
	if err != nil {
		return nil, err
	}

	pool, err := e.source.ListActive(ctx)
	if err != nil {
		e.metrics.RecordDuplicateCheck(observability.CheckResultError, time.Since(start), 0)
		return nil, fmt.Errorf("checking duplicates: %w", domain.NewFetchError("active feedback store", err))
	}

	cfg := e.policies.CategoryConfig(sub.Category)
	now := e.clock()
	logger := observability.WithCheckContext(e.logger, observability.RequestIDFromContext(ctx), string(sub.Category))

	evals, err := e.evaluateAll(ctx, sub, pool, cfg, now)
	if err != nil {
		e.metrics.RecordDuplicateCheck(observability.CheckResultError, time.Since(start), len(pool))
		return nil, err
	}

	outcome := &Outcome{
		SimilarFeedback: []Match{},
		LogIDs:          []uuid.UUID{},
		Threshold:       cfg.SimilarityThreshold,
	}
	var candidates []Match

	for i := range pool {
		ev := &evals[i]
		if ev.kind == evalSkip {
			continue
		}
		cand := &pool[i]

		entry := buildEntry(sub, cand, cfg, ev, now)
		outcome.Compared++
		if err := e.log.Append(ctx, entry); err != nil {
			e.metrics.RecordAuditFailure("append")
			logger.Warn().Err(err).
				Str("log_id", entry.ID.String()).
				Int64("feedback_id", cand.ID).
				Msg("failed to persist comparison log")
			entry.ID = uuid.Nil
		} else {
			outcome.LogIDs = append(outcome.LogIDs, entry.ID)
		}

		e.metrics.RecordComparison(ev.decision.IsDuplicate, ev.result.OverallSimilarity)
		if cfg.DetailedLogging {
			logger.Debug().
				Str("log_id", entry.ID.String()).
				Int64("feedback_id", cand.ID).
				Int("similarity", ev.result.OverallSimilarity).
				Bool("is_duplicate", ev.decision.IsDuplicate).
				Str("reason", ev.decision.Reason).
				Msg("duplicate check comparison")
		}

		if ev.kind == evalExact {
			outcome.ExactMatch = true
		}

		if ev.decision.IsDuplicate || float64(ev.result.OverallSimilarity) > cfg.NearMissCutoff() {
			candidates = append(candidates, Match{
				Feedback:        *cand,
				SimilarityScore: ev.result.OverallSimilarity,
				Details: MatchDetails{
					TitleSimilarity:       ev.result.TitleSimilarity,
					DescriptionSimilarity: ev.result.DescriptionSimilarity,
				},
				Reason: ev.decision.Reason,
				LogID:  entry.ID,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SimilarityScore > candidates[j].SimilarityScore
	})

	outcome.IsDuplicate = len(candidates) > 0 && candidates[0].SimilarityScore >= cfg.SimilarityThreshold
	for _, m := range candidates {
		if m.SimilarityScore >= cfg.SimilarityThreshold {
			outcome.SimilarFeedback = append(outcome.SimilarFeedback, m)
		}
	}

	result := observability.CheckResultUnique
	if outcome.IsDuplicate {
		result = observability.CheckResultDuplicate
	}
	e.metrics.RecordDuplicateCheck(result, time.Since(start), len(pool))

	logger.Info().
		Int("pool_size", len(pool)).
		Int("compared", outcome.Compared).
		Int("near_misses", len(candidates)-len(outcome.SimilarFeedback)).
		Int("matches", len(outcome.SimilarFeedback)).
		Int("threshold", cfg.SimilarityThreshold).
		Bool("is_duplicate", outcome.IsDuplicate).
		Bool("exact_match", outcome.ExactMatch).
		Dur("duration", time.Since(start)).
		Msg("duplicate check completed")

	return outcome, nil
}

// evaluateAll scores the pool with bounded concurrency. Results are index-aligned with pool.
func (e *Engine) evaluateAll(ctx context.Context, sub Submission, pool []domain.FeedbackItem, cfg policy.Config, now time.Time) ([]evaluation, error) {
	evals := make([]evaluation, len(pool))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range pool {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			evals[i] = evaluate(sub, &pool[i], cfg, now)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluating candidates: %w", err)
	}
	return evals, nil
}

// evaluate applies the per-candidate decision rules.
func evaluate(sub Submission, cand *domain.FeedbackItem, cfg policy.Config, now time.Time) evaluation {
	if sub.ExcludeID != nil && cand.ID == *sub.ExcludeID {
		return evaluation{kind: evalSkip}
	}
	if cand.Title == sub.Title && cand.Description == sub.Description && cand.Category == sub.Category {
		return evaluation{kind: evalSkip}
	}

	if strings.EqualFold(cand.Title, sub.Title) && strings.EqualFold(cand.Description, sub.Description) {
		return evaluation{
			kind: evalExact,
			result: similarity.Result{
				TitleSimilarity:       100,
				DescriptionSimilarity: 100,
				OverallSimilarity:     100,
				IsSimilar:             true,
			},
			decision: domain.FinalDecision{IsDuplicate: true, Reason: domain.ReasonExactMatch},
		}
	}

	if !cfg.EnableCrossCategoryDetection && cand.Category != sub.Category {
		return evaluation{kind: evalSkip}
	}

	ev := evaluation{
		kind:   evalCompared,
		result: similarity.CompareFeedback(cand.Title, cand.Description, sub.Title, sub.Description, cfg.CompareOptions()),
	}

	within := false
	if cand.SubmitterInfo.HasTimestamp() {
		diff := now.Sub(cand.SubmitterInfo.Timestamp)
		if diff < 0 {
			diff = -diff
		}
		within = diff < cfg.TimeThreshold
		ev.proximity = &domain.TimeProximity{
			TimeDifference:    diff,
			Threshold:         cfg.TimeThreshold,
			IsWithinThreshold: within,
		}
	}

	if info := cand.SubmitterInfo; info != nil {
		ev.userMatch = sub.UserID != "" && info.UserID == sub.UserID
		ev.ipMatch = sub.UserID == "" && cfg.CheckIPAddress && sub.IP != "" && info.IP == sub.IP
	}

	ev.decision = decide(sub, cand, ev, within)
	return ev
}

// decide composes the final verdict. The first rule that flags a duplicate
// supplies the reason.
func decide(sub Submission, cand *domain.FeedbackItem, ev evaluation, withinTime bool) domain.FinalDecision {
	d := domain.FinalDecision{
		IsDuplicate: ev.result.IsSimilar,
		Reason:      fmt.Sprintf("Content similarity: %d%%", ev.result.OverallSimilarity),
	}

	term := similarity.SharedFeatureTerm(cand.CombinedText(), strings.ToLower(sub.Title+" "+sub.Description))
	if term != "" {
		if !d.IsDuplicate {
			d = domain.FinalDecision{IsDuplicate: true, Reason: fmt.Sprintf(`Feature match detected: "%s"`, term)}
		}
		// A feature match suppresses the containment and shared-term fallbacks.
	} else if !d.IsDuplicate {
		switch {
		case similarity.ContainsSubstring(cand.Title, sub.Title) || similarity.ContainsSubstring(cand.Description, sub.Description):
			d = domain.FinalDecision{IsDuplicate: true, Reason: domain.ReasonContainment}
		case similarity.ShareKeyTerms(cand.Title, sub.Title, 1) && similarity.ShareKeyTerms(cand.Description, sub.Description, 1):
			d = domain.FinalDecision{IsDuplicate: true, Reason: domain.ReasonSharedKeyTerms}
		}
	}

	if !d.IsDuplicate && withinTime && (ev.userMatch || ev.ipMatch) {
		d = domain.FinalDecision{IsDuplicate: true, Reason: domain.ReasonSameSubmitter}
	}

	return d
}

func buildEntry(sub Submission, cand *domain.FeedbackItem, cfg policy.Config, ev *evaluation, now time.Time) *domain.ComparisonLogEntry {
	var submitter *domain.SubmitterInfo
	if sub.IP != "" || sub.UserID != "" {
		submitter = &domain.SubmitterInfo{IP: sub.IP, UserID: sub.UserID}
	}

	entry := &domain.ComparisonLogEntry{
		ID:        uuid.New(),
		Timestamp: now,
		NewFeedback: domain.ComparedText{
			Title:         sub.Title,
			Description:   sub.Description,
			SubmitterInfo: submitter,
		},
		ComparedWith: domain.ComparedFeedback{
			ID:            cand.ID,
			Title:         cand.Title,
			Description:   cand.Description,
			SubmitterInfo: cand.SubmitterInfo,
		},
		SimilarityResults: domain.SimilarityResults{
			Algorithm:             string(cfg.Algorithm),
			TitleSimilarity:       ev.result.TitleSimilarity,
			DescriptionSimilarity: ev.result.DescriptionSimilarity,
			OverallSimilarity:     ev.result.OverallSimilarity,
			Threshold:             cfg.SimilarityThreshold,
			IsSimilar:             ev.result.IsSimilar,
		},
		FinalDecision: ev.decision,
	}

	if ev.kind == evalCompared {
		entry.TimeProximity = ev.proximity
		entry.IPMatch = &domain.MatchFlag{IsMatch: ev.ipMatch}
		entry.UserMatch = &domain.MatchFlag{IsMatch: ev.userMatch}
	}

	return entry
}

// normalizeSubmission rejects empty text and resolves the category.
func normalizeSubmission(sub Submission) (Submission, error) {
	if strings.TrimSpace(sub.Title) == "" {
		return sub, domain.NewValidationError("title", "title is required")
	}
	if strings.TrimSpace(sub.Description) == "" {
		return sub, domain.NewValidationError("description", "description is required")
	}

	category, err := domain.ParseCategory(string(sub.Category))
	if err != nil {
		return sub, err
	}
	sub.Category = category

	return sub, nil
}
