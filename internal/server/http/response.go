package httpserver

import (
	"github.com/google/uuid"

	"github.com/helixir/feedback-dedup-service/internal/dedup"
	"github.com/helixir/feedback-dedup-service/internal/domain"
	"github.com/helixir/feedback-dedup-service/internal/similarity"
)

// Request bodies.

type checkDuplicatesRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category,omitempty"`
	// ExcludeID skips an existing item, for checks run while editing it.
	ExcludeID *int64 `json:"exclude_id,omitempty"`
}

type scoreSimilarityRequest struct {
	Text1     string              `json:"text1"`
	Text2     string              `json:"text2"`
	Algorithm string              `json:"algorithm,omitempty"`
	Weights   *similarity.Weights `json:"weights,omitempty"`
}

type adjustPolicyRequest struct {
	FalsePositiveRate float64 `json:"false_positive_rate" validate:"gte=0,lte=100"`
	FalseNegativeRate float64 `json:"false_negative_rate" validate:"gte=0,lte=100"`
}

type userActionRequest struct {
	Action string `json:"action" validate:"required"`
}

type submitFeedbackRequest struct {
	Title          string      `json:"title" validate:"required"`
	Description    string      `json:"description" validate:"required"`
	Category       string      `json:"category,omitempty"`
	ForceDuplicate bool        `json:"force_duplicate,omitempty"`
	LogIDs         []uuid.UUID `json:"log_ids,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type voteRequest struct {
	Vote string `json:"vote" validate:"required"`
}

type markDuplicateRequest struct {
	OriginalID int64      `json:"original_id" validate:"required,gt=0"`
	LogID      *uuid.UUID `json:"log_id,omitempty"`
}

type mergeRequest struct {
	TargetID int64      `json:"target_id" validate:"required,gt=0"`
	LogID    *uuid.UUID `json:"log_id,omitempty"`
}

// Response bodies.

type checkDuplicatesResponse struct {
	IsDuplicate     bool          `json:"is_duplicate"`
	ExactMatch      bool          `json:"exact_match"`
	SimilarFeedback []dedup.Match `json:"similar_feedback"`
	LogIDs          []uuid.UUID   `json:"log_ids"`
	Threshold       int           `json:"threshold"`
	Compared        int           `json:"compared"`
}

type scoreSimilarityResponse struct {
	Score     float64              `json:"score"`
	Algorithm similarity.Algorithm `json:"algorithm"`
}

type submitFeedbackResponse struct {
	Created         bool                 `json:"created"`
	Feedback        *domain.FeedbackItem `json:"feedback,omitempty"`
	Warning         string               `json:"warning,omitempty"`
	SimilarFeedback []dedup.Match        `json:"similar_feedback,omitempty"`
	LogIDs          []uuid.UUID          `json:"log_ids,omitempty"`
}

type listFeedbackResponse struct {
	Feedback      []domain.FeedbackItem `json:"feedback"`
	NextPageToken string                `json:"next_page_token,omitempty"`
	TotalCount    int64                 `json:"total_count"`
}

type listComparisonLogsResponse struct {
	Entries    []domain.ComparisonLogEntry `json:"entries"`
	TotalCount int                         `json:"total_count"`
}

func outcomeToResponse(o *dedup.Outcome) checkDuplicatesResponse {
	resp := checkDuplicatesResponse{
		IsDuplicate:     o.IsDuplicate,
		ExactMatch:      o.ExactMatch,
		SimilarFeedback: o.SimilarFeedback,
		LogIDs:          o.LogIDs,
		Threshold:       o.Threshold,
		Compared:        o.Compared,
	}
	if resp.SimilarFeedback == nil {
		resp.SimilarFeedback = []dedup.Match{}
	}
	if resp.LogIDs == nil {
		resp.LogIDs = []uuid.UUID{}
	}
	return resp
}
