package httpserver

import (
	"net/http"
	"strconv"

	"github.com/helixir/feedback-dedup-service/internal/domain"
	"github.com/helixir/feedback-dedup-service/internal/feedback"
	"github.com/helixir/feedback-dedup-service/internal/observability"
)

// submitFeedback handles POST /feedback.
// A stored item returns 201. A duplicate warning returns 409 with the similar
// items and the log ids the client passes back when it resubmits with
// force_duplicate.
func (s *Server) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var req submitFeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	userID, ip := observability.SubmitterFromContext(ctx)
	result, err := s.feedback.Submit(ctx, feedback.SubmitRequest{
		Title:       req.Title,
		Description: req.Description,
		Category:    domain.Category(req.Category),
		Submitter: feedback.Submitter{
			UserID:    userID,
			UserName:  userNameFromContext(ctx),
			IP:        ip,
			UserAgent: r.UserAgent(),
		},
		ForceDuplicate: req.ForceDuplicate,
		LogIDs:         req.LogIDs,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if !result.Created() {
		writeJSON(w, http.StatusConflict, submitFeedbackResponse{
			Warning:         result.Warning,
			SimilarFeedback: result.SimilarFeedback,
			LogIDs:          result.LogIDs,
		})
		return
	}
	writeJSON(w, http.StatusCreated, submitFeedbackResponse{
		Created:  true,
		Feedback: result.Feedback,
	})
}

// listFeedback handles GET /feedback.
// Query parameters: all=true lists every status, category filters,
// user_id lists one submitter's items, page_size/page_token paginate.
func (s *Server) listFeedback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := parsePaginationParams(r)

	var (
		items []domain.FeedbackItem
		total int64
		err   error
	)
	if userID := q.Get("user_id"); userID != "" {
		items, total, err = s.feedback.ListByUser(r.Context(), userID, limit, offset)
	} else {
		opts := feedback.ListOptions{Limit: limit, Offset: offset}
		if raw := q.Get("all"); raw != "" {
			all, parseErr := strconv.ParseBool(raw)
			if parseErr != nil {
				writeError(w, http.StatusBadRequest, "all must be a boolean")
				return
			}
			opts.IncludeAll = all
		}
		if raw := q.Get("category"); raw != "" {
			category, parseErr := domain.ParseCategory(raw)
			if parseErr != nil {
				writeDomainError(w, parseErr)
				return
			}
			opts.Category = category
		}
		items, total, err = s.feedback.List(r.Context(), opts)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if items == nil {
		items = []domain.FeedbackItem{}
	}
	writeJSON(w, http.StatusOK, listFeedbackResponse{
		Feedback:      items,
		NextPageToken: encodeHTTPPageToken(offset, limit, int(total)),
		TotalCount:    total,
	})
}

// getFeedback handles GET /feedback/{feedbackID}.
func (s *Server) getFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFeedbackID(w, r)
	if !ok {
		return
	}

	item, err := s.feedback.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// updateStatus handles PATCH /feedback/{feedbackID}/status.
func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFeedbackID(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.feedback.UpdateStatus(r.Context(), id, domain.Status(req.Status)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// vote handles POST /feedback/{feedbackID}/vote.
func (s *Server) vote(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFeedbackID(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := s.feedback.Vote(r.Context(), id, domain.VoteType(req.Vote))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// markDuplicate handles POST /feedback/{feedbackID}/mark-duplicate.
func (s *Server) markDuplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFeedbackID(w, r)
	if !ok {
		return
	}
	var req markDuplicateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.feedback.MarkDuplicate(r.Context(), id, req.OriginalID, req.LogID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// merge handles POST /feedback/{feedbackID}/merge and returns the merged target.
func (s *Server) merge(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFeedbackID(w, r)
	if !ok {
		return
	}
	var req mergeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	target, err := s.feedback.Merge(r.Context(), id, req.TargetID, req.LogID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}
