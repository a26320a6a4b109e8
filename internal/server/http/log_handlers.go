package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/feedback-dedup-service/internal/domain"
)

// Values accepted by the decision query parameter.
const (
	decisionDuplicate    = "duplicate"
	decisionNotDuplicate = "not_duplicate"
)

// listComparisonLogs handles GET /comparison-logs?feedback_id=&from=&to=&decision=&limit=.
// Entries are returned oldest first.
func (s *Server) listComparisonLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter domain.LogFilter

	if raw := q.Get("feedback_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "feedback_id must be an integer")
			return
		}
		filter.FeedbackID = &id
	}

	var ok bool
	if filter.From, ok = parseTimeParam(w, r, "from"); !ok {
		return
	}
	if filter.To, ok = parseTimeParam(w, r, "to"); !ok {
		return
	}

	switch q.Get("decision") {
	case "":
	case decisionDuplicate:
		v := true
		filter.IsDuplicate = &v
	case decisionNotDuplicate:
		v := false
		filter.IsDuplicate = &v
	default:
		writeError(w, http.StatusBadRequest, "decision must be duplicate or not_duplicate")
		return
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := s.feedback.QueryLogs(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.ComparisonLogEntry{}
	}
	writeJSON(w, http.StatusOK, listComparisonLogsResponse{
		Entries:    entries,
		TotalCount: len(entries),
	})
}

// recordUserAction handles POST /comparison-logs/{logID}/actions.
// Unknown log ids are accepted and ignored.
func (s *Server) recordUserAction(w http.ResponseWriter, r *http.Request) {
	logID, ok := parseUUID(w, chi.URLParam(r, "logID"), "log_id")
	if !ok {
		return
	}

	var req userActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.feedback.RecordAction(r.Context(), logID, domain.UserAction(req.Action)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
