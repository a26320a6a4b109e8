package httpserver

import (
	"math"
	"net/http"

	"github.com/helixir/feedback-dedup-service/internal/dedup"
	"github.com/helixir/feedback-dedup-service/internal/domain"
	"github.com/helixir/feedback-dedup-service/internal/observability"
	"github.com/helixir/feedback-dedup-service/internal/similarity"
)

// checkDuplicates handles POST /duplicates/check.
// It runs a duplicate check without storing anything except the comparison log.
func (s *Server) checkDuplicates(w http.ResponseWriter, r *http.Request) {
	var req checkDuplicatesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID, ip := observability.SubmitterFromContext(r.Context())
	outcome, err := s.checker.Check(r.Context(), dedup.Submission{
		Title:       req.Title,
		Description: req.Description,
		Category:    domain.Category(req.Category),
		IP:          ip,
		UserID:      userID,
		ExcludeID:   req.ExcludeID,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("duplicate check failed")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outcomeToResponse(outcome))
}

// scoreSimilarity handles POST /similarity/score.
// It scores two texts with one algorithm and returns a value in [0, 100].
func (s *Server) scoreSimilarity(w http.ResponseWriter, r *http.Request) {
	var req scoreSimilarityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	algorithm := similarity.AlgorithmMulti
	if req.Algorithm != "" {
		parsed, err := similarity.ParseAlgorithm(req.Algorithm)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		algorithm = parsed
	}

	score := similarity.Score(req.Text1, req.Text2, algorithm, req.Weights)
	writeJSON(w, http.StatusOK, scoreSimilarityResponse{
		Score:     math.Round(score*100) / 100,
		Algorithm: algorithm,
	})
}

// detectionMetrics handles GET /metrics/duplicates?from=&to=.
func (s *Server) detectionMetrics(w http.ResponseWriter, r *http.Request) {
	from, ok := parseTimeParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := parseTimeParam(w, r, "to")
	if !ok {
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	metrics, err := s.feedback.Metrics(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}
