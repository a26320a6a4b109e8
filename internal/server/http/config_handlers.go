package httpserver

import (
	"net/http"

	"github.com/helixir/feedback-dedup-service/internal/policy"
)

// getPolicy handles GET /config[?category=].
// With a category it returns the effective policy after that category's overrides.
func (s *Server) getPolicy(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.feedback.Policy(r.URL.Query().Get("category"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// updatePolicy handles PATCH /config.
func (s *Server) updatePolicy(w http.ResponseWriter, r *http.Request) {
	var patch policy.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}

	cfg, err := s.feedback.UpdatePolicy(r.Context(), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// resetPolicy handles POST /config/reset.
func (s *Server) resetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feedback.ResetPolicy(r.Context()))
}

// adjustPolicy handles POST /config/adjust.
// Rates are percentages in [0, 100].
func (s *Server) adjustPolicy(w http.ResponseWriter, r *http.Request) {
	var req adjustPolicyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cfg, err := s.feedback.AdjustPolicy(r.Context(), req.FalsePositiveRate, req.FalseNegativeRate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
