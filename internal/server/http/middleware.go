package httpserver

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/helixir/feedback-dedup-service/internal/observability"
)

// Headers set by the upstream identity proxy. Both are absent for anonymous submitters.
const (
	headerUserID   = "X-User-ID"
	headerUserName = "X-User-Name"
)

type contextKey string

const ctxKeyUserName contextKey = "user_name"

// correlationIDMiddleware ensures every request has a correlation ID.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = middleware.GetReqID(r.Context())
		}
		if correlationID == "" {
			buf := make([]byte, 8)
			if _, err := rand.Read(buf); err != nil {
				// Fallback to timestamp-based ID if crypto/rand fails.
				correlationID = fmt.Sprintf("%x", time.Now().UnixNano())
			} else {
				correlationID = fmt.Sprintf("%x", buf)
			}
		}

		w.Header().Set("X-Correlation-ID", correlationID)
		ctx := observability.WithRequestID(r.Context(), correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// submitterMiddleware records who is calling: the user id forwarded by the
// identity proxy and the client IP resolved by middleware.RealIP.
func submitterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithSubmitter(r.Context(), r.Header.Get(headerUserID), clientIP(r.RemoteAddr))
		if name := r.Header.Get(headerUserName); name != "" {
			ctx = context.WithValue(ctx, ctxKeyUserName, name)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// jsonContentTypeMiddleware sets Content-Type: application/json for all responses.
func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per API request with the request-scoped fields.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		rc := observability.RequestContextFromContext(r.Context())
		logger := observability.WithSubmitterContext(s.logger, rc.UserID, rc.ClientIP)
		logger.Debug().
			Str("request_id", rc.RequestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

// userNameFromContext returns the display name forwarded by the identity proxy.
func userNameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserName).(string); ok {
		return v
	}
	return ""
}

// clientIP strips the port from a RemoteAddr. middleware.RealIP leaves a bare IP.
func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
