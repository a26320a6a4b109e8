package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
	clientIPKey  contextKey = "client_ip"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithSubmitter adds the authenticated user ID and client IP to the context.
// The user ID is supplied by the upstream identity provider and may be empty.
func WithSubmitter(ctx context.Context, userID, clientIP string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, clientIPKey, clientIP)
	return ctx
}

// SubmitterFromContext retrieves the user ID and client IP from context.
// Returns empty strings if not present.
func SubmitterFromContext(ctx context.Context) (userID, clientIP string) {
	return stringValue(ctx, userIDKey), stringValue(ctx, clientIPKey)
}

// RequestContext bundles the request-scoped observability fields.
type RequestContext struct {
	RequestID string
	UserID    string
	ClientIP  string
}

// WithRequestContext stores every field of rc in the context.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	ctx = WithRequestID(ctx, rc.RequestID)
	return WithSubmitter(ctx, rc.UserID, rc.ClientIP)
}

// RequestContextFromContext retrieves all request-scoped fields from context.
func RequestContextFromContext(ctx context.Context) RequestContext {
	userID, clientIP := SubmitterFromContext(ctx)
	return RequestContext{
		RequestID: RequestIDFromContext(ctx),
		UserID:    userID,
		ClientIP:  clientIP,
	}
}

func stringValue(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
