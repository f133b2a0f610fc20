// Package contextkeys provides centralized context key definitions.
// All context keys used across the application are defined here to
// prevent typos and make key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains the authenticated principal id (string).
	// Set by: middleware.PrincipalMiddleware
	PrincipalKey Key = "principal_id"

	// SessionKey contains the session id (string).
	// Set by: middleware.PrincipalMiddleware
	SessionKey Key = "session_id"

	// TenantKey contains the resolved tenant.Context value.
	// Set by: middleware.TenantMiddleware
	TenantKey Key = "tenant_context"

	// RequestIDKey contains the request ID string (UUID).
	// Set by: middleware.RequestIDMiddleware
	RequestIDKey Key = "request_id"
)

// WithPrincipal stores the principal id on the context.
func WithPrincipal(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, PrincipalKey, principalID)
}

// Principal retrieves the principal id, or "" when unauthenticated.
func Principal(ctx context.Context) string {
	if v, ok := ctx.Value(PrincipalKey).(string); ok {
		return v
	}
	return ""
}

// WithSession stores the session id on the context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionKey, sessionID)
}

// Session retrieves the session id, or "".
func Session(ctx context.Context) string {
	if v, ok := ctx.Value(SessionKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestID stores the request id on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request id, or "".
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
