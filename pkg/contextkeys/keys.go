// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here so that
// producers and consumers agree on the key and the stored type.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithUserID(ctx, 42)
//	userID, ok := contextkeys.GetUserID(ctx)
package contextkeys

import (
	"context"

	"github.com/platinummonkey/storygate/pkg/ability"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserIDKey contains the authenticated user's ID
	// Set by: middleware.SessionMiddleware (pkg/middleware/session.go)
	// Required by: rbac.Guard when resolving the caller's identity
	// Type: int64
	UserIDKey Key = "user_id"

	// SessionTokenKey contains the raw bearer token of the session
	// Set by: middleware.SessionMiddleware
	// Used by: logout handler
	// Type: string
	SessionTokenKey Key = "session_token"

	// AbilityKey contains the ability evaluated for the current request
	// Set by: rbac.Guard
	// Used by: handlers that render capability-dependent responses
	// Type: *ability.Ability
	AbilityKey Key = "ability"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"
)

// WithUserID adds the authenticated user ID to the context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID retrieves the authenticated user ID from context
func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

// WithSessionToken adds the session token to the context
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, SessionTokenKey, token)
}

// GetSessionToken retrieves the session token from context
func GetSessionToken(ctx context.Context) string {
	if token, ok := ctx.Value(SessionTokenKey).(string); ok {
		return token
	}
	return ""
}

// WithAbility adds the evaluated ability to the context
func WithAbility(ctx context.Context, a *ability.Ability) context.Context {
	return context.WithValue(ctx, AbilityKey, a)
}

// GetAbility retrieves the evaluated ability from context
func GetAbility(ctx context.Context) *ability.Ability {
	if a, ok := ctx.Value(AbilityKey).(*ability.Ability); ok {
		return a
	}
	return nil
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
