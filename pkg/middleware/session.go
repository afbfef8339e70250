package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/storygate/pkg/auth"
	"github.com/platinummonkey/storygate/pkg/contextkeys"
	"github.com/platinummonkey/storygate/pkg/httputil"
	"github.com/platinummonkey/storygate/pkg/observability"
)

// SessionResolver resolves a bearer token to a session
type SessionResolver interface {
	Lookup(ctx context.Context, token string) (*auth.Session, error)
}

// SessionMiddleware authenticates bearer tokens. Requests without an
// Authorization header continue as guests.
type SessionMiddleware struct {
	sessions SessionResolver
	metrics  *observability.Metrics
}

// NewSessionMiddleware creates a new session middleware. metrics may be nil.
func NewSessionMiddleware(sessions SessionResolver, metrics *observability.Metrics) *SessionMiddleware {
	return &SessionMiddleware{
		sessions: sessions,
		metrics:  metrics,
	}
}

// Handler wraps an HTTP handler with session authentication
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.metrics.RecordSessionLookup("anonymous")
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			m.metrics.RecordSessionLookup("invalid")
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		ctx := r.Context()
		session, err := m.sessions.Lookup(ctx, token)
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			m.metrics.RecordSessionLookup("invalid")
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		case errors.Is(err, auth.ErrSessionNotFound):
			m.metrics.RecordSessionLookup("not_found")
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		case err != nil:
			m.metrics.RecordSessionLookup("error")
			observability.FromContext(ctx).WithError(err).Error("session lookup failed")
			httputil.WriteInternalError(w)
			return
		}

		m.metrics.RecordSessionLookup("ok")
		ctx = contextkeys.WithUserID(ctx, session.UserID)
		ctx = contextkeys.WithSessionToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
