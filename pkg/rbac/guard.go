package rbac

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/storygate/pkg/ability"
	"github.com/platinummonkey/storygate/pkg/contextkeys"
	"github.com/platinummonkey/storygate/pkg/httputil"
	"github.com/platinummonkey/storygate/pkg/observability"
)

// Guard builds the caller's ability once per request and enforces
// per-route requirements against it
type Guard struct {
	identities IdentityProvider
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewGuard creates a guard. metrics may be nil.
func NewGuard(identities IdentityProvider, logger *observability.Logger, metrics *observability.Metrics) *Guard {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Guard{
		identities: identities,
		logger:     logger,
		metrics:    metrics,
	}
}

// Handler resolves the session user's identity, evaluates it and stores the
// resulting ability in the request context. Requests without a session user
// get the guest ability.
func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var identity *ability.Identity
		if userID, ok := contextkeys.GetUserID(ctx); ok {
			id, err := g.identities.Identity(ctx, userID)
			switch {
			case errors.Is(err, ErrUserNotFound):
				httputil.WriteUnauthorized(w, "session user no longer exists")
				return
			case errors.Is(err, ErrUserInactive):
				httputil.WriteForbidden(w, "account is disabled")
				return
			case err != nil:
				observability.FromContext(ctx).WithError(err).WithField("user_id", userID).Error("failed to load identity")
				httputil.WriteInternalError(w)
				return
			}
			identity = id
		}

		a := ability.Build(identity)
		g.metrics.RecordAbilityBuild(a.IsAnonymous())

		next.ServeHTTP(w, r.WithContext(contextkeys.WithAbility(ctx, a)))
	})
}

// Require returns middleware that rejects callers who cannot perform action
// on subject. Guests are answered with 401, authenticated callers with 403.
func (g *Guard) Require(action ability.Action, subject ability.Subject) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := AbilityFromContext(r.Context())
			allowed := a.Can(action, subject)
			g.metrics.RecordAuthzDecision(string(action), string(subject), allowed)

			if !allowed {
				if a.IsAnonymous() {
					httputil.WriteUnauthorized(w, "authentication required")
					return
				}
				g.logger.WithFields(map[string]interface{}{
					"action":  action,
					"subject": subject,
				}).Debug("permission denied")
				httputil.WriteForbidden(w, "permission denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireFunc is Require for a single handler function
func (g *Guard) RequireFunc(action ability.Action, subject ability.Subject, h http.HandlerFunc) http.Handler {
	return g.Require(action, subject)(h)
}

// AbilityFromContext returns the ability stored by Guard.Handler, or nil
// when the guard did not run. A nil ability permits nothing.
func AbilityFromContext(ctx context.Context) *ability.Ability {
	return contextkeys.GetAbility(ctx)
}
