package auth

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/storygate/pkg/contextkeys"
	"github.com/platinummonkey/storygate/pkg/httputil"
	"github.com/platinummonkey/storygate/pkg/observability"
)

// Handlers provides HTTP handlers for the caller's own session
type Handlers struct {
	sessions *SessionStore
}

// NewHandlers creates session handlers
func NewHandlers(sessions *SessionStore) *Handlers {
	return &Handlers{sessions: sessions}
}

// RegisterRoutes registers session routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/session", h.Logout).Methods("DELETE")
}

// Logout revokes the bearer token the request was made with
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := contextkeys.GetSessionToken(ctx)
	if token == "" {
		httputil.WriteUnauthorized(w, "no active session")
		return
	}

	err := h.sessions.Revoke(ctx, token)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		httputil.WriteUnauthorized(w, "no active session")
		return
	case err != nil:
		observability.FromContext(ctx).WithError(err).Error("failed to revoke session")
		httputil.WriteInternalError(w)
		return
	}

	observability.FromContext(ctx).WithField("token_prefix", h.sessions.TokenPrefix(token)).Info("session revoked")
	httputil.WriteNoContent(w)
}
