package login

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/storygate/pkg/auth"
	"github.com/platinummonkey/storygate/pkg/httputil"
	"github.com/platinummonkey/storygate/pkg/observability"
	"github.com/platinummonkey/storygate/pkg/rbac"
)

const (
	stateCookie = "storygate_oidc_state"
	stateTTL    = 10 * time.Minute
)

// UserStore is the part of rbac.Store that login needs
type UserStore interface {
	Credentials(ctx context.Context, email string) (*rbac.User, string, error)
	GetUserByEmail(ctx context.Context, email string) (*rbac.User, error)
}

// SessionCreator issues session tokens
type SessionCreator interface {
	Create(ctx context.Context, userID int64, ttl time.Duration) (string, *auth.Session, error)
}

// Handlers exchange credentials for session tokens
type Handlers struct {
	users    UserStore
	sessions SessionCreator
	ttl      time.Duration
	oidc     IdentityExchanger
	metrics  *observability.Metrics
}

// NewHandlers creates login handlers. oidc may be nil to disable single
// sign-on; metrics may be nil.
func NewHandlers(users UserStore, sessions SessionCreator, ttl time.Duration, oidc IdentityExchanger, metrics *observability.Metrics) *Handlers {
	return &Handlers{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		oidc:     oidc,
		metrics:  metrics,
	}
}

// RegisterRoutes registers login routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/session", h.Login).Methods("POST")
	if h.oidc != nil {
		router.HandleFunc("/api/session/oidc", h.StartOIDC).Methods("GET")
		router.HandleFunc("/api/session/oidc/callback", h.OIDCCallback).Methods("GET")
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login verifies an email and password and issues a session
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}

	ctx := r.Context()
	user, hash, err := h.users.Credentials(ctx, req.Email)
	if err != nil && !errors.Is(err, rbac.ErrUserNotFound) {
		h.metrics.RecordLogin("password", "error")
		observability.FromContext(ctx).WithError(err).Error("failed to load credentials")
		httputil.WriteInternalError(w)
		return
	}

	if !CheckPassword(hash, req.Password) || user == nil {
		h.metrics.RecordLogin("password", "invalid")
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}

	h.issue(w, r, user, "password")
}

// StartOIDC redirects to the identity provider
func (h *Handlers) StartOIDC(w http.ResponseWriter, r *http.Request) {
	state, err := newState()
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to generate state")
		httputil.WriteInternalError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/session/oidc",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oidc.AuthCodeURL(state), http.StatusFound)
}

// OIDCCallback completes the code flow and issues a session for the user
// whose email the provider vouched for. Users are never created here.
func (h *Handlers) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" ||
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(query.Get("state"))) != 1 {
		h.metrics.RecordLogin("oidc", "invalid")
		httputil.WriteBadRequest(w, "invalid state parameter")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/api/session/oidc", MaxAge: -1})

	if providerErr := query.Get("error"); providerErr != "" {
		h.metrics.RecordLogin("oidc", "invalid")
		httputil.WriteUnauthorized(w, "identity provider error: "+providerErr)
		return
	}

	claims, err := h.oidc.Exchange(ctx, query.Get("code"))
	if err != nil {
		h.metrics.RecordLogin("oidc", "invalid")
		observability.FromContext(ctx).WithError(err).Warn("OIDC exchange failed")
		httputil.WriteUnauthorized(w, "identity could not be verified")
		return
	}
	if claims.Email == "" || (claims.EmailVerified != nil && !*claims.EmailVerified) {
		h.metrics.RecordLogin("oidc", "invalid")
		httputil.WriteForbidden(w, "identity has no verified email")
		return
	}

	user, err := h.users.GetUserByEmail(ctx, claims.Email)
	switch {
	case errors.Is(err, rbac.ErrUserNotFound):
		h.metrics.RecordLogin("oidc", "unknown_user")
		httputil.WriteForbidden(w, "no account for this identity")
		return
	case err != nil:
		h.metrics.RecordLogin("oidc", "error")
		observability.FromContext(ctx).WithError(err).Error("failed to load user")
		httputil.WriteInternalError(w)
		return
	}

	h.issue(w, r, user, "oidc")
}

func (h *Handlers) issue(w http.ResponseWriter, r *http.Request, user *rbac.User, method string) {
	ctx := r.Context()

	if !user.IsActive {
		h.metrics.RecordLogin(method, "inactive")
		httputil.WriteForbidden(w, "account is inactive")
		return
	}

	token, session, err := h.sessions.Create(ctx, user.ID, h.ttl)
	if err != nil {
		h.metrics.RecordLogin(method, "error")
		observability.FromContext(ctx).WithError(err).Error("failed to create session")
		httputil.WriteInternalError(w)
		return
	}

	h.metrics.RecordLogin(method, "ok")
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"user_id": user.ID,
		"method":  method,
	}).Info("session issued")

	httputil.WriteCreated(w, sessionResponse{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: session.ExpiresAt,
	})
}

func newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
