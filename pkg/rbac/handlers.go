package rbac

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/storygate/pkg/ability"
	"github.com/platinummonkey/storygate/pkg/httputil"
	"github.com/platinummonkey/storygate/pkg/observability"
)

// maxCheckQueries bounds a single ability check request
const maxCheckQueries = 100

// Handlers provides HTTP handlers for role administration and ability queries
type Handlers struct {
	store  *Store
	guard  *Guard
	cache  invalidator
	logger *observability.Logger
}

// NewHandlers creates new RBAC handlers. When identities caches, role and
// assignment writes invalidate it.
func NewHandlers(store *Store, guard *Guard, identities IdentityProvider, logger *observability.Logger) *Handlers {
	if logger == nil {
		logger = observability.NopLogger()
	}
	h := &Handlers{
		store:  store,
		guard:  guard,
		logger: logger,
	}
	if c, ok := identities.(invalidator); ok {
		h.cache = c
	}
	return h
}

// RegisterRoutes registers all RBAC routes. The router must already run
// Guard.Handler.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	g := h.guard

	// Permission catalog
	router.Handle("/api/admin/permissions", g.RequireFunc(ability.ActionManage, ability.SubjectRole, h.ListPermissions)).Methods("GET")

	// Role management
	router.Handle("/api/admin/roles", g.RequireFunc(ability.ActionRead, ability.SubjectRole, h.ListRoles)).Methods("GET")
	router.Handle("/api/admin/roles", g.RequireFunc(ability.ActionCreate, ability.SubjectRole, h.CreateRole)).Methods("POST")
	router.Handle("/api/admin/roles/{id}", g.RequireFunc(ability.ActionRead, ability.SubjectRole, h.GetRole)).Methods("GET")
	router.Handle("/api/admin/roles/{id}", g.RequireFunc(ability.ActionUpdate, ability.SubjectRole, h.UpdateRole)).Methods("PUT")
	router.Handle("/api/admin/roles/{id}", g.RequireFunc(ability.ActionDelete, ability.SubjectRole, h.DeleteRole)).Methods("DELETE")

	// User role assignment
	router.Handle("/api/admin/users/{id}/role", g.RequireFunc(ability.ActionUpdate, ability.SubjectUser, h.SetUserRole)).Methods("PUT")

	// Ability queries for any caller
	router.HandleFunc("/api/ability", h.GetAbility).Methods("GET")
	router.HandleFunc("/api/ability/check", h.CheckAbility).Methods("POST")
}

type roleRequest struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// ListPermissions returns the assignable permissions and their categories
func (h *Handlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"permissions": AvailablePermissions(),
		"categories":  Categories(),
	})
}

// ListRoles lists all roles
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// CreateRole creates a custom role
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role := &Role{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Permissions: req.Permissions,
	}
	if err := h.store.CreateRole(r.Context(), role); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).WithField("role", role.Name).Info("role created")
	httputil.WriteCreated(w, role)
}

// GetRole retrieves a role by ID
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.store.GetRole(r.Context(), roleID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// UpdateRole replaces a role's definition
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req roleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role := &Role{
		ID:          roleID,
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Permissions: req.Permissions,
	}
	if err := h.store.UpdateRole(r.Context(), role); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.purgeIdentities()

	observability.FromContext(r.Context()).WithField("role", role.Name).Info("role updated")
	httputil.WriteSuccess(w, role)
}

// DeleteRole deletes a custom role
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.DeleteRole(r.Context(), roleID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.purgeIdentities()

	observability.FromContext(r.Context()).WithField("role_id", roleID).Info("role deleted")
	httputil.WriteNoContent(w)
}

// SetUserRole assigns a role to a user. A null role_id removes the role.
func (h *Handlers) SetUserRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		RoleID *int64 `json:"role_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.store.SetUserRole(r.Context(), userID, req.RoleID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(userID)
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"target_user_id": userID,
		"role_id":        req.RoleID,
	}).Info("user role changed")
	httputil.WriteSuccess(w, user)
}

type abilityResponse struct {
	Anonymous bool            `json:"anonymous"`
	Grants    []ability.Grant `json:"grants"`
}

// GetAbility returns the caller's grants for conditional rendering
func (h *Handlers) GetAbility(w http.ResponseWriter, r *http.Request) {
	a := AbilityFromContext(r.Context())
	grants := a.Grants()
	if grants == nil {
		grants = []ability.Grant{}
	}
	httputil.WriteSuccess(w, abilityResponse{
		Anonymous: a.IsAnonymous(),
		Grants:    grants,
	})
}

type checkQuery struct {
	Action  ability.Action  `json:"action"`
	Subject ability.Subject `json:"subject"`
}

type checkResult struct {
	Action  ability.Action  `json:"action"`
	Subject ability.Subject `json:"subject"`
	Allowed bool            `json:"allowed"`
}

// CheckAbility answers a batch of can queries for the caller. Queries naming
// an unknown action or subject are answered false.
func (h *Handlers) CheckAbility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Checks []checkQuery `json:"checks"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Checks) > maxCheckQueries {
		httputil.WriteBadRequest(w, "too many checks")
		return
	}

	a := AbilityFromContext(r.Context())
	results := make([]checkResult, 0, len(req.Checks))
	for _, q := range req.Checks {
		allowed := q.Action.Valid() && q.Subject.Valid() && a.Can(q.Action, q.Subject)
		results = append(results, checkResult{Action: q.Action, Subject: q.Subject, Allowed: allowed})
	}

	httputil.WriteSuccess(w, map[string]interface{}{"results": results})
}

func (h *Handlers) purgeIdentities() {
	if h.cache != nil {
		h.cache.Purge()
	}
}

// writeStoreError maps store errors onto HTTP responses
func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var permErr *PermissionError
	switch {
	case errors.As(err, &permErr):
		httputil.WriteDetailedError(w, http.StatusBadRequest, ErrInvalidPermission.Error(), invalidDetails(permErr.Invalid))
	case errors.Is(err, ErrInvalidRole):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, ErrRoleNotFound), errors.Is(err, ErrUserNotFound):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, ErrRoleExists), errors.Is(err, ErrRoleInUse), errors.Is(err, ErrBuiltInRole):
		httputil.WriteConflict(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).Error("rbac store failure")
		httputil.WriteInternalError(w)
	}
}

func invalidDetails(invalid []string) map[string]string {
	details := make(map[string]string, len(invalid))
	for _, p := range invalid {
		details[p] = "not an assignable permission"
	}
	return details
}
