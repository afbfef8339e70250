package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/storygate/pkg/ability"
	"github.com/platinummonkey/storygate/pkg/contextkeys"
	"github.com/platinummonkey/storygate/pkg/httputil"
	"github.com/platinummonkey/storygate/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerEnv struct {
	store  *Store
	router *mux.Router
	admin  *User
	editor *User
	user   *User
}

// testUserMiddleware stands in for the session middleware
func testUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-Test-User"); raw != "" {
			id, _ := strconv.ParseInt(raw, 10, 64)
			r = r.WithContext(contextkeys.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func setupHandlerEnv(t *testing.T, cacheTTL time.Duration) *handlerEnv {
	t.Helper()

	store := NewStore(setupTestDB(t))
	identities := NewCachedIdentityProvider(store, 16, cacheTTL, nil)
	guard := NewGuard(identities, observability.NopLogger(), nil)
	handlers := NewHandlers(store, guard, identities, observability.NopLogger())

	router := mux.NewRouter()
	router.Use(testUserMiddleware)
	router.Use(guard.Handler)
	handlers.RegisterRoutes(router)

	admin := &Role{Name: RoleAdmin, IsBuiltIn: true}
	require.NoError(t, store.CreateRole(context.Background(), admin))
	editor := createTestRole(t, store, RoleEditor, "story:update", "user:read")
	userRole := createTestRole(t, store, RoleUser, "story:read")

	return &handlerEnv{
		store:  store,
		router: router,
		admin:  createTestUser(t, store, "admin@example.com", &admin.ID),
		editor: createTestUser(t, store, "editor@example.com", &editor.ID),
		user:   createTestUser(t, store, "user@example.com", &userRole.ID),
	}
}

func (e *handlerEnv) do(t *testing.T, as *User, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if as != nil {
		req.Header.Set("X-Test-User", strconv.FormatInt(as.ID, 10))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_ListPermissions(t *testing.T) {
	env := setupHandlerEnv(t, 0)

	rec := env.do(t, env.admin, http.MethodGet, "/api/admin/permissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Permissions []string   `json:"permissions"`
		Categories  []Category `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, AvailablePermissions(), resp.Permissions)
	assert.Len(t, resp.Categories, len(Categories()))

	assert.Equal(t, http.StatusUnauthorized, env.do(t, nil, http.MethodGet, "/api/admin/permissions", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, env.editor, http.MethodGet, "/api/admin/permissions", nil).Code)
}

func TestHandlers_RoleLifecycle(t *testing.T) {
	env := setupHandlerEnv(t, 0)

	// Create
	rec := env.do(t, env.admin, http.MethodPost, "/api/admin/roles", roleRequest{
		Name:        "REVIEWER",
		Permissions: []string{"story:read", "story:update"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Role
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	rolePath := fmt.Sprintf("/api/admin/roles/%d", created.ID)

	// Get
	rec = env.do(t, env.admin, http.MethodGet, rolePath, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// List
	rec = env.do(t, env.admin, http.MethodGet, "/api/admin/roles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var roles []Role
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roles))
	assert.Len(t, roles, 4)

	// Update
	rec = env.do(t, env.admin, http.MethodPut, rolePath, roleRequest{
		Name:        "REVIEWER",
		DisplayName: "Reviewer",
		Permissions: []string{"story:read"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Delete
	rec = env.do(t, env.admin, http.MethodDelete, rolePath, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, env.admin, http.MethodGet, rolePath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_RoleErrors(t *testing.T) {
	env := setupHandlerEnv(t, 0)

	rec := env.do(t, env.admin, http.MethodPost, "/api/admin/roles", roleRequest{
		Name:        "BROKEN",
		Permissions: []string{"story:fly"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Contains(t, errResp.Details, "story:fly")

	rec = env.do(t, env.admin, http.MethodPost, "/api/admin/roles", roleRequest{Name: RoleEditor})
	assert.Equal(t, http.StatusConflict, rec.Code)

	admin, err := env.store.GetRoleByName(context.Background(), RoleAdmin)
	require.NoError(t, err)
	rec = env.do(t, env.admin, http.MethodDelete, fmt.Sprintf("/api/admin/roles/%d", admin.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, env.admin, http.MethodGet, "/api/admin/roles/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/roles", bytes.NewBufferString(`{"name":"X","unknown":1}`))
	req.Header.Set("X-Test-User", strconv.FormatInt(env.admin.ID, 10))
	raw := httptest.NewRecorder()
	env.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestHandlers_RoleRoutesRequirePermissions(t *testing.T) {
	env := setupHandlerEnv(t, 0)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, nil, http.MethodGet, "/api/admin/roles", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, env.user, http.MethodGet, "/api/admin/roles", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, env.editor, http.MethodPost, "/api/admin/roles", roleRequest{Name: "X"}).Code)
}

func TestHandlers_SetUserRole(t *testing.T) {
	env := setupHandlerEnv(t, time.Minute)
	path := fmt.Sprintf("/api/admin/users/%d/role", env.user.ID)

	// the user's ability is cached with story:read only
	assert.Equal(t, http.StatusForbidden, env.do(t, env.user, http.MethodGet, "/api/admin/roles", nil).Code)

	roleReader := createTestRole(t, env.store, "ROLE_READER", "role:read")
	rec := env.do(t, env.admin, http.MethodPut, path, map[string]interface{}{"role_id": roleReader.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	var user User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	require.NotNil(t, user.RoleID)
	assert.Equal(t, roleReader.ID, *user.RoleID)

	// the assignment invalidated the cached identity
	assert.Equal(t, http.StatusOK, env.do(t, env.user, http.MethodGet, "/api/admin/roles", nil).Code)

	rec = env.do(t, env.admin, http.MethodPut, "/api/admin/users/999/role", map[string]interface{}{"role_id": nil})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, env.editor, http.MethodPut, path, map[string]interface{}{"role_id": nil})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlers_UpdateRolePurgesCache(t *testing.T) {
	env := setupHandlerEnv(t, time.Minute)

	assert.Equal(t, http.StatusForbidden, env.do(t, env.editor, http.MethodGet, "/api/admin/roles", nil).Code)

	editorRole, err := env.store.GetRoleByName(context.Background(), RoleEditor)
	require.NoError(t, err)
	rec := env.do(t, env.admin, http.MethodPut, fmt.Sprintf("/api/admin/roles/%d", editorRole.ID), roleRequest{
		Name:        RoleEditor,
		Permissions: []string{"story:update", "user:read", "role:read"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, env.do(t, env.editor, http.MethodGet, "/api/admin/roles", nil).Code)
}

func TestHandlers_GetAbility(t *testing.T) {
	env := setupHandlerEnv(t, 0)

	var resp abilityResponse
	rec := env.do(t, nil, http.MethodGet, "/api/ability", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Anonymous)
	assert.Equal(t, []ability.Grant{{Action: ability.ActionRead, Subject: ability.SubjectStory}}, resp.Grants)

	rec = env.do(t, env.admin, http.MethodGet, "/api/ability", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Anonymous)
	assert.Equal(t, []ability.Grant{{Action: ability.ActionManage, Subject: ability.SubjectAll}}, resp.Grants)
}

func TestHandlers_CheckAbility(t *testing.T) {
	env := setupHandlerEnv(t, 0)

	body := map[string]interface{}{
		"checks": []checkQuery{
			{Action: ability.ActionUpdate, Subject: ability.SubjectStory},
			{Action: ability.ActionDelete, Subject: ability.SubjectStory},
			{Action: ability.ActionRead, Subject: ability.SubjectStory},
			{Action: ability.ActionUpdate, Subject: ability.SubjectProfile},
			{Action: "fly", Subject: ability.SubjectStory},
		},
	}

	rec := env.do(t, env.editor, http.MethodPost, "/api/ability/check", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []checkResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 5)

	got := make([]bool, len(resp.Results))
	for i, r := range resp.Results {
		got[i] = r.Allowed
	}
	assert.Equal(t, []bool{true, false, true, true, false}, got)
}

func TestHandlers_CheckAbilityTooMany(t *testing.T) {
	env := setupHandlerEnv(t, 0)

	checks := make([]checkQuery, maxCheckQueries+1)
	for i := range checks {
		checks[i] = checkQuery{Action: ability.ActionRead, Subject: ability.SubjectStory}
	}

	rec := env.do(t, nil, http.MethodPost, "/api/ability/check", map[string]interface{}{"checks": checks})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
