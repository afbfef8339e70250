package seed

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/platinummonkey/storygate/pkg/observability"
	"github.com/platinummonkey/storygate/pkg/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory RoleStore
type memoryStore struct {
	mu     sync.Mutex
	roles  map[string]rbac.Role
	nextID int64
	writes int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{roles: make(map[string]rbac.Role)}
}

func (m *memoryStore) GetRoleByName(ctx context.Context, name string) (*rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", rbac.ErrRoleNotFound, name)
	}
	return &role, nil
}

func (m *memoryStore) CreateRole(ctx context.Context, role *rbac.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	role.ID = m.nextID
	m.roles[role.Name] = *role
	m.writes++
	return nil
}

func (m *memoryStore) UpdateRole(ctx context.Context, role *rbac.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[role.Name] = *role
	m.writes++
	return nil
}

func (m *memoryStore) get(name string) (rbac.Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[name]
	return role, ok
}

const sampleSeed = `
roles:
  - name: REVIEWER
    display_name: Reviewer
    description: Reviews stories
    permissions: [story:read, story:update]
  - name: USER
    display_name: User
    description: Reads stories and files contact requests
    permissions: [story:read, contact:create]
`

func TestParse(t *testing.T) {
	roles, err := Parse([]byte(sampleSeed))
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "REVIEWER", roles[0].Name)
	assert.Equal(t, []string{"story:read", "story:update"}, roles[0].Permissions)

	roles, err = Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "roles:\n  - name: X\n    colour: red\n",
		"missing name":   "roles:\n  - permissions: [story:read]\n",
		"duplicate name": "roles:\n  - name: X\n  - name: X\n",
		"not yaml":       "roles: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDesired(t *testing.T) {
	seed, err := Parse([]byte(sampleSeed))
	require.NoError(t, err)

	desired := Desired(seed)
	assert.Len(t, desired, len(rbac.BuiltInRoles())+1)

	byName := make(map[string]rbac.Role)
	for _, r := range desired {
		byName[r.Name] = r
	}
	assert.True(t, byName[rbac.RoleUser].IsBuiltIn)
	assert.Equal(t, []string{"story:read", "contact:create"}, byName[rbac.RoleUser].Permissions)
	assert.False(t, byName["REVIEWER"].IsBuiltIn)
	assert.Equal(t, rbac.AvailablePermissions(), byName[rbac.RoleAdmin].Permissions)
}

func TestReconcile_Idempotent(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	first, err := Reconcile(ctx, store, nil)
	require.NoError(t, err)
	assert.Len(t, first.Created, len(rbac.BuiltInRoles()))
	assert.True(t, first.Changed())

	writes := store.writes
	second, err := Reconcile(ctx, store, nil)
	require.NoError(t, err)
	assert.False(t, second.Changed())
	assert.Len(t, second.Unchanged, len(rbac.BuiltInRoles()))
	assert.Equal(t, writes, store.writes)
}

func TestReconcile_RestoresBuiltInPermissions(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	_, err := Reconcile(ctx, store, nil)
	require.NoError(t, err)

	editor, _ := store.get(rbac.RoleEditor)
	editor.Permissions = []string{"story:read"}
	require.NoError(t, store.UpdateRole(ctx, &editor))

	result, err := Reconcile(ctx, store, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{rbac.RoleEditor}, result.Updated)

	restored, _ := store.get(rbac.RoleEditor)
	assert.Contains(t, restored.Permissions, "story:publish")
	assert.Equal(t, editor.ID, restored.ID)
}

func TestReconcile_WithSQLiteStore(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, rbac.RunMigrations(ctx, db, rbac.DialectSQLite, observability.NopLogger()))
	store := rbac.NewStore(db)

	seed, err := Parse([]byte(sampleSeed))
	require.NoError(t, err)

	result, err := Reconcile(ctx, store, seed)
	require.NoError(t, err)
	assert.Len(t, result.Created, len(rbac.BuiltInRoles())+1)

	admin, err := store.GetRoleByName(ctx, rbac.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, admin.IsBuiltIn)
	assert.ErrorIs(t, store.DeleteRole(ctx, admin.ID), rbac.ErrBuiltInRole)

	user, err := store.GetRoleByName(ctx, rbac.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, []string{"contact:create", "story:read"}, user.Permissions)

	result, err = Reconcile(ctx, store, seed)
	require.NoError(t, err)
	assert.False(t, result.Changed())
}

func TestReconcile_PaddedRoleNames(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, rbac.RunMigrations(ctx, db, rbac.DialectSQLite, nil))
	store := rbac.NewStore(db)

	roles, err := Parse([]byte(`
roles:
  - name: "EDITOR "
    permissions: [story:read]
  - name: " REVIEWER"
    permissions: [story:publish]
`))
	require.NoError(t, err)
	assert.Equal(t, "EDITOR", roles[0].Name)
	assert.Equal(t, "REVIEWER", roles[1].Name)

	for i := 0; i < 2; i++ {
		_, err := Reconcile(ctx, store, roles)
		require.NoError(t, err)
	}

	editor, err := store.GetRoleByName(ctx, rbac.RoleEditor)
	require.NoError(t, err)
	assert.True(t, editor.IsBuiltIn)
	assert.Equal(t, []string{"story:read"}, editor.Permissions)

	// callers passing roles directly get the same treatment
	_, err = Reconcile(ctx, store, []rbac.Role{{Name: "REVIEWER  ", Permissions: []string{"story:publish"}}})
	require.NoError(t, err)
}

func TestParse_RejectsBlankAndPaddedDuplicates(t *testing.T) {
	_, err := Parse([]byte("roles:\n  - name: \"   \"\n"))
	assert.ErrorContains(t, err, "has no name")

	_, err = Parse([]byte("roles:\n  - name: EDITOR\n  - name: \"EDITOR \"\n"))
	assert.ErrorContains(t, err, "duplicate role")
}

func TestReconcile_InvalidSeedPermission(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, rbac.RunMigrations(ctx, db, rbac.DialectSQLite, observability.NopLogger()))

	_, err = Reconcile(ctx, rbac.NewStore(db), []rbac.Role{{Name: "BAD", Permissions: []string{"story:fly"}}})
	assert.ErrorIs(t, err, rbac.ErrInvalidPermission)
}

func writeSeed(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_ExampleDocument(t *testing.T) {
	roles, err := Load(filepath.Join("..", "..", "examples", "roles.yaml"))
	require.NoError(t, err)
	require.Len(t, roles, 3)

	for _, role := range roles {
		_, invalid := rbac.ValidatePermissions(role.Permissions)
		assert.Empty(t, invalid, role.Name)
	}

	desired := Desired(roles)
	var author rbac.Role
	for _, role := range desired {
		if role.Name == rbac.RoleAuthor {
			author = role
		}
	}
	assert.True(t, author.IsBuiltIn)
	assert.Contains(t, author.Permissions, "content:create")
}
