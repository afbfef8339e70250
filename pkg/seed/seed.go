package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/platinummonkey/storygate/pkg/rbac"
	"gopkg.in/yaml.v3"
)

// File is the on-disk role seed document
type File struct {
	Roles []rbac.Role `yaml:"roles"`
}

// RoleStore is the subset of rbac.Store that reconciliation needs
type RoleStore interface {
	GetRoleByName(ctx context.Context, name string) (*rbac.Role, error)
	CreateRole(ctx context.Context, role *rbac.Role) error
	UpdateRole(ctx context.Context, role *rbac.Role) error
}

// Result lists the roles a reconciliation touched
type Result struct {
	Created   []string `json:"created"`
	Updated   []string `json:"updated"`
	Unchanged []string `json:"unchanged"`
}

// Changed reports whether any role was written
func (r *Result) Changed() bool {
	return len(r.Created) > 0 || len(r.Updated) > 0
}

// Load reads a role seed file
func Load(path string) ([]rbac.Role, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	roles, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return roles, nil
}

// Parse decodes a role seed document. Unknown keys and duplicate role names
// are rejected.
func Parse(data []byte) ([]rbac.Role, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}

	seen := make(map[string]bool, len(file.Roles))
	for i := range file.Roles {
		file.Roles[i].Name = strings.TrimSpace(file.Roles[i].Name)
		role := file.Roles[i]
		if role.Name == "" {
			return nil, fmt.Errorf("invalid seed file: role %d has no name", i)
		}
		if seen[role.Name] {
			return nil, fmt.Errorf("invalid seed file: duplicate role %q", role.Name)
		}
		seen[role.Name] = true
	}
	return file.Roles, nil
}

// Desired merges seed roles over the built-in defaults. A seed entry that
// names a built-in role replaces its definition but keeps it built-in.
func Desired(seed []rbac.Role) []rbac.Role {
	overrides := make(map[string]rbac.Role, len(seed))
	for _, r := range seed {
		r.Name = strings.TrimSpace(r.Name)
		overrides[r.Name] = r
	}

	var out []rbac.Role
	for _, builtIn := range rbac.BuiltInRoles() {
		if override, ok := overrides[builtIn.Name]; ok {
			override.IsBuiltIn = true
			out = append(out, override)
			delete(overrides, builtIn.Name)
			continue
		}
		out = append(out, builtIn)
	}
	for _, r := range seed {
		r.Name = strings.TrimSpace(r.Name)
		if _, ok := overrides[r.Name]; ok {
			r.IsBuiltIn = false
			out = append(out, r)
		}
	}
	return out
}

// Reconcile makes the store hold every built-in role and every seed role
// exactly as defined. Roles it does not name are left alone. Running it
// twice in a row writes nothing the second time.
func Reconcile(ctx context.Context, store RoleStore, seed []rbac.Role) (*Result, error) {
	result := &Result{}

	for _, want := range Desired(seed) {
		want.Permissions = rbac.NormalizePermissions(want.Permissions)
		if want.DisplayName == "" {
			want.DisplayName = want.Name
		}

		existing, err := store.GetRoleByName(ctx, want.Name)
		if errors.Is(err, rbac.ErrRoleNotFound) {
			role := want
			if err := store.CreateRole(ctx, &role); err != nil {
				return result, fmt.Errorf("failed to create role %s: %w", want.Name, err)
			}
			result.Created = append(result.Created, want.Name)
			continue
		}
		if err != nil {
			return result, err
		}

		if sameDefinition(existing, &want) {
			result.Unchanged = append(result.Unchanged, want.Name)
			continue
		}

		role := want
		role.ID = existing.ID
		if err := store.UpdateRole(ctx, &role); err != nil {
			return result, fmt.Errorf("failed to update role %s: %w", want.Name, err)
		}
		result.Updated = append(result.Updated, want.Name)
	}

	return result, nil
}

func sameDefinition(have, want *rbac.Role) bool {
	return have.DisplayName == want.DisplayName &&
		have.Description == want.Description &&
		slices.Equal(rbac.NormalizePermissions(have.Permissions), want.Permissions)
}
