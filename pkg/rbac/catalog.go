package rbac

import (
	"sort"
	"strings"
)

// Category groups related permissions for display
type Category struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

var categories = []Category{
	{Name: "User Management", Permissions: []string{"user:read", "user:create", "user:update", "user:delete"}},
	{Name: "Role Management", Permissions: []string{"role:read", "role:create", "role:update", "role:delete", "permission:manage"}},
	{Name: "Content Management", Permissions: []string{"content:create", "content:read", "content:update", "content:delete", "content:publish"}},
	{Name: "Story Management", Permissions: []string{"story:create", "story:read", "story:update", "story:delete", "story:publish"}},
	{Name: "Contact Management", Permissions: []string{"contact:create", "contact:read", "contact:update", "contact:delete"}},
	{Name: "Analytics", Permissions: []string{"analytics:read", "analytics:export"}},
	{Name: "Settings", Permissions: []string{"settings:read", "settings:update"}},
	{Name: "System", Permissions: []string{"system:backup", "system:restore", "system:maintenance"}},
}

var available = func() map[string]string {
	m := make(map[string]string)
	for _, c := range categories {
		for _, p := range c.Permissions {
			m[p] = c.Name
		}
	}
	return m
}()

// AvailablePermissions returns every permission that may be assigned to a role,
// in category order
func AvailablePermissions() []string {
	var out []string
	for _, c := range categories {
		out = append(out, c.Permissions...)
	}
	return out
}

// Categories returns the permission categories in display order
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		out[i] = Category{Name: c.Name, Permissions: append([]string(nil), c.Permissions...)}
	}
	return out
}

// IsAvailable reports whether a permission belongs to the catalog
func IsAvailable(permission string) bool {
	_, ok := available[permission]
	return ok
}

// CategoryFor returns the category of a permission
func CategoryFor(permission string) (string, bool) {
	name, ok := available[permission]
	return name, ok
}

// ValidatePermissions partitions permissions into catalog members and unknown strings
func ValidatePermissions(permissions []string) (valid, invalid []string) {
	for _, p := range permissions {
		if IsAvailable(p) {
			valid = append(valid, p)
		} else {
			invalid = append(invalid, p)
		}
	}
	return valid, invalid
}

// NormalizePermissions removes duplicates and sorts
func NormalizePermissions(permissions []string) []string {
	seen := make(map[string]struct{}, len(permissions))
	out := make([]string, 0, len(permissions))
	for _, p := range permissions {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HasPermission reports whether the list contains permission
func HasPermission(granted []string, permission string) bool {
	for _, p := range granted {
		if p == permission {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether the list contains at least one of permissions
func HasAnyPermission(granted []string, permissions ...string) bool {
	for _, p := range permissions {
		if HasPermission(granted, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the list contains every one of permissions
func HasAllPermissions(granted []string, permissions ...string) bool {
	for _, p := range permissions {
		if !HasPermission(granted, p) {
			return false
		}
	}
	return true
}

// SplitPermission splits "resource:verb" on the first colon. Strings without
// a colon are returned whole as the resource.
func SplitPermission(permission string) (resource, verb string) {
	resource, verb, _ = strings.Cut(permission, ":")
	return resource, verb
}
