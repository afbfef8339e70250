package rbac

import (
	"time"

	"github.com/platinummonkey/storygate/pkg/ability"
)

// Built-in role names
const (
	RoleAdmin     = ability.RoleAdmin
	RoleEditor    = "EDITOR"
	RoleAuthor    = "AUTHOR"
	RoleModerator = "MODERATOR"
	RoleUser      = "USER"
)

// Role is a named bundle of permission strings
type Role struct {
	ID          int64     `json:"id" yaml:"-"`
	Name        string    `json:"name" yaml:"name"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	Description string    `json:"description" yaml:"description"`
	Permissions []string  `json:"permissions" yaml:"permissions"`
	IsBuiltIn   bool      `json:"is_built_in" yaml:"-"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// User is an account that may hold one role
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	RoleID    *int64    `json:"role_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BuiltInRoles returns the default role definitions
func BuiltInRoles() []Role {
	return []Role{
		{
			Name:        RoleAdmin,
			DisplayName: "Administrator",
			Description: "Full access to every resource",
			IsBuiltIn:   true,
			Permissions: AvailablePermissions(),
		},
		{
			Name:        RoleEditor,
			DisplayName: "Editor",
			Description: "Manages and publishes all stories",
			IsBuiltIn:   true,
			Permissions: []string{
				"user:read",
				"content:create",
				"content:read",
				"content:update",
				"content:delete",
				"content:publish",
				"story:create",
				"story:read",
				"story:update",
				"story:delete",
				"story:publish",
				"analytics:read",
			},
		},
		{
			Name:        RoleAuthor,
			DisplayName: "Author",
			Description: "Writes and edits stories",
			IsBuiltIn:   true,
			Permissions: []string{
				"content:create",
				"content:read",
				"content:update",
				"story:create",
				"story:read",
				"story:update",
			},
		},
		{
			Name:        RoleModerator,
			DisplayName: "Moderator",
			Description: "Reviews and removes content",
			IsBuiltIn:   true,
			Permissions: []string{
				"user:read",
				"content:read",
				"content:update",
				"content:delete",
				"story:read",
				"story:update",
				"story:delete",
				"analytics:read",
			},
		},
		{
			Name:        RoleUser,
			DisplayName: "User",
			Description: "Reads stories and creates their own",
			IsBuiltIn:   true,
			Permissions: []string{"content:read", "story:create", "story:read"},
		},
	}
}

// IsBuiltInRoleName reports whether name is one of the default roles
func IsBuiltInRoleName(name string) bool {
	for _, r := range BuiltInRoles() {
		if r.Name == name {
			return true
		}
	}
	return false
}
