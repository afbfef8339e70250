// Package rbac persists roles and users and exposes them to the ability engine.
//
// # Overview
//
// A role is a named bundle of permission strings such as "story:update". Each
// user holds at most one role. The package turns the stored role into an
// ability.Identity, and the Guard middleware evaluates that identity once per
// request with ability.Build.
//
// # Permission Catalog
//
// AvailablePermissions lists every permission that may be assigned to a role,
// grouped for display by Categories. Role writes reject strings outside the
// catalog with a *PermissionError. The ability engine still ignores unknown
// strings, so rows written before a catalog change keep working.
//
// # Built-in Roles
//
//	ADMIN      - every permission; evaluated as manage all
//	EDITOR     - all story and content operations, user:read, analytics:read
//	AUTHOR     - create, read and update stories
//	MODERATOR  - read, update and delete content, user:read
//	USER       - read stories and create their own
//
// Built-in roles cannot be renamed or deleted. seed.Reconcile restores their
// permission lists.
//
// # Guards
//
//	router.Use(guard.Handler)
//	router.Handle("/api/admin/roles",
//	    guard.RequireFunc(ability.ActionRead, ability.SubjectRole, h.ListRoles))
//
// Require answers guests with 401 and authenticated callers with 403. Identity
// lookup failures are answered with 500 and never reach the handler.
//
// # Caching
//
// NewCachedIdentityProvider wraps the store with an expiring LRU. A zero TTL
// disables it so every request sees the latest role data. Handlers purge the
// cache after role and assignment writes.
package rbac
