package rbac

import "errors"

var (
	ErrRoleNotFound      = errors.New("role not found")
	ErrRoleExists        = errors.New("role already exists")
	ErrRoleInUse         = errors.New("role is assigned to users")
	ErrBuiltInRole       = errors.New("built-in roles cannot be renamed or deleted")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidPermission = errors.New("unknown permission")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserInactive      = errors.New("user is inactive")
)
