package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/storygate/pkg/ability"
)

// PermissionError lists the permission strings a role write rejected
type PermissionError struct {
	Invalid []string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidPermission, strings.Join(e.Invalid, ", "))
}

func (e *PermissionError) Unwrap() error {
	return ErrInvalidPermission
}

// Store handles role and user persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const roleColumns = `id, name, display_name, description, permissions, is_built_in, created_at, updated_at`

// prepareRole trims and validates a role before it is written
func prepareRole(role *Role) error {
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRole)
	}
	if role.DisplayName == "" {
		role.DisplayName = role.Name
	}
	if _, invalid := ValidatePermissions(role.Permissions); len(invalid) > 0 {
		return &PermissionError{Invalid: invalid}
	}
	role.Permissions = NormalizePermissions(role.Permissions)
	return nil
}

// CreateRole creates a new role
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	if err := prepareRole(role); err != nil {
		return err
	}

	if _, err := s.GetRoleByName(ctx, role.Name); err == nil {
		return fmt.Errorf("%w: %s", ErrRoleExists, role.Name)
	} else if !errors.Is(err, ErrRoleNotFound) {
		return err
	}

	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO roles (name, display_name, description, permissions, is_built_in, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	now := time.Now().UTC()
	err = s.db.QueryRowContext(ctx, query,
		role.Name,
		role.DisplayName,
		role.Description,
		string(permissionsJSON),
		role.IsBuiltIn,
		now,
		now,
	).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, roleID)
	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRoleNotFound, roleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetRoleByName retrieves a role by name
func (s *Store) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListRoles lists all roles, built-in roles first
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY is_built_in DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}

	return roles, rows.Err()
}

// UpdateRole replaces a role's name, display name, description and
// permissions. Built-in roles keep their name.
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	if err := prepareRole(role); err != nil {
		return err
	}

	existing, err := s.GetRole(ctx, role.ID)
	if err != nil {
		return err
	}
	if existing.IsBuiltIn && existing.Name != role.Name {
		return fmt.Errorf("%w: %s", ErrBuiltInRole, existing.Name)
	}
	if existing.Name != role.Name {
		if _, err := s.GetRoleByName(ctx, role.Name); err == nil {
			return fmt.Errorf("%w: %s", ErrRoleExists, role.Name)
		} else if !errors.Is(err, ErrRoleNotFound) {
			return err
		}
	}

	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		UPDATE roles
		SET name = $1, display_name = $2, description = $3, permissions = $4, updated_at = $5
		WHERE id = $6
	`

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, query,
		role.Name,
		role.DisplayName,
		role.Description,
		string(permissionsJSON),
		now,
		role.ID,
	); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	role.IsBuiltIn = existing.IsBuiltIn
	role.CreatedAt = existing.CreatedAt
	role.UpdatedAt = now
	return nil
}

// DeleteRole deletes a custom role that no user holds
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	existing, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if existing.IsBuiltIn {
		return fmt.Errorf("%w: %s", ErrBuiltInRole, existing.Name)
	}

	var holders int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&holders); err != nil {
		return fmt.Errorf("failed to count role holders: %w", err)
	}
	if holders > 0 {
		return fmt.Errorf("%w: %s held by %d users", ErrRoleInUse, existing.Name, holders)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}

// CreateUser creates a new user
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	user.Email = strings.TrimSpace(user.Email)
	if user.Email == "" {
		return errors.New("email is required")
	}

	query := `
		INSERT INTO users (email, name, role_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	now := time.Now().UTC()
	if err := s.db.QueryRowContext(ctx, query,
		user.Email,
		user.Name,
		user.RoleID,
		user.IsActive,
		now,
		now,
	).Scan(&user.ID); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

const userColumns = `id, email, name, role_id, is_active, created_at, updated_at`

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	user, _, err := s.Credentials(ctx, email)
	return user, err
}

// Credentials returns a user and their password hash. The hash is empty for
// users who have never set a password.
func (s *Store) Credentials(ctx context.Context, email string) (*User, string, error) {
	email = strings.TrimSpace(email)
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE email = $1`, email)

	var hash string
	user, err := scanUser(row, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}
	return user, hash, nil
}

// SetPasswordHash stores a password hash for a user
func (s *Store) SetPasswordHash(ctx context.Context, userID int64, hash string) error {
	return s.updateUser(ctx, userID, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash)
}

// SetUserRole assigns a role to a user, or clears it when roleID is nil
func (s *Store) SetUserRole(ctx context.Context, userID int64, roleID *int64) error {
	if roleID != nil {
		if _, err := s.GetRole(ctx, *roleID); err != nil {
			return err
		}
	}

	return s.updateUser(ctx, userID, `UPDATE users SET role_id = $1, updated_at = $2 WHERE id = $3`, roleID)
}

// SetUserActive enables or disables a user
func (s *Store) SetUserActive(ctx context.Context, userID int64, active bool) error {
	return s.updateUser(ctx, userID, `UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`, active)
}

func (s *Store) updateUser(ctx context.Context, userID int64, query string, value interface{}) error {
	result, err := s.db.ExecContext(ctx, query, value, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	return nil
}

// Identity loads the current role name and permissions of a user. A user
// without a role yields an identity with an empty role and no permissions.
func (s *Store) Identity(ctx context.Context, userID int64) (*ability.Identity, error) {
	query := `
		SELECT u.is_active, r.name, r.permissions
		FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1
	`

	var active bool
	var roleName, permissionsJSON sql.NullString
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&active, &roleName, &permissionsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	if !active {
		return nil, fmt.Errorf("%w: %d", ErrUserInactive, userID)
	}

	id := &ability.Identity{RoleName: roleName.String}
	if permissionsJSON.Valid && permissionsJSON.String != "" {
		if err := json.Unmarshal([]byte(permissionsJSON.String), &id.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}
	return id, nil
}

// scanUser scans userColumns followed by any extra destinations
func scanUser(scanner interface {
	Scan(dest ...interface{}) error
}, extra ...interface{}) (*User, error) {
	var user User
	var roleID sql.NullInt64
	dest := append([]interface{}{
		&user.ID,
		&user.Email,
		&user.Name,
		&roleID,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	if roleID.Valid {
		id := roleID.Int64
		user.RoleID = &id
	}
	return &user, nil
}

// scanRole scans a role from a database row
func scanRole(scanner interface {
	Scan(dest ...interface{}) error
}) (*Role, error) {
	var role Role
	var permissionsJSON string

	if err := scanner.Scan(
		&role.ID,
		&role.Name,
		&role.DisplayName,
		&role.Description,
		&permissionsJSON,
		&role.IsBuiltIn,
		&role.CreatedAt,
		&role.UpdatedAt,
	); err != nil {
		return nil, err
	}

	role.Permissions = []string{}
	if permissionsJSON != "" {
		if err := json.Unmarshal([]byte(permissionsJSON), &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	return &role, nil
}
