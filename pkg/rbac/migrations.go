package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/storygate/pkg/observability"
)

// Dialect selects the SQL flavour used by migrations
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         map[Dialect]string
}

// GetMigrations returns all RBAC migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles table",
			SQL: map[Dialect]string{
				DialectPostgres: `
					CREATE TABLE IF NOT EXISTS roles (
						id BIGSERIAL PRIMARY KEY,
						name VARCHAR(255) NOT NULL UNIQUE,
						display_name VARCHAR(255) NOT NULL,
						description TEXT NOT NULL DEFAULT '',
						permissions JSONB NOT NULL DEFAULT '[]',
						is_built_in BOOLEAN NOT NULL DEFAULT FALSE,
						created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
						updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
					);
					CREATE INDEX IF NOT EXISTS idx_roles_is_built_in ON roles(is_built_in);
				`,
				DialectSQLite: `
					CREATE TABLE IF NOT EXISTS roles (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						name TEXT NOT NULL UNIQUE,
						display_name TEXT NOT NULL,
						description TEXT NOT NULL DEFAULT '',
						permissions TEXT NOT NULL DEFAULT '[]',
						is_built_in BOOLEAN NOT NULL DEFAULT 0,
						created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
					);
					CREATE INDEX IF NOT EXISTS idx_roles_is_built_in ON roles(is_built_in);
				`,
			},
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: map[Dialect]string{
				DialectPostgres: `
					CREATE TABLE IF NOT EXISTS users (
						id BIGSERIAL PRIMARY KEY,
						email VARCHAR(255) NOT NULL UNIQUE,
						name VARCHAR(255) NOT NULL DEFAULT '',
						role_id BIGINT REFERENCES roles(id) ON DELETE RESTRICT,
						is_active BOOLEAN NOT NULL DEFAULT TRUE,
						created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
						updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
					);
					CREATE INDEX IF NOT EXISTS idx_users_role_id ON users(role_id);
				`,
				DialectSQLite: `
					CREATE TABLE IF NOT EXISTS users (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						email TEXT NOT NULL UNIQUE,
						name TEXT NOT NULL DEFAULT '',
						role_id INTEGER REFERENCES roles(id) ON DELETE RESTRICT,
						is_active BOOLEAN NOT NULL DEFAULT 1,
						created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
					);
					CREATE INDEX IF NOT EXISTS idx_users_role_id ON users(role_id);
				`,
			},
		},
		{
			Version:     3,
			Description: "Add user password hashes",
			SQL: map[Dialect]string{
				DialectPostgres: `ALTER TABLE users ADD COLUMN IF NOT EXISTS password_hash TEXT NOT NULL DEFAULT ''`,
				DialectSQLite:   `ALTER TABLE users ADD COLUMN password_hash TEXT NOT NULL DEFAULT ''`,
			},
		},
	}
}

// RunMigrations applies every migration not yet recorded in rbac_migrations
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect, logger *observability.Logger) error {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return fmt.Errorf("unsupported dialect %q", dialect)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rbac_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		logger.Infof("Running migration %d: %s", migration.Version, migration.Description)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL[dialect]); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rbac_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM rbac_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
