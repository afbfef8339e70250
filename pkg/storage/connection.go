package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/platinummonkey/storygate/pkg/config"
	"github.com/platinummonkey/storygate/pkg/rbac"
)

// DefaultConnectTimeout bounds the initial ping
const DefaultConnectTimeout = 5 * time.Second

// OpenDatabase opens and pings the role database described by cfg and
// returns the migration dialect matching its driver.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, rbac.Dialect, error) {
	dialect, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if dialect == rbac.DialectSQLite {
		// a second connection to :memory: would see an empty database
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}

	return db, dialect, nil
}

func dialectFor(driver string) (rbac.Dialect, error) {
	switch driver {
	case "postgres":
		return rbac.DialectPostgres, nil
	case "sqlite3":
		return rbac.DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %q", driver)
	}
}
