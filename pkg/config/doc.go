// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	STORYGATE_HOST="0.0.0.0"
//	STORYGATE_PORT="8080"
//	STORYGATE_HEALTH_PORT="9090"
//	STORYGATE_READ_TIMEOUT="15s"
//	STORYGATE_SHUTDOWN_TIMEOUT="30s"
//
// Database settings:
//
//	STORYGATE_DB_DRIVER="postgres"  # postgres, sqlite3
//	STORYGATE_DB_DSN="postgres://localhost/storygate?sslmode=disable"
//	STORYGATE_DB_MAX_OPEN_CONNS="20"
//
// Session settings:
//
//	STORYGATE_REDIS_ADDR="localhost:6379"
//	STORYGATE_SESSION_TTL="24h"
//
// Authorization settings:
//
//	STORYGATE_IDENTITY_CACHE_TTL="0"      # 0 disables identity caching
//	STORYGATE_ROLE_SEED_FILE="/etc/storygate/roles.yaml"
//	STORYGATE_ROLE_SEED_WATCH="true"
//	STORYGATE_ROLE_SEED_SCHEDULE="@every 1h"
//	STORYGATE_USER_RATE_LIMIT="1000"      # requests per minute
//	STORYGATE_ANONYMOUS_RATE_LIMIT="100"
//
// Observability settings:
//
//	STORYGATE_LOG_LEVEL="info"
//	STORYGATE_METRICS_ENABLED="true"
//	STORYGATE_OTEL_ENABLED="false"
//	STORYGATE_OTEL_ENDPOINT="localhost:4317"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
