package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/storygate/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Authorization configuration
	Authz AuthzConfig

	// S3 configuration for role seeds stored in object storage
	S3 S3Config

	// OIDC single sign-on; disabled when IssuerURL is empty
	OIDC OIDCConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig selects the role database
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite3"
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds session store settings
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// AuthzConfig holds session and ability settings
type AuthzConfig struct {
	// SessionTTL is the lifetime of newly issued sessions
	SessionTTL time.Duration

	// IdentityCacheTTL caches role lookups per user; 0 disables the cache
	IdentityCacheTTL  time.Duration
	IdentityCacheSize int

	// RoleSeedFile is an optional YAML file of role definitions
	RoleSeedFile string
	// RoleSeedWatch reconciles when RoleSeedFile changes
	RoleSeedWatch bool
	// RoleSeedSchedule is a cron spec for periodic reconciliation; empty disables it
	RoleSeedSchedule string

	// Rate limits per minute
	UserRateLimit      int
	AnonymousRateLimit int
}

// S3Config holds object storage settings. Used when RoleSeedFile is an
// s3://bucket/key URL.
type S3Config struct {
	Region       string
	Endpoint     string // Custom endpoint for MinIO
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// OIDCConfig holds OpenID Connect login settings
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Enabled reports whether OIDC login is configured
func (c OIDCConfig) Enabled() bool {
	return c.IssuerURL != ""
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Authz:         loadAuthzConfig(),
		S3:            loadS3Config(),
		OIDC:          loadOIDCConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("STORYGATE_HOST", "0.0.0.0"),
		Port:            getEnv("STORYGATE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("STORYGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("STORYGATE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("STORYGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("STORYGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("STORYGATE_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          getEnv("STORYGATE_DB_DRIVER", "postgres"),
		DSN:             getEnv("STORYGATE_DB_DSN", ""),
		MaxOpenConns:    getEnvInt("STORYGATE_DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    getEnvInt("STORYGATE_DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("STORYGATE_DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       getEnv("STORYGATE_REDIS_ADDR", "localhost:6379"),
		Password:   getEnv("STORYGATE_REDIS_PASSWORD", ""),
		DB:         getEnvInt("STORYGATE_REDIS_DB", 0),
		MaxRetries: getEnvInt("STORYGATE_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("STORYGATE_REDIS_POOL_SIZE", 10),
	}
}

// loadAuthzConfig loads session and ability configuration from environment
func loadAuthzConfig() AuthzConfig {
	return AuthzConfig{
		SessionTTL:         getEnvDuration("STORYGATE_SESSION_TTL", 24*time.Hour),
		IdentityCacheTTL:   getEnvDuration("STORYGATE_IDENTITY_CACHE_TTL", 0),
		IdentityCacheSize:  getEnvInt("STORYGATE_IDENTITY_CACHE_SIZE", 4096),
		RoleSeedFile:       getEnv("STORYGATE_ROLE_SEED_FILE", ""),
		RoleSeedWatch:      getEnvBool("STORYGATE_ROLE_SEED_WATCH", false),
		RoleSeedSchedule:   getEnv("STORYGATE_ROLE_SEED_SCHEDULE", ""),
		UserRateLimit:      getEnvInt("STORYGATE_USER_RATE_LIMIT", 1000),
		AnonymousRateLimit: getEnvInt("STORYGATE_ANONYMOUS_RATE_LIMIT", 100),
	}
}

// loadS3Config loads object storage configuration from environment
func loadS3Config() S3Config {
	return S3Config{
		Region:       getEnv("STORYGATE_S3_REGION", "us-east-1"),
		Endpoint:     getEnv("STORYGATE_S3_ENDPOINT", ""),
		AccessKey:    getEnv("STORYGATE_S3_ACCESS_KEY", ""),
		SecretKey:    getEnv("STORYGATE_S3_SECRET_KEY", ""),
		UsePathStyle: getEnvBool("STORYGATE_S3_USE_PATH_STYLE", false),
	}
}

// loadOIDCConfig loads OpenID Connect configuration from environment
func loadOIDCConfig() OIDCConfig {
	return OIDCConfig{
		IssuerURL:    getEnv("STORYGATE_OIDC_ISSUER_URL", ""),
		ClientID:     getEnv("STORYGATE_OIDC_CLIENT_ID", ""),
		ClientSecret: getEnv("STORYGATE_OIDC_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("STORYGATE_OIDC_REDIRECT_URL", ""),
		Scopes:       getEnvList("STORYGATE_OIDC_SCOPES", []string{"openid", "email", "profile"}),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	level, _ := observability.ParseLogLevel(getEnv("STORYGATE_LOG_LEVEL", "info"))
	return ObservabilityConfig{
		LogLevel:           level,
		MetricsEnabled:     getEnvBool("STORYGATE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("STORYGATE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("STORYGATE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("STORYGATE_OTEL_SERVICE_NAME", "storygate"),
		OTelServiceVersion: getEnv("STORYGATE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("STORYGATE_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	// Validate Redis config
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	// Validate authorization config
	if c.Authz.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Authz.IdentityCacheTTL < 0 {
		return fmt.Errorf("identity cache TTL cannot be negative")
	}
	if c.Authz.RoleSeedWatch && c.Authz.RoleSeedFile == "" {
		return fmt.Errorf("role seed file is required when watching is enabled")
	}
	if strings.HasPrefix(c.Authz.RoleSeedFile, "s3://") {
		if c.Authz.RoleSeedWatch {
			return fmt.Errorf("role seeds in S3 cannot be watched; use a schedule")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required for an s3:// role seed")
		}
	}
	if c.Authz.UserRateLimit <= 0 || c.Authz.AnonymousRateLimit <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	// Validate OIDC config
	if c.OIDC.Enabled() && (c.OIDC.ClientID == "" || c.OIDC.RedirectURL == "") {
		return fmt.Errorf("OIDC client ID and redirect URL are required when an issuer is set")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// OTel returns the tracing settings in the form observability expects
func (c *Config) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
