package config

import (
	"testing"
	"time"

	"github.com/platinummonkey/storygate/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("STORYGATE_TEST_VAR", "custom")

	assert.Equal(t, "custom", getEnv("STORYGATE_TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("STORYGATE_TEST_VAR_NOT_SET", "default"))
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true", "true", false, true},
		{"TRUE", "TRUE", false, true},
		{"one", "1", false, true},
		{"false", "false", true, false},
		{"garbage", "yes please", true, false},
		{"unset", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORYGATE_TEST_BOOL", tt.envValue)
			assert.Equal(t, tt.want, getEnvBool("STORYGATE_TEST_BOOL", tt.defaultValue))
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("STORYGATE_TEST_INT", "42")
	assert.Equal(t, 42, getEnvInt("STORYGATE_TEST_INT", 7))

	t.Setenv("STORYGATE_TEST_INT", "forty-two")
	assert.Equal(t, 7, getEnvInt("STORYGATE_TEST_INT", 7))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " openid, email ,,groups")
	assert.Equal(t, []string{"openid", "email", "groups"}, getEnvList("TEST_LIST", nil))
	assert.Equal(t, []string{"a"}, getEnvList("TEST_LIST_UNSET", []string{"a"}))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("STORYGATE_TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("STORYGATE_TEST_DURATION", time.Second))

	t.Setenv("STORYGATE_TEST_DURATION", "soon")
	assert.Equal(t, time.Second, getEnvDuration("STORYGATE_TEST_DURATION", time.Second))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORYGATE_DB_DSN", "postgres://localhost/storygate")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Authz.SessionTTL)
	assert.Zero(t, cfg.Authz.IdentityCacheTTL)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("STORYGATE_PORT", "8000")
	t.Setenv("STORYGATE_DB_DRIVER", "sqlite3")
	t.Setenv("STORYGATE_DB_DSN", "file:storygate.db")
	t.Setenv("STORYGATE_IDENTITY_CACHE_TTL", "30s")
	t.Setenv("STORYGATE_ROLE_SEED_FILE", "/etc/storygate/roles.yaml")
	t.Setenv("STORYGATE_ROLE_SEED_WATCH", "true")
	t.Setenv("STORYGATE_ROLE_SEED_SCHEDULE", "@hourly")
	t.Setenv("STORYGATE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Authz.IdentityCacheTTL)
	assert.True(t, cfg.Authz.RoleSeedWatch)
	assert.Equal(t, "@hourly", cfg.Authz.RoleSeedSchedule)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
}

func TestLoadConfig_MissingDSN(t *testing.T) {
	t.Setenv("STORYGATE_DB_DSN", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", HealthPort: "9090"},
		Database: DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/storygate"},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Authz: AuthzConfig{
			SessionTTL:         time.Hour,
			UserRateLimit:      10,
			AnonymousRateLimit: 10,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing port", func(c *Config) { c.Server.Port = "" }, true},
		{"same ports", func(c *Config) { c.Server.HealthPort = c.Server.Port }, true},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"missing redis", func(c *Config) { c.Redis.Addr = "" }, true},
		{"zero session ttl", func(c *Config) { c.Authz.SessionTTL = 0 }, true},
		{"negative cache ttl", func(c *Config) { c.Authz.IdentityCacheTTL = -time.Second }, true},
		{"watch without file", func(c *Config) { c.Authz.RoleSeedWatch = true }, true},
		{"zero rate limit", func(c *Config) { c.Authz.UserRateLimit = 0 }, true},
		{"s3 seed", func(c *Config) {
			c.Authz.RoleSeedFile = "s3://config/roles.yaml"
			c.S3.Region = "us-east-1"
		}, false},
		{"s3 seed without region", func(c *Config) { c.Authz.RoleSeedFile = "s3://config/roles.yaml" }, true},
		{"watch s3 seed", func(c *Config) {
			c.Authz.RoleSeedFile = "s3://config/roles.yaml"
			c.Authz.RoleSeedWatch = true
			c.S3.Region = "us-east-1"
		}, true},
		{"oidc without client", func(c *Config) { c.OIDC.IssuerURL = "https://accounts.example.com" }, true},
		{"oidc complete", func(c *Config) {
			c.OIDC = OIDCConfig{
				IssuerURL:   "https://accounts.example.com",
				ClientID:    "storygate",
				RedirectURL: "https://storygate.example.com/api/session/oidc/callback",
			}
		}, false},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelServiceName = "storygate"
		}, true},
		{"otel complete", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = "collector:4317"
			c.Observability.OTelServiceName = "storygate"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOTel(t *testing.T) {
	cfg := validConfig()
	cfg.Observability.OTelEnabled = true
	cfg.Observability.OTelEndpoint = "collector:4317"

	otel := cfg.OTel()
	assert.True(t, otel.Enabled)
	assert.Equal(t, "collector:4317", otel.Endpoint)
}
