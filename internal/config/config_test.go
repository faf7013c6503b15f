package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Postgres: PostgresConfig{DSN: "postgres://localhost/football"},
		Security: SecurityConfig{
			Access:      TokenConfig{Secret: "a", TTL: time.Hour},
			Refresh:     TokenConfig{Secret: "r", TTL: 24 * time.Hour},
			Verify:      TokenConfig{Secret: "v", TTL: 24 * time.Hour},
			Reset:       TokenConfig{Secret: "x", TTL: 15 * time.Minute},
			SignupLimit: 3,
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"missing access secret", func(c *AppConfig) { c.Security.Access.Secret = "" }},
		{"blank reset secret", func(c *AppConfig) { c.Security.Reset.Secret = "  " }},
		{"shared secret", func(c *AppConfig) { c.Security.Refresh.Secret = c.Security.Access.Secret }},
		{"missing dsn", func(c *AppConfig) { c.Postgres.DSN = "" }},
		{"no signup limit", func(c *AppConfig) { c.Security.SignupLimit = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("FOOTBALL_SECURITY_ACCESS_SECRET", "from-env")
	t.Setenv("FOOTBALL_HTTP_PORT", "8080")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Security.Access.Secret)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, time.Hour, cfg.Security.Access.TTL)
	assert.Equal(t, 24*time.Hour, cfg.Security.Refresh.TTL)
	assert.Equal(t, 15*time.Minute, cfg.Security.Reset.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Security.TwoFactorTTL)
	assert.Equal(t, 3, cfg.Security.SignupLimit)
	assert.Equal(t, "refreshToken", cfg.Security.RefreshCookieName)
	assert.Equal(t, 5, cfg.RateLimit.Login.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Login.Window)
	assert.Equal(t, 20, cfg.Redis.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestValidateWorker(t *testing.T) {
	cfg := &AppConfig{Jobs: JobsConfig{Stream: "auth:maintenance"}, Worker: WorkerConfig{Group: "g"}}
	assert.ErrorIs(t, cfg.ValidateWorker(), ErrInvalidConfig)

	cfg.Postgres.DSN = "postgres://localhost/football"
	assert.NoError(t, cfg.ValidateWorker())
}
