package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Abuse.RestrictAt)
	assert.Equal(t, 5, cfg.Abuse.BanAt)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0

	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"http rps must be > 0", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.HTTP.RequestsPerSecond = 0
		}},
		{"http burst must be > 0", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.HTTP.Burst = 0
		}},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mongo" }},
		{"redis without address", func(c *Config) {
			c.Storage.Backend = "redis"
			c.Redis.Address = ""
		}},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"unknown timezone", func(c *Config) { c.Booking.Timezone = "Mars/Olympus" }},
		{"daylight saving timezone", func(c *Config) { c.Booking.Timezone = "Europe/Berlin" }},
		{"southern daylight saving timezone", func(c *Config) { c.Booking.Timezone = "Australia/Sydney" }},
		{"restrict_at must exceed 1", func(c *Config) { c.Abuse.RestrictAt = 1 }},
		{"ban_at must exceed restrict_at", func(c *Config) { c.Abuse.BanAt = 3 }},
		{"at least one retry", func(c *Config) { c.Abuse.MaxUpdateAttempts = 1 }},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"tracing sample rate", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRate = 2
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_FixedOffsetTimezones(t *testing.T) {
	for _, tz := range []string{"UTC", "Asia/Kolkata", "Asia/Tokyo", "Etc/GMT+5"} {
		cfg := DefaultConfig()
		cfg.Booking.Timezone = tz
		assert.NoError(t, cfg.Validate(), tz)
	}
}

func TestVaryingOffset(t *testing.T) {
	from := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	for tz, want := range map[string]bool{
		"UTC":              false,
		"Asia/Tokyo":       false,
		"Europe/Berlin":    true,
		"America/New_York": true,
		"Australia/Sydney": true,
	} {
		loc, err := time.LoadLocation(tz)
		require.NoError(t, err)
		assert.Equal(t, want, varyingOffset(loc, from), tz)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  address: ":9000"
booking:
  timezone: "Asia/Kolkata"
abuse:
  restrict_at: 2
  ban_at: 4
cache:
  venue_ttl: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("DJBOOK_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
	assert.Equal(t, 2, cfg.Abuse.RestrictAt)
	assert.Equal(t, 4, cfg.Abuse.BanAt)
	assert.Equal(t, time.Minute, cfg.Cache.VenueTTL)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	// untouched keys keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
