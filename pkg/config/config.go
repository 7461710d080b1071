package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Storage struct {
		// memory, redis or postgres
		Backend string `yaml:"backend"`
	} `yaml:"storage"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Postgres struct {
		DSN            string        `yaml:"dsn"`
		MaxConns       int32         `yaml:"max_conns"`
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
		MigrateOnStart bool          `yaml:"migrate_on_start"`
	} `yaml:"postgres"`

	Auth struct {
		JWTSecret       string        `yaml:"jwt_secret"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`
	} `yaml:"rate_limiting"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Booking struct {
		// IANA zone every recurrence anchor is interpreted in
		Timezone string `yaml:"timezone"`
	} `yaml:"booking"`

	Abuse struct {
		RestrictAt        int           `yaml:"restrict_at"`
		BanAt             int           `yaml:"ban_at"`
		MaxUpdateAttempts int           `yaml:"max_update_attempts"`
		LockTTL           time.Duration `yaml:"lock_ttl"`
	} `yaml:"abuse"`

	Cache struct {
		VenueTTL time.Duration `yaml:"venue_ttl"`
	} `yaml:"cache"`
}

// varyingOffset reports whether loc's UTC offset changes in the two years
// starting at from, sampled weekly.
func varyingOffset(loc *time.Location, from time.Time) bool {
	start := time.Date(from.Year(), time.January, 1, 0, 0, 0, 0, loc)
	_, base := start.Zone()
	for d := 7; d <= 2*366; d += 7 {
		if _, off := start.AddDate(0, 0, d).Zone(); off != base {
			return true
		}
	}
	return false
}

// Location resolves Booking.Timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Storage
	switch c.Storage.Backend {
	case "memory":
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when storage.backend=redis")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when storage.backend=redis")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn must not be empty when storage.backend=postgres")
		}
		if c.Postgres.MaxConns <= 0 {
			return fmt.Errorf("postgres.max_conns must be > 0 when storage.backend=postgres")
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, redis, postgres (got %q)", c.Storage.Backend)
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl must be > 0")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate <= 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be in (0, 1]")
		}
	}

	// Booking
	if c.Booking.Timezone == "" {
		return fmt.Errorf("booking.timezone must not be empty")
	}
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return fmt.Errorf("booking.timezone %q is not a known IANA zone: %w", c.Booking.Timezone, err)
	}
	// a week spanning an offset change is not 168h long
	if varyingOffset(loc, time.Now()) {
		return fmt.Errorf("booking.timezone %q changes its UTC offset; use a fixed-offset zone", c.Booking.Timezone)
	}

	// Abuse
	if c.Abuse.RestrictAt <= 1 {
		return fmt.Errorf("abuse.restrict_at must be > 1")
	}
	if c.Abuse.BanAt <= c.Abuse.RestrictAt {
		return fmt.Errorf("abuse.ban_at must be > abuse.restrict_at")
	}
	if c.Abuse.MaxUpdateAttempts < 2 {
		return fmt.Errorf("abuse.max_update_attempts must be >= 2")
	}
	if c.Abuse.LockTTL <= 0 {
		return fmt.Errorf("abuse.lock_ttl must be > 0")
	}

	// Cache
	if c.Cache.VenueTTL < 0 {
		return fmt.Errorf("cache.venue_ttl must be >= 0")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Storage.Backend = "memory"

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Postgres.DSN = ""
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.ConnectTimeout = 5 * time.Second
	cfg.Postgres.MigrateOnStart = true

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Booking.Timezone = "UTC"

	cfg.Abuse.RestrictAt = 3
	cfg.Abuse.BanAt = 5
	cfg.Abuse.MaxUpdateAttempts = 3
	cfg.Abuse.LockTTL = 5 * time.Second

	cfg.Cache.VenueTTL = 30 * time.Second

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("DJBOOK_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("DJBOOK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if backend := os.Getenv("DJBOOK_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if addr := os.Getenv("DJBOOK_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if dsn := os.Getenv("DJBOOK_POSTGRES_DSN"); dsn != "" {
		c.Postgres.DSN = dsn
	}
	if secret := os.Getenv("DJBOOK_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if tz := os.Getenv("DJBOOK_TIMEZONE"); tz != "" {
		c.Booking.Timezone = tz
	}
	if v := os.Getenv("DJBOOK_TRACING_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Tracing.Enabled = enabled
		}
	}
}
