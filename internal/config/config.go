package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config holds application configuration values.
type Config struct {
	Secret          string
	HTTPPort        string
	StoreDriver     string
	DatabaseDSN     string
	BoltPath        string
	RedisAddr       string
	RedisDB         int
	RedisPrefix     string
	SeedCSV         string
	LogMode         string
	LogFile         string
	AlertSchedule   string
	ExpiryAlertDays int
	AllowedOrigins  []string
	SessionTTL      time.Duration

	// Warnings lists the invalid values Load replaced with defaults. Load
	// runs before the logger exists, so the caller logs them.
	Warnings []string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	cfg := Config{
		Secret:          envOr("SECRET", "dev_secret"),
		HTTPPort:        envOr("HTTP_PORT", "8080"),
		StoreDriver:     strings.ToLower(envOr("STORE_DRIVER", DriverSQLite)),
		DatabaseDSN:     envOr("DATABASE_DSN", "medstore.db"),
		BoltPath:        envOr("BOLT_PATH", "medstore.bolt"),
		RedisAddr:       envOr("REDIS_ADDR", "localhost:6379"),
		RedisPrefix:     envOr("REDIS_PREFIX", "medstore:"),
		SeedCSV:         os.Getenv("SEED_CSV"),
		LogMode:         envOr("LOG_MODE", "development"),
		LogFile:         os.Getenv("LOG_FILE"),
		AlertSchedule:   envOr("ALERT_SCHEDULE", "@every 1h"),
		SessionTTL:      12 * time.Hour,
	}
	cfg.ExpiryAlertDays = cfg.envInt("EXPIRY_ALERT_DAYS", 30)
	cfg.RedisDB = cfg.envInt("REDIS_DB", 0)

	// Validate that port is numeric.
	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		cfg.warnf("invalid HTTP_PORT value %q, defaulting to 8080", cfg.HTTPPort)
		cfg.HTTPPort = "8080"
	}

	switch cfg.StoreDriver {
	case DriverSQLite, DriverBolt, DriverRedis, DriverMemory:
	default:
		cfg.warnf("unknown STORE_DRIVER %q, defaulting to %s", cfg.StoreDriver, DriverSQLite)
		cfg.StoreDriver = DriverSQLite
	}

	if ttl := os.Getenv("SESSION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.SessionTTL = d
		} else {
			cfg.warnf("invalid SESSION_TTL value %q, defaulting to %s", ttl, cfg.SessionTTL)
		}
	}

	cfg.AllowedOrigins = []string{"*"}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func (c *Config) envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		c.warnf("invalid %s value %q, defaulting to %d", key, v, fallback)
		return fallback
	}
	return n
}
