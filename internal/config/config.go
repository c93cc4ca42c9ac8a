package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	ServiceName    = "bizease"
	ServiceVersion = "0.1.0"
)

const (
	DriverMemory   = "memory"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	DBDriver          string
	DatabaseDSN       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	RedisAddr      string // empty disables idempotency keys
	IdempotencyTTL time.Duration

	LogLevel       string
	LogDevelopment bool

	OtelEndpoint   string // empty disables export
	OtelAuthHeader string

	ShutdownTimeout time.Duration
	DefaultPageSize int
}

// Load reads the configuration from the environment. Malformed values are errors.
func Load() (*Config, error) {
	var errs []error
	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:       getEnv("GRPC_ADDR", ":50051"),
		DBDriver:       getEnv("DB_DRIVER", DriverMemory),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		OtelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader: os.Getenv("OTEL_AUTH_HEADER"),
	}

	cfg.DBMaxOpenConns = getInt("DB_MAX_OPEN_CONNS", 50, &errs)
	cfg.DBMaxIdleConns = getInt("DB_MAX_IDLE_CONNS", 25, &errs)
	cfg.DefaultPageSize = getInt("DEFAULT_PAGE_SIZE", 20, &errs)
	cfg.DBConnMaxLifetime = getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute, &errs)
	cfg.IdempotencyTTL = getDuration("IDEMPOTENCY_TTL", 24*time.Hour, &errs)
	cfg.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", 5*time.Second, &errs)
	cfg.LogDevelopment = getBool("LOG_DEVELOPMENT", false, &errs)

	switch cfg.DBDriver {
	case DriverMemory:
	case DriverMySQL, DriverPostgres:
		if cfg.DatabaseDSN == "" {
			errs = append(errs, fmt.Errorf("DATABASE_DSN environment variable is required for DB_DRIVER=%s", cfg.DBDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be one of memory, mysql, postgres; got %q", cfg.DBDriver))
	}
	if cfg.DefaultPageSize < 1 {
		errs = append(errs, fmt.Errorf("DEFAULT_PAGE_SIZE must be positive; got %d", cfg.DefaultPageSize))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}

func getBool(key string, fallback bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return fallback
	}
	return b
}
