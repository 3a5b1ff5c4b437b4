package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "pertforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML path may be overridden with PERTFORGE_CONFIG; a missing file is
// not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("PERTFORGE_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PERTFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "PERTFORGE_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "PERTFORGE_REQUEST_TIMEOUT")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "PERTFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "PERTFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "PERTFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "PERTFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "PERTFORGE_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "PERTFORGE_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "PERTFORGE_CACHE_L1_TTL")
	setString(&cfg.Cache.L2Bucket, "PERTFORGE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "PERTFORGE_CACHE_L2_TTL")

	setString(&cfg.Logging.Level, "PERTFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "PERTFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "PERTFORGE_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "PERTFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "PERTFORGE_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "PERTFORGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "PERTFORGE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "PERTFORGE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "PERTFORGE_RATE_MAX_IDLE_TIME")

	// Limits
	setInt(&cfg.Limits.MaxTasks, "PERTFORGE_MAX_TASKS")
	setInt(&cfg.Limits.MaxPredecessors, "PERTFORGE_MAX_PREDECESSORS")
	setInt64(&cfg.Limits.MaxBodyBytes, "PERTFORGE_MAX_BODY_BYTES")
	setInt(&cfg.Limits.MaxBatch, "PERTFORGE_MAX_BATCH")
	setInt(&cfg.Limits.BatchParallel, "PERTFORGE_BATCH_PARALLEL")
	setInt(&cfg.Limits.ComputeParallel, "PERTFORGE_COMPUTE_PARALLEL")

	// Store
	setString(&cfg.Store.Backend, "PERTFORGE_STORE_BACKEND")
	setString(&cfg.Store.Dir, "PERTFORGE_STORE_DIR")
	setBool(&cfg.Store.PersistDefault, "PERTFORGE_PERSIST_DEFAULT")

	setString(&cfg.Auth.APIKeyHash, "PERTFORGE_API_KEY_HASH")
	setString(&cfg.Auth.APIKeyHashFile, "PERTFORGE_API_KEY_HASH_FILE")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "PERTFORGE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "PERTFORGE_OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "PERTFORGE_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "PERTFORGE_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "PERTFORGE_OTEL_SAMPLE_RATE")

	setBool(&cfg.MCP.Enabled, "PERTFORGE_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "PERTFORGE_MCP_ADDR")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Store.Backend {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case "file":
		if cfg.Store.Dir == "" {
			return errors.New("store.dir is required for the file backend")
		}
	default:
		return fmt.Errorf("store.backend must be postgres or file, got %q", cfg.Store.Backend)
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Limits.MaxTasks < 1 {
		return errors.New("limits.max_tasks must be >= 1")
	}
	if cfg.Limits.MaxPredecessors < 1 {
		return errors.New("limits.max_predecessors must be >= 1")
	}
	if cfg.Limits.MaxBodyBytes < 1 {
		return errors.New("limits.max_body_bytes must be >= 1")
	}
	if cfg.Limits.MaxBatch < 1 || cfg.Limits.BatchParallel < 1 {
		return errors.New("limits.max_batch and limits.batch_parallel must be >= 1")
	}
	if cfg.Limits.ComputeParallel < 0 {
		return errors.New("limits.compute_parallel must be >= 0")
	}
	if cfg.OTEL.SampleRate < 0 || cfg.OTEL.SampleRate > 1 {
		return errors.New("otel.sample_rate must be within [0, 1]")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
