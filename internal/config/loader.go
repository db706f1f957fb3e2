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
const DefaultConfigFile = "tribunal.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
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

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
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
	setString(&cfg.Server.Port, "TRIBUNAL_PORT")
	setString(&cfg.Server.CORSOrigin, "TRIBUNAL_CORS_ORIGIN")
	setString(&cfg.Server.APITokenHash, "TRIBUNAL_API_TOKEN_HASH")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "TRIBUNAL_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "TRIBUNAL_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "TRIBUNAL_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "TRIBUNAL_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "TRIBUNAL_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LiteLLM.Model, "TRIBUNAL_JUDGE_MODEL")
	setString(&cfg.LiteLLM.VisionModel, "TRIBUNAL_VISION_MODEL")
	setString(&cfg.Logging.Level, "TRIBUNAL_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TRIBUNAL_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TRIBUNAL_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "TRIBUNAL_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TRIBUNAL_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.MaxSizeMB, "TRIBUNAL_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "TRIBUNAL_CACHE_TTL")
	setBool(&cfg.Telemetry.Enabled, "TRIBUNAL_OTEL_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "TRIBUNAL_OTLP_ENDPOINT")
	setInt(&cfg.Git.CloneDepth, "TRIBUNAL_GIT_CLONE_DEPTH")
	setDuration(&cfg.Git.CloneTimeout, "TRIBUNAL_GIT_CLONE_TIMEOUT")
	setInt(&cfg.Git.MaxConcurrent, "TRIBUNAL_GIT_MAX_CONCURRENT")
	setDuration(&cfg.Pipeline.DetectiveTimeout, "TRIBUNAL_DETECTIVE_TIMEOUT")
	setDuration(&cfg.Pipeline.JudgeTimeout, "TRIBUNAL_JUDGE_TIMEOUT")
	setInt(&cfg.Pipeline.OpinionRetries, "TRIBUNAL_OPINION_RETRIES")
	setInt(&cfg.Pipeline.VarianceThreshold, "TRIBUNAL_VARIANCE_THRESHOLD")
	setFloat64(&cfg.Pipeline.DissentBlend, "TRIBUNAL_DISSENT_BLEND")
	setInt(&cfg.Pipeline.FactCapScore, "TRIBUNAL_FACT_CAP_SCORE")
	setString(&cfg.Pipeline.OutputDir, "TRIBUNAL_OUTPUT_DIR")
	setString(&cfg.Rubric.Path, "TRIBUNAL_RUBRIC_PATH")
	setBool(&cfg.MCP.Enabled, "TRIBUNAL_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "TRIBUNAL_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "TRIBUNAL_MCP_API_KEY")
}

// validate checks that required fields are set and tunables are in range.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Pipeline.OpinionRetries < 0 {
		return errors.New("pipeline.opinion_retries must be >= 0")
	}
	if cfg.Pipeline.VarianceThreshold < 1 {
		return errors.New("pipeline.variance_threshold must be >= 1")
	}
	if cfg.Pipeline.DissentBlend < 0 || cfg.Pipeline.DissentBlend > 1 {
		return errors.New("pipeline.dissent_blend must be in [0,1]")
	}
	if cfg.Pipeline.FactCapScore < 1 || cfg.Pipeline.FactCapScore > 5 {
		return errors.New("pipeline.fact_cap_score must be in [1,5]")
	}
	if cfg.Git.CloneDepth < 1 {
		return errors.New("git.clone_depth must be >= 1")
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
