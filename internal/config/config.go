// Package config holds the pipeline's own ambient run configuration. This is
// distinct from, and does not replace, the out-of-scope ingestion of domain/
// goal-model/world-db/driver configuration files (spec.md §1, §6) — those
// remain the surrounding driver's job. RunConfig only governs how the core
// itself behaves: search budget, cache backend, log verbosity.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheBackend selects how DomainTDG decomposition-path caching is backed.
type CacheBackend string

const (
	CacheBackendMemory CacheBackend = "memory"
	CacheBackendRedis  CacheBackend = "redis"
)

// RunConfig controls ValidMissionGenerator's search budget (spec.md §5) and
// the DecompositionPath cache backend (spec.md §3 Lifecycle).
type RunConfig struct {
	// MaxCandidatesPerOperatorNode caps combinatorial blow-up at each
	// operator node during ValidMissionGenerator's search (spec.md §5).
	MaxCandidatesPerOperatorNode int `yaml:"max_candidates_per_operator_node"`

	// SearchTimeout is the soft wall-clock cap on the whole search
	// (spec.md §5's "30-second soft cap").
	SearchTimeout time.Duration `yaml:"search_timeout"`

	// Cache selects memory or redis-backed DecompositionPath caching.
	Cache CacheBackend `yaml:"cache_backend"`

	// RedisAddr is only consulted when Cache == CacheBackendRedis.
	RedisAddr string `yaml:"redis_addr"`

	// LogLevel is one of none/error/warn/info/debug.
	LogLevel string `yaml:"log_level"`
}

// DefaultRunConfig returns sensible defaults matching spec.md §5's guidance.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		MaxCandidatesPerOperatorNode: 10_000,
		SearchTimeout:                30 * time.Second,
		Cache:                        CacheBackendMemory,
		RedisAddr:                    "localhost:6379",
		LogLevel:                     "info",
	}
}

// Validate checks the configuration, matching the teacher's config.Validate
// shape (agent/config.go).
func (c *RunConfig) Validate() error {
	if c.MaxCandidatesPerOperatorNode <= 0 {
		return errors.New("max_candidates_per_operator_node must be greater than 0")
	}
	if c.SearchTimeout <= 0 {
		return errors.New("search_timeout must be greater than 0")
	}
	switch c.Cache {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("cache_backend must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, c.Cache)
	}
	if c.Cache == CacheBackendRedis && c.RedisAddr == "" {
		return errors.New("redis_addr is required when cache_backend is redis")
	}
	switch c.LogLevel {
	case "none", "error", "warn", "info", "debug", "":
	default:
		return fmt.Errorf("log_level must be one of none/error/warn/info/debug, got %q", c.LogLevel)
	}
	return nil
}

// Load reads a YAML run-configuration file, starting from defaults so
// unset fields keep sane values.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config: %w", err)
	}
	cfg := DefaultRunConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse run config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads path then applies MISSIONDECOMPOSER_*
// environment overrides, mirroring the teacher's
// LoadAgentConfigWithEnvOverrides (agent/config_loader.go).
func LoadWithEnvOverrides(path string) (*RunConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("MISSIONDECOMPOSER_MAX_CANDIDATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxCandidatesPerOperatorNode = n
		}
	}
	if v := os.Getenv("MISSIONDECOMPOSER_SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SearchTimeout = d
		}
	}
	if v := os.Getenv("MISSIONDECOMPOSER_CACHE_BACKEND"); v != "" {
		cfg.Cache = CacheBackend(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("MISSIONDECOMPOSER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config after env overrides: %w", err)
	}
	return cfg, nil
}
