// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

// Package config loads the gateway configuration from a YAML file with
// environment variable expansion, applies defaults, and validates the
// result at startup.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig              `yaml:"server"`
	Redis      RedisConfig               `yaml:"redis"`
	Cache      CacheConfig               `yaml:"cache"`
	Breaker    BreakerConfig             `yaml:"breaker"`
	Router     RouterConfig              `yaml:"router"`
	Aggregator AggregatorConfig          `yaml:"aggregator"`
	Quota      QuotaConfig               `yaml:"quota"`
	Pipeline   PipelineConfig            `yaml:"pipeline"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
}

// ServerConfig holds the HTTP listener options.
type ServerConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// RedisConfig holds the shared Redis connection. An empty URL runs the
// gateway with in-memory quota and L1-only caching.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// CacheConfig holds the multi-level cache sizing.
type CacheConfig struct {
	L1MaxSize    int `yaml:"l1_max_size"`
	L1TTLSeconds int `yaml:"l1_ttl_seconds"`
	L2TTLSeconds int `yaml:"l2_ttl_seconds"`
}

// BreakerConfig holds the circuit breaker tuning.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	CooldownSeconds  int `yaml:"cooldown_seconds"`
	HalfOpenProbes   int `yaml:"half_open_probes"`
}

// RouterConfig holds retry tuning for the provider router. MaxRetries
// is a pointer so an explicit zero in the file disables retries instead
// of falling back to the default.
type RouterConfig struct {
	MaxRetries         *int `yaml:"max_retries"`
	RetryBackoffBaseMs int `yaml:"retry_backoff_base_ms"`
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
}

// AggregatorConfig holds the fan-out time budgets.
type AggregatorConfig struct {
	PerLegTimeoutSeconds int `yaml:"per_leg_timeout_seconds"`
	GroupDeadlineSeconds int `yaml:"group_deadline_seconds"`
}

// QuotaConfig holds the daily quota ledger options.
type QuotaConfig struct {
	// ResetTimezone is the IANA zone whose midnight resets daily
	// counters, default UTC.
	ResetTimezone string `yaml:"reset_timezone"`
}

// PipelineConfig holds request-flow options.
type PipelineConfig struct {
	Persona        string `yaml:"persona"`
	SynthesizeDeep bool   `yaml:"synthesize_deep"`
}

// ProviderConfig configures one provider adapter.
type ProviderConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIKey     string `yaml:"api_key,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Model      string `yaml:"model,omitempty"`
	Region     string `yaml:"region,omitempty"`
	Priority   int    `yaml:"priority,omitempty"`
	DailyQuota int    `yaml:"daily_quota,omitempty"`
}

// envVarPattern matches ${VAR} and ${VAR:-default} references.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnvVars substitutes environment variable references in the raw
// config text before parsing.
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(groups[1]); ok {
			return value
		}
		return groups[2]
	})
}

// Load reads the YAML file at path, expands environment references,
// applies defaults, and validates. An empty path loads pure defaults
// plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers well-known environment variables over the file.
func (c *Config) applyEnv() {
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		c.Server.ListenAddr = addr
	} else if port := os.Getenv("PORT"); port != "" {
		c.Server.ListenAddr = ":" + port
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		c.Redis.URL = url
	}

	keyEnvs := map[string]string{
		"openai":         "OPENAI_API_KEY",
		"anthropic":      "ANTHROPIC_API_KEY",
		"newsapi":        "NEWS_API_KEY",
		"tenor":          "TENOR_API_KEY",
		"coingecko":      "COINGECKO_API_KEY",
		"libretranslate": "LIBRETRANSLATE_API_KEY",
		"openfda":        "OPENFDA_API_KEY",
	}
	for name, env := range keyEnvs {
		key := os.Getenv(env)
		if key == "" {
			continue
		}
		if c.Providers == nil {
			c.Providers = make(map[string]ProviderConfig)
		}
		pc := c.Providers[name]
		pc.Enabled = true
		pc.APIKey = key
		c.Providers[name] = pc
	}
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.TimeoutSeconds <= 0 {
		c.Server.TimeoutSeconds = 90
	}
	if c.Cache.L1MaxSize <= 0 {
		c.Cache.L1MaxSize = 1000
	}
	if c.Cache.L1TTLSeconds <= 0 {
		c.Cache.L1TTLSeconds = 300
	}
	if c.Cache.L2TTLSeconds <= 0 {
		c.Cache.L2TTLSeconds = 3600
	}
	if c.Breaker.FailureThreshold <= 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.CooldownSeconds <= 0 {
		c.Breaker.CooldownSeconds = 30
	}
	if c.Breaker.HalfOpenProbes <= 0 {
		c.Breaker.HalfOpenProbes = 1
	}
	if c.Router.MaxRetries == nil {
		retries := 2
		c.Router.MaxRetries = &retries
	} else if *c.Router.MaxRetries < 0 {
		*c.Router.MaxRetries = 0
	}
	if c.Router.RetryBackoffBaseMs <= 0 {
		c.Router.RetryBackoffBaseMs = 100
	}
	if c.Router.CallTimeoutSeconds <= 0 {
		c.Router.CallTimeoutSeconds = 30
	}
	if c.Aggregator.PerLegTimeoutSeconds <= 0 {
		c.Aggregator.PerLegTimeoutSeconds = 15
	}
	if c.Aggregator.GroupDeadlineSeconds <= 0 {
		c.Aggregator.GroupDeadlineSeconds = 60
	}
	if c.Quota.ResetTimezone == "" {
		c.Quota.ResetTimezone = "UTC"
	}
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Quota.ResetTimezone); err != nil {
		return fmt.Errorf("quota.reset_timezone %q is not a valid IANA zone: %w", c.Quota.ResetTimezone, err)
	}
	if c.Aggregator.PerLegTimeoutSeconds > c.Aggregator.GroupDeadlineSeconds {
		return fmt.Errorf("aggregator.per_leg_timeout_seconds (%d) exceeds group_deadline_seconds (%d)",
			c.Aggregator.PerLegTimeoutSeconds, c.Aggregator.GroupDeadlineSeconds)
	}
	for name, pc := range c.Providers {
		if pc.Priority < 0 {
			return fmt.Errorf("providers.%s.priority must not be negative", name)
		}
		if pc.DailyQuota < 0 {
			return fmt.Errorf("providers.%s.daily_quota must not be negative", name)
		}
	}
	return nil
}

// ResetLocation resolves the quota timezone. validate has already
// checked it parses.
func (c *Config) ResetLocation() *time.Location {
	loc, err := time.LoadLocation(c.Quota.ResetTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Provider returns the named provider block and whether it is enabled.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	pc, ok := c.Providers[name]
	return pc, ok && pc.Enabled
}
