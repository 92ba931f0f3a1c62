// Package config loads dashboard configuration from an optional
// config.yaml file with OI_-prefixed environment variable overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Sessions  SessionsConfig  `koanf:"sessions"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

// DatabaseConfig points at the read-only outage records database.
// EnsureSchema creates the records table when missing; production
// points at an externally-loaded table and leaves it off.
type DatabaseConfig struct {
	Driver       string `koanf:"driver"` // sqlite, postgres
	DSN          string `koanf:"dsn"`
	EnsureSchema bool   `koanf:"ensure_schema"`
}

type OpenAIConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"` // optional custom endpoint
	Model   string `koanf:"model"`
	Timeout string `koanf:"timeout"` // duration string, e.g. "30s"
}

// RequestTimeout returns the per-call LLM timeout.
func (c OpenAIConfig) RequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid openai.timeout %q", c.Timeout)
	}
	return d, nil
}

type SessionsConfig struct {
	Backend    string      `koanf:"backend"` // memory, redis
	TTL        string      `koanf:"ttl"`     // duration string
	MaxEntries int         `koanf:"max_entries"`
	Redis      RedisConfig `koanf:"redis"`
}

// SessionTTL returns the session expiry window.
func (c SessionsConfig) SessionTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid sessions.ttl %q", c.TTL)
	}
	return d, nil
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load from config.yaml file first
	if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("OI_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "OI_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	defaults := map[string]any{
		"server.port":            8080,
		"database.driver":        "sqlite",
		"database.dsn":           "outages.db",
		"database.ensure_schema": false,
		"openai.model":           "gpt-4o",
		"openai.timeout":         "30s",
		"sessions.backend":       "memory",
		"sessions.ttl":           "12h",
		"sessions.max_entries":   1024,
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets
	cfg.OpenAI.APIKey = substituteEnvVars(cfg.OpenAI.APIKey)
	cfg.Sessions.Redis.URL = substituteEnvVars(cfg.Sessions.Redis.URL)
	cfg.Database.DSN = substituteEnvVars(cfg.Database.DSN)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
