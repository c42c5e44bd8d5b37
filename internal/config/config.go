package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Analysis engines
const (
	EngineMock   = "mock"
	EngineLocal  = "local"
	EngineRemote = "remote"
)

// Config holds the application configuration
type Config struct {
	Port            int
	DataDir         string
	Version         string
	Engine          string
	BackendURL      string
	AnalysisTimeout time.Duration
	Seed            int64
	MockLatency     time.Duration
	CaseInsensitive bool
	SessionTTL      time.Duration
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Port:            8080,
		Engine:          EngineMock,
		AnalysisTimeout: 30 * time.Second,
		MockLatency:     2 * time.Second,
		SessionTTL:      30 * time.Minute,
	}
}

// fileConfig is the on-disk layout; durations are strings like "30s"
type fileConfig struct {
	Port            int    `yaml:"port" toml:"port"`
	DataDir         string `yaml:"data_dir" toml:"data_dir"`
	Engine          string `yaml:"engine" toml:"engine"`
	BackendURL      string `yaml:"backend_url" toml:"backend_url"`
	AnalysisTimeout string `yaml:"analysis_timeout" toml:"analysis_timeout"`
	Seed            *int64 `yaml:"seed" toml:"seed"`
	MockLatency     string `yaml:"mock_latency" toml:"mock_latency"`
	CaseInsensitive *bool  `yaml:"case_insensitive" toml:"case_insensitive"`
	SessionTTL      string `yaml:"session_ttl" toml:"session_ttl"`
}

// LoadFile merges a YAML (.yaml, .yml) or TOML (.toml) file into cfg.
// Only keys present in the file change cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if fc.Port != 0 {
		cfg.Port = fc.Port
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.Engine != "" {
		cfg.Engine = fc.Engine
	}
	if fc.BackendURL != "" {
		cfg.BackendURL = fc.BackendURL
	}
	if fc.Seed != nil {
		cfg.Seed = *fc.Seed
	}
	if fc.CaseInsensitive != nil {
		cfg.CaseInsensitive = *fc.CaseInsensitive
	}
	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"analysis_timeout", fc.AnalysisTimeout, &cfg.AnalysisTimeout},
		{"mock_latency", fc.MockLatency, &cfg.MockLatency},
		{"session_ttl", fc.SessionTTL, &cfg.SessionTTL},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

// ApplyEnv overrides cfg from ATTN_* environment variables
func ApplyEnv(cfg *Config) {
	cfg.Port = getEnvAsInt("ATTN_PORT", cfg.Port)
	cfg.DataDir = getEnv("ATTN_DATA_DIR", cfg.DataDir)
	cfg.Engine = getEnv("ATTN_ENGINE", cfg.Engine)
	cfg.BackendURL = getEnv("ATTN_BACKEND_URL", cfg.BackendURL)
	cfg.AnalysisTimeout = getEnvAsDuration("ATTN_ANALYSIS_TIMEOUT", cfg.AnalysisTimeout)
	cfg.Seed = int64(getEnvAsInt("ATTN_SEED", int(cfg.Seed)))
	cfg.MockLatency = getEnvAsDuration("ATTN_MOCK_LATENCY", cfg.MockLatency)
	cfg.CaseInsensitive = getEnvAsBool("ATTN_CASE_INSENSITIVE", cfg.CaseInsensitive)
	cfg.SessionTTL = getEnvAsDuration("ATTN_SESSION_TTL", cfg.SessionTTL)
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Engine {
	case EngineMock, EngineLocal:
	case EngineRemote:
		if c.BackendURL == "" {
			return fmt.Errorf("engine %q requires a backend URL", c.Engine)
		}
	default:
		return fmt.Errorf("unknown engine %q (want mock, local or remote)", c.Engine)
	}
	if c.AnalysisTimeout < 0 || c.MockLatency < 0 || c.SessionTTL < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
