package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Storage StorageConfig
	Logging LoggingConfig
	Metrics MetricsConfig
}

type StorageConfig struct {
	Backend string
	Path    string
	// Secret is the device secret the file backend derives its key from.
	Secret string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled bool
}

type fileConfig struct {
	Storage fileStorageConfig `yaml:"storage"`
	Logging fileLoggingConfig `yaml:"logging"`
	Metrics fileMetricsConfig `yaml:"metrics"`
}

type fileStorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Secret  string `yaml:"secret"`
}

type fileLoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type fileMetricsConfig struct {
	Enabled *bool `yaml:"enabled"`
}

func Default() Config {
	return Config{
		Storage: StorageConfig{Backend: BackendMemory},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// LoadFromPath reads configPath, or the first readable default location when
// configPath is empty, and applies environment overrides on top. Unreadable
// or unparsable candidates are skipped.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/identity.yaml",
			"identity.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merged := cfg
		merge(&merged, parsed)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func merge(dst *Config, src fileConfig) {
	if src.Storage.Backend != "" {
		dst.Storage.Backend = src.Storage.Backend
	}
	if src.Storage.Path != "" {
		dst.Storage.Path = src.Storage.Path
	}
	if src.Storage.Secret != "" {
		dst.Storage.Secret = src.Storage.Secret
	}
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		dst.Logging.Format = src.Logging.Format
	}
	if src.Metrics.Enabled != nil {
		dst.Metrics.Enabled = *src.Metrics.Enabled
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := envString("CLOUTFEED_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := envString("CLOUTFEED_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := envString("CLOUTFEED_STORAGE_SECRET"); v != "" {
		cfg.Storage.Secret = v
	}
	if v := envString("CLOUTFEED_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := envString("CLOUTFEED_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	cfg.Metrics.Enabled = envBoolWithFallback("CLOUTFEED_METRICS_ENABLED", cfg.Metrics.Enabled)
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Storage.Backend)) {
	case BackendMemory:
	case BackendFile:
		if strings.TrimSpace(c.Storage.Path) == "" || strings.TrimSpace(c.Storage.Secret) == "" {
			return fmt.Errorf("%w: file backend needs storage path and secret", ErrInvalidConfig)
		}
	case BackendSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("%w: sqlite backend needs storage path", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envBoolWithFallback(key string, fallback bool) bool {
	switch strings.ToLower(envString(key)) {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
