// Package config provides configuration management for chatlens.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Defaults.
const (
	DefaultServerPort          = 37877
	DefaultSimilarityThreshold = 0.5
	DefaultSequenceTopN        = 8
	DefaultRepeatTopN          = 12
	DefaultRecallLimit         = 10
	DefaultLogLevel            = "info"
)

// Config holds chatlens settings. Values come from defaults, then
// ~/.chatlens/settings.json, then CHATLENS_* environment variables.
type Config struct {
	CatalogPath         string   `json:"CHATLENS_CATALOG_PATH"`
	CacheDir            string   `json:"CHATLENS_CACHE_DIR"`
	WorkspacesFile      string   `json:"CHATLENS_WORKSPACES_FILE"`
	LogLevel            string   `json:"CHATLENS_LOG_LEVEL"`
	NoiseKinds          []string `json:"-"`
	RedactKeys          []string `json:"-"`
	SimilarityThreshold float64  `json:"CHATLENS_SIMILARITY_THRESHOLD"`
	// MinScore is nil unless set; recall then derives an actionable
	// threshold from the catalog's repeat-failure telemetry.
	MinScore            *float64 `json:"CHATLENS_MIN_SCORE,omitempty"`
	SequenceTopN        int      `json:"CHATLENS_SEQUENCE_TOP_N"`
	RepeatTopN          int      `json:"CHATLENS_REPEAT_TOP_N"`
	RecallLimit         int      `json:"CHATLENS_RECALL_LIMIT"`
	ServerPort          int      `json:"CHATLENS_SERVER_PORT"`
}

// DataDir returns ~/.chatlens.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".chatlens")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// CatalogPath returns the default catalog location.
func CatalogPath() string {
	return filepath.Join(DataDir(), "catalog.db")
}

// CacheDir returns the default recall cache directory.
func CacheDir() string {
	return filepath.Join(DataDir(), "cache")
}

// WorkspacesPath returns the default workspace registry path.
func WorkspacesPath() string {
	return filepath.Join(DataDir(), "workspaces.yml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CatalogPath:         CatalogPath(),
		CacheDir:            CacheDir(),
		WorkspacesFile:      WorkspacesPath(),
		LogLevel:            DefaultLogLevel,
		SimilarityThreshold: DefaultSimilarityThreshold,
		SequenceTopN:        DefaultSequenceTopN,
		RepeatTopN:          DefaultRepeatTopN,
		RecallLimit:         DefaultRecallLimit,
		ServerPort:          DefaultServerPort,
	}
}

// EnsureDataDir creates the data directory.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o750)
}

// EnsureSettings writes a default settings file when none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// EnsureAll creates the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load builds the configuration. A missing or unparsable settings file
// leaves defaults in place; an invalid resulting value is an error.
func Load() (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(SettingsPath()); err == nil {
		var settings map[string]any
		if json.Unmarshal(data, &settings) == nil {
			cfg.apply(func(key string) (string, bool) {
				v, ok := settings[key]
				if !ok || v == nil {
					return "", false
				}
				switch t := v.(type) {
				case string:
					return t, true
				case float64:
					return strconv.FormatFloat(t, 'f', -1, 64), true
				case bool:
					return strconv.FormatBool(t), true
				case []any:
					parts := make([]string, 0, len(t))
					for _, p := range t {
						parts = append(parts, fmt.Sprint(p))
					}
					return strings.Join(parts, ","), true
				}
				return "", false
			})
		}
	}

	cfg.apply(func(key string) (string, bool) {
		v := os.Getenv(key)
		return v, v != ""
	})

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// apply overrides fields from lookup. Unparsable values are ignored.
func (c *Config) apply(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = i
			}
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				*dst = f
			}
		}
	}
	optFloat := func(key string, dst **float64) {
		if v, ok := lookup(key); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				*dst = &f
			}
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok {
			*dst = splitTrim(v)
		}
	}

	str("CHATLENS_CATALOG_PATH", &c.CatalogPath)
	str("CHATLENS_CACHE_DIR", &c.CacheDir)
	str("CHATLENS_WORKSPACES_FILE", &c.WorkspacesFile)
	str("CHATLENS_LOG_LEVEL", &c.LogLevel)
	float("CHATLENS_SIMILARITY_THRESHOLD", &c.SimilarityThreshold)
	optFloat("CHATLENS_MIN_SCORE", &c.MinScore)
	num("CHATLENS_SEQUENCE_TOP_N", &c.SequenceTopN)
	num("CHATLENS_REPEAT_TOP_N", &c.RepeatTopN)
	num("CHATLENS_RECALL_LIMIT", &c.RecallLimit)
	num("CHATLENS_SERVER_PORT", &c.ServerPort)
	list("CHATLENS_NOISE_KINDS", &c.NoiseKinds)
	list("CHATLENS_REDACT_KEYS", &c.RedactKeys)
}

func (c *Config) validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("CHATLENS_SIMILARITY_THRESHOLD must be within [0, 1], got %g", c.SimilarityThreshold)
	}
	if c.MinScore != nil && (*c.MinScore < 0 || *c.MinScore > 1) {
		return fmt.Errorf("CHATLENS_MIN_SCORE must be within [0, 1], got %g", *c.MinScore)
	}
	if c.SequenceTopN < 1 {
		return fmt.Errorf("CHATLENS_SEQUENCE_TOP_N must be positive, got %d", c.SequenceTopN)
	}
	if c.RepeatTopN < 1 {
		return fmt.Errorf("CHATLENS_REPEAT_TOP_N must be positive, got %d", c.RepeatTopN)
	}
	if c.RecallLimit < 1 {
		return fmt.Errorf("CHATLENS_RECALL_LIMIT must be positive, got %d", c.RecallLimit)
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("CHATLENS_SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	return nil
}

// splitTrim splits a comma-separated list, dropping empty entries.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
