package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir string
}

func (s *ConfigSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.T().Setenv("HOME", s.tempDir)
	for _, key := range []string{
		"CHATLENS_CATALOG_PATH", "CHATLENS_SIMILARITY_THRESHOLD", "CHATLENS_SERVER_PORT",
		"CHATLENS_NOISE_KINDS", "CHATLENS_RECALL_LIMIT", "CHATLENS_MIN_SCORE",
	} {
		s.T().Setenv(key, "")
	}
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) writeSettings(content string) {
	s.Require().NoError(os.MkdirAll(filepath.Join(s.tempDir, ".chatlens"), 0o750))
	s.Require().NoError(os.WriteFile(filepath.Join(s.tempDir, ".chatlens", "settings.json"), []byte(content), 0o600))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultServerPort, cfg.ServerPort)
	s.Equal(0.5, cfg.SimilarityThreshold)
	s.Equal(8, cfg.SequenceTopN)
	s.Equal(12, cfg.RepeatTopN)
	s.Equal(10, cfg.RecallLimit)
	s.Nil(cfg.MinScore)
	s.Equal(filepath.Join(s.tempDir, ".chatlens", "catalog.db"), cfg.CatalogPath)
	s.Equal(filepath.Join(s.tempDir, ".chatlens", "cache"), cfg.CacheDir)
	s.Empty(cfg.NoiseKinds)
}

func (s *ConfigSuite) TestPaths() {
	s.Contains(DataDir(), ".chatlens")
	s.Contains(SettingsPath(), "settings.json")
	s.Contains(WorkspacesPath(), "workspaces.yml")
}

func (s *ConfigSuite) TestEnsureAll() {
	s.NoError(EnsureAll())

	info, err := os.Stat(DataDir())
	s.Require().NoError(err)
	s.True(info.IsDir())
	_, err = os.Stat(SettingsPath())
	s.NoError(err)

	// Second call keeps the existing file.
	s.NoError(EnsureSettings())

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(Default(), cfg)
}

// TestLoad_TableDriven tests configuration loading with various scenarios.
func (s *ConfigSuite) TestLoad_TableDriven() {
	tests := []struct {
		name          string
		settingsJSON  string
		expectedPort  int
		expectedLimit int
		expectedSim   float64
	}{
		{
			name:          "no settings file",
			expectedPort:  DefaultServerPort,
			expectedLimit: DefaultRecallLimit,
			expectedSim:   DefaultSimilarityThreshold,
		},
		{
			name:          "custom port",
			settingsJSON:  `{"CHATLENS_SERVER_PORT": 38888}`,
			expectedPort:  38888,
			expectedLimit: DefaultRecallLimit,
			expectedSim:   DefaultSimilarityThreshold,
		},
		{
			name:          "threshold as string",
			settingsJSON:  `{"CHATLENS_SIMILARITY_THRESHOLD": "0.63", "CHATLENS_RECALL_LIMIT": 25}`,
			expectedPort:  DefaultServerPort,
			expectedLimit: 25,
			expectedSim:   0.63,
		},
		{
			name:          "invalid JSON returns defaults",
			settingsJSON:  `{invalid}`,
			expectedPort:  DefaultServerPort,
			expectedLimit: DefaultRecallLimit,
			expectedSim:   DefaultSimilarityThreshold,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_ = os.RemoveAll(filepath.Join(s.tempDir, ".chatlens"))
			if tt.settingsJSON != "" {
				s.writeSettings(tt.settingsJSON)
			}

			cfg, err := Load()
			s.Require().NoError(err)
			s.Equal(tt.expectedPort, cfg.ServerPort)
			s.Equal(tt.expectedLimit, cfg.RecallLimit)
			s.InDelta(tt.expectedSim, cfg.SimilarityThreshold, 1e-9)
		})
	}
}

func (s *ConfigSuite) TestEnvOverridesSettings() {
	s.writeSettings(`{"CHATLENS_CATALOG_PATH": "/from/settings.db", "CHATLENS_NOISE_KINDS": ["thinking", "undoStop"]}`)
	s.T().Setenv("CHATLENS_CATALOG_PATH", "/from/env.db")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("/from/env.db", cfg.CatalogPath)
	s.Equal([]string{"thinking", "undoStop"}, cfg.NoiseKinds)
}

func (s *ConfigSuite) TestValidation() {
	s.T().Setenv("CHATLENS_SIMILARITY_THRESHOLD", "1.5")
	_, err := Load()
	s.Error(err)

	s.T().Setenv("CHATLENS_SIMILARITY_THRESHOLD", "")
	s.T().Setenv("CHATLENS_SERVER_PORT", "70000")
	_, err = Load()
	s.Error(err)
}

func (s *ConfigSuite) TestMinScoreOptional() {
	cfg, err := Load()
	s.Require().NoError(err)
	s.Nil(cfg.MinScore)

	s.T().Setenv("CHATLENS_MIN_SCORE", "0")
	cfg, err = Load()
	s.Require().NoError(err)
	s.Require().NotNil(cfg.MinScore)
	s.Zero(*cfg.MinScore)

	s.T().Setenv("CHATLENS_MIN_SCORE", "1.2")
	_, err = Load()
	s.Error(err)
}

// TestSplitTrim tests the splitTrim helper function.
func TestSplitTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: []string{}},
		{name: "single value", input: "thinking", expected: []string{"thinking"}},
		{name: "values with spaces", input: " thinking , undoStop ", expected: []string{"thinking", "undoStop"}},
		{name: "empty values filtered", input: "a,,b,,", expected: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitTrim(tt.input))
		})
	}
}
