// Package config loads and saves the repokit settings file. Missing files
// yield defaults; every duration and path setting has a default applied on load.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/fsutil"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Settings Settings `yaml:"settings"`
}

// Settings represents general application settings.
type Settings struct {
	// Storage
	StateDir          string `yaml:"state_dir,omitempty"`
	CacheDir          string `yaml:"cache_dir,omitempty"`
	InstalledDatabase string `yaml:"installed_database,omitempty"`
	PolicyFile        string `yaml:"policy_file,omitempty"`

	// Network
	HTTPTimeout         time.Duration `yaml:"http_timeout"`
	MemberSearchTimeout time.Duration `yaml:"member_search_timeout"`
	// RestAuth holds credentials for REST catalogs: bearer:<token>,
	// basic:<user>:<password> or header:<Name>=<value>.
	RestAuth string `yaml:"rest_auth,omitempty"`

	// Source list
	AutoUpdateInterval time.Duration `yaml:"auto_update_interval"`
	MaxWriteAttempts   int           `yaml:"max_write_attempts"`
	AddRetryBackoff    time.Duration `yaml:"add_retry_backoff"`

	// Composite search
	SearchBehavior    string `yaml:"search_behavior"`
	CorrelationScript string `yaml:"correlation_script,omitempty"`

	LogLevel string `yaml:"log_level"`
}

// Default configuration values.
const (
	DefaultHTTPTimeout        = 30 * time.Second
	DefaultAutoUpdateInterval = 5 * time.Minute
	DefaultMaxWriteAttempts   = 10
	DefaultAddRetryBackoff    = 2 * time.Second
	DefaultSearchBehavior     = "all"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

var validSearchBehaviors = map[string]bool{"all": true, "installed": true, "available": true}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	stateDir, err := fsutil.GetStateDir()
	if err != nil {
		stateDir = filepath.Join(os.TempDir(), fsutil.AppName)
	}
	cacheDir, err := fsutil.GetCacheDir()
	if err != nil {
		cacheDir = filepath.Join(stateDir, "cache")
	}

	return &Config{
		Settings: Settings{
			StateDir:           stateDir,
			CacheDir:           cacheDir,
			HTTPTimeout:        DefaultHTTPTimeout,
			AutoUpdateInterval: DefaultAutoUpdateInterval,
			MaxWriteAttempts:   DefaultMaxWriteAttempts,
			AddRetryBackoff:    DefaultAddRetryBackoff,
			SearchBehavior:     DefaultSearchBehavior,
			LogLevel:           "info",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	// Durations are explicit zeros in some fields (0 disables), so start from
	// defaults and let the document override them.
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}

	return config, nil
}

// SaveConfig saves configuration to a file.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	data, err := c.ToYAML()
	if err != nil {
		return err
	}

	if err := fsutil.WriteFileAtomic(absPath, data, fsutil.FileModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	var sb strings.Builder
	encoder := yaml.NewEncoder(&sb)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return nil, errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	if err := encoder.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	return []byte(sb.String()), nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	s := c.Settings
	if s.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout cannot be negative")
	}
	if s.AutoUpdateInterval < 0 {
		return fmt.Errorf("auto_update_interval cannot be negative")
	}
	if s.MemberSearchTimeout < 0 {
		return fmt.Errorf("member_search_timeout cannot be negative")
	}
	if s.AddRetryBackoff < 0 {
		return fmt.Errorf("add_retry_backoff cannot be negative")
	}
	if s.MaxWriteAttempts < 1 {
		return fmt.Errorf("max_write_attempts must be at least 1, got %d", s.MaxWriteAttempts)
	}
	if !validSearchBehaviors[s.SearchBehavior] {
		return fmt.Errorf("invalid search_behavior %q (expected all, installed or available)", s.SearchBehavior)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return fmt.Errorf("invalid log_level %q", s.LogLevel)
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, fsutil.AppName, "config.yaml"), nil
}

// GetUserSourcesPath returns the user sources stream location.
func (c *Config) GetUserSourcesPath() string {
	return filepath.Join(c.Settings.StateDir, "user_sources.yaml")
}

// GetMetadataPath returns the source metadata stream location.
func (c *Config) GetMetadataPath() string {
	return filepath.Join(c.Settings.StateDir, "sources_metadata.yaml")
}

// GetSourceDataDir returns the root under which per-source data lives.
func (c *Config) GetSourceDataDir() string {
	return c.Settings.StateDir
}

// GetInstalledDatabasePath returns the installed-programs database location.
func (c *Config) GetInstalledDatabasePath() string {
	if c.Settings.InstalledDatabase != "" {
		return c.Settings.InstalledDatabase
	}
	return filepath.Join(c.Settings.StateDir, "installed.json")
}

// GetDownloadDir returns the staging directory for downloaded index packages.
func (c *Config) GetDownloadDir() string {
	return filepath.Join(c.Settings.CacheDir, "downloads")
}

// applyDefaults fills in values that have no meaningful zero.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.MaxWriteAttempts == 0 {
		c.Settings.MaxWriteAttempts = defaults.Settings.MaxWriteAttempts
	}
	if c.Settings.SearchBehavior == "" {
		c.Settings.SearchBehavior = defaults.Settings.SearchBehavior
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
	if c.Settings.StateDir == "" {
		c.Settings.StateDir = defaults.Settings.StateDir
	}
	if c.Settings.CacheDir == "" {
		c.Settings.CacheDir = defaults.Settings.CacheDir
	}
}
