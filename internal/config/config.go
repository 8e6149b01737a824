// Package config loads esgscan settings from YAML, the environment and an
// optional project overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carbonledger/esgscan/internal/factor"
)

// Defaults applied by New before any file or environment is read.
const (
	DefaultOutputFormat = "table"
	DefaultPrecision    = 2
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
	DefaultModel        = "gemini-2.5-pro"
	DefaultAPIKeyEnv    = "GEMINI_API_KEY"
	DefaultTimeout      = 2 * time.Minute
	DefaultConcurrency  = 4
	DefaultCacheTTL     = 7 * 24 * time.Hour
)

// Environment variables consulted by ApplyEnv.
const (
	EnvHome         = "ESGSCAN_HOME"
	EnvProjectDir   = "ESGSCAN_PROJECT_DIR"
	EnvLogLevel     = "ESGSCAN_LOG_LEVEL"
	EnvLogFormat    = "ESGSCAN_LOG_FORMAT"
	EnvOutputFormat = "ESGSCAN_OUTPUT_FORMAT"
	EnvModel        = "ESGSCAN_MODEL"
	EnvConcurrency  = "ESGSCAN_CONCURRENCY"
	EnvCacheEnabled = "ESGSCAN_CACHE_ENABLED"
	EnvCacheDir     = "ESGSCAN_CACHE_DIR"
)

const (
	configFileName = "config.yaml"
	dirName        = ".esgscan"
	cacheDirName   = "cache"
)

// Config is the full esgscan configuration.
type Config struct {
	Output     OutputConfig     `yaml:"output"     json:"output"`
	Logging    LoggingConfig    `yaml:"logging"    json:"logging"`
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction"`
	Factors    FactorsConfig    `yaml:"factors"    json:"factors"`
	Cache      CacheConfig      `yaml:"cache"      json:"cache"`

	configPath string
}

// OutputConfig controls presentation.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format" validate:"oneof=table json xlsx html"`
	Precision     int    `yaml:"precision"      json:"precision"      validate:"gte=0,lte=10"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	Level  string `yaml:"level"          json:"level"          validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format"         json:"format"         validate:"omitempty,oneof=console json text"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// ExtractionConfig configures the document extraction provider.
type ExtractionConfig struct {
	Model       string        `yaml:"model"       json:"model"       validate:"required"`
	APIKeyEnv   string        `yaml:"api_key_env" json:"api_key_env" validate:"required"`
	Timeout     time.Duration `yaml:"timeout"     json:"timeout"     validate:"gt=0"`
	Concurrency int           `yaml:"concurrency" json:"concurrency" validate:"gte=1,lte=64"`
	Temperature float32       `yaml:"temperature" json:"temperature" validate:"gte=0,lte=2"`
}

// FactorsConfig optionally replaces the built-in emission factor tables.
// Empty lists keep the defaults.
type FactorsConfig struct {
	Rules     []factor.Rule `yaml:"rules,omitempty"     json:"rules,omitempty"     validate:"dive"`
	Fallbacks []factor.Rule `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty" validate:"dive"`
}

// CacheConfig controls the on-disk cache of extraction responses.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Directory defaults to cache/ under the config directory.
	Directory string        `yaml:"directory,omitempty" json:"directory,omitempty"`
	TTL       time.Duration `yaml:"ttl"                 json:"ttl"                 validate:"gte=0"`
}

// Defaults returns a configuration populated only with built-in defaults.
func Defaults() *Config {
	return &Config{
		Output: OutputConfig{
			DefaultFormat: DefaultOutputFormat,
			Precision:     DefaultPrecision,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Extraction: ExtractionConfig{
			Model:       DefaultModel,
			APIKeyEnv:   DefaultAPIKeyEnv,
			Timeout:     DefaultTimeout,
			Concurrency: DefaultConcurrency,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     DefaultCacheTTL,
		},
	}
}

// New returns the defaults overlaid with the global config file, if one
// exists, and then the environment. Problems reading the file leave the
// defaults in place; use Load to see the error.
func New() *Config {
	cfg := Defaults()
	if path, err := globalConfigPath(); err == nil {
		cfg.configPath = path
		_ = cfg.Load()
	}
	cfg.ApplyEnv()
	return cfg
}

// ConfigPath returns the file Save and Load use.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// SetConfigPath changes the file Save and Load use.
func (c *Config) SetConfigPath(path string) {
	c.configPath = path
}

// Load reads the config file over the current values. A missing file is not
// an error.
func (c *Config) Load() error {
	if c.configPath == "" {
		return nil
	}
	data, err := os.ReadFile(c.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config %s: %w", c.configPath, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", c.configPath, err)
	}
	return nil
}

// Save writes the configuration as YAML, creating the parent directory.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("config path not set")
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", c.configPath, err)
	}
	return nil
}

// ApplyEnv overrides fields from ESGSCAN_* environment variables.
// Unparseable numeric values are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvOutputFormat); v != "" {
		c.Output.DefaultFormat = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Extraction.Model = v
	}
	if v := os.Getenv(EnvConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Extraction.Concurrency = n
		}
	}
	if v := os.Getenv(EnvCacheEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Cache.Enabled = b
		}
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.Cache.Directory = v
	}
}

// APIKey reads the extraction API key from the configured variable.
func (c *Config) APIKey() string {
	return os.Getenv(c.Extraction.APIKeyEnv)
}

// Resolver builds the emission factor resolver, using the configured tables
// where present and the built-in ones otherwise.
func (c *Config) Resolver() (*factor.Resolver, error) {
	rules := c.Factors.Rules
	if len(rules) == 0 {
		rules = factor.DefaultRules()
	}
	fallbacks := c.Factors.Fallbacks
	if len(fallbacks) == 0 {
		fallbacks = factor.DefaultFallbacks()
	}
	return factor.NewResolver(rules, fallbacks)
}

// CacheDir returns the extraction cache directory.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Directory != "" {
		return c.Cache.Directory, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, cacheDirName), nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func globalConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}
