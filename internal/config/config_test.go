package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonledger/esgscan/internal/config"
	"github.com/carbonledger/esgscan/internal/factor"
	"github.com/carbonledger/esgscan/internal/logging"
)

// isolate points ESGSCAN_HOME at an empty temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvProjectDir, "")
	for _, env := range []string{
		config.EnvLogLevel, config.EnvLogFormat, config.EnvOutputFormat,
		config.EnvModel, config.EnvConcurrency, config.EnvCacheEnabled, config.EnvCacheDir,
	} {
		t.Setenv(env, "")
	}
	config.ResetGlobalConfigForTest()
	t.Cleanup(config.ResetGlobalConfigForTest)
	return home
}

func TestNew_Defaults(t *testing.T) {
	home := isolate(t)

	cfg := config.New()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "table", cfg.Output.DefaultFormat)
	assert.Equal(t, 2, cfg.Output.Precision)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "gemini-2.5-pro", cfg.Extraction.Model)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Extraction.APIKeyEnv)
	assert.Equal(t, 2*time.Minute, cfg.Extraction.Timeout)
	assert.Equal(t, 4, cfg.Extraction.Concurrency)
	assert.Zero(t, cfg.Extraction.Temperature)
	assert.Equal(t, filepath.Join(home, "config.yaml"), cfg.ConfigPath())
}

func TestSaveAndLoad(t *testing.T) {
	isolate(t)

	cfg := config.New()
	cfg.Output.DefaultFormat = "html"
	cfg.Extraction.Timeout = 90 * time.Second
	cfg.Factors.Rules = []factor.Rule{{Keyword: "steam", Factor: 0.2, Unit: "kg"}}
	require.NoError(t, cfg.Save())

	data, err := os.ReadFile(cfg.ConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "timeout: 1m30s")

	loaded := config.New()
	assert.Equal(t, "html", loaded.Output.DefaultFormat)
	assert.Equal(t, 90*time.Second, loaded.Extraction.Timeout)
	assert.Equal(t, cfg.Factors.Rules, loaded.Factors.Rules)
}

func TestSave_NoPath(t *testing.T) {
	require.Error(t, config.Defaults().Save())
}

func TestLoad_Corrupted(t *testing.T) {
	isolate(t)

	cfg := config.Defaults()
	cfg.SetConfigPath(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, os.WriteFile(cfg.ConfigPath(), []byte("output: [oops"), 0o600))

	require.Error(t, cfg.Load())
}

func TestApplyEnv(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvLogLevel, "debug")
	t.Setenv(config.EnvLogFormat, "json")
	t.Setenv(config.EnvOutputFormat, "xlsx")
	t.Setenv(config.EnvModel, "gemini-2.5-flash")
	t.Setenv(config.EnvConcurrency, "8")

	cfg := config.New()
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "xlsx", cfg.Output.DefaultFormat)
	assert.Equal(t, "gemini-2.5-flash", cfg.Extraction.Model)
	assert.Equal(t, 8, cfg.Extraction.Concurrency)

	t.Setenv(config.EnvConcurrency, "many")
	assert.Equal(t, config.DefaultConcurrency, config.New().Extraction.Concurrency)
}

func TestCacheConfig(t *testing.T) {
	home := isolate(t)

	cfg := config.New()
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, config.DefaultCacheTTL, cfg.Cache.TTL)
	dir, err := cfg.CacheDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache"), dir)

	custom := t.TempDir()
	t.Setenv(config.EnvCacheEnabled, "false")
	t.Setenv(config.EnvCacheDir, custom)
	cfg = config.New()
	assert.False(t, cfg.Cache.Enabled)
	dir, err = cfg.CacheDir()
	require.NoError(t, err)
	assert.Equal(t, custom, dir)

	t.Setenv(config.EnvCacheEnabled, "sometimes")
	assert.True(t, config.New().Cache.Enabled, "unparseable values are ignored")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantMsg string
	}{
		{name: "bad format", mutate: func(c *config.Config) { c.Output.DefaultFormat = "pdf" }, wantMsg: "Output.DefaultFormat"},
		{name: "negative precision", mutate: func(c *config.Config) { c.Output.Precision = -1 }, wantMsg: "Output.Precision"},
		{name: "bad level", mutate: func(c *config.Config) { c.Logging.Level = "loud" }, wantMsg: "Logging.Level"},
		{name: "no model", mutate: func(c *config.Config) { c.Extraction.Model = "" }, wantMsg: "Extraction.Model: required"},
		{name: "zero timeout", mutate: func(c *config.Config) { c.Extraction.Timeout = 0 }, wantMsg: "Extraction.Timeout"},
		{name: "zero concurrency", mutate: func(c *config.Config) { c.Extraction.Concurrency = 0 }, wantMsg: "Extraction.Concurrency"},
		{name: "negative cache ttl", mutate: func(c *config.Config) { c.Cache.TTL = -time.Second }, wantMsg: "Cache.TTL"},
		{
			name:    "upper-case keyword",
			mutate:  func(c *config.Config) { c.Factors.Rules = []factor.Rule{{Keyword: "Diesel", Factor: 2.6}} },
			wantMsg: "must be lower case",
		},
		{
			name:    "negative factor",
			mutate:  func(c *config.Config) { c.Factors.Fallbacks = []factor.Rule{{Keyword: "energy", Factor: -1}} },
			wantMsg: "Factors.Fallbacks[0].Factor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestResolver(t *testing.T) {
	cfg := config.Defaults()

	r, err := cfg.Resolver()
	require.NoError(t, err)
	assert.Equal(t, factor.DefaultRules(), r.Rules())

	cfg.Factors.Rules = []factor.Rule{{Keyword: "steam", Factor: 0.2}}
	r, err = cfg.Resolver()
	require.NoError(t, err)
	assert.InDelta(t, 0.2, r.Factor("Steam supply", "Utilities"), 1e-9)
	assert.Zero(t, r.Factor("Diesel", "Fuel"), "custom table replaces the built-in rules")
	assert.InDelta(t, 0.82, r.Factor("Grid", "Energy"), 1e-9, "fallbacks keep their defaults")
}

func TestToLoggingConfig(t *testing.T) {
	lc := config.LoggingConfig{Level: "debug", Format: "text"}
	got := lc.ToLoggingConfig()
	assert.Equal(t, logging.Config{Level: "debug", Format: logging.FormatConsole, Output: logging.OutputStderr}, got)

	lc.File = "/var/log/esgscan.log"
	got = lc.ToLoggingConfig()
	assert.Equal(t, logging.OutputFile, got.Output)
	assert.Equal(t, "/var/log/esgscan.log", got.File)
}

func TestGlobalConfig(t *testing.T) {
	isolate(t)

	cfg := config.GetGlobalConfig()
	require.NotNil(t, cfg)
	assert.Same(t, cfg, config.GetGlobalConfig())

	cfg.Logging.Level = "debug"
	assert.Equal(t, "debug", config.GetLoggingConfig().Level)

	replacement := config.Defaults()
	config.SetGlobalConfig(replacement)
	assert.Same(t, replacement, config.GetGlobalConfig())

	config.ResetGlobalConfigForTest()
	assert.NotSame(t, replacement, config.GetGlobalConfig())
}

func TestConfigDirAndLogDir(t *testing.T) {
	home := isolate(t)
	dir, err := config.GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, home, dir)

	require.NoError(t, config.EnsureLogDir(""))
	require.NoError(t, config.EnsureLogDir(filepath.Join(home, "logs", "esgscan.log")))
	assert.DirExists(t, filepath.Join(home, "logs"))
}

func TestResolveProjectDir(t *testing.T) {
	isolate(t)
	ctx := context.Background()

	root := t.TempDir()
	projectDir := filepath.Join(root, ".esgscan")
	require.NoError(t, os.MkdirAll(projectDir, 0o750))
	deep := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(deep, 0o750))

	assert.Equal(t, projectDir, config.ResolveProjectDir(ctx, "", deep), "walks up to the nearest .esgscan")
	assert.Equal(t, filepath.Join(deep, ".esgscan"), config.ResolveProjectDir(ctx, deep, root), "flag wins")
	assert.Equal(t, projectDir, config.ResolveProjectDir(ctx, projectDir, ""), "no double suffix")

	t.Setenv(config.EnvProjectDir, deep)
	assert.Equal(t, filepath.Join(deep, ".esgscan"), config.ResolveProjectDir(ctx, "", root))

	t.Setenv(config.EnvProjectDir, "")
	assert.Empty(t, config.ResolveProjectDir(ctx, "", ""))
	assert.Empty(t, config.ResolveProjectDir(ctx, "", t.TempDir()))
}

func TestNewWithProjectDir(t *testing.T) {
	isolate(t)
	ctx := context.Background()

	projectDir := filepath.Join(t.TempDir(), ".esgscan")
	require.NoError(t, os.MkdirAll(projectDir, 0o750))

	// No overlay file: defaults.
	assert.Equal(t, "table", config.NewWithProjectDir(ctx, projectDir).Output.DefaultFormat)

	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "config.yaml"), []byte(`
output:
  default_format: html
  precision: 1
`), 0o600))
	cfg := config.NewWithProjectDir(ctx, projectDir)
	assert.Equal(t, "html", cfg.Output.DefaultFormat)
	assert.Equal(t, 1, cfg.Output.Precision)
	assert.Equal(t, filepath.Join(projectDir, "config.yaml"), cfg.ConfigPath())

	t.Setenv(config.EnvOutputFormat, "json")
	assert.Equal(t, "json", config.NewWithProjectDir(ctx, projectDir).Output.DefaultFormat, "environment wins over project")

	t.Setenv(config.EnvOutputFormat, "")
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "config.yaml"), []byte("output: [bad"), 0o600))
	assert.Equal(t, "table", config.NewWithProjectDir(ctx, projectDir).Output.DefaultFormat, "corrupted overlay falls back")

	assert.Equal(t, config.New(), config.NewWithProjectDir(ctx, ""))
}
