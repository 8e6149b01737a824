package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonledger/esgscan/internal/config"
	"github.com/carbonledger/esgscan/internal/factor"
)

// writeOverlay writes YAML content to a temp file and returns its path.
func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestShallowMergeYAML_SectionReplaced(t *testing.T) {
	target := config.Defaults()
	overlay := writeOverlay(t, `
output:
  default_format: json
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, "json", target.Output.DefaultFormat)
	// The whole section is replaced, so the omitted precision is zero.
	assert.Equal(t, 0, target.Output.Precision)
	// Other sections are untouched.
	assert.Equal(t, config.DefaultModel, target.Extraction.Model)
	assert.Equal(t, config.DefaultLogLevel, target.Logging.Level)
}

func TestShallowMergeYAML_AllSections(t *testing.T) {
	target := config.Defaults()
	overlay := writeOverlay(t, `
output:
  default_format: xlsx
  precision: 3
logging:
  level: debug
  format: json
extraction:
  model: gemini-2.5-flash
  api_key_env: MY_KEY
  timeout: 45s
  concurrency: 2
  temperature: 0.2
factors:
  rules:
    - keyword: biodiesel
      factor: 0.5
      unit: liter
  fallbacks:
    - keyword: energy
      factor: 0.4
cache:
  enabled: false
  ttl: 1h
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, config.OutputConfig{DefaultFormat: "xlsx", Precision: 3}, target.Output)
	assert.Equal(t, "debug", target.Logging.Level)
	assert.Equal(t, "json", target.Logging.Format)
	assert.Equal(t, "gemini-2.5-flash", target.Extraction.Model)
	assert.Equal(t, "MY_KEY", target.Extraction.APIKeyEnv)
	assert.Equal(t, 45*time.Second, target.Extraction.Timeout)
	assert.Equal(t, 2, target.Extraction.Concurrency)
	assert.InDelta(t, 0.2, target.Extraction.Temperature, 1e-6)
	assert.Equal(t, []factor.Rule{{Keyword: "biodiesel", Factor: 0.5, Unit: "liter"}}, target.Factors.Rules)
	assert.Equal(t, []factor.Rule{{Keyword: "energy", Factor: 0.4}}, target.Factors.Fallbacks)
	assert.Equal(t, config.CacheConfig{Enabled: false, TTL: time.Hour}, target.Cache)
}

func TestShallowMergeYAML_EmptyAndCommentOnly(t *testing.T) {
	for name, content := range map[string]string{
		"empty":        "",
		"comment only": "# nothing here\n",
	} {
		t.Run(name, func(t *testing.T) {
			target := config.Defaults()
			require.NoError(t, config.ShallowMergeYAML(target, writeOverlay(t, content)))
			assert.Equal(t, config.Defaults(), target)
		})
	}
}

func TestShallowMergeYAML_UnknownKeysIgnored(t *testing.T) {
	target := config.Defaults()
	overlay := writeOverlay(t, `
plugins:
  aws: {}
logging:
  level: warn
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))
	assert.Equal(t, "warn", target.Logging.Level)
}

func TestShallowMergeYAML_Errors(t *testing.T) {
	err := config.ShallowMergeYAML(config.Defaults(), writeOverlay(t, "output: [unclosed"))
	require.Error(t, err)

	err = config.ShallowMergeYAML(config.Defaults(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	err = config.ShallowMergeYAML(nil, "whatever.yaml")
	require.Error(t, err)

	err = config.ShallowMergeYAML(config.Defaults(), writeOverlay(t, "extraction:\n  timeout: soon\n"))
	require.Error(t, err)
}
