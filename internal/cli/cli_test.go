package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/carbonledger/esgscan/internal/cache"
	"github.com/carbonledger/esgscan/internal/cli"
	"github.com/carbonledger/esgscan/internal/config"
	"github.com/carbonledger/esgscan/internal/engine"
)

const (
	dieselDraft = `{"company_name":"Acme Logistics","invoice_date":"2024-01-31","line_items":[` +
		`{"item":"Diesel Fuel Purchase","quantity":100,"unit":"liters","category":"Energy","evidence_text":"Diesel 100 L"}` +
		`],"confidence_score":"High"}`
	reducedDraft = `{"company_name":"Acme Logistics","invoice_date":"2024-02-29","line_items":[` +
		`{"item":"Diesel Fuel Purchase","quantity":55,"unit":"liters","category":"Energy","evidence_text":"Diesel 55 L"},` +
		`],"confidence_score":"medium"}`
)

// isolate gives each test its own config home and quiet logging.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvProjectDir, t.TempDir())
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvOutputFormat, "")
	t.Setenv(config.EnvConcurrency, "")
	t.Setenv(config.EnvCacheDir, filepath.Join(home, "cache"))
	t.Setenv("GEMINI_API_KEY", "")
	config.ResetGlobalConfigForTest()
	t.Cleanup(config.ResetGlobalConfigForTest)
	return home
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs the root command and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := cli.NewRootCmd("test")
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCmd_Help(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"analyze", "compute", "compare", "factors", "config"} {
		assert.Contains(t, out, sub)
	}
	assert.Contains(t, out, "--debug")
	assert.Contains(t, out, "--env-file")
}

func TestRootCmd_EnvFile(t *testing.T) {
	isolate(t)
	envFile := writeFile(t, "test.env", "ESGSCAN_MODEL=gemini-from-env\n")
	// godotenv never overrides a variable that is already present.
	t.Setenv(config.EnvModel, "")
	require.NoError(t, os.Unsetenv(config.EnvModel))

	out, _, err := execute(t, "--env-file", envFile, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "model: gemini-from-env")

	_, _, err = execute(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"), "factors")
	require.Error(t, err, "an explicitly named env file must exist")
}

func TestComputeCmd_Table(t *testing.T) {
	isolate(t)
	draft := writeFile(t, "draft.json", dieselDraft)

	out, _, err := execute(t, "compute", draft)
	require.NoError(t, err)

	assert.Contains(t, out, "== draft.json ==")
	assert.Contains(t, out, "Acme Logistics")
	assert.Contains(t, out, "TOTAL: 260.00 kg CO2e")
	assert.Contains(t, out, "top contributor: Diesel Fuel Purchase")
}

func TestComputeCmd_JSONRoundTripsThroughCompare(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	baseJSON, _, err := execute(t, "compute", writeFile(t, "jan.json", dieselDraft), "-o", "json")
	require.NoError(t, err)
	base, err := engine.DecodeReport([]byte(baseJSON))
	require.NoError(t, err)
	assert.Equal(t, engine.SchemaVersion, base.SchemaVersion)
	assert.NotEmpty(t, base.ID)
	assert.Equal(t, "jan.json", base.Source)
	assert.InDelta(t, 260.0, base.TotalCarbonEmissionKg, 1e-9)

	cmpJSON, _, err := execute(t, "compute", writeFile(t, "feb.json", reducedDraft), "-o", "json")
	require.NoError(t, err)

	basePath := filepath.Join(dir, "jan-report.json")
	cmpPath := filepath.Join(dir, "feb-report.json")
	require.NoError(t, os.WriteFile(basePath, []byte(baseJSON), 0o600))
	require.NoError(t, os.WriteFile(cmpPath, []byte(cmpJSON), 0o600))

	out, _, err := execute(t, "compare", basePath, cmpPath)
	require.NoError(t, err)
	assert.Contains(t, out, "-117.00 kg")
	assert.Contains(t, out, "45.0% reduction in emissions compared to baseline")
}

func TestComputeCmd_Pair(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "compute",
		writeFile(t, "jan.json", dieselDraft), writeFile(t, "feb.json", reducedDraft), "-o", "json")
	require.NoError(t, err)

	var doc struct {
		Reports []struct {
			Document string         `json:"document"`
			Report   *engine.Report `json:"report"`
		} `json:"reports"`
		Comparison struct {
			DeltaKg   float64 `json:"delta_kg"`
			Narrative string  `json:"narrative"`
		} `json:"comparison"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Reports, 2)
	assert.Equal(t, "jan.json", doc.Reports[0].Document)
	assert.Equal(t, "feb.json", doc.Reports[1].Document)
	assert.InDelta(t, -117.0, doc.Comparison.DeltaKg, 1e-9)
	assert.Contains(t, doc.Comparison.Narrative, "reduction")
}

func TestComputeCmd_Stdin(t *testing.T) {
	isolate(t)

	var stdout bytes.Buffer
	root := cli.NewRootCmd("test")
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(bytes.NewBufferString(dieselDraft))
	root.SetArgs([]string{"compute", "-", "-o", "json"})
	require.NoError(t, root.Execute())

	r, err := engine.DecodeReport(stdout.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "stdin", r.Source)
}

func TestComputeCmd_MalformedDraft(t *testing.T) {
	isolate(t)
	good := writeFile(t, "good.json", dieselDraft)
	bad := writeFile(t, "bad.json", `["not","a","draft"]`)

	out, errOut, err := execute(t, "compute", good, bad)
	require.ErrorIs(t, err, cli.ErrDocumentsFailed)
	assert.Contains(t, errOut, "✗ bad.json")
	assert.Contains(t, out, "== good.json ==", "the good document is still rendered")
	assert.NotContains(t, out, "comparison")
}

func TestComputeCmd_XLSXFile(t *testing.T) {
	isolate(t)
	outFile := filepath.Join(t.TempDir(), "report.xlsx")

	_, _, err := execute(t, "compute", writeFile(t, "d.json", dieselDraft), "-o", "xlsx", "--out-file", outFile)
	require.NoError(t, err)

	f, err := excelize.OpenFile(outFile)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Line Items")
}

func TestComputeCmd_HTML(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "compute", writeFile(t, "d.json", dieselDraft), "-o", "html")
	require.NoError(t, err)
	assert.Contains(t, out, "<title>Carbon Report: Acme Logistics</title>")
}

func TestComputeCmd_BadFormat(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "compute", writeFile(t, "d.json", dieselDraft), "-o", "pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestComputeCmd_ConfigDefaultFormat(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvOutputFormat, "json")

	out, _, err := execute(t, "compute", writeFile(t, "d.json", dieselDraft))
	require.NoError(t, err)
	_, err = engine.DecodeReport([]byte(out))
	require.NoError(t, err)
}

func TestAnalyzeCmd_OfflineDrafts(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "analyze", "--offline",
		writeFile(t, "jan.json", dieselDraft), writeFile(t, "feb.json", `{"company_name":"B","line_items":[]}`))
	require.NoError(t, err)
	assert.Contains(t, out, "== jan.json ==")
	assert.Contains(t, out, "== feb.json ==")
	assert.Contains(t, out, "== comparison ==")
	assert.Contains(t, out, "100.0% reduction")
}

func TestAnalyzeCmd_OfflineRejectsBinary(t *testing.T) {
	isolate(t)
	pdf := writeFile(t, "invoice.pdf", "%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")

	_, _, err := execute(t, "analyze", "--offline", pdf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--offline accepts only JSON drafts")
}

func TestAnalyzeCmd_MissingAPIKey(t *testing.T) {
	isolate(t)
	pdf := writeFile(t, "invoice.pdf", "%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")

	_, _, err := execute(t, "analyze", pdf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestAnalyzeCmd_UnsupportedFile(t *testing.T) {
	isolate(t)
	txt := writeFile(t, "notes.txt", "just some text")

	_, _, err := execute(t, "analyze", txt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported document type")
}

func TestAnalyzeCmd_Raw(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "analyze", "--offline", "--raw", writeFile(t, "jan.json", dieselDraft))
	require.NoError(t, err)
	assert.Contains(t, out, `"evidence_text": "Diesel 100 L"`)
	assert.Contains(t, out, "TOTAL: 260.00 kg CO2e")
}

func TestCompareCmd_RejectsAnalysisExport(t *testing.T) {
	isolate(t)
	multi := writeFile(t, "multi.json", `{"reports":[{},{}]}`)
	single := writeFile(t, "single.json", `{"schema_version":"1.0.0","line_items":[]}`)

	_, _, err := execute(t, "compare", multi, single)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds 2 analysed documents")
}

func TestCompareCmd_UnsupportedSchema(t *testing.T) {
	isolate(t)
	future := writeFile(t, "future.json", `{"schema_version":"2.0.0","line_items":[]}`)
	single := writeFile(t, "single.json", `{"schema_version":"1.0.0","line_items":[]}`)

	_, _, err := execute(t, "compare", future, single)
	require.ErrorIs(t, err, engine.ErrUnsupportedSchema)
}

func TestCompareCmd_Args(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "compare", "only-one.json")
	require.Error(t, err)
}

func TestFactorsCmd(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "factors")
	require.NoError(t, err)
	assert.Contains(t, out, "diesel")
	assert.Contains(t, out, "2.6")
	assert.Contains(t, out, "CATEGORY FALLBACK")

	out, _, err = execute(t, "factors", "--json")
	require.NoError(t, err)
	var table struct {
		Rules     []map[string]any `json:"rules"`
		Fallbacks []map[string]any `json:"fallbacks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &table))
	assert.Equal(t, "diesel", table.Rules[0]["keyword"])
	assert.Equal(t, "opex", table.Fallbacks[0]["keyword"])
}

func TestFactorsResolveCmd(t *testing.T) {
	isolate(t)

	tests := []struct {
		args []string
		want []string
	}{
		{args: []string{"Diesel Fuel Purchase", "Energy"}, want: []string{"2.60", "keyword", "diesel"}},
		{args: []string{"Unknown fuel", "Energy"}, want: []string{"0.82", "category_fallback", "energy"}},
		{args: []string{"Misc"}, want: []string{"0.00", "unresolved"}},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			out, _, err := execute(t, append([]string{"factors", "resolve"}, tt.args...)...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestFactorsCmd_CustomTableFromProjectConfig(t *testing.T) {
	isolate(t)
	projectRoot := t.TempDir()
	projectDir := filepath.Join(projectRoot, ".esgscan")
	require.NoError(t, os.MkdirAll(projectDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "config.yaml"), []byte(`
factors:
  rules:
    - keyword: biodiesel
      factor: 0.5
      unit: liter
`), 0o600))

	out, _, err := execute(t, "--project-dir", projectRoot, "factors", "resolve", "Biodiesel B100", "Energy")
	require.NoError(t, err)
	assert.Contains(t, out, "0.50")
	assert.Contains(t, out, "biodiesel")
}

func TestConfigInitShowValidate(t *testing.T) {
	home := isolate(t)

	out, _, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration initialized successfully")
	assert.FileExists(t, filepath.Join(home, "config.yaml"))

	_, _, err = execute(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, "config", "init", "--force")
	require.NoError(t, err)

	out, _, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "default_format: table")
	assert.Contains(t, out, "model: gemini-2.5-pro")

	out, _, err = execute(t, "config", "validate", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "Emission factor rules: 13 (fallbacks: 3)")
	assert.Contains(t, out, "GEMINI_API_KEY is not set")
}

func TestConfigInit_Project(t *testing.T) {
	isolate(t)
	root := t.TempDir()

	out, _, err := execute(t, "--project-dir", root, "config", "init", "--project")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(root, ".esgscan", "config.yaml"))
	assert.FileExists(t, filepath.Join(root, ".esgscan", "config.yaml"))
	assert.FileExists(t, filepath.Join(root, ".esgscan", ".gitignore"))
}

func TestConfigValidate_Invalid(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvOutputFormat, "pdf")

	_, _, err := execute(t, "config", "validate")
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestCacheCmds(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	t.Setenv(config.EnvCacheDir, dir)

	store, err := cache.NewFileStore(dir, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Set(cache.Key([]byte("a")), []byte(`{"line_items":[]}`)))
	require.NoError(t, store.Set(cache.Key([]byte("b")), []byte(`{"line_items":[]}`)))

	out, _, err := execute(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Directory: "+dir)
	assert.Contains(t, out, "Entries:   2 (0 expired)")

	out, _, err = execute(t, "cache", "stats", "--json")
	require.NoError(t, err)
	var st struct {
		Directory string `json:"directory"`
		Entries   int    `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, dir, st.Directory)
	assert.Equal(t, 2, st.Entries)

	out, _, err = execute(t, "cache", "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 0 cache entries")

	out, _, err = execute(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 2 cached extraction(s)")
}
