package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/carbonledger/esgscan/internal/config"
	"github.com/carbonledger/esgscan/internal/engine"
	"github.com/carbonledger/esgscan/internal/logging"
	"github.com/carbonledger/esgscan/internal/pipeline"
	"github.com/carbonledger/esgscan/internal/render"
)

// outputFlags are shared by every command that renders reports.
type outputFlags struct {
	format    string
	outFile   string
	precision int
	plain     bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "output", "o", "",
		"output format: table, json, xlsx, html (default from config)")
	cmd.Flags().StringVar(&f.outFile, "out-file", "", "write output to this file instead of stdout")
	cmd.Flags().IntVar(&f.precision, "precision", -1, "decimals shown for kg values (default from config)")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "disable terminal styling")
}

// outputTarget is a resolved destination for rendered output.
type outputTarget struct {
	format render.Format
	opts   render.Options
	w      io.Writer
	close  func() error
}

// open resolves flags against the config and opens the destination.
func (f *outputFlags) open(cmd *cobra.Command) (*outputTarget, error) {
	cfg := config.GetGlobalConfig()

	name := f.format
	if name == "" {
		name = cfg.Output.DefaultFormat
	}
	format, err := render.ParseFormat(name)
	if err != nil {
		return nil, err
	}

	precision := f.precision
	if precision < 0 {
		precision = cfg.Output.Precision
	}

	t := &outputTarget{format: format, w: cmd.OutOrStdout(), close: func() error { return nil }}
	if f.outFile != "" {
		file, createErr := os.Create(f.outFile)
		if createErr != nil {
			return nil, fmt.Errorf("creating output file: %w", createErr)
		}
		t.w = file
		t.close = file.Close
	} else if format.IsBinary() && render.IsTerminal(t.w) {
		return nil, fmt.Errorf("refusing to write %s to a terminal, use --out-file", format)
	}

	t.opts = render.Options{
		Precision: precision,
		Styled:    !f.plain && format == render.FormatTable && render.IsTerminal(t.w),
	}
	return t, nil
}

// analysisEntry is one document in a JSON analysis export.
type analysisEntry struct {
	Document string          `json:"document"`
	Report   *engine.Report  `json:"report,omitempty"`
	RawJSON  json.RawMessage `json:"raw_json,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// analysisDocument is the JSON shape of analyze and compute output.
type analysisDocument struct {
	Reports    []analysisEntry            `json:"reports"`
	Comparison *render.ComparisonDocument `json:"comparison,omitempty"`
}

// writeResults renders analysed documents and, when present, their
// comparison. Failed documents are skipped here and reported by the caller.
func writeResults(t *outputTarget, results []pipeline.Result, cmp *engine.ComparisonResult, showRaw bool) error {
	switch t.format {
	case render.FormatJSON:
		return writeResultsJSON(t, results, cmp, showRaw)
	case render.FormatTable:
		return writeResultsTable(t, results, cmp, showRaw)
	default:
		if cmp != nil {
			return render.WriteComparison(t.w, t.format, *cmp, t.opts)
		}
		ok := successful(results)
		if len(ok) != 1 {
			return fmt.Errorf("%s output holds one report or one comparison, got %d reports", t.format, len(ok))
		}
		return render.WriteReport(t.w, t.format, ok[0].Report, t.opts)
	}
}

func writeResultsTable(t *outputTarget, results []pipeline.Result, cmp *engine.ComparisonResult, showRaw bool) error {
	first := true
	for _, r := range successful(results) {
		if !first {
			fmt.Fprintln(t.w)
		}
		first = false

		fmt.Fprintf(t.w, "== %s ==\n", r.Document)
		if showRaw {
			if err := render.WriteRawJSON(t.w, []byte(r.RawJSON)); err != nil {
				return err
			}
			fmt.Fprintln(t.w)
		}
		if err := render.WriteReportTable(t.w, r.Report, t.opts); err != nil {
			return err
		}
	}
	if cmp != nil {
		fmt.Fprintln(t.w)
		fmt.Fprintln(t.w, "== comparison ==")
		return render.WriteComparisonTable(t.w, *cmp, t.opts)
	}
	return nil
}

// writeResultsJSON writes a single successful document as a plain report
// export, so it can be fed back to compare, and anything else as an
// analysis document.
func writeResultsJSON(t *outputTarget, results []pipeline.Result, cmp *engine.ComparisonResult, showRaw bool) error {
	if len(results) == 1 && results[0].OK() && !showRaw {
		return render.WriteReportJSON(t.w, results[0].Report)
	}

	doc := analysisDocument{Reports: make([]analysisEntry, 0, len(results))}
	for _, r := range results {
		entry := analysisEntry{Document: r.Document}
		if r.OK() {
			report := r.Report
			entry.Report = &report
		} else {
			entry.Error = r.Err.Error()
		}
		if showRaw && json.Valid([]byte(r.RawJSON)) {
			entry.RawJSON = json.RawMessage(r.RawJSON)
		}
		doc.Reports = append(doc.Reports, entry)
	}
	if cmp != nil {
		c := render.NewComparisonDocument(*cmp, t.opts)
		doc.Comparison = &c
	}

	enc := json.NewEncoder(t.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}
	return nil
}

func successful(results []pipeline.Result) []pipeline.Result {
	ok := make([]pipeline.Result, 0, len(results))
	for _, r := range results {
		if r.OK() {
			ok = append(ok, r)
		}
	}
	return ok
}

// reportFailures prints one line per failed document and returns
// ErrDocumentsFailed when there was at least one.
func reportFailures(cmd *cobra.Command, results []pipeline.Result) error {
	failed := 0
	for _, r := range results {
		if r.OK() {
			continue
		}
		failed++
		cmd.PrintErrf("✗ %s: %v\n", r.Document, r.Err)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrDocumentsFailed, failed, len(results))
	}
	return nil
}

// compareIfPair runs the comparison barrier when exactly two documents were
// given and both succeeded.
func compareIfPair(cmd *cobra.Command, results []pipeline.Result) *engine.ComparisonResult {
	if len(results) != 2 { //nolint:mnd // comparison is binary
		return nil
	}
	c, err := pipeline.CompareResults(results)
	if err != nil {
		logging.FromContext(cmd.Context()).Warn().
			Ctx(cmd.Context()).
			Str("component", "cli").
			Str("operation", "compare").
			Err(err).
			Msg("skipping comparison")
		return nil
	}
	return &c
}
