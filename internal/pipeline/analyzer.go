// Package pipeline runs documents through extraction, ingest and compilation.
//
// Documents are independent: each one is extracted and compiled on its own
// goroutine, and a failure is recorded on that document's Result without
// cancelling its siblings. Comparison is a separate step that waits for all
// of them.
package pipeline

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/carbonledger/esgscan/internal/engine"
	"github.com/carbonledger/esgscan/internal/extract"
	"github.com/carbonledger/esgscan/internal/ingest"
	"github.com/carbonledger/esgscan/internal/logging"
)

// DefaultConcurrency bounds concurrent extractions when none is configured.
const DefaultConcurrency = 4

// ErrNeedTwoReports is returned by CompareResults unless exactly two
// documents were analysed successfully.
var ErrNeedTwoReports = errors.New("comparison requires exactly two analysed reports")

// Result is the outcome of analysing one document. Exactly one of Report and
// Err is meaningful.
type Result struct {
	Document string        `json:"document"`
	Report   engine.Report `json:"report"`
	RawJSON  string        `json:"raw_json,omitempty"`
	Err      error         `json:"-"`
}

// OK reports whether the document was analysed successfully.
func (r Result) OK() bool {
	return r.Err == nil
}

// Analyzer wires an extraction provider to the report compiler.
type Analyzer struct {
	provider    extract.Provider
	compiler    *engine.Compiler
	concurrency int
	timeout     time.Duration
	newID       func() string
	onProgress  ProgressFunc
}

// Progress is reported by AnalyzeAll after each document finishes.
type Progress struct {
	Done    int
	Failed  int
	Total   int
	Last    string
	Elapsed time.Duration
}

// ProgressFunc receives progress updates. Calls are serialised.
type ProgressFunc func(Progress)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithConcurrency bounds the number of documents extracted at once.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n >= 1 {
			a.concurrency = n
		}
	}
}

// WithDocumentTimeout bounds the extraction of each document. Zero means no
// limit beyond the caller's context.
func WithDocumentTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithProgress registers a callback invoked after each document completes.
func WithProgress(f ProgressFunc) Option {
	return func(a *Analyzer) {
		a.onProgress = f
	}
}

// WithIDGenerator overrides how report IDs are minted.
func WithIDGenerator(f func() string) Option {
	return func(a *Analyzer) {
		if f != nil {
			a.newID = f
		}
	}
}

// NewAnalyzer returns an Analyzer. A nil compiler uses the built-in factor table.
func NewAnalyzer(p extract.Provider, c *engine.Compiler, opts ...Option) *Analyzer {
	if c == nil {
		c = engine.NewCompiler(nil)
	}
	a := &Analyzer{
		provider:    p,
		compiler:    c,
		concurrency: DefaultConcurrency,
		newID:       newReportID,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze extracts, validates and compiles a single document.
func (a *Analyzer) Analyze(ctx context.Context, doc extract.Document) Result {
	log := logging.FromContext(ctx)
	result := Result{Document: doc.Name}

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	extractCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.provider.Extract(extractCtx, doc)
	if err != nil {
		result.Err = fmt.Errorf("extracting %s: %w", doc.Name, err)
		return result
	}
	result.RawJSON = string(raw)

	draft, err := ingest.ParseDraft(ctx, raw)
	if err != nil {
		result.Err = fmt.Errorf("parsing draft for %s: %w", doc.Name, err)
		return result
	}
	draft.ReportID = a.newID()
	draft.Source = doc.Name

	report, err := a.compiler.Compile(ctx, draft)
	if err != nil {
		result.Err = fmt.Errorf("compiling %s: %w", doc.Name, err)
		return result
	}
	result.Report = report

	log.Info().
		Ctx(ctx).
		Str("component", "pipeline").
		Str("operation", "analyze").
		Str("document", doc.Name).
		Str("report_id", result.Report.ID).
		Int("line_items", len(result.Report.LineItems)).
		Float64("total_kg", result.Report.TotalCarbonEmissionKg).
		Msg("document analysed")

	return result
}

// AnalyzeAll analyses documents concurrently and returns results in input
// order. A failing document never stops the others.
func (a *Analyzer) AnalyzeAll(ctx context.Context, docs []extract.Document) []Result {
	results := make([]Result, len(docs))

	var (
		mu       sync.Mutex
		progress = Progress{Total: len(docs)}
		start    = time.Now()
	)
	report := func(r Result) {
		if a.onProgress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		progress.Done++
		if !r.OK() {
			progress.Failed++
		}
		progress.Last = r.Document
		progress.Elapsed = time.Since(start)
		a.onProgress(progress)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, doc := range docs {
		g.Go(func() error {
			results[i] = a.Analyze(gCtx, doc)
			if results[i].Err != nil {
				logging.FromContext(gCtx).Warn().
					Ctx(gCtx).
					Str("component", "pipeline").
					Str("operation", "analyze_all").
					Str("document", doc.Name).
					Err(results[i].Err).
					Msg("document analysis failed")
			}
			report(results[i])
			// Never return the error: one bad document must not cancel gCtx.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// CompareResults compares two analysed documents, the first being the
// baseline. It fails unless both results are successful.
func CompareResults(results []Result) (engine.ComparisonResult, error) {
	if len(results) != 2 { //nolint:mnd // comparison is binary
		return engine.ComparisonResult{}, fmt.Errorf("%w: got %d", ErrNeedTwoReports, len(results))
	}
	for _, r := range results {
		if !r.OK() {
			return engine.ComparisonResult{}, fmt.Errorf("%w: %s failed: %w", ErrNeedTwoReports, r.Document, r.Err)
		}
	}
	return engine.Compare(results[0].Report, results[1].Report), nil
}

func newReportID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
