package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carbonledger/esgscan/internal/config"
	"github.com/carbonledger/esgscan/internal/engine"
	"github.com/carbonledger/esgscan/internal/extract"
	"github.com/carbonledger/esgscan/internal/ingest"
	"github.com/carbonledger/esgscan/internal/logging"
	"github.com/carbonledger/esgscan/internal/pipeline"
	"github.com/carbonledger/esgscan/internal/render"
)

// analyzeOptions holds the analyze command's flags.
type analyzeOptions struct {
	out         outputFlags
	concurrency int
	timeout     time.Duration
	model       string
	offline     bool
	raw         bool
	noCache     bool
}

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <document>...",
		Short: "Extract invoice line items and compute their carbon footprint",
		Long: `Sends each document (PDF, PNG, JPEG or WEBP) to the extraction service and
compiles the returned line items into a carbon report. JSON files are treated
as already-extracted drafts and never leave the machine.

Documents are processed concurrently; one failing document does not stop the
others. With exactly two documents the first is the baseline and a comparison
is rendered as well.`,
		Example: `  # Analyse one invoice
  esgscan analyze invoice.pdf

  # Compare two invoices and export a workbook
  esgscan analyze jan.pdf feb.pdf -o xlsx --out-file comparison.xlsx

  # Re-run from saved drafts without calling the extraction service
  esgscan analyze --offline jan.json feb.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	opts.out.register(cmd)
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "documents extracted at once (default from config)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "per-document extraction timeout (default from config)")
	cmd.Flags().StringVar(&opts.model, "model", "", "extraction model (default from config)")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "accept only pre-extracted JSON drafts")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "include the raw extraction response")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "always call the extraction service")

	return cmd
}

func runAnalyze(cmd *cobra.Command, paths []string, opts analyzeOptions) error {
	ctx := cmd.Context()
	log := logging.FromContext(ctx)

	cfg := *config.GetGlobalConfig()
	if opts.concurrency > 0 {
		cfg.Extraction.Concurrency = opts.concurrency
	}
	if opts.timeout > 0 {
		cfg.Extraction.Timeout = opts.timeout
	}
	if opts.model != "" {
		cfg.Extraction.Model = opts.model
	}
	if opts.noCache {
		cfg.Cache.Enabled = false
	}

	docs := make([]extract.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := extract.LoadDocument(path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	provider, err := newProvider(ctx, &cfg, docs, opts.offline)
	if err != nil {
		return err
	}

	compiler, err := newCompiler(&cfg)
	if err != nil {
		return err
	}

	pipelineOpts := []pipeline.Option{
		pipeline.WithConcurrency(cfg.Extraction.Concurrency),
		pipeline.WithDocumentTimeout(cfg.Extraction.Timeout),
	}
	if render.IsTerminal(cmd.ErrOrStderr()) {
		pipelineOpts = append(pipelineOpts, pipeline.WithProgress(progressPrinter(cmd.ErrOrStderr())))
	}
	analyzer := pipeline.NewAnalyzer(provider, compiler, pipelineOpts...)

	log.Debug().
		Ctx(ctx).
		Str("component", "cli").
		Str("operation", "analyze").
		Int("documents", len(docs)).
		Int("concurrency", cfg.Extraction.Concurrency).
		Msg("analysing documents")

	results := analyzer.AnalyzeAll(ctx, docs)
	return renderResults(cmd, &opts.out, results, opts.raw)
}

// progressPrinter rewrites a single status line on w.
func progressPrinter(w io.Writer) pipeline.ProgressFunc {
	return func(p pipeline.Progress) {
		fmt.Fprintf(w, "\r\033[Kanalysed %d/%d", p.Done, p.Total)
		if p.Failed > 0 {
			fmt.Fprintf(w, " (%d failed)", p.Failed)
		}
		fmt.Fprintf(w, " %s, last %s", p.Elapsed.Round(time.Second), p.Last)
		if p.Done == p.Total {
			fmt.Fprintln(w)
		}
	}
}

// renderResults writes successful results, compares a successful pair, and
// then reports failures.
func renderResults(cmd *cobra.Command, out *outputFlags, results []pipeline.Result, raw bool) error {
	failErr := reportFailures(cmd, results)
	if len(successful(results)) == 0 {
		return failErr
	}

	target, err := out.open(cmd)
	if err != nil {
		return err
	}

	cmp := compareIfPair(cmd, results)
	if err = writeResults(target, results, cmp, raw); err != nil {
		_ = target.close()
		return err
	}
	if err = target.close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return failErr
}

// newProvider routes drafts locally and, when any binary document is
// present, connects to the extraction service.
func newProvider(ctx context.Context, cfg *config.Config, docs []extract.Document, offline bool) (extract.Provider, error) {
	router := extract.Router{Drafts: extract.DraftFileProvider{}}

	needsService := false
	for _, d := range docs {
		if !d.IsDraft() {
			needsService = true
			if offline {
				return nil, fmt.Errorf("%w: %s is %s and --offline accepts only JSON drafts",
					extract.ErrUnsupportedDocument, d.Name, d.MIMEType)
			}
		}
	}
	if !needsService {
		return router, nil
	}

	gemini, err := extract.NewGeminiProvider(ctx, extract.GeminiConfig{
		Model:       cfg.Extraction.Model,
		APIKey:      cfg.APIKey(),
		Temperature: cfg.Extraction.Temperature,
		Timeout:     cfg.Extraction.Timeout,
	})
	if errors.Is(err, extract.ErrMissingAPIKey) {
		return nil, fmt.Errorf("%w: set %s in the environment or a .env file", err, cfg.Extraction.APIKeyEnv)
	}
	if err != nil {
		return nil, err
	}
	router.Documents = withCache(ctx, cfg, gemini, gemini.CacheNamespace())
	return router, nil
}

// withCache wraps next in the response cache when caching is enabled. Only
// responses that parse as drafts are cached. A cache that cannot be opened is
// logged and skipped.
func withCache(ctx context.Context, cfg *config.Config, next extract.Provider, namespace string) extract.Provider {
	if !cfg.Cache.Enabled {
		return next
	}
	store, err := openCache(cfg)
	if err != nil {
		logging.FromContext(ctx).Warn().
			Ctx(ctx).
			Str("component", "cli").
			Str("operation", "open_cache").
			Err(err).
			Msg("extraction cache unavailable")
		return next
	}
	return extract.CachedProvider{
		Next:      next,
		Store:     store,
		Namespace: namespace,
		Accept:    parsesAsDraft(ctx),
	}
}

func parsesAsDraft(ctx context.Context) func([]byte) bool {
	nop := zerolog.Nop()
	quiet := nop.WithContext(ctx)
	return func(raw []byte) bool {
		_, err := ingest.ParseDraft(quiet, raw)
		return err == nil
	}
}

func newCompiler(cfg *config.Config) (*engine.Compiler, error) {
	resolver, err := cfg.Resolver()
	if err != nil {
		return nil, fmt.Errorf("loading emission factors: %w", err)
	}
	return engine.NewCompiler(resolver), nil
}
