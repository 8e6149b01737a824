package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/carbonledger/esgscan/internal/config"
	"github.com/carbonledger/esgscan/internal/extract"
	"github.com/carbonledger/esgscan/internal/pipeline"
)

// NewComputeCmd creates the compute command, which compiles reports from
// already-extracted draft records without contacting any service.
func NewComputeCmd() *cobra.Command {
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "compute <draft.json> [comparison-draft.json]",
		Short: "Compute a carbon report from extracted draft JSON",
		Long: `Reads one or two draft records (the raw JSON returned by extraction) and
compiles them into carbon reports. Slightly malformed JSON is repaired.
Use "-" to read a draft from stdin. With two drafts the first is the baseline
and a comparison is rendered as well.`,
		Example: `  esgscan compute draft.json
  esgscan compute jan.json feb.json -o json
  cat draft.json | esgscan compute -`,
		Args: cobra.RangeArgs(1, 2), //nolint:mnd // one report or a pair
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompute(cmd, args, &out)
		},
	}
	out.register(cmd)
	return cmd
}

func runCompute(cmd *cobra.Command, paths []string, out *outputFlags) error {
	docs := make([]extract.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := readDraft(cmd, path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	compiler, err := newCompiler(config.GetGlobalConfig())
	if err != nil {
		return err
	}

	analyzer := pipeline.NewAnalyzer(extract.DraftFileProvider{}, compiler)
	results := analyzer.AnalyzeAll(cmd.Context(), docs)
	return renderResults(cmd, out, results, false)
}

// readDraft loads a draft without content sniffing, so JSON that needs
// repair still reaches the parser.
func readDraft(cmd *cobra.Command, path string) (extract.Document, error) {
	var (
		data []byte
		err  error
		name = filepath.Base(path)
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
		name = "stdin"
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return extract.Document{}, fmt.Errorf("reading draft %s: %w", path, err)
	}
	return extract.Document{Name: name, MIMEType: extract.MIMEJSON, Data: data}, nil
}
