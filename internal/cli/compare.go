package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/carbonledger/esgscan/internal/engine"
	"github.com/carbonledger/esgscan/internal/logging"
	"github.com/carbonledger/esgscan/internal/render"
)

// NewCompareCmd creates the compare command for two saved reports.
func NewCompareCmd() *cobra.Command {
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "compare <baseline-report.json> <comparison-report.json>",
		Short: "Compare two saved carbon reports",
		Long: `Loads two reports previously exported with "-o json" and shows the change in
emissions, the per-category matrix, top contributors and dominant categories.
The first report is the baseline.`,
		Example: `  esgscan compute jan.json -o json > jan-report.json
  esgscan compute feb.json -o json > feb-report.json
  esgscan compare jan-report.json feb-report.json`,
		Args: cobra.ExactArgs(2), //nolint:mnd // baseline and comparison
		RunE: func(cmd *cobra.Command, args []string) error {
			baseline, err := loadReport(args[0])
			if err != nil {
				return err
			}
			comparison, err := loadReport(args[1])
			if err != nil {
				return err
			}

			c := engine.Compare(baseline, comparison)
			logging.FromContext(cmd.Context()).Debug().
				Ctx(cmd.Context()).
				Str("component", "cli").
				Str("operation", "compare").
				Float64("delta_kg", c.DeltaKg).
				Float64("percent_change", c.PercentChange).
				Msg("reports compared")

			target, err := out.open(cmd)
			if err != nil {
				return err
			}
			if err = render.WriteComparison(target.w, target.format, c, target.opts); err != nil {
				_ = target.close()
				return err
			}
			return target.close()
		},
	}
	out.register(cmd)
	return cmd
}

// loadReport reads a single-report export.
func loadReport(path string) (engine.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Report{}, fmt.Errorf("reading report %s: %w", path, err)
	}

	var multi struct {
		Reports []json.RawMessage `json:"reports"`
	}
	if json.Unmarshal(data, &multi) == nil && multi.Reports != nil {
		return engine.Report{}, fmt.Errorf("%s holds %d analysed documents, export each one separately", path, len(multi.Reports))
	}
	r, err := engine.DecodeReport(data)
	if err != nil {
		return engine.Report{}, fmt.Errorf("loading report %s: %w", path, err)
	}
	return r, nil
}
