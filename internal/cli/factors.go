package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carbonledger/esgscan/internal/config"
	"github.com/carbonledger/esgscan/internal/factor"
	"github.com/carbonledger/esgscan/internal/render"
)

// NewFactorsCmd creates the factors command, which shows the active
// emission factor table.
func NewFactorsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "factors",
		Short: "Show the emission factor table",
		Long: `Lists the keyword rules in match order followed by the category fallbacks.
The first keyword found in "<item> <category>" (lower-cased) wins; if none
matches, the category fallbacks are tried in the order shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, err := config.GetGlobalConfig().Resolver()
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Rules     []factor.Rule `json:"rules"`
					Fallbacks []factor.Rule `json:"fallbacks"`
				}{resolver.Rules(), resolver.Fallbacks()})
			}
			return render.WriteFactorTable(cmd.OutOrStdout(), factorRows(resolver.Rules()), factorRows(resolver.Fallbacks()))
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the table as JSON")
	cmd.AddCommand(newFactorsResolveCmd())
	return cmd
}

func newFactorsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <item> [category]",
		Short: "Show which factor an item and category resolve to",
		Example: `  esgscan factors resolve "Diesel Fuel Purchase" Energy
  esgscan factors resolve "Grid supply" Energy`,
		Args: cobra.RangeArgs(1, 2), //nolint:mnd // item and optional category
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := config.GetGlobalConfig().Resolver()
			if err != nil {
				return err
			}
			category := ""
			if len(args) > 1 {
				category = args[1]
			}
			res := resolver.Resolve(args[0], category)

			cmd.Printf("Search key: %q\n", strings.ToLower(args[0]+" "+category))
			cmd.Printf("Factor:     %s kg CO2e/unit\n", render.Kg(res.Factor, 2)) //nolint:mnd // display precision
			cmd.Printf("Source:     %s\n", res.Source)
			if res.Keyword != "" {
				cmd.Printf("Keyword:    %s\n", res.Keyword)
			}
			return nil
		},
	}
}

func factorRows(rules []factor.Rule) []render.FactorRow {
	rows := make([]render.FactorRow, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, render.FactorRow{Keyword: r.Keyword, Factor: r.Factor, Unit: r.Unit})
	}
	return rows
}
