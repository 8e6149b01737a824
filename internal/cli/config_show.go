package cli

import (
	"github.com/spf13/cobra"

	"github.com/carbonledger/esgscan/internal/config"
)

// NewConfigShowCmd prints the effective configuration after the global
// file, project overlay and environment have been applied.
func NewConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			if path := cfg.ConfigPath(); path != "" {
				cmd.Printf("# %s\n", path)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
