package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carbonledger/esgscan/internal/config"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long: `Validates the effective configuration: output and logging settings,
extraction settings and any custom emission factor rules.`,
		Example: `  # Validate current configuration
  esgscan config validate

  # Validate and show detailed information
  esgscan config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	cfg := config.GetGlobalConfig()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	resolver, err := cfg.Resolver()
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cmd.Printf("✅ Configuration is valid\n")

	if verbose {
		cmd.Println()
		cmd.Println("Configuration details:")
		cmd.Printf("  Output format: %s\n", cfg.Output.DefaultFormat)
		cmd.Printf("  Output precision: %d\n", cfg.Output.Precision)
		cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
		cmd.Printf("  Log file: %s\n", cfg.Logging.File)
		cmd.Printf("  Extraction model: %s (timeout %s, concurrency %d)\n",
			cfg.Extraction.Model, cfg.Extraction.Timeout, cfg.Extraction.Concurrency)
		if cfg.APIKey() == "" {
			cmd.Printf("  API key: %s is not set (only JSON drafts can be analysed)\n", cfg.Extraction.APIKeyEnv)
		} else {
			cmd.Printf("  API key: read from %s\n", cfg.Extraction.APIKeyEnv)
		}
		cmd.Printf("  Emission factor rules: %d (fallbacks: %d)\n", len(resolver.Rules()), len(resolver.Fallbacks()))
	}

	return nil
}
