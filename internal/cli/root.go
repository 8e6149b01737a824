// Package cli implements the esgscan command tree.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carbonledger/esgscan/internal/config"
	"github.com/carbonledger/esgscan/internal/logging"
)

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// ErrDocumentsFailed is returned when at least one input document could not
// be analysed. Successful documents are still rendered.
var ErrDocumentsFailed = errors.New("one or more documents failed")

// NewRootCmd creates the root Cobra command for the esgscan CLI. It loads
// .env and configuration, wires logging and tracing, and registers the
// subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:           "esgscan",
		Short:         "Scope-3 carbon accounting for supplier invoices",
		Long:          "esgscan extracts line items from invoices and computes their CO2e footprint with a deterministic emission factor table.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(cmd); err != nil {
				return err
			}

			projectFlag, _ := cmd.Flags().GetString("project-dir")
			cwd, _ := os.Getwd()
			projectDir := config.ResolveProjectDir(cmd.Context(), projectFlag, cwd)
			config.SetGlobalConfig(config.NewWithProjectDir(cmd.Context(), projectDir))

			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if logResult != nil {
				return logResult.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("project-dir", "", "project directory containing .esgscan/config.yaml")
	cmd.PersistentFlags().String("env-file", ".env", "dotenv file to load before reading configuration")

	cmd.AddCommand(
		NewAnalyzeCmd(),
		NewComputeCmd(),
		NewCompareCmd(),
		NewFactorsCmd(),
		NewCacheCmd(),
		newConfigCmd(),
	)

	return cmd
}

// loadEnvFile loads the --env-file into the process environment without
// overriding variables that are already set. A missing default file is fine.
func loadEnvFile(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("env-file") {
			return nil
		}
		return fmt.Errorf("reading env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

const rootCmdExample = `  # Analyse an invoice with the extraction service
  esgscan analyze invoice.pdf

  # Analyse two invoices and compare them (first is the baseline)
  esgscan analyze q1.pdf q2.pdf --output html --out-file comparison.html

  # Compute a report from an already extracted draft
  esgscan compute draft.json --output json > report.json

  # Compare two saved reports
  esgscan compare q1-report.json q2-report.json

  # Show the emission factor table
  esgscan factors

  # Initialize configuration
  esgscan config init`

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigShowCmd(), NewConfigValidateCmd())
	return cmd
}
