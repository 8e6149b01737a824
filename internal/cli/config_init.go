package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/carbonledger/esgscan/internal/config"
)

// NewConfigInitCmd creates the config init command. By default it writes
// the global ~/.esgscan/config.yaml; with --project it writes
// ./.esgscan/config.yaml and a .gitignore.
func NewConfigInitCmd() *cobra.Command {
	var (
		force   bool
		project bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

Without flags the global file ($ESGSCAN_HOME/config.yaml, default
~/.esgscan/config.yaml) is created. With --project a project-local
.esgscan/config.yaml is created in the current directory (or --project-dir)
together with a .gitignore that keeps .env files and exports out of git.`,
		Example: `  # Create global configuration
  esgscan config init

  # Create project-local configuration
  esgscan config init --project

  # Overwrite an existing file
  esgscan config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if project {
				dir, _ := cmd.Flags().GetString("project-dir")
				if dir == "" {
					dir = "."
				}
				return initProjectConfig(cmd, config.ResolveProjectDir(cmd.Context(), dir, ""), force)
			}
			return initGlobalConfig(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().BoolVar(&project, "project", false, "create project-local configuration instead of global")

	return cmd
}

// initProjectConfig creates projectDir/config.yaml with a .gitignore.
func initProjectConfig(cmd *cobra.Command, projectDir string, force bool) error {
	configPath := filepath.Join(projectDir, "config.yaml")
	if err := checkNotExists(configPath, force); err != nil {
		return err
	}

	cfg := config.Defaults()
	cfg.SetConfigPath(configPath)
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	created, err := config.EnsureGitignore(projectDir)
	if err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}

	cmd.Printf("Configuration initialized at %s\n", configPath)
	if created {
		cmd.Printf("Created %s\n", filepath.Join(projectDir, ".gitignore"))
	}
	return nil
}

// initGlobalConfig creates the global config file.
func initGlobalConfig(cmd *cobra.Command, force bool) error {
	cfg := config.Defaults()
	dir, err := config.GetConfigDir()
	if err != nil {
		return err
	}
	cfg.SetConfigPath(filepath.Join(dir, "config.yaml"))

	if err = checkNotExists(cfg.ConfigPath(), force); err != nil {
		return err
	}
	if err = cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", cfg.ConfigPath())
	return nil
}

func checkNotExists(path string, force bool) error {
	if force {
		return nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return errors.New("configuration file already exists, use --force to overwrite")
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("cannot access config path %s: %w", path, err)
	}
	return nil
}
