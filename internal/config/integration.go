package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

//nolint:gochecknoglobals // process-wide configuration shared by all commands
var (
	globalMu  sync.Mutex
	globalCfg *Config
)

// GetGlobalConfig returns the process configuration, loading it with New on
// first use.
func GetGlobalConfig() *Config {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalCfg == nil {
		globalCfg = New()
	}
	return globalCfg
}

// SetGlobalConfig replaces the process configuration, e.g. after a project
// overlay has been merged. Passing nil makes the next GetGlobalConfig reload.
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = cfg
}

// ResetGlobalConfigForTest drops the process configuration.
func ResetGlobalConfigForTest() {
	SetGlobalConfig(nil)
}

// EnsureLogDir creates the parent directory of file. An empty file is a
// no-op.
func EnsureLogDir(file string) error {
	if file == "" {
		return nil
	}
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating log directory %q: %w", dir, err)
	}
	return nil
}

// GetConfigDir returns $ESGSCAN_HOME, or ~/.esgscan when it is unset.
func GetConfigDir() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(homeDir, dirName), nil
}
