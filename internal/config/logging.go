package config

import (
	"github.com/carbonledger/esgscan/internal/logging"
)

// ToLoggingConfig converts the logging section for the logging package.
// A configured file switches output to that file; otherwise logs go to
// stderr.
func (lc LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = logging.OutputFile
	}

	format := lc.Format
	if format == "text" {
		format = logging.FormatConsole
	}

	return logging.Config{
		Level:  lc.Level,
		Format: format,
		Output: output,
		File:   lc.File,
	}
}

// GetLoggingConfig returns a copy of the global logging section. Flag
// overrides such as --debug are applied by the caller.
func GetLoggingConfig() LoggingConfig {
	return GetGlobalConfig().Logging
}
