package cli

import (
	"github.com/spf13/cobra"

	"github.com/carbonledger/esgscan/internal/config"
	"github.com/carbonledger/esgscan/internal/logging"
)

// setupLogging configures logging from config, environment and the --debug
// flag, then stores the logger and a trace ID on the command context.
func setupLogging(cmd *cobra.Command) logging.LogPathResult {
	loggingCfg := config.GetLoggingConfig()

	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = "console"
		loggingCfg.File = ""
	}

	if err := config.EnsureLogDir(loggingCfg.File); err != nil {
		cmd.PrintErrf("Warning: %v\n", err)
	}

	lc := loggingCfg.ToLoggingConfig()
	if lc.Output == logging.OutputStderr {
		lc.Writer = cmd.ErrOrStderr()
	}
	result := logging.NewLoggerWithPath(lc)
	logger = logging.ComponentLogger(result.Logger, "cli")

	if result.UsingFile {
		logging.PrintLogPathMessage(cmd.ErrOrStderr(), result.FilePath)
	} else if result.FallbackUsed {
		logging.PrintFallbackWarning(cmd.ErrOrStderr(), result.FallbackReason)
	}

	ctx := cmd.Context()
	traceID := logging.GetOrGenerateTraceID(ctx)
	ctx = logging.ContextWithTraceID(ctx, traceID)
	ctx = logger.WithContext(ctx)
	cmd.SetContext(ctx)

	logger.Debug().Ctx(ctx).Str("command", cmd.Name()).Msg("command started")

	return result
}
