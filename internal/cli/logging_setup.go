package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/phonecheck/internal/config"
	"github.com/rshade/phonecheck/internal/logging"
)

// setupLogging builds the run's logger from cfg and attaches it, with a fresh
// run ID, to the command context.
func setupLogging(cmd *cobra.Command, cfg *config.Config) (*logging.Result, error) {
	result, err := logging.NewLogger(cfg.Logging.ToLoggingConfig(), cmd.ErrOrStderr())
	if err != nil {
		return nil, &config.ConfigError{Field: "logging.file", Err: err}
	}
	logger = logging.ComponentLogger(result.Logger, "cli")

	ctx := cmd.Context()
	runID := logging.GetOrGenerateRunID(ctx)
	ctx = logging.ContextWithRunID(ctx, runID)
	ctx = result.Logger.WithContext(ctx)
	cmd.SetContext(ctx)

	logger.Debug().Str("run_id", runID).Str("command", cmd.Name()).Msg("command started")

	return result, nil
}

// cleanupLogging closes the log file handle.
func cleanupLogging(logResult *logging.Result) error {
	return logResult.Close()
}
