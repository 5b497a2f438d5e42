package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/phonecheck/internal/config"
	"github.com/rshade/phonecheck/internal/contact"
	"github.com/rshade/phonecheck/internal/engine"
	"github.com/rshade/phonecheck/internal/logging"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
)

// summaryPrecision is the rounding applied to the elapsed time in the summary.
const summaryPrecision = time.Millisecond

// runOptions carries everything one validation run needs.
type runOptions struct {
	input     string
	output    string
	online    bool
	quiet     bool
	cfg       *config.Config
	lookupEnv func(string) (string, bool)
}

// exactPaths requires the INPUT and OUTPUT arguments.
func exactPaths(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(2)(cmd, args); err != nil { //nolint:mnd // INPUT and OUTPUT
		return &config.ConfigError{Field: "arguments", Err: fmt.Errorf("%w: %w", config.ErrMissingPath, err)}
	}
	for i, name := range []string{"INPUT", "OUTPUT"} {
		if strings.TrimSpace(args[i]) == "" {
			return &config.ConfigError{Field: name, Err: config.ErrMissingPath}
		}
	}
	return nil
}

// runValidation reads the input rows, validates them in the selected mode and
// prints a completion summary.
func runValidation(cmd *cobra.Command, opts runOptions) error {
	ctx := cmd.Context()

	rows, err := contact.ReadFile(opts.input)
	if err != nil {
		var decodeErr *contact.DecodeError
		if errors.As(err, &decodeErr) {
			return err
		}
		return &config.ConfigError{Field: opts.input, Err: fmt.Errorf("%w: %w", config.ErrUnreadable, err)}
	}

	eng := engine.New(opts.cfg).WithLogger(*logging.FromContext(ctx))
	sink := contact.NewFileSink(opts.output)

	var summary *engine.Summary
	if opts.online {
		apiKey, keyErr := opts.cfg.APIKey(opts.lookupEnv)
		if keyErr != nil {
			return keyErr
		}
		client, clientErr := eng.NewLookupClient(apiKey)
		if clientErr != nil {
			return clientErr
		}
		if !opts.quiet {
			eng.WithProgress(cmd.ErrOrStderr())
		}
		summary, err = eng.RunOnline(ctx, rows, client, sink)
	} else {
		summary, err = eng.RunOffline(ctx, rows, sink)
	}

	if err != nil {
		logger.Error().Ctx(ctx).Err(err).Msg("validation failed")
		if summary != nil {
			printSummary(cmd.OutOrStdout(), summary, opts.output)
		}
		return err
	}

	printSummary(cmd.OutOrStdout(), summary, opts.output)
	return nil
}

// printSummary writes the completion line, for example
// "Done! 1,204 rows written to out.csv in 2m3.456s". An interrupted run
// starts with "Interrupted." instead.
func printSummary(w io.Writer, summary *engine.Summary, output string) {
	p := message.NewPrinter(language.English)
	done := lipgloss.NewStyle().Bold(true).Render("Done!")

	if summary.Interrupted {
		done = lipgloss.NewStyle().Bold(true).Render("Interrupted.")
	}

	_, _ = p.Fprintf(w, "%s %d rows written to %s in %s\n",
		done, summary.WrittenRows, output, summary.Elapsed.Round(summaryPrecision).String())
	if summary.CacheHits > 0 {
		_, _ = p.Fprintf(w, "%d rows resolved from the lookup cache\n", summary.CacheHits)
	}
	if summary.ProviderErrors > 0 {
		_, _ = p.Fprintf(w, "%d lookups returned a provider error; their line type may be empty\n",
			summary.ProviderErrors)
	}
}

// ExitCode maps an error returned by the root command to a process exit code.
// Configuration problems exit with 2, every other failure with 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	return ExitFailure
}
