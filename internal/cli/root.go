package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rshade/phonecheck/internal/config"
	"github.com/rshade/phonecheck/internal/logging"
)

// logger is the package-level logger for CLI operations.
var logger = zerolog.Nop() //nolint:gochecknoglobals // Required for zerolog context integration

// rootFlags holds the values bound to the root command's flags.
type rootFlags struct {
	online     bool
	configPath string
	envFile    string
	region     string
	rate       int
	cache      bool
	debug      bool
	quiet      bool
}

// NewRootCmd creates the root Cobra command for the phonecheck CLI.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit env lookup for testability.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	var (
		flags     rootFlags
		cfg       *config.Config
		logResult *logging.Result
	)

	cmd := &cobra.Command{
		Use:   "phonecheck INPUT OUTPUT",
		Short: "Validate phone numbers listed in a CSV file",
		Long: `phonecheck validates the phone numbers of a contact CSV file.

Offline mode (the default) checks every number against the numbering plan of
the configured region and writes the invalid rows, annotated "Invalid".

Online mode (--online) looks every row up through the PhoneValidator API, at
most --rate requests per second, and writes each row with the line type the
provider returned. Interrupting an online run writes the rows completed so far.`,
		Version:       ver,
		Example:       rootCmdExample,
		Args:          exactPaths,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig(cmd, &flags, lookupEnv)
			if err != nil {
				return err
			}
			cfg = loaded

			result, err := setupLogging(cmd, cfg)
			if err != nil {
				return err
			}
			logResult = result
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// PersistentPostRunE is skipped when RunE fails, so the log file is closed here.
			err := runValidation(cmd, runOptions{
				input:     args[0],
				output:    args[1],
				online:    flags.online,
				quiet:     flags.quiet,
				cfg:       cfg,
				lookupEnv: lookupEnv,
			})
			if closeErr := cleanupLogging(logResult); err == nil {
				err = closeErr
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&flags.online, "online", false, "look numbers up through the PhoneValidator API")
	cmd.Flags().StringVar(&flags.configPath, "config", "",
		"path to a YAML config file (default ~/.phonecheck/config.yaml)")
	cmd.Flags().StringVar(&flags.envFile, "env-file", "", "path to a .env file (default ./.env if present)")
	cmd.Flags().StringVar(&flags.region, "region", "",
		"region assumed for numbers without a country code (overrides config)")
	cmd.Flags().IntVar(&flags.rate, "rate", 0, "lookup requests per second (overrides config)")
	cmd.Flags().BoolVar(&flags.cache, "cache", false, "reuse line types resolved by earlier online runs (overrides config)")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	cmd.Flags().BoolVar(&flags.quiet, "quiet", false, "disable the progress line")

	return cmd
}

// loadConfig resolves settings from the .env file, the config file, the
// environment and the command's flags, in increasing precedence.
func loadConfig(
	cmd *cobra.Command,
	flags *rootFlags,
	lookupEnv func(string) (string, bool),
) (*config.Config, error) {
	if err := config.LoadDotEnv(flags.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(flags.configPath, lookupEnv)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("region") {
		cfg.Offline.Region = flags.region
	}
	if cmd.Flags().Changed("rate") {
		cfg.Lookup.RateLimit = flags.rate
	}
	if cmd.Flags().Changed("cache") {
		cfg.Lookup.Cache.Enabled = flags.cache
	}
	if flags.debug {
		cfg.Logging.Level = "debug"
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const rootCmdExample = `  # Write the rows whose numbers are not valid US numbers
  phonecheck contacts.csv invalid.csv

  # Validate against the UK numbering plan
  phonecheck contacts.csv invalid.csv --region GB

  # Resolve line types online (needs PHONE_VALIDATOR_API_KEY)
  phonecheck contacts.csv typed.csv --online

  # Online, with the API key in a .env file and no progress line
  phonecheck contacts.csv typed.csv --online --env-file ./secrets.env --quiet`
