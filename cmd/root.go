package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oakwood-commons/ccs/pkg/logger"
	"github.com/oakwood-commons/ccs/pkg/settings"
)

// Global flags.
var (
	configFile      string
	tokenFile       string
	cacheFile       string
	verbosity       int
	logFormat       string
	hideRepeatedLog bool
	noColor         bool
)

var rootCmd = &cobra.Command{
	Use:   settings.CliBinaryName,
	Short: "Command line browser for live vehicle state",
	Long: `ccs browses the state of connected vehicles like a file system.

Without a subcommand it starts an interactive shell. The one-shot commands
list, get, set and save refresh the state once, act on a single id and exit;
events streams changes until interrupted.`,
	Example:       "\n  ccs -c ccs.yaml\n  ccs -c ccs.yaml list -s\n  ccs -c ccs.yaml get /garage/vehicle1/mileage\n  ccs -c ccs.yaml set /garage/vehicle1/climatization/target_temperature 21.5\n",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		run := runSettings()
		lgr := logger.Get(logger.Options{
			Level:    run.MinLogLevel,
			Format:   run.LogFormat,
			Sampling: run.HideRepeats,
		})
		// Attach basic context about the command
		lgr = logger.WithValues(lgr, logger.RootCommandKey, settings.CliBinaryName, logger.SubCommandKey, cmd.Name())
		ctx := logger.WithLogger(cmd.Context(), lgr)
		cmd.SetContext(settings.IntoContext(ctx, run))
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runShell(cmd)
	},
}

// runSettings collects the global flags. The config path falls back to
// CCS_CONFIG.
func runSettings() *settings.Run {
	run := settings.NewCliParams()
	run.ConfigFile = configFile
	if run.ConfigFile == "" {
		run.ConfigFile = os.Getenv("CCS_CONFIG")
	}
	run.TokenFile = tokenFile
	run.CacheFile = cacheFile
	run.MinLogLevel = logger.LevelFromVerbosity(verbosity)
	if logFormat != "" {
		run.LogFormat = logFormat
	}
	run.HideRepeats = hideRepeatedLog
	run.NoColor = noColor || os.Getenv("NO_COLOR") != ""
	return run
}

func init() { //nolint:gochecknoinits
	flags := rootCmd.PersistentFlags()
	flags.SetNormalizeFunc(dashedFlags)
	flags.StringVarP(&configFile, "config", "c", "", "path to the configuration file (default $CCS_CONFIG)")
	flags.StringVar(&tokenFile, "tokenfile", settings.DefaultTokenFile(), "file holding the bearer token of http sources")
	flags.StringVar(&cacheFile, "cachefile", settings.DefaultCacheFile(), "snapshot cache file, empty to disable caching")
	flags.CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeat for more)")
	flags.StringVar(&logFormat, "log-format", logger.FormatJSON, "log encoding: json|console")
	flags.BoolVar(&hideRepeatedLog, "hide-repeated-log", false, "log repeated messages only once per second")
	flags.BoolVar(&noColor, "no-color", false, "disable color output")

	rootCmd.AddCommand(listCmd, getCmd, setCmd, saveCmd, eventsCmd, shellCmd, versionCmd)
}

// dashedFlags accepts --log_format for --log-format.
func dashedFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// Execute runs the command line. An interrupt cancels the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := userError(rootCmd.ExecuteContext(ctx))
	if err != nil {
		logger.GetGlobalLogger().Error(err, "command failed")
	}
	return err
}
