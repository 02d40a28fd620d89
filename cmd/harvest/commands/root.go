package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"harvest-backend/lib/configutil"
	"harvest-backend/lib/restyutil"
	"harvest-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	outPath    string
	timeout    time.Duration
	configPath string

	cfg         Config
	restyOutput restyutil.InstrumentOutput
)

var rootCmd = &cobra.Command{
	Use:           "harvest",
	Short:         "harvest scrapes menus, reviews, forum posts and websites into json, csv or a database.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		loaded, err := configutil.ReadConfigWithDefaults(configPath, defaultConfig)
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no config file found, using defaults", "path", configPath)
		} else if err != nil {
			return err
		}
		cfg = loaded

		if verbose {
			out, err := restyutil.NewFilesystemOutput("<dev_state>/resty/harvest")
			if err != nil {
				slog.Warn("failed to create resty output", "err", err)
			} else {
				restyOutput = out
			}
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging/instrumentation.")
	flags.StringVar(&outPath, "out", "", "The file to write results to, each command has its own default.")
	flags.DurationVar(&timeout, "timeout", 10*time.Minute, "The maximum duration of the whole run.")
	flags.StringVar(&configPath, "config", "harvest.json5", "The config file to read.")
}

// runContext bounds the command's context by --timeout.
func runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func ExecuteContext(ctx context.Context) {
	tel, err := telemetry.SetupFromEnv(ctx, "harvest")
	if err != nil {
		slog.Warn("setup telemetry", "err", err)
	}

	err = rootCmd.ExecuteContext(ctx)

	shutdownErr := tel.Shutdown(context.Background())
	if shutdownErr != nil {
		slog.Warn("shutdown telemetry", "err", shutdownErr)
	}
	if err != nil {
		slog.Error("harvest failed", "err", err)
		os.Exit(1)
	}
}
