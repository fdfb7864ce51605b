// Command netexec runs a batch of CLI commands on one network device over
// SSH and prints the result document as JSON.
//
//	netexec <request.json> [output.json]
//
// The result goes to stdout and, when output.json is given, to that file.
// Logs go to stderr. The exit code is 0 only for a successful result.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/andrej220/netexec/internal/app"
	"github.com/andrej220/netexec/internal/persistence"
	"github.com/andrej220/netexec/pkg/config"
	pe "github.com/andrej220/netexec/pkg/executor"
	"github.com/andrej220/netexec/pkg/lg"
	dm "github.com/andrej220/netexec/pkg/shared-models"
)

const serviceName = "netexec"

type cliFlags struct {
	debug     bool
	logFormat string
	settings  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := 1
	cmd := newRootCmd(afero.NewOsFs(), os.Stdout, &code)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(code)
}

func newRootCmd(fs afero.Fs, stdout io.Writer, code *int) *cobra.Command {
	var flags cliFlags

	cmd := &cobra.Command{
		Use:   "netexec <request.json> [output.json]",
		Short: "Execute CLI commands on a network device over SSH",
		Long: `netexec reads a JSON request naming one device and a list of commands,
runs them over an interactive SSH session, saves the configuration when any
command entered configuration mode, and prints a JSON result.`,
		Args:              cobra.RangeArgs(1, 2),
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			settings, err := resolveSettings(cmd, fs, flags)
			if err != nil {
				*code = reportSettingsError(stdout, fs, err)
				return nil
			}

			logger := lg.New(&lg.Config{
				ServiceName: serviceName,
				Debug:       settings.Log.Debug,
				Format:      settings.Log.Format,
			})
			defer logger.Sync()

			provider := pe.NewSSHProvider(pe.SSHProviderConfig{
				ConnectTimeout:     settings.SSH.ConnectTimeout,
				ReadTimeout:        settings.SSH.ReadTimeout,
				KnownHostsFile:     settings.SSH.KnownHostsFile,
				BreakerMaxFailures: settings.SSH.Breaker.MaxFailures,
				BreakerOpenTimeout: settings.SSH.Breaker.OpenTimeout,
			}, logger)

			opts := app.Options{
				RequestPath: args[0],
				Fs:          fs,
				Stdout:      stdout,
				Provider:    provider,
				Logger:      logger,
			}
			if len(args) == 2 {
				opts.OutputPath = args[1]
			}
			*code = app.Run(cmd.Context(), opts)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "console", "log encoding: json or console")
	cmd.Flags().StringVar(&flags.settings, "settings", "", "path to a YAML settings file")

	return cmd
}

// resolveSettings overlays explicitly given flags on the settings file.
func resolveSettings(cmd *cobra.Command, fs afero.Fs, flags cliFlags) (config.Settings, error) {
	settings, err := config.Load(fs, flags.settings)
	if err != nil {
		return config.Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	if cmd.Flags().Changed("debug") {
		settings.Log.Debug = flags.debug
	}
	if cmd.Flags().Changed("log-format") {
		settings.Log.Format = flags.logFormat
	}
	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

// reportSettingsError prints a failed result so a run without usable
// settings still produces a result document.
func reportSettingsError(stdout io.Writer, fs afero.Fs, err error) int {
	logger := lg.New(&lg.Config{ServiceName: serviceName})
	defer logger.Sync()
	logger.Error("Invalid settings", lg.Err(err))

	res := dm.NewFailure(dm.KindUnexpected, err.Error(), "", time.Now())
	if perr := persistence.NewSink(stdout, fs, "").Print(res); perr != nil {
		logger.Error("Failed to print result", lg.Err(perr))
	}
	return 1
}
