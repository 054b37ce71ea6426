package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/contracttrader/config"
	"github.com/rustyeddy/contracttrader/pkg/logging"
)

var (
	cfgPath  string
	logLevel string
	logFile  string

	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Open and close venue contracts from the command line or over HTTP",
	Long: `Trader drives single contract trades against a websocket trading venue.

It provides:
  - place / close   one trade against the live venue
  - serve           the same operations as a JSON endpoint
  - demo            the same operations against a simulated venue
  - config          configuration file helpers

The venue token is read from the config file or the VENUE_API_TOKEN
environment variable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Interrupts cancel the running trade.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := execute(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

// execute runs the command tree and closes the log file whether or not the
// command failed.
func execute(ctx context.Context) error {
	defer closeLog()
	return rootCmd.ExecuteContext(ctx)
}

func closeLog() {
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}

// skipSetup marks commands that run without loading config or logging.
const skipSetup = "skip-setup"

func init() {
	rootCmd.PersistentPreRunE = setup
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write JSON logs to a rotated file instead of stderr")
}

func setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipSetup] != "" {
		return nil
	}

	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	logCloser, err = logging.Setup(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	return err
}
