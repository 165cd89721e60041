/*
main.go - Application entry point

PURPOSE:
  Command-line front end of the gift-certificate engine. Loads
  configuration, wires the store, event sinks, metrics, and service, then
  runs the requested command.

COMMANDS:
  serve    HTTP API plus the background expiry sweeper (default)
  sweep    One expiry pass over every organization, then exit
  seed     Load a demo scenario into an organization
  version  Print the build version

GLOBAL FLAGS:
  --config   Path to YAML config file (see internal/config)
  --debug    Debug logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweeper
  2. Stop accepting new connections
  3. Wait for active requests to complete (shutdown timeout)
  4. Close event sinks and the database
  5. Exit

EXAMPLES:
  # Run with a file database
  ./server serve --config ./giftcert.yaml

  # Run in memory
  GIFTCERT_DATABASE_DRIVER=memory ./server serve

  # Expire overdue certificates from cron
  ./server sweep

SEE ALSO:
  - app.go: Dependency wiring
  - api/server.go: Router configuration
  - internal/config: Configuration loading
*/
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/giftcert-engine/internal/config"
)

const programName = "giftcert"

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var globalFlags = struct {
	debug      bool
	configFile string
}{}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if globalFlags.debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: globalFlags.debug}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// loadConfig reads the config and builds the logger every command shares.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(globalFlags.configFile)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg)
	logger.Info("version: "+Version, "component", programName)
	return cfg, logger, nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), programName, Version)
		},
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Gift-certificate ledger and redemption engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd, args)
		},
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.configFile, "config", "", "path to config file")

	rootCmd.AddCommand(
		serveCommand(),
		sweepCommand(),
		seedCommand(),
		versionCommand(),
	)
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error(err.Error(), "component", programName)
		os.Exit(1)
	}
}
