// Package cmd provides the CLI commands for wordgrid.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wordgrid/internal/config"
	"github.com/Aman-CERP/wordgrid/internal/logging"
	"github.com/Aman-CERP/wordgrid/pkg/version"
)

// Persistent flags and the state they set up for subcommands.
var (
	debugMode  bool
	configFile string

	loggingCleanup func()
)

// NewRootCmd creates the root command for the wordgrid CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wordgrid",
		Short: "Index the words of a document by page, row and position",
		Long: `wordgrid turns the positioned text fragments of a document into words
located by page, row and position in row, stores them, and answers ranked
word searches.

Typical use:
  wordgrid index report.pdf
  wordgrid search report.pdf "net revenue"
  wordgrid serve report.pdf      # MCP server over stdio`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("wordgrid version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and ~/.wordgrid/logs/")
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: .wordgrid.yaml in the working directory)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newWordsCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the default logger. Logs go to the rotating file;
// --debug also mirrors them to stderr. Stdout stays free for command output
// and the MCP transport.
func startLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	} else if level := os.Getenv("WORDGRID_LOG_LEVEL"); level != "" {
		logCfg.Level = level
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// File logging is best effort; keep going with stderr-only debug output.
		logCfg.FilePath = ""
		logger, cleanup, err = logging.Setup(logCfg)
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("logging started", slog.String("version", version.Version), slog.Bool("debug", debugMode))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// loadConfig loads the layered configuration for the working directory and
// applies the configured log level unless --debug is set.
func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(wd, configFile)
	if err != nil {
		return nil, err
	}
	if !debugMode && os.Getenv("WORDGRID_LOG_LEVEL") == "" && cfg.Server.LogLevel != "info" {
		logCfg := logging.DefaultConfig()
		logCfg.Level = cfg.Server.LogLevel
		if logger, cleanup, err := logging.Setup(logCfg); err == nil {
			if loggingCleanup != nil {
				loggingCleanup()
			}
			loggingCleanup = cleanup
			slog.SetDefault(logger)
		}
	}
	return cfg, nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context, which abandons an indexing run without touching the store.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
