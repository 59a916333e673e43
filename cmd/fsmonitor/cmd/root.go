// Package cmd provides the CLI commands for fsmonitor.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsmonitor/internal/logging"
	"github.com/Aman-CERP/fsmonitor/pkg/version"
)

// Logging flags
var (
	debugMode      bool
	logLevel       string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the fsmonitor CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fsmonitor",
		Short: "Debounced file-system change notifier",
		Long: `fsmonitor watches a directory and reports one change per burst of
activity, after a quiet period with no further writes.

Editor swap files, backups and partial downloads are ignored, so saving a
file in an editor or finishing a download produces a single notification.
Optionally runs a command on every notification.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("fsmonitor version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.fsmonitor/logs/")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Console log level (debug, info, warn, error)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the default logger: a rotating JSON file with
// --debug, a text logger on stderr otherwise.
func startLogging(cmd *cobra.Command, _ []string) error {
	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
		return nil
	}

	slog.SetDefault(logging.NewConsole(cmd.ErrOrStderr(), logLevel))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
