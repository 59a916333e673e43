package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsmonitor/internal/config"
	"github.com/Aman-CERP/fsmonitor/internal/errors"
	"github.com/Aman-CERP/fsmonitor/internal/logging"
	"github.com/Aman-CERP/fsmonitor/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		stateDir   string
	)

	cmd := &cobra.Command{
		Use:   "doctor [path]",
		Short: "Check that a directory can be watched",
		Long: `Run diagnostics for watching a directory (default: the current directory).

Checks:
  - The directory exists and is readable
  - Native notifications are available (otherwise polling is used)
  - The inotify watch limit covers the directory tree (Linux)
  - File descriptor limit (256 minimum)
  - The lock directory is writable

Use --verbose for detailed diagnostic information.
Use --json for machine-readable output.`,
		Example: `  # Check the current directory
  fsmonitor doctor

  # JSON output for scripting
  fsmonitor doctor ./assets --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runDoctor(cmd, path, stateDir, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&stateDir, "state-dir", logging.DefaultStateDir(), "Directory for lock files")
	_ = cmd.Flags().MarkHidden("state-dir")

	return cmd
}

// doctorReport is the JSON output shape.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(cmd *cobra.Command, path, stateDir string, verbose, jsonOutput bool) error {
	dir, _, err := watchTarget(path)
	if err != nil {
		return err
	}

	// A broken config should not stop the directory checks.
	cfg, err := config.Load(dir)
	if err != nil {
		cfg = config.NewConfig()
	}
	target := preflight.Target{
		Dir:       dir,
		Recursive: cfg.Watch.Recursive == nil || *cfg.Watch.Recursive,
		Ignore:    cfg.Watch.Ignore,
	}
	if cfg.LockEnabled() {
		target.StateDir = stateDir
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(cmd.Context(), target)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(doctorReport{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return errors.New(errors.ErrCodeWatchFailed, "system check failed", nil).
			WithSuggestion("run 'fsmonitor doctor --verbose' for details")
	}
	return nil
}
