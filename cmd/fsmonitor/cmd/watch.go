package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/fsmonitor/internal/action"
	"github.com/Aman-CERP/fsmonitor/internal/config"
	"github.com/Aman-CERP/fsmonitor/internal/dispatch"
	"github.com/Aman-CERP/fsmonitor/internal/errors"
	"github.com/Aman-CERP/fsmonitor/internal/lock"
	"github.com/Aman-CERP/fsmonitor/internal/logging"
	"github.com/Aman-CERP/fsmonitor/internal/monitor"
	"github.com/Aman-CERP/fsmonitor/internal/observer"
	"github.com/Aman-CERP/fsmonitor/internal/output"
)

type watchFlags struct {
	filter       string
	quiet        time.Duration
	kinds        []string
	noRecursive  bool
	ignore       []string
	noGitignore  bool
	poll         bool
	pollInterval time.Duration
	exec         string
	execTimeout  time.Duration
	json         bool
	noLock       bool
	recreate     bool
	stateDir     string
}

func newWatchCmd() *cobra.Command {
	var f watchFlags

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a directory or file and report changes",
		Long: `Watch a directory (or a single file) and print one line per burst of
changes, after the quiet period has passed with no further qualifying events.

Settings come from, in increasing precedence: built-in defaults, the user
config, .fsmonitor.yaml in the watched directory, FSMONITOR_* environment
variables, and flags.`,
		Example: `  # Watch the current directory
  fsmonitor watch

  # Rebuild when Go files change, waiting for 300ms of quiet
  fsmonitor watch ./src --filter '*.go' --quiet 300ms --exec 'go build ./...'

  # Follow one file and emit JSON lines
  fsmonitor watch config/app.yaml --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, path, &f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.filter, "filter", monitor.DefaultFilter, "File-name glob to match")
	fl.DurationVar(&f.quiet, "quiet", monitor.DefaultQuietPeriod, "Quiet period before notifying (0 notifies on the next tick)")
	fl.StringSliceVar(&f.kinds, "kinds", nil, "Change kinds: created, modified, size, renamed, deleted, attributes, all")
	fl.BoolVar(&f.noRecursive, "no-recursive", false, "Do not watch sub-directories")
	fl.StringArrayVar(&f.ignore, "ignore", nil, "Gitignore-style pattern to ignore (repeatable)")
	fl.BoolVar(&f.noGitignore, "no-gitignore", false, "Do not load .gitignore from the watched directory")
	fl.BoolVar(&f.poll, "poll", false, "Poll instead of using native notifications")
	fl.DurationVar(&f.pollInterval, "poll-interval", monitor.DefaultPollInterval, "Scan interval when polling")
	fl.StringVar(&f.exec, "exec", "", "Shell command to run on every notification")
	fl.DurationVar(&f.execTimeout, "exec-timeout", action.DefaultTimeout, "Kill the command after this long")
	fl.BoolVar(&f.json, "json", false, "Emit JSON lines")
	fl.BoolVar(&f.noLock, "no-lock", false, "Allow several fsmonitor processes on the same directory")
	fl.BoolVar(&f.recreate, "recreate", false, "Wait for the directory to reappear if it is removed")
	fl.StringVar(&f.stateDir, "state-dir", logging.DefaultStateDir(), "Directory for lock files")
	_ = fl.MarkHidden("state-dir")

	return cmd
}

// apply layers explicitly set flags over cfg.
func (f *watchFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("filter") {
		cfg.Watch.Filter = f.filter
	}
	if fl.Changed("quiet") {
		cfg.Watch.QuietPeriod = f.quiet.String()
	}
	if fl.Changed("kinds") {
		cfg.Watch.Kinds = f.kinds
	}
	if fl.Changed("no-recursive") {
		recursive := !f.noRecursive
		cfg.Watch.Recursive = &recursive
	}
	if fl.Changed("ignore") {
		cfg.Watch.Ignore = append(cfg.Watch.Ignore, f.ignore...)
	}
	if fl.Changed("no-gitignore") {
		gitignore := !f.noGitignore
		cfg.Watch.Gitignore = &gitignore
	}
	if f.poll {
		cfg.Watch.Poll = true
	}
	if fl.Changed("poll-interval") {
		cfg.Watch.Poll = true
		cfg.Watch.PollInterval = f.pollInterval.String()
	}
	if fl.Changed("exec") {
		cfg.Action.Command = f.exec
	}
	if fl.Changed("exec-timeout") {
		cfg.Action.Timeout = f.execTimeout.String()
	}
	if fl.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if f.noLock {
		enabled := false
		cfg.Watch.Lock = &enabled
	}
}

// watchTarget resolves path into the directory that holds configuration
// and locks, and whether a single file is being followed.
func watchTarget(path string) (dir string, single bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, errors.ValidationError(fmt.Sprintf("resolve %s", path), err)
	}
	info, err := os.Stat(abs)
	if err == nil && !info.IsDir() {
		return filepath.Dir(abs), true, nil
	}
	return abs, false, nil
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string, f *watchFlags) error {
	dir, single, err := watchTarget(path)
	if err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	f.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, cleanup, err := watchLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.LockEnabled() {
		l, err := lock.ForTarget(f.stateDir, dir)
		if err != nil {
			return err
		}
		defer func() { _ = l.Release() }()
	}

	printer := output.New(cmd.OutOrStdout(), output.Options{JSON: f.json})

	opts, err := cfg.WatchOptions()
	if err != nil {
		return err
	}

	// The loop is the CLI's main execution context: notifications, error
	// reports and subscribers all run on it.
	loop := dispatch.NewLoop()
	changes := observer.NewHub[monitor.Change]()
	defer changes.Subscribe(printer.Change).Close()

	if cfg.Action.Command != "" {
		runner, err := action.NewRunner(action.Config{
			Command:  cfg.Action.Command,
			Timeout:  cfg.ActionTimeout(),
			Stdout:   cmd.OutOrStdout(),
			Stderr:   cmd.ErrOrStderr(),
			Logger:   logger,
			OnResult: printer.ActionResult,
		})
		if err != nil {
			return err
		}
		defer runner.Close()
		defer changes.Subscribe(runner.Trigger).Close()
	}

	rootGone := make(chan struct{}, 1)
	opts = append(opts,
		monitor.WithDispatcher(loop),
		monitor.WithLogger(logger),
		monitor.WithErrorHandler(func(err error) {
			printer.Warning(err)
			if errors.GetCode(err) == errors.ErrCodeWatchRootRemoved {
				select {
				case rootGone <- struct{}{}:
				default:
				}
			}
		}))

	start := func() (*monitor.Monitor, error) {
		if single {
			return monitor.NewForPath(path, changes.Publish, opts...)
		}
		return monitor.New(dir, changes.Publish, opts...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := loop.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer loop.Close()
		return supervise(gctx, start, rootGone, f.recreate, printer, logger)
	})

	return g.Wait()
}

func watchLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func(), error) {
	if debugMode {
		return slog.Default(), func() {}, nil
	}
	if cfg.Logging.File {
		return logging.Setup(logging.Config{
			Level:     cfg.Logging.Level,
			FilePath:  logging.DefaultLogPath(),
			MaxSizeMB: cfg.Logging.MaxSizeMB,
			MaxFiles:  cfg.Logging.MaxFiles,
		})
	}
	return logging.NewConsole(cmd.ErrOrStderr(), cfg.Logging.Level), func() {}, nil
}

// supervise owns the monitor's lifetime. When the watched directory is
// removed the monitor is closed; with recreate it is rebuilt once the
// directory is back, otherwise the removal ends the watch.
func supervise(ctx context.Context, start func() (*monitor.Monitor, error), rootGone <-chan struct{},
	recreate bool, printer *output.Printer, logger *slog.Logger) error {
	retry := errors.DefaultRetryConfig()
	retry.MaxRetries = -1
	retry.MaxDelay = 5 * time.Second
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Debug("watch not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	}

	var m *monitor.Monitor
	var err error
	if recreate {
		m, err = errors.RetryWithResult(ctx, retry, start)
	} else {
		m, err = start()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	printer.Watching(m.Target(), m.Stats().Source)

	for {
		select {
		case <-ctx.Done():
			_ = m.Close()
			logStats(logger, m)
			return nil

		case <-rootGone:
			_ = m.Close()
			logStats(logger, m)
			if !recreate {
				return errors.New(errors.ErrCodeWatchRootRemoved,
					fmt.Sprintf("watched directory removed: %s", m.Dir()), nil).
					WithSuggestion("pass --recreate to wait for it to come back")
			}

			// A closed monitor reports nothing more; drop duplicate signals.
			select {
			case <-rootGone:
			default:
			}

			printer.Statusf("%s was removed, waiting for it to return", m.Dir())
			m, err = errors.RetryWithResult(ctx, retry, start)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			printer.Watching(m.Target(), m.Stats().Source)
		}
	}
}

func logStats(logger *slog.Logger, m *monitor.Monitor) {
	s := m.Stats()
	logger.Debug("monitor stopped",
		slog.Uint64("raw_events", s.RawEvents),
		slog.Uint64("filtered", s.Filtered),
		slog.Uint64("notifications", s.Notifications),
		slog.Uint64("callback_panics", s.CallbackPanics),
		slog.Uint64("errors", s.Errors))
}
