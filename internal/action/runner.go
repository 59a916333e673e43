// Package action runs a shell command when a watched directory changes.
package action

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Aman-CERP/fsmonitor/internal/errors"
	"github.com/Aman-CERP/fsmonitor/internal/monitor"
)

// DefaultTimeout bounds a single command run.
const DefaultTimeout = 5 * time.Minute

// Config configures a Runner.
type Config struct {
	// Command is passed to the shell as a single script.
	Command string

	// Timeout kills a run that takes longer. Zero means DefaultTimeout.
	Timeout time.Duration

	// Dir is the working directory of the command.
	Dir string

	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// OnResult, if set, is called after every run.
	OnResult func(Result)
}

// Result describes one finished run.
type Result struct {
	Change   monitor.Change
	Duration time.Duration
	ExitCode int
	Err      error
}

// Runner executes the command for each notification. Runs never overlap;
// notifications that arrive during a run collapse into a single rerun
// using the latest change.
type Runner struct {
	cfg    Config
	logger *slog.Logger
	sem    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	rerun   bool
	pending monitor.Change
	closed  bool

	runs atomic.Uint64
}

// NewRunner validates cfg and returns an idle Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Command == "" {
		return nil, errors.ValidationError("command must not be empty", nil)
	}
	if cfg.Timeout < 0 {
		return nil, errors.ValidationError("command timeout must not be negative", nil)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:    cfg,
		logger: logger,
		sem:    semaphore.NewWeighted(1),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Trigger schedules a run for c and returns immediately.
func (r *Runner) Trigger(c monitor.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if r.running {
		r.rerun = true
		r.pending = c
		return
	}
	r.running = true
	if r.sem.TryAcquire(1) {
		go r.loop(c)
		return
	}
	// Only Wait holds the semaphore while nothing runs, and only briefly.
	go func() {
		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			return
		}
		r.loop(c)
	}()
}

// loop runs with the semaphore held and releases it under mu, so a
// Trigger that sees running == false finds the semaphore free.
func (r *Runner) loop(c monitor.Change) {
	for {
		r.run(c)

		r.mu.Lock()
		if !r.rerun || r.closed {
			r.running = false
			r.rerun = false
			r.sem.Release(1)
			r.mu.Unlock()
			return
		}
		r.rerun = false
		c = r.pending
		r.mu.Unlock()
	}
}

func (r *Runner) run(c monitor.Change) {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	defer cancel()

	cmd := shellCommand(ctx, r.cfg.Command)
	cmd.Dir = r.cfg.Dir
	cmd.Stdout = r.cfg.Stdout
	cmd.Stderr = r.cfg.Stderr
	cmd.WaitDelay = time.Second
	cmd.Env = append(os.Environ(),
		"FSMONITOR_PATH="+c.Path,
		"FSMONITOR_KIND="+c.Kind.String(),
		"FSMONITOR_EVENTS="+strconv.Itoa(c.Events))

	start := time.Now()
	err := cmd.Run()
	res := Result{Change: c, Duration: time.Since(start)}
	r.runs.Add(1)

	if err != nil {
		res.ExitCode = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		}
		msg := fmt.Sprintf("command failed: %v", err)
		if ctx.Err() == context.DeadlineExceeded {
			msg = fmt.Sprintf("command timed out after %s", r.cfg.Timeout)
		}
		res.Err = errors.New(errors.ErrCodeActionFailed, msg, err).
			WithDetail("command", r.cfg.Command).
			WithDetail("exit_code", strconv.Itoa(res.ExitCode))
		r.logger.Warn("action failed", errors.LogAttrs(res.Err)...)
	} else {
		r.logger.Debug("action finished",
			slog.String("path", c.Path),
			slog.Duration("duration", res.Duration))
	}

	if r.cfg.OnResult != nil {
		r.cfg.OnResult(res)
	}
}

func shellCommand(ctx context.Context, script string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", script)
	}
	return exec.CommandContext(ctx, "sh", "-c", script)
}

// Runs returns the number of completed runs.
func (r *Runner) Runs() uint64 {
	return r.runs.Load()
}

// Wait blocks until no run is in progress or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	r.sem.Release(1)
	return nil
}

// Close kills a running command and ignores later triggers.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
}
