package preflight

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/fsmonitor/internal/ignore"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status in lower case for JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target describes what a watch would observe.
type Target struct {
	Dir       string
	Recursive bool
	Ignore    []string
	StateDir  string
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
// Checks that need a readable target are skipped when it is not.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	var results []CheckResult

	target := c.CheckTarget(t.Dir)
	results = append(results, target)

	if target.Status != StatusFail {
		results = append(results, c.CheckNotifications(t.Dir))

		dirs, err := countDirs(ctx, t)
		results = append(results, c.CheckWatchLimit(dirs, err))
	}

	results = append(results, c.CheckFileDescriptors())

	if t.StateDir != "" {
		results = append(results, c.CheckStateDir(t.StateDir))
	}

	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "fsmonitor system check")
	_, _ = fmt.Fprintln(c.output, "======================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if r.Details != "" && (c.verbose || r.Status != StatusPass) {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))
}

// CheckTarget checks that dir exists, is a directory and can be listed.
func (c *Checker) CheckTarget(dir string) CheckResult {
	result := CheckResult{
		Name:     "target_directory",
		Required: true,
	}

	info, err := os.Stat(dir)
	switch {
	case err != nil:
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	case !info.IsDir():
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not a directory", dir)
		result.Details = "Watch the parent directory, or pass the file path to follow a single file"
		return result
	}

	f, err := os.Open(dir)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read: %v", err)
		return result
	}
	_ = f.Close()

	result.Status = StatusPass
	result.Message = dir
	return result
}

// CheckNotifications checks that native notifications can watch dir.
// A failure is not critical: the monitor falls back to polling.
func (c *Checker) CheckNotifications(dir string) CheckResult {
	result := CheckResult{
		Name: "native_notifications",
	}

	w, err := fsnotify.NewWatcher()
	if err == nil {
		err = w.Add(dir)
		_ = w.Close()
	}
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("unavailable (%v), polling will be used", err)
		result.Details = "Polling notices changes up to one poll interval late; see --poll-interval"
		return result
	}

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckStateDir checks that lock files can be created under dir.
func (c *Checker) CheckStateDir(dir string) CheckResult {
	result := CheckResult{
		Name: "state_directory",
	}

	locks := filepath.Join(dir, "locks")
	if err := os.MkdirAll(locks, 0o755); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot create %s: %v", locks, err)
		result.Details = "Pass --no-lock to watch without a lock file"
		return result
	}

	testFile := filepath.Join(locks, ".preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("permission denied: %v", err)
		result.Details = "Pass --no-lock to watch without a lock file"
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = locks
	return result
}

// countDirs counts the directories a watch on t would register.
func countDirs(ctx context.Context, t Target) (int, error) {
	if !t.Recursive {
		return 1, nil
	}

	m := ignore.New()
	if err := m.AddPatterns(append([]string{".git/"}, t.Ignore...)...); err != nil {
		return 0, err
	}

	n := 0
	err := filepath.WalkDir(t.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped by the watch as well
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(t.Dir, path)
		if m.Match(rel, true) {
			return filepath.SkipDir
		}
		n++
		return nil
	})
	return n, err
}
