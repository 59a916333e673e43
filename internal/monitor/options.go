package monitor

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/fsmonitor/internal/dispatch"
	"github.com/Aman-CERP/fsmonitor/internal/errors"
)

const (
	// DefaultQuietPeriod is the quiet period used when none is given.
	DefaultQuietPeriod = 100 * time.Millisecond

	// DefaultFilter matches every file name.
	DefaultFilter = "*"

	// DefaultPollInterval is the scan interval of the polling source.
	DefaultPollInterval = time.Second

	// defaultCacheSize bounds the per-path filter verdict cache.
	defaultCacheSize = 4096
)

// Option configures a Monitor.
type Option func(*settings)

type settings struct {
	filter       string
	quiet        time.Duration
	kinds        Kind
	recursive    bool
	dispatcher   dispatch.Dispatcher
	ignore       []string
	gitignore    bool
	noise        []string
	forcePolling bool
	pollInterval time.Duration
	logger       *slog.Logger
	onError      func(error)
	cacheSize    int
}

func defaultSettings() settings {
	return settings{
		filter:       DefaultFilter,
		quiet:        DefaultQuietPeriod,
		kinds:        DefaultKinds,
		recursive:    true,
		noise:        DefaultNoiseSuffixes,
		pollInterval: DefaultPollInterval,
		cacheSize:    defaultCacheSize,
	}
}

// WithFilter sets the file-name glob (filepath.Match syntax) that events
// must match. Empty means DefaultFilter.
func WithFilter(pattern string) Option {
	return func(s *settings) {
		if pattern == "" {
			pattern = DefaultFilter
		}
		s.filter = pattern
	}
}

// WithQuietPeriod sets the quiet period. Zero notifies on the next
// scheduling opportunity; it never runs the callback inline.
func WithQuietPeriod(d time.Duration) Option {
	return func(s *settings) { s.quiet = d }
}

// WithKinds sets the change kinds that qualify.
func WithKinds(k Kind) Option {
	return func(s *settings) { s.kinds = k }
}

// WithRecursive controls whether sub-directories are watched.
func WithRecursive(recursive bool) Option {
	return func(s *settings) { s.recursive = recursive }
}

// WithDispatcher marshals notifications onto d instead of a
// monitor-owned serial dispatcher. The Monitor never closes d.
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(s *settings) { s.dispatcher = d }
}

// WithIgnorePatterns adds gitignore-syntax patterns relative to the
// watched directory.
func WithIgnorePatterns(patterns ...string) Option {
	return func(s *settings) { s.ignore = append(s.ignore, patterns...) }
}

// WithGitignore loads the .gitignore file at the watched directory root.
func WithGitignore(enabled bool) Option {
	return func(s *settings) { s.gitignore = enabled }
}

// WithNoiseSuffixes replaces DefaultNoiseSuffixes. Pass nothing to disable
// noise filtering.
func WithNoiseSuffixes(suffixes ...string) Option {
	return func(s *settings) { s.noise = suffixes }
}

// WithPolling forces the polling source with the given scan interval.
func WithPolling(interval time.Duration) Option {
	return func(s *settings) {
		s.forcePolling = true
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithLogger sets the logger used for the error side channel.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithErrorHandler receives steady-state watch errors (overflow, removed
// root, watcher I/O errors) on the monitor's dispatcher.
func WithErrorHandler(fn func(error)) Option {
	return func(s *settings) { s.onError = fn }
}

func (s *settings) validate() error {
	if s.quiet < 0 {
		return errors.ValidationError("quiet period must not be negative", nil).
			WithDetail("quiet_period", s.quiet.String()).
			WithSuggestion("use 0 to notify on the next scheduling opportunity")
	}
	if s.kinds == 0 || s.kinds&^KindAll != 0 {
		return errors.ValidationError(fmt.Sprintf("invalid change kind mask %#x", uint8(s.kinds)), nil)
	}
	if _, err := filepath.Match(s.filter, ""); err != nil {
		return errors.New(errors.ErrCodeInvalidPattern, fmt.Sprintf("invalid filter %q", s.filter), err)
	}
	if s.pollInterval <= 0 {
		return errors.ValidationError("poll interval must be positive", nil)
	}
	return nil
}
