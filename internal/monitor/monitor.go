package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Aman-CERP/fsmonitor/internal/dispatch"
	"github.com/Aman-CERP/fsmonitor/internal/errors"
)

// Target is the immutable description of what a Monitor observes.
type Target struct {
	Dir           string
	Filter        string
	Kinds         Kind
	Recursive     bool
	Ignore        []string
	NoiseSuffixes []string
}

// Stats is a snapshot of a Monitor's counters.
type Stats struct {
	RawEvents      uint64 `json:"raw_events"`
	Filtered       uint64 `json:"filtered"`
	Notifications  uint64 `json:"notifications"`
	CallbackPanics uint64 `json:"callback_panics"`
	Errors         uint64 `json:"errors"`
	Source         string `json:"source"`
	Failed         bool   `json:"failed"`
	Closed         bool   `json:"closed"`
}

// Monitor delivers one notification per burst of qualifying changes.
type Monitor struct {
	target    Target
	onChanged func(Change)
	onError   func(error)
	logger    *slog.Logger

	src        source
	filter     *pathFilter
	deb        *debouncer
	dispatcher dispatch.Dispatcher
	owned      *dispatch.Serial

	closed    atomic.Bool
	failed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}

	rawEvents      atomic.Uint64
	filtered       atomic.Uint64
	notifications  atomic.Uint64
	callbackPanics atomic.Uint64
	errorCount     atomic.Uint64
}

// New starts watching dir. Observation is active when New returns; there
// is no separate start step. onChanged may be nil, in which case
// notifications are dropped.
func New(dir string, onChanged func(Change), opts ...Option) (*Monitor, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	abs, err := resolveDir(dir)
	if err != nil {
		return nil, err
	}

	return newMonitor(abs, onChanged, &s, nil)
}

// NewForPath watches path. A directory is watched as with New. Any other
// path is treated as a single file: its parent directory is watched
// non-recursively with the file name as filter.
func NewForPath(path string, onChanged func(Change), opts ...Option) (*Monitor, error) {
	if path == "" {
		return nil, errors.ValidationError("path must not be empty", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("resolve %s", path), err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return New(abs, onChanged, opts...)
	}

	fileOpts := append(append([]Option{}, opts...),
		WithFilter(escapeGlob(filepath.Base(abs))),
		WithRecursive(false))
	return New(filepath.Dir(abs), onChanged, fileOpts...)
}

func resolveDir(dir string) (string, error) {
	if dir == "" {
		return "", errors.ValidationError("directory must not be empty", nil)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.ValidationError(fmt.Sprintf("resolve %s", dir), err)
	}

	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err):
		return "", errors.New(errors.ErrCodePathNotFound, fmt.Sprintf("directory not found: %s", abs), err).
			WithDetail("dir", abs)
	case os.IsPermission(err):
		return "", errors.New(errors.ErrCodePathPermission, fmt.Sprintf("permission denied: %s", abs), err).
			WithDetail("dir", abs)
	case err != nil:
		return "", errors.New(errors.ErrCodeWatchFailed, fmt.Sprintf("stat %s", abs), err)
	case !info.IsDir():
		return "", errors.New(errors.ErrCodeNotADirectory, fmt.Sprintf("not a directory: %s", abs), nil).
			WithDetail("dir", abs).
			WithSuggestion("use NewForPath to watch a single file")
	}
	return abs, nil
}

// newMonitor wires a Monitor around src, or around a new platform source
// when src is nil.
func newMonitor(dir string, onChanged func(Change), s *settings, src source) (*Monitor, error) {
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("dir", dir))

	filter, err := newPathFilter(dir, s)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		target: Target{
			Dir:           dir,
			Filter:        s.filter,
			Kinds:         s.kinds,
			Recursive:     s.recursive,
			Ignore:        append([]string(nil), s.ignore...),
			NoiseSuffixes: append([]string(nil), s.noise...),
		},
		onChanged:  onChanged,
		onError:    s.onError,
		logger:     logger,
		filter:     filter,
		dispatcher: s.dispatcher,
		done:       make(chan struct{}),
	}
	if m.dispatcher == nil {
		m.owned = dispatch.NewSerial()
		m.dispatcher = m.owned
	}
	m.deb = newDebouncer(s.quiet, m.deliver)

	if src == nil {
		src, err = m.openSource(s)
		if err != nil {
			if m.owned != nil {
				m.owned.Close()
			}
			return nil, err
		}
	}
	m.src = src

	go m.run()

	logger.Debug("monitor started",
		slog.String("source", src.Type()),
		slog.String("filter", s.filter),
		slog.String("kinds", s.kinds.String()),
		slog.Duration("quiet_period", s.quiet),
		slog.Bool("recursive", s.recursive))
	return m, nil
}

// openSource prefers fsnotify and falls back to polling when it cannot be
// set up, e.g. when inotify watches are exhausted.
func (m *Monitor) openSource(s *settings) (source, error) {
	if !s.forcePolling {
		src, err := newFsnotifySource(m.target.Dir, s.recursive, m.filter.skipDir, m.logger)
		if err == nil {
			return src, nil
		}
		m.logger.Warn("fsnotify unavailable, falling back to polling",
			slog.String("error", err.Error()),
			slog.Duration("interval", s.pollInterval))
	}
	return newPollingSource(m.target.Dir, s.pollInterval, s.recursive, m.filter.skipDir, m.logger)
}

func (m *Monitor) run() {
	defer close(m.done)
	defer func() {
		if r := recover(); r != nil {
			m.fail(fmt.Sprintf("event loop panicked: %v", r))
		}
	}()

	events, errs := m.src.Events(), m.src.Errors()
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			m.handle(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.handleError(err)
		}
	}
}

func (m *Monitor) handle(ev rawEvent) {
	m.rawEvents.Add(1)
	if m.closed.Load() || m.failed.Load() {
		return
	}
	if !m.filter.admit(ev) {
		m.filtered.Add(1)
		return
	}
	ev.Kind &= m.target.Kinds
	m.deb.touch(ev)
}

func (m *Monitor) handleError(err error) {
	m.errorCount.Add(1)
	if m.closed.Load() {
		return
	}

	if errors.IsFatal(err) {
		m.logger.Error("watch error", errors.LogAttrs(err)...)
	} else {
		m.logger.Warn("watch error", errors.LogAttrs(err)...)
	}

	// Lost events mean consumers have to resync.
	if errors.GetCode(err) == errors.ErrCodeWatchOverflow && !m.failed.Load() {
		m.deb.touch(rawEvent{Path: m.target.Dir, Kind: m.target.Kinds, IsDir: true})
	}

	m.report(err)
}

// deliver runs on the timer goroutine when a quiet period elapses.
func (m *Monitor) deliver(c Change) {
	defer func() {
		if r := recover(); r != nil {
			m.fail(fmt.Sprintf("delivery panicked: %v", r))
		}
	}()

	if m.closed.Load() {
		return
	}
	m.dispatcher.Dispatch(func() { m.invoke(c) })
}

// invoke runs on the dispatcher. Closing may have begun since the closure
// was queued, so the closed flag is checked again here.
func (m *Monitor) invoke(c Change) {
	if m.closed.Load() || m.failed.Load() {
		return
	}
	m.notifications.Add(1)
	if m.onChanged == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.callbackPanics.Add(1)
			err := errors.New(errors.ErrCodeCallbackPanic, fmt.Sprintf("change callback panicked: %v", r), nil).
				WithDetail("path", c.Path)
			m.logger.Warn("callback panicked", errors.LogAttrs(err)...)
		}
	}()
	m.onChanged(c)
}

// fail stops the feature without taking the host down.
func (m *Monitor) fail(reason string) {
	if !m.failed.CompareAndSwap(false, true) {
		return
	}
	m.deb.stop()
	err := errors.InternalError(reason, nil).WithDetail("dir", m.target.Dir)
	m.errorCount.Add(1)
	m.logger.Error("monitor failed", errors.LogAttrs(err)...)
	m.report(err)
}

// report hands err to the error handler on the dispatcher.
func (m *Monitor) report(err error) {
	if m.onError == nil || m.closed.Load() {
		return
	}
	m.dispatcher.Dispatch(func() {
		if m.closed.Load() {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				m.logger.Warn("error handler panicked", slog.Any("panic", r))
			}
		}()
		m.onError(err)
	})
}

// Close stops observation and cancels any pending notification. No
// callback starts after Close has begun. Close is safe to call more than
// once and from inside a callback; it does not wait for a running
// callback to return.
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		m.deb.stop()
		if err := m.src.Close(); err != nil {
			m.closeErr = errors.New(errors.ErrCodeWatchFailed, "close watch source", err)
		}
		if m.owned != nil {
			m.owned.Close()
		}
		m.logger.Debug("monitor closed")
	})
	return m.closeErr
}

// Done is closed once the event loop has exited after Close.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Stats returns a snapshot of the monitor's counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		RawEvents:      m.rawEvents.Load(),
		Filtered:       m.filtered.Load(),
		Notifications:  m.notifications.Load(),
		CallbackPanics: m.callbackPanics.Load(),
		Errors:         m.errorCount.Load(),
		Source:         m.src.Type(),
		Failed:         m.failed.Load(),
		Closed:         m.closed.Load(),
	}
}

// Target returns the watch target.
func (m *Monitor) Target() Target { return m.target }

// Dir returns the absolute watched directory.
func (m *Monitor) Dir() string { return m.target.Dir }

// Filter returns the file-name glob.
func (m *Monitor) Filter() string { return m.target.Filter }

// Path returns the directory joined with the filter.
func (m *Monitor) Path() string { return filepath.Join(m.target.Dir, m.target.Filter) }

// escapeGlob quotes filepath.Match metacharacters. Backslash is the path
// separator on Windows and cannot escape there.
func escapeGlob(name string) string {
	if runtime.GOOS == "windows" {
		return name
	}
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
