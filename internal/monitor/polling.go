package monitor

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Aman-CERP/fsmonitor/internal/errors"
)

// pollingSource detects changes by periodically scanning the tree.
// Used when fsnotify is unavailable or explicitly disabled.
type pollingSource struct {
	root      string
	interval  time.Duration
	recursive bool
	skipDir   func(string) bool
	logger    *slog.Logger

	state  map[string]fileSnapshot
	events chan rawEvent
	errors chan error
	done   chan struct{}

	closeOnce sync.Once
	rootGone  bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	mode    fs.FileMode
	isDir   bool
}

func newPollingSource(root string, interval time.Duration, recursive bool, skipDir func(string) bool, logger *slog.Logger) (*pollingSource, error) {
	p := &pollingSource{
		root:      root,
		interval:  interval,
		recursive: recursive,
		skipDir:   skipDir,
		logger:    logger,
		events:    make(chan rawEvent, sourceBufferSize),
		errors:    make(chan error, 16),
		done:      make(chan struct{}),
	}

	state, err := p.scan()
	if err != nil {
		return nil, errors.New(errors.ErrCodeWatchFailed, fmt.Sprintf("initial scan of %s", root), err)
	}
	p.state = state

	go p.loop()
	return p, nil
}

func (p *pollingSource) loop() {
	defer close(p.events)
	defer close(p.errors)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if !p.poll() {
				return
			}
		}
	}
}

// poll runs one scan and emits the differences. It returns false once the
// source should stop emitting.
func (p *pollingSource) poll() bool {
	// Once the root is gone the watch is dead, like a native watch. A
	// directory re-created at the same path needs a new Monitor.
	if p.rootGone {
		return true
	}
	if _, err := os.Stat(p.root); err != nil {
		p.rootGone = true
		p.sendError(errors.New(errors.ErrCodeWatchRootRemoved,
			fmt.Sprintf("watched directory removed: %s", p.root), err).
			WithDetail("dir", p.root))
		return true
	}

	current, err := p.scan()
	if err != nil {
		p.sendError(errors.New(errors.ErrCodeWatchFailed, "scan failed", err))
		return true
	}

	for path, snap := range current {
		prev, existed := p.state[path]
		var kind Kind
		switch {
		case !existed && snap.isDir:
			kind = KindCreated
		case !existed:
			// a file appearing may be a rename destination
			kind = KindCreated | KindRenamed
		case snap.size != prev.size:
			kind = KindModified | KindSizeChanged
		case !snap.modTime.Equal(prev.modTime):
			kind = KindModified
		case snap.mode != prev.mode:
			kind = KindAttributes
		}
		if kind != 0 && !p.emit(rawEvent{Path: path, Kind: kind, IsDir: snap.isDir}) {
			return false
		}
	}
	for path, snap := range p.state {
		if _, ok := current[path]; !ok {
			if !p.emit(rawEvent{Path: path, Kind: KindDeleted, IsDir: snap.isDir}) {
				return false
			}
		}
	}

	p.state = current
	return true
}

func (p *pollingSource) scan() (map[string]fileSnapshot, error) {
	state := make(map[string]fileSnapshot)

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.root {
				return err
			}
			return nil
		}
		if path == p.root {
			return nil
		}
		if d.IsDir() {
			if !p.recursive || p.skipDir(path) {
				return filepath.SkipDir
			}
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[path] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
			mode:    info.Mode(),
			isDir:   d.IsDir(),
		}
		return nil
	})

	return state, err
}

func (p *pollingSource) emit(ev rawEvent) bool {
	select {
	case p.events <- ev:
		return true
	case <-p.done:
		return false
	}
}

func (p *pollingSource) sendError(err error) {
	select {
	case p.errors <- err:
	case <-p.done:
	default:
		p.logger.Warn("watch error dropped, error buffer full", errors.LogAttrs(err)...)
	}
}

func (p *pollingSource) Events() <-chan rawEvent { return p.events }
func (p *pollingSource) Errors() <-chan error    { return p.errors }
func (p *pollingSource) Type() string            { return sourcePolling }

// Close stops the scan loop.
func (p *pollingSource) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}
