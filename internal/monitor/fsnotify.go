package monitor

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/fsmonitor/internal/errors"
)

// fsnotifySource forwards translated fsnotify events.
type fsnotifySource struct {
	watcher   *fsnotify.Watcher
	root      string
	recursive bool
	skipDir   func(string) bool
	logger    *slog.Logger

	events    chan rawEvent
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newFsnotifySource(root string, recursive bool, skipDir func(string) bool, logger *slog.Logger) (*fsnotifySource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.New(errors.ErrCodeWatchFailed, "create fsnotify watcher", err)
	}

	s := &fsnotifySource{
		watcher:   w,
		root:      root,
		recursive: recursive,
		skipDir:   skipDir,
		logger:    logger,
		events:    make(chan rawEvent, sourceBufferSize),
		errors:    make(chan error, 16),
		done:      make(chan struct{}),
	}

	if err := s.addTree(root); err != nil {
		_ = w.Close()
		return nil, errors.New(errors.ErrCodeWatchFailed, fmt.Sprintf("watch %s", root), err)
	}

	go s.forward()
	return s, nil
}

// addTree adds dir and, in recursive mode, every non-skipped directory below it.
func (s *fsnotifySource) addTree(dir string) error {
	if !s.recursive {
		return s.watcher.Add(dir)
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			s.logger.Warn("skipping unreadable directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.root && s.skipDir(path) {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			if path == dir {
				return err
			}
			s.logger.Warn("failed to watch directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

func (s *fsnotifySource) forward() {
	defer close(s.events)
	defer close(s.errors)

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				err = errors.New(errors.ErrCodeWatchOverflow, "fsnotify event queue overflowed", err)
			} else {
				err = errors.New(errors.ErrCodeWatchFailed, "fsnotify error", err)
			}
			s.sendError(err)
		}
	}
}

func (s *fsnotifySource) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	if path == s.root && (ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) {
		s.sendError(errors.New(errors.ErrCodeWatchRootRemoved,
			fmt.Sprintf("watched directory removed: %s", s.root), nil).
			WithDetail("dir", s.root))
		return
	}

	isDir := false
	if ev.Has(fsnotify.Create) {
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			isDir = true
			if s.recursive && !s.skipDir(path) {
				if err := s.addTree(path); err != nil {
					s.logger.Warn("failed to watch new directory",
						slog.String("path", path),
						slog.String("error", err.Error()))
				}
			}
		}
	}

	kind := translateOp(ev.Op, isDir)
	if kind == 0 {
		return
	}

	select {
	case s.events <- rawEvent{Path: path, Kind: kind, IsDir: isDir}:
	case <-s.done:
	}
}

// translateOp maps fsnotify operations to kinds. The destination of a
// rename arrives as Create, indistinguishable from a new file, so file
// creations also carry KindRenamed.
func translateOp(op fsnotify.Op, isDir bool) Kind {
	var k Kind
	if op.Has(fsnotify.Create) {
		k |= KindCreated
		if !isDir {
			k |= KindRenamed
		}
	}
	if op.Has(fsnotify.Write) {
		k |= KindModified | KindSizeChanged
	}
	if op.Has(fsnotify.Rename) {
		k |= KindRenamed
	}
	if op.Has(fsnotify.Remove) {
		k |= KindDeleted
	}
	if op.Has(fsnotify.Chmod) {
		k |= KindAttributes
	}
	return k
}

func (s *fsnotifySource) sendError(err error) {
	select {
	case s.errors <- err:
	case <-s.done:
	default:
		s.logger.Warn("watch error dropped, error buffer full", errors.LogAttrs(err)...)
	}
}

func (s *fsnotifySource) Events() <-chan rawEvent { return s.events }
func (s *fsnotifySource) Errors() <-chan error    { return s.errors }
func (s *fsnotifySource) Type() string            { return sourceFsnotify }

// Close stops the forwarder and releases the inotify/kqueue handles.
func (s *fsnotifySource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.watcher.Close()
	})
	return s.closeErr
}
