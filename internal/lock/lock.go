// Package lock keeps two fsmonitor processes from watching the same
// directory at once.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/fsmonitor/internal/errors"
)

// TargetLock is an exclusive cross-process lock tied to one watched
// directory. Works on all platforms gofrs/flock supports.
type TargetLock struct {
	path    string
	pidPath string
	target  string
	flock   *flock.Flock
	locked  bool
}

// ForTarget acquires the lock for absDir without blocking. The lock files
// live under stateDir/locks. If another process holds the lock the error
// has code ErrCodeAlreadyWatching and names the holder's PID when known.
func ForTarget(stateDir, absDir string) (*TargetLock, error) {
	l := newTargetLock(stateDir, absDir)

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "create lock directory", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "acquire target lock", err)
	}
	if !acquired {
		e := errors.New(errors.ErrCodeAlreadyWatching,
			fmt.Sprintf("another fsmonitor is already watching %s", absDir), nil).
			WithDetail("dir", absDir).
			WithDetail("lock", l.path)
		if pid, err := l.holder(); err == nil {
			e = e.WithDetail("pid", strconv.Itoa(pid))
		}
		return nil, e.WithSuggestion("stop the other watcher or pass --no-lock")
	}
	l.locked = true

	// The PID file is informational; the flock is the real guard.
	_ = os.WriteFile(l.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644)
	return l, nil
}

func newTargetLock(stateDir, absDir string) *TargetLock {
	sum := sha256.Sum256([]byte(filepath.Clean(absDir)))
	name := hex.EncodeToString(sum[:8])
	base := filepath.Join(stateDir, "locks", name)
	return &TargetLock{
		path:    base + ".lock",
		pidPath: base + ".pid",
		target:  absDir,
		flock:   flock.New(base + ".lock"),
	}
}

func (l *TargetLock) holder() (int, error) {
	data, err := os.ReadFile(l.pidPath)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// Release unlocks. Safe to call more than once.
func (l *TargetLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false

	_ = os.Remove(l.pidPath)
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release target lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *TargetLock) Path() string { return l.path }

// Target returns the locked directory.
func (l *TargetLock) Target() string { return l.target }

// Locked reports whether the lock is held.
func (l *TargetLock) Locked() bool { return l.locked }
