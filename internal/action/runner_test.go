package action

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsmonitor/internal/errors"
	"github.com/Aman-CERP/fsmonitor/internal/monitor"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests use POSIX sh")
	}
}

type resultRecorder struct {
	mu      sync.Mutex
	results []Result
}

func (r *resultRecorder) record(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *resultRecorder) all() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

func waitIdle(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

func TestNewRunner_EmptyCommand_Rejected(t *testing.T) {
	r, err := NewRunner(Config{})
	require.Error(t, err)
	assert.Nil(t, r)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestRunner_Trigger_ExportsChangeToCommand(t *testing.T) {
	skipWithoutShell(t)

	// Given: a command that echoes the change environment
	var stdout bytes.Buffer
	rec := &resultRecorder{}
	r, err := NewRunner(Config{
		Command:  `printf '%s %s %s' "$FSMONITOR_PATH" "$FSMONITOR_KIND" "$FSMONITOR_EVENTS"`,
		Stdout:   &stdout,
		OnResult: rec.record,
	})
	require.NoError(t, err)
	defer r.Close()

	// When: a change is triggered
	r.Trigger(monitor.Change{Path: "/w/a.json", Kind: monitor.KindModified | monitor.KindSizeChanged, Events: 4})
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 5*time.Second, 10*time.Millisecond)

	// Then: the command saw the change
	assert.Equal(t, "/w/a.json modified|size 4", stdout.String())
	res := rec.all()[0]
	assert.NoError(t, res.Err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, uint64(1), r.Runs())
}

func TestRunner_TriggersDuringRun_CollapseIntoOneRerun(t *testing.T) {
	skipWithoutShell(t)

	// Given: a slow command that detects overlapping runs
	dir := t.TempDir()
	rec := &resultRecorder{}
	r, err := NewRunner(Config{
		Command:  `mkdir busy || echo overlap >> overlap.log; sleep 0.2; rmdir busy`,
		Dir:      dir,
		OnResult: rec.record,
	})
	require.NoError(t, err)
	defer r.Close()

	// When: several changes arrive while the first run is going
	r.Trigger(monitor.Change{Path: "/w/first"})
	for i := 0; i < 5; i++ {
		r.Trigger(monitor.Change{Path: "/w/burst"})
	}
	r.Trigger(monitor.Change{Path: "/w/last"})

	// Then: exactly one rerun happens, for the latest change
	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	results := rec.all()
	require.Len(t, results, 2)
	assert.Equal(t, "/w/first", results[0].Change.Path)
	assert.Equal(t, "/w/last", results[1].Change.Path)

	_, err = os.Stat(filepath.Join(dir, "overlap.log"))
	assert.True(t, os.IsNotExist(err), "runs overlapped")
}

func TestRunner_FailingCommand_ReportsExitCode(t *testing.T) {
	skipWithoutShell(t)

	rec := &resultRecorder{}
	r, err := NewRunner(Config{Command: "exit 3", OnResult: rec.record})
	require.NoError(t, err)
	defer r.Close()

	r.Trigger(monitor.Change{Path: "/w/a"})
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 5*time.Second, 10*time.Millisecond)

	res := rec.all()[0]
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, errors.ErrCodeActionFailed, errors.GetCode(res.Err))
}

func TestRunner_Timeout_KillsCommand(t *testing.T) {
	skipWithoutShell(t)

	// Given: a command that outlives its timeout
	rec := &resultRecorder{}
	r, err := NewRunner(Config{Command: "sleep 5", Timeout: 100 * time.Millisecond, OnResult: rec.record})
	require.NoError(t, err)
	defer r.Close()

	// When: it runs
	r.Trigger(monitor.Change{Path: "/w/a"})
	waitIdle(t, r)

	// Then: it was stopped early with a timeout error
	results := rec.all()
	require.Len(t, results, 1)
	assert.Less(t, results[0].Duration, 3*time.Second)
	require.Error(t, results[0].Err)
	assert.True(t, strings.Contains(results[0].Err.Error(), "timed out"))
}

func TestRunner_Close_IgnoresLaterTriggers(t *testing.T) {
	skipWithoutShell(t)

	r, err := NewRunner(Config{Command: "true"})
	require.NoError(t, err)

	r.Close()
	r.Trigger(monitor.Change{Path: "/w/a"})
	waitIdle(t, r)

	assert.Equal(t, uint64(0), r.Runs())
}
