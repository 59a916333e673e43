package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsmonitor/internal/config"
	"github.com/Aman-CERP/fsmonitor/internal/errors"
	"github.com/Aman-CERP/fsmonitor/internal/lock"
)

func watchArgs(t *testing.T, path string, extra ...string) []string {
	t.Helper()
	args := []string{"watch", path, "--quiet", "50ms", "--state-dir", t.TempDir()}
	return append(args, extra...)
}

func TestWatch_PrintsChange(t *testing.T) {
	// Given: a running watch
	isolateEnv(t)
	dir := t.TempDir()
	r := startCmd(t, watchArgs(t, dir, "--no-lock")...)
	r.waitOutput(t, "watching")

	// When: a file is written
	target := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	// Then: one change line names it and cancelling exits cleanly
	r.waitOutput(t, target)
	assert.NoError(t, r.stop(t))
}

func TestWatch_JSONAndExec(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell command")
	}

	// Given: a JSON watch that runs a command
	isolateEnv(t)
	dir := t.TempDir()
	marker := filepath.Join(t.TempDir(), "ran")
	r := startCmd(t, watchArgs(t, dir, "--no-lock", "--json",
		"--exec", `echo "$FSMONITOR_KIND" >> '`+marker+`'`)...)
	r.waitOutput(t, `"type":"watching"`)

	// When: a file is created
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o644))

	// Then: a change event and an action result are emitted
	r.waitOutput(t, `"type":"action"`)
	require.NoError(t, r.stop(t))

	var sawChange bool
	for _, line := range strings.Split(strings.TrimSpace(r.out.String()), "\n") {
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &ev), line)
		if ev["type"] == "change" {
			sawChange = true
			assert.Equal(t, filepath.Join(dir, "a.json"), ev["path"])
		}
	}
	assert.True(t, sawChange)

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(string(data)))
}

func TestWatch_SingleFile(t *testing.T) {
	// Given: a watch on one file
	isolateEnv(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(target, []byte("a: 1"), 0o644))
	r := startCmd(t, watchArgs(t, target, "--no-lock")...)
	r.waitOutput(t, "watching")

	// When: a sibling changes, then the file itself
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b"), 0o644))
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, os.WriteFile(target, []byte("a: 2"), 0o644))

	// Then: only the followed file is reported
	r.waitOutput(t, target)
	require.NoError(t, r.stop(t))
	assert.NotContains(t, r.out.String(), "other.yaml")
}

func TestWatch_LockHeld_Fails(t *testing.T) {
	// Given: another holder of the directory lock
	isolateEnv(t)
	dir := t.TempDir()
	stateDir := t.TempDir()
	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	held, err := lock.ForTarget(stateDir, abs)
	require.NoError(t, err)
	defer func() { _ = held.Release() }()

	// When: watch starts on the same directory
	_, err = runRoot(t, "watch", dir, "--state-dir", stateDir)

	// Then: it refuses
	assert.True(t, errors.Is(err, errors.ErrAlreadyWatching), "got %v", err)
}

func TestWatch_MissingPath_Fails(t *testing.T) {
	isolateEnv(t)
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := runRoot(t, watchArgs(t, missing, "--no-lock")...)

	assert.True(t, errors.Is(err, errors.ErrPathNotFound), "got %v", err)
}

func TestWatch_InvalidFlags_Fail(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	_, err := runRoot(t, watchArgs(t, dir, "--no-lock", "--kinds", "bogus")...)
	assert.Error(t, err)

	_, err = runRoot(t, watchArgs(t, dir, "--no-lock", "--quiet", "-1s")...)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
}

func TestWatch_RootRemoved_EndsWatch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("a watched directory cannot be removed on Windows")
	}

	// Given: a watch on a directory
	isolateEnv(t)
	dir := filepath.Join(t.TempDir(), "assets")
	require.NoError(t, os.Mkdir(dir, 0o755))
	r := startCmd(t, watchArgs(t, dir, "--no-lock")...)
	r.waitOutput(t, "watching")

	// When: the directory is removed
	require.NoError(t, os.RemoveAll(dir))

	// Then: the command exits with the removal error
	err := r.wait(t)
	assert.Equal(t, errors.ErrCodeWatchRootRemoved, errors.GetCode(err))
}

func TestWatch_Recreate_WaitsForDirectory(t *testing.T) {
	// Given: a recreate watch on a directory that does not exist yet
	isolateEnv(t)
	dir := filepath.Join(t.TempDir(), "later")
	r := startCmd(t, watchArgs(t, dir, "--no-lock", "--recreate")...)

	// When: the directory appears
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Mkdir(dir, 0o755))

	// Then: the watch starts and reports changes
	r.waitOutput(t, "watching")
	target := filepath.Join(dir, "x.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	r.waitOutput(t, target)
	assert.NoError(t, r.stop(t))
}

func TestWatchFlags_ApplyOnlyChanged(t *testing.T) {
	// Given: a config with project values and a command with some flags set
	cfg := config.NewConfig()
	cfg.Watch.Filter = "*.go"
	cfg.Watch.Ignore = []string{"vendor/"}

	cmd := newWatchCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--quiet", "2s", "--ignore", "*.tmp", "--no-recursive", "--no-lock"}))

	var f watchFlags
	f.quiet = 2 * time.Second
	f.ignore = []string{"*.tmp"}
	f.noRecursive = true
	f.noLock = true

	// When: flags are applied
	f.apply(cmd, cfg)

	// Then: unset flags keep config values and set ones override
	assert.Equal(t, "*.go", cfg.Watch.Filter)
	assert.Equal(t, "2s", cfg.Watch.QuietPeriod)
	assert.Equal(t, []string{"vendor/", "*.tmp"}, cfg.Watch.Ignore)
	require.NotNil(t, cfg.Watch.Recursive)
	assert.False(t, *cfg.Watch.Recursive)
	assert.False(t, cfg.LockEnabled())
}

func TestWatchTarget(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	got, single, err := watchTarget(file)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.True(t, single)

	got, single, err = watchTarget(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.False(t, single)
}
