package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsmonitor/internal/action"
	"github.com/Aman-CERP/fsmonitor/internal/errors"
	"github.com/Aman-CERP/fsmonitor/internal/monitor"
)

var at = time.Date(2026, 3, 1, 12, 30, 45, 123_000_000, time.UTC)

func TestPrinter_Change_PlainText(t *testing.T) {
	// Given: a printer on a buffer, which is never a terminal
	var buf bytes.Buffer
	p := New(&buf, Options{})

	// When: a coalesced change is printed
	p.Change(monitor.Change{Path: "/srv/a.json", Kind: monitor.KindModified | monitor.KindSizeChanged, Events: 3, At: at})

	// Then: the line is plain and complete
	assert.Equal(t, "12:30:45.123 modified|size /srv/a.json (3 events)\n", buf.String())
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestPrinter_Change_SingleEventHasNoCount(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, Options{})

	p.Change(monitor.Change{Path: "/srv/a", Kind: monitor.KindRenamed, Events: 1, At: at})

	assert.Equal(t, "12:30:45.123 renamed /srv/a\n", buf.String())
}

func TestPrinter_JSONLines(t *testing.T) {
	// Given: a JSON printer
	var buf bytes.Buffer
	p := New(&buf, Options{JSON: true})
	require.True(t, p.JSON())

	// When: a change, a failed action and a warning are printed
	p.Change(monitor.Change{Path: "/srv/a", Kind: monitor.KindModified, Events: 2, At: at})
	p.ActionResult(action.Result{
		Change:   monitor.Change{Path: "/srv/a"},
		Duration: 1500 * time.Millisecond,
		ExitCode: 2,
		Err:      errors.New(errors.ErrCodeActionFailed, "command failed", nil),
	})
	p.Warning(errors.New(errors.ErrCodeWatchRootRemoved, "watched directory removed", nil).WithDetail("dir", "/srv"))
	p.Status("not shown")

	// Then: each line is one JSON object
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var change map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &change))
	assert.Equal(t, "change", change["type"])
	assert.Equal(t, "/srv/a", change["path"])
	assert.Equal(t, "modified", change["kind"])
	assert.Equal(t, float64(2), change["events"])

	var act map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &act))
	assert.Equal(t, "action", act["type"])
	assert.Equal(t, float64(2), act["exit_code"])
	assert.Equal(t, float64(1500), act["duration_ms"])
	assert.Equal(t, errors.ErrCodeActionFailed, act["code"])

	var warn map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &warn))
	assert.Equal(t, "warning", warn["type"])
	assert.Equal(t, errors.ErrCodeWatchRootRemoved, warn["code"])
	assert.Equal(t, "watched directory removed", warn["message"])
	assert.Equal(t, map[string]any{"dir": "/srv"}, warn["details"])
}

func TestPrinter_ActionResult_PlainText(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, Options{})

	p.ActionResult(action.Result{Duration: 42 * time.Millisecond})
	p.ActionResult(action.Result{ExitCode: 1, Duration: time.Second, Err: fmt.Errorf("exit status 1")})

	assert.Equal(t, "✓ command finished in 42ms\n✗ command failed (exit 1) after 1s\n", buf.String())
}

func TestPrinter_Watching_PlainText(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, Options{})

	p.Watching(monitor.Target{Dir: "/srv", Filter: "*.json", Kinds: monitor.DefaultKinds}, "fsnotify")

	assert.Equal(t, "watching /srv (filter *.json, modified|size|renamed, fsnotify)\n", buf.String())
}

func TestIsTerminal_Buffer(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}
