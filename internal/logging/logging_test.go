package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelFromString(tt.in))
		})
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: file logging at debug level
	path := filepath.Join(t.TempDir(), "logs", "fsmonitor.log")
	logger, cleanup, err := Setup(Config{Level: "debug", FilePath: path})
	require.NoError(t, err)

	// When: a record is logged and the file closed
	logger.Debug("monitor started", slog.String("dir", "/srv"))
	cleanup()

	// Then: the file holds one JSON line with the attributes
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "monitor started", rec["msg"])
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "/srv", rec["dir"])
}

func TestSetup_LevelFiltersRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsmonitor.log")
	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNewConsole_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsole(&buf, "info")

	logger.Debug("skipped")
	logger.Info("watching", slog.String("dir", "/srv"))

	out := buf.String()
	assert.NotContains(t, out, "skipped")
	assert.Contains(t, out, "msg=watching")
	assert.Contains(t, out, "dir=/srv")
}

func TestRotatingWriter_RotatesAndKeepsMaxFiles(t *testing.T) {
	// Given: a writer with a 100 byte limit keeping two backups
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := newRotatingWriter(path, 100, 2)
	require.NoError(t, err)
	defer w.Close()

	// When: four 60 byte writes happen
	line := strings.Repeat("x", 59) + "\n"
	for i := 0; i < 4; i++ {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	// Then: the current file and two backups exist, nothing older
	for _, p := range []string{path, path + ".1", path + ".2"} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Equal(t, int64(60), info.Size(), p)
	}
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingWriter_AppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}

func TestRotatingWriter_WriteAfterClose_Fails(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "app.log"), 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestDefaultLogPath_UnderStateDir(t *testing.T) {
	assert.Equal(t, filepath.Join(DefaultStateDir(), "logs", "fsmonitor.log"), DefaultLogPath())
}
