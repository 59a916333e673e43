package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsmonitor/internal/config"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestConfigPath_PrintsUserConfigPath(t *testing.T) {
	isolateEnv(t)

	out, err := runRoot(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, config.GetUserConfigPath()+"\n", out)
}

func TestConfigInit_CreatesThenRefusesThenBacksUp(t *testing.T) {
	// Given: no user config
	isolateEnv(t)
	path := config.GetUserConfigPath()

	// When: init runs
	out, err := runRoot(t, "config", "init")

	// Then: a loadable config is written
	require.NoError(t, err)
	assert.Contains(t, out, path)
	_, err = config.Load(t.TempDir())
	require.NoError(t, err)

	// When: init runs again without --force
	out, err = runRoot(t, "config", "init")

	// Then: the file is left alone
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	// When: init runs with --force
	out, err = runRoot(t, "config", "init", "--force")

	// Then: the old file is backed up
	require.NoError(t, err)
	assert.Contains(t, out, "Backup:")
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigInit_Project(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	_, err := runRoot(t, "config", "init", "--project", dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, ".fsmonitor.yaml"))
	assert.NoError(t, err)
}

func TestConfigShow_MergesProjectConfig(t *testing.T) {
	// Given: a project config
	isolateEnv(t)
	dir := t.TempDir()
	projectPath := filepath.Join(dir, ".fsmonitor.yaml")
	require.NoError(t, os.WriteFile(projectPath, []byte("watch:\n  filter: \"*.png\"\n"), 0o644))

	// When: show runs as YAML and as JSON
	out, err := runRoot(t, "config", "show", dir)
	require.NoError(t, err)
	jsonOut, err := runRoot(t, "config", "show", dir, "--json")
	require.NoError(t, err)

	// Then: both reflect the merge and name the source
	assert.Contains(t, out, "# source: "+projectPath)
	assert.Contains(t, out, "*.png")

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(jsonOut), &cfg))
	assert.Equal(t, "*.png", cfg.Watch.Filter)
	assert.Equal(t, []string{projectPath}, cfg.Sources)
}

func TestConfigShow_InvalidConfig_Fails(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fsmonitor.yaml"), []byte("watch:\n  quiet_period: -1s\n"), 0o644))

	_, err := runRoot(t, "config", "show", dir)
	assert.Error(t, err)
}
