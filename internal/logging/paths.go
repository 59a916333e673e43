package logging

import (
	"os"
	"path/filepath"
)

// DefaultStateDir returns ~/.fsmonitor, falling back to the temp directory
// when the home directory is unavailable.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".fsmonitor")
	}
	return filepath.Join(home, ".fsmonitor")
}

// DefaultLogDir returns the default log directory (~/.fsmonitor/logs/).
func DefaultLogDir() string {
	return filepath.Join(DefaultStateDir(), "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "fsmonitor.log")
}
