// Package logging configures slog for fsmonitor. Normal runs log text to
// stderr. With --debug, JSON logs are also written to a size-rotated file
// under ~/.fsmonitor/logs/.
package logging
