// Package errors provides structured error handling for fsmonitor.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Path and watch errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryWatch indicates path access and watch primitive errors.
	CategoryWatch Category = "WATCH"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the feature cannot continue.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates an operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Path and watch errors (200-299)
	ErrCodePathNotFound     = "ERR_201_PATH_NOT_FOUND"
	ErrCodePathPermission   = "ERR_202_PATH_PERMISSION"
	ErrCodeNotADirectory    = "ERR_203_NOT_A_DIRECTORY"
	ErrCodeWatchFailed      = "ERR_204_WATCH_FAILED"
	ErrCodeWatchRootRemoved = "ERR_205_WATCH_ROOT_REMOVED"
	ErrCodeWatchOverflow    = "ERR_206_WATCH_OVERFLOW"
	ErrCodeAlreadyWatching  = "ERR_207_ALREADY_WATCHING"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidPattern = "ERR_402_INVALID_PATTERN"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeCallbackPanic = "ERR_502_CALLBACK_PANIC"
	ErrCodeActionFailed  = "ERR_503_ACTION_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryWatch
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeWatchRootRemoved, ErrCodeInternal:
		return SeverityFatal
	case ErrCodeWatchOverflow, ErrCodeCallbackPanic, ErrCodeActionFailed:
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// A missing path may appear later (e.g. a directory re-created by a build step).
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodePathNotFound, ErrCodeWatchFailed, ErrCodeWatchRootRemoved, ErrCodeAlreadyWatching:
		return true
	default:
		return false
	}
}
