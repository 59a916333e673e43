package errors

import (
	stderrors "errors"
	"fmt"
)

// MonitorError is the structured error type for fsmonitor.
// It carries enough context for logging and for the CLI to print a hint.
type MonitorError struct {
	// Code is the unique error code (e.g., "ERR_201_PATH_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Watch, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *MonitorError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *MonitorError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, ErrWatchRootRemoved) works for
// any MonitorError carrying that code.
func (e *MonitorError) Is(target error) bool {
	if t, ok := target.(*MonitorError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *MonitorError) WithDetail(key, value string) *MonitorError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *MonitorError) WithSuggestion(suggestion string) *MonitorError {
	e.Suggestion = suggestion
	return e
}

// New creates a new MonitorError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *MonitorError {
	return &MonitorError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a MonitorError from an existing error.
func Wrap(code string, err error) *MonitorError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons.
var (
	ErrPathNotFound     = New(ErrCodePathNotFound, "path not found", nil)
	ErrNotADirectory    = New(ErrCodeNotADirectory, "not a directory", nil)
	ErrWatchRootRemoved = New(ErrCodeWatchRootRemoved, "watched directory was removed", nil)
	ErrWatchOverflow    = New(ErrCodeWatchOverflow, "watch event queue overflowed", nil)
	ErrAlreadyWatching  = New(ErrCodeAlreadyWatching, "directory is already watched by another process", nil)
	ErrCallbackPanic    = New(ErrCodeCallbackPanic, "change callback panicked", nil)
)

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *MonitorError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *MonitorError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *MonitorError {
	return New(ErrCodeInternal, message, cause)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As returns the first MonitorError in err's chain.
func As(err error) (*MonitorError, bool) {
	var me *MonitorError
	if stderrors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	me, ok := As(err)
	return ok && me.Retryable
}

// IsFatal checks if an error has fatal severity.
// Fatal errors stop the feature that raised them.
func IsFatal(err error) bool {
	me, ok := As(err)
	return ok && me.Severity == SeverityFatal
}

// GetCode extracts the error code from a MonitorError.
// Returns empty string if not a MonitorError.
func GetCode(err error) string {
	if me, ok := As(err); ok {
		return me.Code
	}
	return ""
}

// GetCategory extracts the category from a MonitorError.
func GetCategory(err error) Category {
	if me, ok := As(err); ok {
		return me.Category
	}
	return ""
}
