// Package errors provides the structured error type used by the seeding
// tool. Every error carries a category, a code and a message so that the
// CLI can report failures consistently and tests can match on them.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the stage that produced them.
type ErrorCategory string

const (
	ErrCategoryMigration ErrorCategory = "MIGRATION"
	ErrCategoryStore     ErrorCategory = "STORE"
	ErrCategoryGenerate  ErrorCategory = "GENERATE"
	ErrCategoryFTS       ErrorCategory = "FTS"
	ErrCategorySnapshot  ErrorCategory = "SNAPSHOT"
	ErrCategoryConfig    ErrorCategory = "CONFIG"
	ErrCategoryInternal  ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Migration codes
	CodeMalformedMigrationName    = "MALFORMED_MIGRATION_NAME"
	CodeDuplicateMigrationVersion = "DUPLICATE_MIGRATION_VERSION"
	CodeMigrationExecutionFailed  = "MIGRATION_EXECUTION_FAILED"
	CodeChecksumMismatch          = "CHECKSUM_MISMATCH"

	// Store codes
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"

	// Generate codes
	CodeInvalidCount = "INVALID_COUNT"
	CodeNoFeeds      = "NO_FEEDS"
	CodeInsertFailed = "INSERT_FAILED"

	// FTS codes
	CodeFTSNotSuspended  = "FTS_NOT_SUSPENDED"
	CodeFTSUnavailable   = "FTS_UNAVAILABLE"
	CodeFTSRebuildFailed = "FTS_REBUILD_FAILED"

	// Snapshot codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected         = "UNEXPECTED"
	CodeVerificationFailed = "VERIFICATION_FAILED"
)

// StressError is the structured error type used throughout the tool.
type StressError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *StressError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *StressError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *StressError) Is(target error) bool {
	var t *StressError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new StressError.
func New(category ErrorCategory, code, message string) *StressError {
	return &StressError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new StressError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *StressError {
	return &StressError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// Newf is New with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...interface{}) *StressError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of the error with additional details.
func (e *StressError) WithDetails(details map[string]interface{}) *StressError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Only object storage transfers are; every database failure ends the run.
func IsRetryable(err error) bool {
	var se *StressError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a StressError.
func GetCategory(err error) ErrorCategory {
	var se *StressError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a StressError.
func GetCode(err error) string {
	var se *StressError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// HasCode reports whether any StressError in the chain carries code.
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategorySnapshot && code == CodeUploadFailed:
		return true
	case category == ErrCategorySnapshot && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewMigrationError(code, message string, cause error) *StressError {
	return Wrap(ErrCategoryMigration, code, message, cause)
}

func NewStoreError(code, message string, cause error) *StressError {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewGenerateError(code, message string, cause error) *StressError {
	return Wrap(ErrCategoryGenerate, code, message, cause)
}

func NewFTSError(code, message string, cause error) *StressError {
	return Wrap(ErrCategoryFTS, code, message, cause)
}

func NewSnapshotError(code, message string, cause error) *StressError {
	return Wrap(ErrCategorySnapshot, code, message, cause)
}

func NewConfigError(message string) *StressError {
	return New(ErrCategoryConfig, CodeInvalidConfig, message)
}

func NewInternalError(message string, cause error) *StressError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
