package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestStressError_Error(t *testing.T) {
	err := New(ErrCategoryMigration, CodeMalformedMigrationName, "bad name")
	expected := "[MIGRATION:MALFORMED_MIGRATION_NAME] bad name"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestStressError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("database is locked")
	err := Wrap(ErrCategoryStore, CodeStoreUnavailable, "open failed", cause)
	expected := "[STORE:STORE_UNAVAILABLE] open failed: database is locked"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestStressError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryMigration, CodeMigrationExecutionFailed, "migration 3", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestStressError_Is(t *testing.T) {
	err1 := New(ErrCategoryFTS, CodeFTSNotSuspended, "first")
	err2 := New(ErrCategoryFTS, CodeFTSNotSuspended, "second")
	err3 := New(ErrCategoryFTS, CodeFTSRebuildFailed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}

	wrapped := fmt.Errorf("pipeline: %w", err1)
	if !errors.Is(wrapped, err2) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategorySnapshot, CodeUploadFailed, true},
		{ErrCategorySnapshot, CodeDownloadFailed, true},
		{ErrCategorySnapshot, CodeObjectNotFound, false},
		{ErrCategoryMigration, CodeMigrationExecutionFailed, false},
		{ErrCategoryStore, CodeStoreUnavailable, false},
		{ErrCategoryStore, CodeConstraintViolation, false},
		{ErrCategoryGenerate, CodeInsertFailed, false},
		{ErrCategoryFTS, CodeFTSRebuildFailed, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := New(ErrCategoryGenerate, CodeNoFeeds, "no feeds")
	if GetCategory(err) != ErrCategoryGenerate {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryGenerate)
	}
	if GetCode(err) != CodeNoFeeds {
		t.Errorf("got %q, want %q", GetCode(err), CodeNoFeeds)
	}
	if !HasCode(fmt.Errorf("wrapped: %w", err), CodeNoFeeds) {
		t.Error("HasCode should follow the error chain")
	}

	plain := fmt.Errorf("plain error")
	if GetCategory(plain) != "" || GetCode(plain) != "" {
		t.Error("non-StressError should return empty category and code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryMigration, CodeDuplicateMigrationVersion, "duplicate")
	detailed := err.WithDetails(map[string]interface{}{"version": int64(7)})

	if detailed.Details["version"] != int64(7) {
		t.Error("WithDetails should set details")
	}
	// Original should be unmodified
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	m := NewMigrationError(CodeMigrationExecutionFailed, "migration 2", cause)
	if m.Category != ErrCategoryMigration || !errors.Is(m, cause) {
		t.Error("NewMigrationError mismatch")
	}

	s := NewStoreError(CodeStoreUnavailable, "locked", cause)
	if s.Category != ErrCategoryStore {
		t.Error("NewStoreError mismatch")
	}

	g := NewGenerateError(CodeInvalidCount, "too many tags", nil)
	if g.Category != ErrCategoryGenerate || g.Cause != nil {
		t.Error("NewGenerateError mismatch")
	}

	f := NewFTSError(CodeFTSUnavailable, "no fts5", cause)
	if f.Category != ErrCategoryFTS {
		t.Error("NewFTSError mismatch")
	}

	sn := NewSnapshotError(CodeUploadFailed, "s3 down", cause)
	if sn.Category != ErrCategorySnapshot || !sn.Retryable {
		t.Error("NewSnapshotError mismatch")
	}

	c := NewConfigError("batch_size must be positive")
	if c.Category != ErrCategoryConfig || c.Code != CodeInvalidConfig {
		t.Error("NewConfigError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}

	n := Newf(ErrCategoryMigration, CodeMalformedMigrationName, "file %q", "x.sql")
	if n.Message != `file "x.sql"` {
		t.Errorf("Newf message = %q", n.Message)
	}
}
