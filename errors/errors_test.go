package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_New_Retryable(t *testing.T) {
	if !New(ErrCodeTimeout, "timed out").Retryable {
		t.Error("TIMEOUT should be retryable")
	}
	if New(ErrCodeExport, "bad encode").Retryable {
		t.Error("EXPORT_ERROR should not be retryable")
	}
}

func TestAppError_Constructors_Table(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		retryable bool
	}{
		{"ServiceUnavailable", ServiceUnavailable("whisper"), ErrCodeServiceUnavailable, true},
		{"Timeout", Timeout("transcribe"), ErrCodeTimeout, true},
		{"RateLimited", RateLimited(), ErrCodeRateLimited, true},
		{"NotFound", NotFound("run", "1"), ErrCodeNotFound, false},
		{"InvalidInput", InvalidInput("duration_ms", "must be positive"), ErrCodeInvalidInput, false},
		{"MissingField", MissingField("source"), ErrCodeMissingField, false},
		{"InvalidFormat", InvalidFormat("timestamp", "HH:MM:SS,mmm"), ErrCodeInvalidFormat, false},
		{"ExportFailed", ExportFailed(2, nil), ErrCodeExport, false},
		{"ExternalServiceError", ExternalServiceError("openai", nil), ErrCodeExternalService, true},
		{"MergeDegraded", MergeDegraded(3), ErrCodeMerge, false},
		{"StorageError", StorageError("a/b.vtt", nil), ErrCodeStorage, false},
		{"DatabaseError", DatabaseError(nil), ErrCodeDatabaseError, true},
		{"Internal", Internal(nil), ErrCodeInternal, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.Retryable != tc.retryable {
				t.Errorf("expected retryable=%v, got %v", tc.retryable, tc.err.Retryable)
			}
		})
	}
}

func TestAppError_ChunkIndex(t *testing.T) {
	err := ExportFailed(4, stderrors.New("ffmpeg exited 1"))
	idx, ok := err.ChunkIndex()
	if !ok || idx != 4 {
		t.Fatalf("expected chunk index 4, got %d (ok=%v)", idx, ok)
	}

	svc := ExternalServiceError("openai", nil).WithDetail(DetailChunkIndex, 7)
	idx, ok = svc.ChunkIndex()
	if !ok || idx != 7 {
		t.Fatalf("expected chunk index 7, got %d (ok=%v)", idx, ok)
	}

	if _, ok := Internal(nil).ChunkIndex(); ok {
		t.Error("expected no chunk index on internal error")
	}
}

func TestAppError_WithDetails_Merge(t *testing.T) {
	err := InvalidInput("format", "unknown").WithDetails(map[string]any{"value": "ass"})
	if err.Details[DetailField] != "format" || err.Details["value"] != "ass" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}

func TestAppError_Error_Format(t *testing.T) {
	err := ExportFailed(1, fmt.Errorf("exit 1"))
	msg := err.Error()
	if !strings.HasPrefix(msg, "EXPORT_ERROR: ") || !strings.Contains(msg, "exit 1") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestIsRetryable(t *testing.T) {
	wrapped := fmt.Errorf("chunk 3: %w", ExternalServiceError("openai", nil))
	if !IsRetryable(wrapped) {
		t.Error("expected wrapped external service error to be retryable")
	}
	if IsRetryable(stderrors.New("plain")) {
		t.Error("plain errors must not be retryable")
	}
	if IsRetryable(InvalidInput("", "bad")) {
		t.Error("invalid input must not be retryable")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", MergeDegraded(1))
	if !HasCode(err, ErrCodeMerge) {
		t.Error("expected MERGE_ERROR code")
	}
	if HasCode(err, ErrCodeExport) {
		t.Error("did not expect EXPORT_ERROR code")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}

	orig := NotFound("run", "1")
	if Wrap(fmt.Errorf("outer: %w", orig)) != orig {
		t.Error("Wrap should return the AppError in the chain")
	}

	plain := stderrors.New("something broke")
	got := Wrap(plain)
	if got.Code != ErrCodeInternal || got.Cause != plain {
		t.Errorf("expected INTERNAL_ERROR wrapping the cause, got %+v", got)
	}
}

func TestAsAppError(t *testing.T) {
	got, ok := AsAppError(fmt.Errorf("wrap: %w", Timeout("probe")))
	if !ok || got.Code != ErrCodeTimeout {
		t.Fatalf("expected TIMEOUT, got %v (ok=%v)", got, ok)
	}
	if _, ok := AsAppError(stderrors.New("x")); ok {
		t.Error("expected AsAppError to return false for non-AppError")
	}
}
