package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("NG-TEST-1000", "test message"),
			expected: "[NG-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("NG-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[NG-TEST-1001] test message: extra info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("NG-TEST-1000", "message 1")
	err2 := NewDomainError("NG-TEST-1000", "message 2")
	err3 := NewDomainError("NG-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}

	// Wrapped copies still match the sentinel
	wrapped := fmt.Errorf("verify: %w", ErrNonceInvalid.WithDetails("stale"))
	if !errors.Is(wrapped, ErrNonceInvalid) {
		t.Error("wrapped copy should match sentinel")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := ErrStorageError.WithCause(cause)

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if errors.Unwrap(ErrStorageError) != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestDomainError_CopiesDoNotMutate(t *testing.T) {
	original := NewDomainError("NG-TEST-1000", "original message")

	withDetails := original.WithDetails("details")
	withMessage := original.WithMessage("custom")

	if original.Details != "" || original.Message != "original message" {
		t.Error("copy helpers should not modify the original error")
	}
	if withDetails.Details != "details" || withDetails.Code != original.Code {
		t.Errorf("WithDetails() = %+v", withDetails)
	}
	if withMessage.Message != "custom" || !errors.Is(withMessage, original) {
		t.Errorf("WithMessage() = %+v", withMessage)
	}
}

func TestIsDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"domain error any code", ErrNonceMalformed, "", true},
		{"domain error matching code", ErrNonceMalformed, "NG-NONCE-4000", true},
		{"domain error other code", ErrNonceMalformed, "NG-NONCE-4030", false},
		{"wrapped domain error", fmt.Errorf("x: %w", ErrRateLimited), "NG-SYS-4290", true},
		{"plain error", errors.New("plain"), "", false},
		{"nil error", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDomainError(tt.err, tt.code); got != tt.want {
				t.Errorf("IsDomainError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(ErrNonceReplayed.WithDetails("x")); got != "NG-NONCE-4031" {
		t.Errorf("GetErrorCode() = %q", got)
	}
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Errorf("GetErrorCode(plain) = %q, want empty", got)
	}
}

func TestErrorCodesUnique(t *testing.T) {
	all := []*DomainError{
		ErrNonceMalformed, ErrNonceMissing, ErrNonceInvalid, ErrNonceReplayed,
		ErrConfigInvalid,
		ErrInternalServer, ErrStorageError, ErrServiceUnavailable, ErrBadRequest, ErrForbidden, ErrRateLimited,
		ErrInvalidArgument, ErrMissingArgument,
	}

	seen := make(map[string]bool)
	for _, e := range all {
		if seen[e.Code] {
			t.Errorf("duplicate error code %s", e.Code)
		}
		seen[e.Code] = true
	}
}
