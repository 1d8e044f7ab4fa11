// Package domain defines the core domain models for nonceguard.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes have the form NG-<AREA>-<NNNN>; the last three digits of a 4xxx/5xxx
// code follow the HTTP status they map to.
type DomainError struct {
	Code    string // Error code (e.g., "NG-NONCE-4030")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support by comparing codes.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// WithMessage returns a copy of the error with a replaced message.
// The code is kept, so errors.Is still matches the original sentinel.
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: message,
		Details: e.Details,
		Cause:   e.Cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Nonce Errors (NONCE)
// ============================================================================

var (
	// ErrNonceMalformed indicates the candidate cannot be a nonce at all.
	ErrNonceMalformed = NewDomainError("NG-NONCE-4000", "malformed nonce")

	// ErrNonceMissing indicates a required nonce was not sent.
	ErrNonceMissing = NewDomainError("NG-NONCE-4010", "nonce not provided")

	// ErrNonceInvalid indicates the nonce did not verify.
	// The message is the classic default shown to rejected requests.
	ErrNonceInvalid = NewDomainError("NG-NONCE-4030", "You are not allowed to do this.")

	// ErrNonceReplayed indicates a single-use nonce was presented again.
	ErrNonceReplayed = NewDomainError("NG-NONCE-4031", "nonce already used")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrAuthRequired indicates the request carried no API key.
	ErrAuthRequired = NewDomainError("NG-AUTH-4010", "authentication required")

	// ErrAPIKeyInvalid indicates an unknown, disabled or mismatched API key.
	ErrAPIKeyInvalid = NewDomainError("NG-AUTH-4011", "invalid API key")

	// ErrPermissionDenied indicates the key's role does not allow the operation.
	ErrPermissionDenied = NewDomainError("NG-AUTH-4030", "permission denied")

	// ErrAPIKeyValidation indicates a configured API key is malformed.
	ErrAPIKeyValidation = NewDomainError("NG-AUTH-4000", "invalid API key definition")
)

// ============================================================================
// Configuration Errors (CONF)
// ============================================================================

var (
	// ErrConfigInvalid indicates the nonce configuration cannot be used.
	ErrConfigInvalid = NewDomainError("NG-CONF-5000", "invalid nonce configuration")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("NG-SYS-5000", "internal server error")

	// ErrStorageError indicates a replay store error.
	ErrStorageError = NewDomainError("NG-SYS-5001", "storage error")

	// ErrServiceUnavailable indicates the service is temporarily unavailable.
	ErrServiceUnavailable = NewDomainError("NG-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("NG-SYS-4000", "bad request")

	// ErrForbidden indicates the client may not use the endpoint.
	ErrForbidden = NewDomainError("NG-SYS-4030", "forbidden")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("NG-SYS-4290", "too many requests")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("NG-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("NG-ARG-1002", "missing required argument")
)
