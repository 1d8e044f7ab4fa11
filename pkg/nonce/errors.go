package nonce

import "errors"

var (
	// ErrInvalidConfig is returned when a TokenContext cannot be built from
	// the supplied lifetime or secret.
	ErrInvalidConfig = errors.New("nonce: invalid configuration")

	// ErrMalformedInput is returned by Verify for candidates that cannot be a
	// token at all (for example, exceeding the maximum accepted length).
	// It is distinct from an Invalid result.
	ErrMalformedInput = errors.New("nonce: malformed input")
)
