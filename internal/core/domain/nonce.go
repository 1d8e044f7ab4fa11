// Package domain defines the core domain models for nonceguard.
package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxActionLength is the longest action name accepted by the service.
	MaxActionLength = 256

	// MaxSubjectLength is the longest subject binding accepted by the service.
	MaxSubjectLength = 512

	// ReplayKeyPrefix prefixes replay-store keys derived by HashNonce.
	ReplayKeyPrefix = "ngrp_"
)

// ValidateAction checks that an action name is usable.
// Actions must be non-empty valid UTF-8 without control characters.
func ValidateAction(action string) error {
	if action == "" {
		return ErrMissingArgument.WithDetails("action is required")
	}
	if len(action) > MaxActionLength {
		return ErrInvalidArgument.WithDetails("action is too long")
	}
	if !utf8.ValidString(action) {
		return ErrInvalidArgument.WithDetails("action is not valid UTF-8")
	}
	for _, r := range action {
		if unicode.IsControl(r) {
			return ErrInvalidArgument.WithDetails("action contains control characters")
		}
	}
	return nil
}

// ValidateSubject checks an optional subject binding.
func ValidateSubject(subject string) error {
	if len(subject) > MaxSubjectLength {
		return ErrInvalidArgument.WithDetails("subject is too long")
	}
	if !utf8.ValidString(subject) {
		return ErrInvalidArgument.WithDetails("subject is not valid UTF-8")
	}
	return nil
}

// HashNonce returns the replay-store key for a presented nonce:
// ngrp_{hex sha256(len(action) || action || len(subject) || subject || token)}.
//
// Plaintext nonces are never persisted; only this hash is.
func HashNonce(action, subject, token string) string {
	h := sha256.New()
	var n [4]byte

	binary.BigEndian.PutUint32(n[:], uint32(len(action)))
	h.Write(n[:])
	h.Write([]byte(action))

	binary.BigEndian.PutUint32(n[:], uint32(len(subject)))
	h.Write(n[:])
	h.Write([]byte(subject))

	h.Write([]byte(token))
	return ReplayKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// MaskNonce masks a nonce for safe logging.
// Example: abc...xyz
func MaskNonce(token string) string {
	if len(token) < 10 {
		return "***REDACTED***"
	}
	return token[:3] + "..." + token[len(token)-3:]
}
