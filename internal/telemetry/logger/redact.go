package logger

import (
	"log/slog"
	"strings"
)

// Keys whose values are nonces. They are partially masked so operators can
// still correlate log lines.
var nonceKeyPatterns = []string{
	"nonce",
	"token",
	"candidate",
}

// Keys whose values are fully redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"key",
	"credential",
	"auth",
	"bearer",
}

// Keys that match a pattern above but hold no secret.
var allowedKeys = map[string]bool{
	"replay_key": true, // already a one-way hash
	"key_count":  true,
}

const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}
	strVal := a.Value.String()
	if strVal == "" {
		return a
	}

	keyLower := strings.ToLower(a.Key)
	if allowedKeys[keyLower] {
		return a
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return slog.String(a.Key, redactedValue)
		}
	}
	for _, pattern := range nonceKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return slog.String(a.Key, MaskNonce(strVal))
		}
	}
	return a
}

// MaskNonce keeps the first and last three characters of a nonce.
// Values of nine characters or fewer are fully redacted.
func MaskNonce(value string) string {
	if len(value) <= 9 {
		return redactedValue
	}
	return value[:3] + "..." + value[len(value)-3:]
}

// IsSensitiveKey reports whether values logged under key are masked or
// redacted.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	if allowedKeys[keyLower] {
		return false
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	for _, pattern := range nonceKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
