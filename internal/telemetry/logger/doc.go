// Package logger provides structured logging for nonceguard.
//
// It wraps the standard library log/slog:
//
//   - logger.go: Logger interface, handler construction, dynamic level
//   - context.go: Context-aware logging with request IDs
//   - redact.go: Nonce and secret redaction
//
// Nonces are partially masked, secrets and passwords fully redacted, before
// a record reaches the handler.
package logger
