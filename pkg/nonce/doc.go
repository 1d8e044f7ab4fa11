// Package nonce provides stateless, time-windowed anti-CSRF token issuance
// and verification.
//
// A token is bound to an action string, a time bucket and an installation
// secret. No record of issued tokens is kept: verification recomputes the
// expected value for the current and the previous bucket.
//
// Token Format:
//
//   - Body: 22 characters of Base64 RawURL encoded HMAC-SHA256 output
//     (first 16 bytes)
//   - No prefix, no embedded expiry
//
// Validity:
//
//   - Fresh: issued in the current bucket
//   - Aging: issued in the immediately preceding bucket
//   - Invalid: anything else
//
// A token therefore lives between one and two lifetimes depending on where
// in its bucket it was issued.
//
// Security:
//
//   - HKDF-SHA256 derived signing key, HMAC-SHA256 derivation
//   - Constant-time comparison against both buckets
//   - Rotating the secret or changing the lifetime invalidates every
//     previously issued token
//
// The caller always supplies the current time; this package never reads
// the system clock.
package nonce
