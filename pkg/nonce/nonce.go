package nonce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	// TokenLength is the length of an issued token (16 bytes, Base64 RawURL).
	TokenLength = 22

	// DefaultMaxTokenLength is the longest candidate Verify accepts before
	// reporting ErrMalformedInput.
	DefaultMaxTokenLength = 256

	// DefaultLifetime is one day, the lifetime WordPress-style nonces use.
	DefaultLifetime = 24 * time.Hour

	tokenBytes = 16
	keyInfo    = "nonceguard/nonce/v1"
)

// Result is the outcome of verifying a token.
//
// The numeric values follow the classic nonce API: 1 for a token from the
// current bucket, 2 for one from the previous bucket, 0 otherwise.
type Result int

const (
	// Invalid means the token matches neither the current nor the previous bucket.
	Invalid Result = iota
	// Fresh means the token was issued in the current bucket.
	Fresh
	// Aging means the token was issued in the previous bucket.
	Aging
)

// Valid reports whether the token was accepted (Fresh or Aging).
func (r Result) Valid() bool {
	return r == Fresh || r == Aging
}

// String returns the lowercase name of the result.
func (r Result) String() string {
	switch r {
	case Fresh:
		return "fresh"
	case Aging:
		return "aging"
	default:
		return "invalid"
	}
}

// ParseResult parses the output of Result.String.
func ParseResult(s string) (Result, error) {
	switch s {
	case "fresh":
		return Fresh, nil
	case "aging":
		return Aging, nil
	case "invalid":
		return Invalid, nil
	default:
		return Invalid, fmt.Errorf("nonce: unknown result %q", s)
	}
}

// Token is an issued nonce value.
type Token string

// String returns the token as a plain string.
func (t Token) String() string {
	return string(t)
}

// TokenContext binds an action, a lifetime and a secret. It is an immutable
// value; the With* helpers and ConfigureLifetime return modified copies.
//
// The zero value is not usable; build one with NewTokenContext.
type TokenContext struct {
	action  string
	subject string
	window  int64 // seconds
	key     []byte
	maxLen  int
}

// Option configures a TokenContext at construction.
type Option func(*TokenContext)

// WithSubject binds tokens to a caller identity (for example a user ID and
// session ID). Tokens issued for one subject never verify for another.
func WithSubject(subject string) Option {
	return func(tc *TokenContext) {
		tc.subject = subject
	}
}

// WithMaxTokenLength overrides the maximum candidate length accepted by
// Verify. Values <= 0 keep the default.
func WithMaxTokenLength(n int) Option {
	return func(tc *TokenContext) {
		if n > 0 {
			tc.maxLen = n
		}
	}
}

// NewTokenContext creates a TokenContext.
//
// lifetime is truncated to whole seconds and must be at least one second.
// secret must be non-empty; it is expanded with HKDF into the signing key and
// not retained.
func NewTokenContext(action string, lifetime time.Duration, secret []byte, opts ...Option) (TokenContext, error) {
	window, err := windowSeconds(lifetime)
	if err != nil {
		return TokenContext{}, err
	}
	if len(secret) == 0 {
		return TokenContext{}, fmt.Errorf("%w: secret is empty", ErrInvalidConfig)
	}

	key, err := deriveKey(secret)
	if err != nil {
		return TokenContext{}, fmt.Errorf("%w: derive key: %v", ErrInvalidConfig, err)
	}

	tc := TokenContext{
		action: action,
		window: window,
		key:    key,
		maxLen: DefaultMaxTokenLength,
	}
	for _, opt := range opts {
		opt(&tc)
	}
	return tc, nil
}

// Action returns the action the context issues tokens for.
func (tc TokenContext) Action() string {
	return tc.action
}

// Subject returns the bound subject, or "" when unbound.
func (tc TokenContext) Subject() string {
	return tc.subject
}

// Lifetime returns the bucket width.
func (tc TokenContext) Lifetime() time.Duration {
	return time.Duration(tc.window) * time.Second
}

// MaxTokenLength returns the longest candidate Verify accepts.
func (tc TokenContext) MaxTokenLength() int {
	return tc.maxLen
}

// Issue returns the token for tc at time now.
//
// Two calls with the same context inside the same bucket return the same
// token.
func Issue(tc TokenContext, now time.Time) Token {
	return tc.derive(Bucket(tc, now))
}

// Verify checks candidate against the current and the previous bucket.
//
// A token that does not match is reported as Invalid with a nil error. The
// only error is ErrMalformedInput, for candidates longer than the context's
// maximum token length.
func Verify(tc TokenContext, candidate string, now time.Time) (Result, error) {
	if len(candidate) > tc.maxLen {
		return Invalid, fmt.Errorf("%w: token length %d exceeds %d", ErrMalformedInput, len(candidate), tc.maxLen)
	}
	if candidate == "" || len(tc.key) == 0 {
		return Invalid, nil
	}

	bucket := Bucket(tc, now)
	got := []byte(candidate)

	// Both comparisons always run so timing does not reveal which bucket matched.
	current := hmac.Equal(got, []byte(tc.derive(bucket)))
	previous := hmac.Equal(got, []byte(tc.derive(bucket-1)))

	switch {
	case current:
		return Fresh, nil
	case previous:
		return Aging, nil
	default:
		return Invalid, nil
	}
}

// ConfigureLifetime returns a copy of tc with a new lifetime. Tokens issued
// under the previous lifetime stop verifying against the returned context.
func ConfigureLifetime(tc TokenContext, lifetime time.Duration) (TokenContext, error) {
	window, err := windowSeconds(lifetime)
	if err != nil {
		return TokenContext{}, err
	}
	tc.window = window
	return tc, nil
}

// WithAction returns a copy of tc for a different action.
func WithAction(tc TokenContext, action string) TokenContext {
	tc.action = action
	return tc
}

// ForSubject returns a copy of tc bound to a different subject.
func ForSubject(tc TokenContext, subject string) TokenContext {
	tc.subject = subject
	return tc
}

// Bucket returns the time bucket now falls into: floor(unix / window).
func Bucket(tc TokenContext, now time.Time) int64 {
	if tc.window <= 0 {
		return 0
	}
	unix := now.Unix()
	b := unix / tc.window
	if unix%tc.window != 0 && unix < 0 {
		b--
	}
	return b
}

// Expiry returns the instant at which a token that verified with r at now
// stops verifying. It returns the zero time for Invalid.
func Expiry(tc TokenContext, r Result, now time.Time) time.Time {
	bucket := Bucket(tc, now)
	switch r {
	case Fresh:
		return time.Unix((bucket+2)*tc.window, 0)
	case Aging:
		return time.Unix((bucket+1)*tc.window, 0)
	default:
		return time.Time{}
	}
}

// derive computes the token for a bucket.
func (tc TokenContext) derive(bucket int64) Token {
	mac := hmac.New(sha256.New, tc.key)

	var hdr [12]byte
	binary.BigEndian.PutUint64(hdr[:8], uint64(bucket))
	binary.BigEndian.PutUint32(hdr[8:], uint32(len(tc.action)))
	mac.Write(hdr[:])
	io.WriteString(mac, tc.action)
	io.WriteString(mac, tc.subject)

	sum := mac.Sum(nil)
	return Token(base64.RawURLEncoding.EncodeToString(sum[:tokenBytes]))
}

func windowSeconds(lifetime time.Duration) (int64, error) {
	window := int64(lifetime / time.Second)
	if window <= 0 {
		return 0, fmt.Errorf("%w: lifetime must be at least 1s, got %s", ErrInvalidConfig, lifetime)
	}
	return window, nil
}

func deriveKey(secret []byte) ([]byte, error) {
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}
