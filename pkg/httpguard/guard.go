// Package httpguard protects net/http handlers with nonces.
//
// Guard looks for a candidate nonce on each request, verifies it for the
// action the request performs, and either passes the request on with the
// verification result in its context or rejects it through a failure
// handler. The package knows nothing about how nonces are verified; callers
// supply a VerifyFunc, typically StaticVerifier for in-process use or a
// function calling a nonceguard server.
//
// Usage:
//
//	tc, _ := nonce.NewTokenContext("", 12*time.Hour, secret)
//	mux.Handle("POST /posts/{id}/delete", httpguard.Guard(httpguard.Config{
//		Verify:   httpguard.StaticVerifier(tc, time.Now),
//		Action:   func(r *http.Request) string { return "delete-post-" + r.PathValue("id") },
//		Required: true,
//	})(deleteHandler))
package httpguard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yndnr/nonceguard-go/pkg/nonce"
)

const (
	// DefaultHeaderName is the request header checked first.
	DefaultHeaderName = "X-Nonce"

	// DefaultFieldName is the form field and query parameter checked after
	// the header.
	DefaultFieldName = "oop_nonce"

	// DefaultMessage is shown to requests rejected by DefaultFailure.
	DefaultMessage = "You are not allowed to do this."
)

var (
	// ErrMissing is passed to OnFailure when Required is set and the
	// request carries no nonce.
	ErrMissing = errors.New("httpguard: nonce not provided")

	// ErrInvalid is passed to OnFailure when the nonce did not verify.
	ErrInvalid = errors.New("httpguard: nonce invalid")
)

// VerifyFunc verifies candidate for action and subject.
//
// A candidate that does not verify is reported as nonce.Invalid with a nil
// error. Errors are reserved for malformed input (wrapping
// nonce.ErrMalformedInput) and verifier failures.
type VerifyFunc func(ctx context.Context, action, subject, candidate string) (nonce.Result, error)

// Config configures Guard.
type Config struct {
	// Verify checks candidates. Required.
	Verify VerifyFunc

	// Action resolves the action a request performs. Required.
	Action func(r *http.Request) string

	// Subject resolves the caller identity tokens are bound to.
	// Nil binds nothing.
	Subject func(r *http.Request) string

	// HeaderName overrides DefaultHeaderName.
	HeaderName string

	// FieldName overrides DefaultFieldName.
	FieldName string

	// Required rejects requests that carry no nonce. When false, such
	// requests pass unverified and ResultFromContext reports ok=false.
	Required bool

	// OnFailure writes the response for a rejected request. err is
	// ErrMissing, ErrInvalid, or the error returned by Verify.
	// Defaults to DefaultFailure.
	OnFailure func(w http.ResponseWriter, r *http.Request, err error)
}

// Guard returns middleware that verifies the nonce of each request.
//
// It panics when Verify or Action is nil.
func Guard(cfg Config) func(http.Handler) http.Handler {
	if cfg.Verify == nil || cfg.Action == nil {
		panic("httpguard: Config.Verify and Config.Action are required")
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.FieldName == "" {
		cfg.FieldName = DefaultFieldName
	}
	if cfg.OnFailure == nil {
		cfg.OnFailure = DefaultFailure
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			candidate, ok := Candidate(r, cfg.HeaderName, cfg.FieldName)
			if !ok {
				if cfg.Required {
					cfg.OnFailure(w, r, ErrMissing)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			var subject string
			if cfg.Subject != nil {
				subject = cfg.Subject(r)
			}

			result, err := cfg.Verify(r.Context(), cfg.Action(r), subject, candidate)
			if err != nil {
				cfg.OnFailure(w, r, err)
				return
			}
			if !result.Valid() {
				cfg.OnFailure(w, r, ErrInvalid)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithResult(r.Context(), result)))
		})
	}
}

// Candidate extracts the presented nonce: the header first, then the form
// field of a form-encoded body, then the query parameter of the same name.
func Candidate(r *http.Request, headerName, fieldName string) (string, bool) {
	if v := r.Header.Get(headerName); v != "" {
		return v, true
	}
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		if v := r.PostFormValue(fieldName); v != "" {
			return v, true
		}
	}
	if v := r.URL.Query().Get(fieldName); v != "" {
		return v, true
	}
	return "", false
}

// StaticVerifier verifies in process against tc, rebinding it to the
// requested action and subject. now supplies the verification time.
func StaticVerifier(tc nonce.TokenContext, now func() time.Time) VerifyFunc {
	if now == nil {
		now = time.Now
	}
	return func(_ context.Context, action, subject, candidate string) (nonce.Result, error) {
		bound := nonce.ForSubject(nonce.WithAction(tc, action), subject)
		return nonce.Verify(bound, candidate, now())
	}
}

// DefaultFailure writes a JSON error: 401 for ErrMissing, 400 for malformed
// input, 403 for ErrInvalid and 500 for anything else.
func DefaultFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, message := http.StatusInternalServerError, "internal server error"
	switch {
	case errors.Is(err, ErrMissing):
		status, message = http.StatusUnauthorized, "nonce not provided"
	case errors.Is(err, nonce.ErrMalformedInput):
		status, message = http.StatusBadRequest, "malformed nonce"
	case errors.Is(err, ErrInvalid):
		status, message = http.StatusForbidden, DefaultMessage
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    fmt.Sprint(status),
		"message": message,
	})
}

type contextKey struct{}

// WithResult returns ctx carrying a verification result.
func WithResult(ctx context.Context, result nonce.Result) context.Context {
	return context.WithValue(ctx, contextKey{}, result)
}

// ResultFromContext returns the result Guard stored for the request.
// ok is false when the request passed without a nonce.
func ResultFromContext(ctx context.Context) (nonce.Result, bool) {
	result, ok := ctx.Value(contextKey{}).(nonce.Result)
	return result, ok
}
