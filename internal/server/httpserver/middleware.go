package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/nonceguard-go/internal/core/domain"
	"github.com/yndnr/nonceguard-go/internal/core/service"
	"github.com/yndnr/nonceguard-go/internal/server/httpserver/handler"
	"github.com/yndnr/nonceguard-go/internal/telemetry/logger"
	"github.com/yndnr/nonceguard-go/internal/telemetry/metric"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together. The first middleware is the
// outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// maxRequestIDLength bounds client-supplied request IDs.
const maxRequestIDLength = 128

// RequestID adds a unique request ID to each request. A client-supplied
// X-Request-ID is kept when it is short and printable.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if !validRequestID(requestID) {
				requestID = "req-" + ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0)).String()
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// RateLimit applies per-client-IP rate limiting.
func RateLimit(registry *RateLimiterRegistry, ips *ClientIPResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !registry.Allow(ips.ClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				writeError(w, r, http.StatusTooManyRequests, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// contextKey is the type for request context keys set by middleware.
type contextKey string

// ContextKeyAPIKey holds the authenticated *domain.APIKey.
const ContextKeyAPIKey contextKey = "api_key"

// GetAPIKeyFromContext returns the key authenticated by Auth, or nil.
func GetAPIKeyFromContext(ctx context.Context) *domain.APIKey {
	key, _ := ctx.Value(ContextKeyAPIKey).(*domain.APIKey)
	return key
}

// Auth authenticates the caller's API key and requires perm.
//
// Credentials are read from X-API-Key-ID and X-API-Key, or from
// "Authorization: Bearer <key_id>:<secret>".
func Auth(authSvc *service.AuthService, perm domain.Permission) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyID, keySecret := extractAPIKeyCredentials(r)
			if keyID == "" || keySecret == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="nonceguard"`)
				writeError(w, r, http.StatusUnauthorized, domain.ErrAuthRequired)
				return
			}

			resp, err := authSvc.ValidateAPIKey(r.Context(), &service.ValidateAPIKeyRequest{
				KeyID:     keyID,
				KeySecret: keySecret,
			})
			if err != nil || !resp.Valid || resp.APIKey == nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="nonceguard", error="invalid_token"`)
				writeError(w, r, http.StatusUnauthorized, authError(err, domain.ErrAPIKeyInvalid))
				return
			}

			if err := authSvc.CheckPermission(resp.APIKey, perm); err != nil {
				writeError(w, r, http.StatusForbidden, authError(err, domain.ErrPermissionDenied))
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyAPIKey, resp.APIKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetricsAuth requires a key allowed to read metrics when authRequired is
// set. It returns bare status codes so scrapers see no JSON body.
func MetricsAuth(authSvc *service.AuthService, authRequired bool) Middleware {
	return func(next http.Handler) http.Handler {
		if !authRequired || authSvc == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyID, keySecret := extractAPIKeyCredentials(r)
			if keyID == "" || keySecret == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			resp, err := authSvc.ValidateAPIKey(r.Context(), &service.ValidateAPIKeyRequest{
				KeyID:     keyID,
				KeySecret: keySecret,
			})
			if err != nil || !resp.Valid || resp.APIKey == nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			if !domain.HasPermission(resp.APIKey.Role, domain.PermMetricsRead) {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractAPIKeyCredentials reads the key ID and secret from the request.
func extractAPIKeyCredentials(r *http.Request) (keyID, keySecret string) {
	keyID = r.Header.Get("X-API-Key-ID")
	keySecret = r.Header.Get("X-API-Key")
	if keyID != "" || keySecret != "" {
		return keyID, keySecret
	}

	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		if id, secret, ok := strings.Cut(token, ":"); ok {
			return id, secret
		}
	}
	return "", ""
}

// authError returns err as a domain error, or fallback.
func authError(err error, fallback *domain.DomainError) *domain.DomainError {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de
	}
	return fallback
}

// Audit logs one line per completed request.
func Audit(log *slog.Logger, ips *ClientIPResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			attrs := []any{
				"request_id", logger.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", ips.ClientIP(r),
			}
			if result := wrapped.Header().Get(handler.HeaderNonceResult); result != "" {
				attrs = append(attrs, "nonce_result", result)
			}

			switch {
			case wrapped.statusCode >= 500:
				log.Error("request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				log.Warn("request completed with client error", attrs...)
			default:
				log.Info("request completed", attrs...)
			}
		})
	}
}

// Metrics records request counts and latencies by route pattern. It must
// wrap the ServeMux directly so the matched pattern is visible after the
// request is served.
func Metrics(reg *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			reg.ObserveRequest(r.Method, route, wrapped.statusCode, time.Since(start))
		})
	}
}

// Recover recovers from panics and returns 500 error.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.Error("panic recovered",
						"request_id", logger.RequestIDFromContext(r.Context()),
						"error", err,
						"path", r.URL.Path,
					)
					writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// CORS adds Cross-Origin Resource Sharing headers for allowed origins.
func CORS(allowedOrigins []string, nonceHeader string) Middleware {
	allowHeaders := strings.Join([]string{"Content-Type", "X-Request-ID", nonceHeader, handler.HeaderNonceSubject}, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
				w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Error-Code, "+handler.HeaderNonceResult)
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			}

			// Handle preflight
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NetworkACL rejects clients outside allowList (IPs or CIDRs). Invalid
// entries are logged and skipped. An empty list allows everyone.
func NetworkACL(allowList []string, ips *ClientIPResolver, log *slog.Logger) Middleware {
	allowed := newIPMatcher(allowList, "allowlist", log)

	return func(next http.Handler) http.Handler {
		if len(allowList) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ips.ClientIP(r)
			if allowed.contains(clientIP) {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn("request denied by network ACL",
				"client_ip", clientIP,
				"path", r.URL.Path,
			)
			writeError(w, r, http.StatusForbidden, domain.ErrForbidden)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// writeError writes a domain error in the standard envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, err *domain.DomainError) {
	requestID := logger.RequestIDFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", err.Code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":       err.Code,
		"message":    err.Message,
		"request_id": requestID,
		"timestamp":  time.Now().UnixMilli(),
	})
}
