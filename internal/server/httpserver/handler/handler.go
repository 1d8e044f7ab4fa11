package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yndnr/nonceguard-go/internal/core/domain"
	"github.com/yndnr/nonceguard-go/internal/core/service"
	"github.com/yndnr/nonceguard-go/internal/telemetry/logger"
	"github.com/yndnr/nonceguard-go/pkg/httpguard"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Config configures a Handler.
type Config struct {
	// HeaderName and FieldName locate the nonce on guarded requests.
	HeaderName string
	FieldName  string

	// Required rejects guarded requests that carry no nonce.
	Required bool

	// Consume makes guarded verifications single-use.
	Consume bool

	// Ready reports whether dependencies are reachable. Nil is always ready.
	Ready func(ctx context.Context) error
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	nonceSvc *service.NonceService
	cfg      Config
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a new Handler.
func New(nonceSvc *service.NonceService, cfg Config, logger *slog.Logger) *Handler {
	if cfg.HeaderName == "" {
		cfg.HeaderName = httpguard.DefaultHeaderName
	}
	if cfg.FieldName == "" {
		cfg.FieldName = httpguard.DefaultFieldName
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		nonceSvc: nonceSvc,
		cfg:      cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Route is a pattern the handler serves and the permission a caller needs
// for it. An empty Permission leaves the route open.
type Route struct {
	Pattern    string
	Permission domain.Permission
}

// Routes lists the patterns the handler serves.
//
// The guard routes stay open: the nonce itself is the credential there,
// and a proxy's forward-auth call carries no API key.
func (h *Handler) Routes() []Route {
	return []Route{
		{Pattern: "GET /health"},
		{Pattern: "GET /ready"},
		{Pattern: "POST /v1/nonces", Permission: domain.PermNonceIssue},
		{Pattern: "POST /v1/nonces/verify", Permission: domain.PermNonceVerify},
		{Pattern: "GET /v1/guard/{action}"},
		{Pattern: "POST /v1/guard/{action}"},
	}
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Health endpoints
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// Nonce endpoints
	h.mux.HandleFunc("POST /v1/nonces", h.handleIssueNonce)
	h.mux.HandleFunc("POST /v1/nonces/verify", h.handleVerifyNonce)

	// Forward-auth endpoint
	guarded := h.guard()
	h.mux.Handle("GET /v1/guard/{action}", guarded)
	h.mux.Handle("POST /v1/guard/{action}", guarded)
}

// decodeJSON reads a bounded JSON body into v.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrBadRequest.WithDetails(err.Error())
	}
	return nil
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// getRequestID extracts request ID from context or header.
func getRequestID(r *http.Request) string {
	if reqID := logger.RequestIDFromContext(r.Context()); reqID != "" {
		return reqID
	}
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := ErrorCodeToHTTPStatus(de.Code)
		if status >= http.StatusInternalServerError {
			h.logger.Error("request failed", "request_id", getRequestID(r), "error", err)
		}
		var details any
		if de.Details != "" {
			details = de.Details
		}
		h.writeError(w, r, status, de.Code, de.Message, details)
		return
	}

	// Generic internal error
	h.logger.Error("internal error", "request_id", getRequestID(r), "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
}

// ErrorCodeToHTTPStatus maps error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4000"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"):
		return http.StatusForbidden
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	case strings.HasPrefix(code, "NG-ARG-"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
