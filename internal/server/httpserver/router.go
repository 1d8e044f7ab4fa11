package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/nonceguard-go/internal/core/service"
	"github.com/yndnr/nonceguard-go/internal/server/httpserver/handler"
	"github.com/yndnr/nonceguard-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler serves the nonce API. Required.
	Handler *handler.Handler

	// Logger for request logging.
	Logger *slog.Logger

	// Metrics enables GET /metrics and request metrics. Nil disables both.
	Metrics *metric.Registry

	// MetricsAllowList restricts /metrics to these IPs and CIDRs.
	MetricsAllowList []string

	// Auth requires API keys on the issue and verify routes. Nil leaves
	// every route open.
	Auth *service.AuthService

	// MetricsAuthRequired also requires a metrics-capable key on /metrics.
	MetricsAuthRequired bool

	// TrustedProxies lists the peers (IPs or CIDRs) whose X-Forwarded-For
	// and X-Real-IP headers are believed. Empty trusts none.
	TrustedProxies []string

	// CORSAllowedOrigins enables CORS for the listed origins.
	CORSAllowedOrigins []string

	// NonceHeader is allowed in CORS preflight requests.
	NonceHeader string

	// RateLimit applies per-client-IP limits. Nil disables rate limiting.
	RateLimit *RateLimiterRegistry
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	ips := NewClientIPResolver(cfg.TrustedProxies, log)
	mux := http.NewServeMux()

	// Register each API pattern at the top level so request metrics are
	// labelled by route rather than by "/".
	for _, route := range cfg.Handler.Routes() {
		var h http.Handler = cfg.Handler
		if cfg.Auth != nil && route.Permission != "" {
			h = Auth(cfg.Auth, route.Permission)(h)
		}
		mux.Handle(route.Pattern, h)
	}

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(),
			NetworkACL(cfg.MetricsAllowList, ips, log),
			MetricsAuth(cfg.Auth, cfg.MetricsAuthRequired),
		))
	}

	// Order: Recover -> RequestID -> CORS -> RateLimit -> Audit -> Metrics -> mux
	middlewares := []Middleware{
		Recover(log),
		RequestID(),
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		middlewares = append(middlewares, CORS(cfg.CORSAllowedOrigins, cfg.NonceHeader))
	}
	if cfg.RateLimit != nil {
		middlewares = append(middlewares, RateLimit(cfg.RateLimit, ips))
	}
	middlewares = append(middlewares, Audit(log, ips))
	if cfg.Metrics != nil {
		middlewares = append(middlewares, Metrics(cfg.Metrics))
	}

	return Chain(mux, middlewares...)
}
