// Package httpserver provides the HTTP/HTTPS server for nonceguard.
//
// It is built on net/http. NewRouter mounts the nonce API from package
// handler behind the middleware chain
//
//	Recover -> RequestID -> CORS -> RateLimit -> Audit -> Metrics -> ServeMux
//
// and exposes Prometheus metrics on GET /metrics.
package httpserver
