// Package metric provides Prometheus metrics for nonceguard.
//
//   - prometheus.go: Registry of nonce and HTTP metrics, /metrics handler
//   - collector.go: Build information collector
//
// Each Registry owns its own prometheus.Registry, so tests and embedded
// uses never collide on the global default registerer.
package metric
