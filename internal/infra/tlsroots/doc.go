// Package tlsroots loads TLS material for nonceguard.
//
//   - roots.go: trust pools and client configs (Redis replay store, CLI)
//   - watcher.go: server certificate hot-reload via fsnotify
package tlsroots
