// Package main provides the entry point for nonceguard-server.
//
// The server issues and verifies time-windowed nonces over HTTP and exposes
// a forward-auth endpoint that reverse proxies can call before passing a
// state-changing request upstream.
//
// Usage:
//
//	nonceguard-server --config /etc/nonceguard/server.yaml
//	nonceguard-server --version
//
// Every setting can also come from NONCEGUARD_* environment variables, with
// "__" separating nesting levels (NONCEGUARD_NONCE__SECRET_FILE).
package main
