// Package service provides the nonce service for nonceguard.
//
// NonceService wraps the stateless issuer and verifier in pkg/nonce with
// the concerns the pure core does not own:
//
//   - Installation secret and per-action lifetimes from configuration
//   - Clock injection
//   - Optional single-use mode backed by a replay store
//   - Metrics hooks and structured logging with masked nonces
//
// NonceService is safe for concurrent use. Lifetimes may be changed at
// runtime with SetLifetime; tokens issued under the previous lifetime stop
// verifying.
package service
