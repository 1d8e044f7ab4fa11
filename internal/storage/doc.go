// Package storage provides the replay stores behind nonceguard's optional
// single-use mode.
//
// A replay store remembers which nonces have already been consumed. Nonce
// verification itself is stateless; a store is only consulted when a caller
// asks for a nonce to be consumed.
//
// Backends:
//
//   - memory: Bounded set in process memory (see package memory)
//   - badger: Local Badger database, survives restarts
//   - redis: Shared across replicas via SET NX with expiry
//
// Keys are hashes produced by domain.HashNonce; raw nonces are never
// written to a store. Every entry expires when its nonce would stop
// verifying, so stores never grow beyond two lifetimes of traffic.
package storage
