// Package domain defines the core domain models for nonceguard.
//
// Domain models are pure values without IO dependencies or framework
// coupling. This package contains:
//
//   - Errors: coded domain errors shared by the service and transport layers
//   - Nonce helpers: action validation, replay-key hashing, log masking
//   - API keys: roles, permissions, Argon2id secret hashes
//
// Token derivation itself lives in pkg/nonce.
package domain
