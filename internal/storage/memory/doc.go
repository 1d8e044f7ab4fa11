// Package memory provides the in-process replay store for nonceguard.
//
// It records hashes of consumed single-use nonces in a bounded list
// with per-entry expiry.
//
// Features:
//
//   - Bounded Capacity: A full store rejects new keys with ErrFull
//   - Per-entry TTL: An entry lives until its nonce would stop verifying
//   - Atomic Check-and-Set: MarkUsed never admits the same key twice while live
//
// Thread Safety:
//
// All operations hold a single mutex; MarkUsed is atomic.
//
// Live entries are never evicted. When every slot is live, MarkUsed fails
// and the caller rejects the nonce, so the capacity must cover the expected
// number of consumed nonces per two lifetimes. Use the badger or redis
// backends when that is unbounded.
package memory
