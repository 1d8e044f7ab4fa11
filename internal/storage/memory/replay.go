package memory

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultCapacity is the default number of consumed nonces tracked.
const DefaultCapacity = 100_000

// ErrFull is returned by MarkUsed when every slot holds a live entry.
// Live entries are never evicted, since forgetting one would let its nonce
// verify a second time.
var ErrFull = errors.New("memory: replay store is full")

// ReplayStore is a bounded set of consumed nonce hashes with per-entry
// expiry, kept in insertion order.
type ReplayStore struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List
	capacity int
	now      func() time.Time
	rejected uint64
}

// replayEntry represents a consumed nonce.
type replayEntry struct {
	key       string
	expiresAt time.Time
}

// Option configures a ReplayStore.
type Option func(*ReplayStore)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *ReplayStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewReplayStore creates a ReplayStore holding at most capacity live keys.
// A non-positive capacity selects DefaultCapacity.
func NewReplayStore(capacity int, opts ...Option) *ReplayStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &ReplayStore{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkUsed records key until ttl elapses.
// It returns true if the key was not already live (first use), false if it
// was (replay). When the store is full of live entries it returns ErrFull
// and records nothing.
func (s *ReplayStore) MarkUsed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if elem, exists := s.items[key]; exists {
		entry := elem.Value.(*replayEntry)
		if now.Before(entry.expiresAt) {
			return false, nil
		}
		// Expired, treat as absent
		s.order.Remove(elem)
		delete(s.items, key)
	}

	s.cleanupExpiredLocked(now)
	if s.order.Len() >= s.capacity {
		// Entries carry different TTLs, so expired ones can sit behind
		// live ones; sweep everything before giving up.
		s.sweepExpiredLocked(now)
	}
	if s.order.Len() >= s.capacity {
		s.rejected++
		return false, ErrFull
	}

	elem := s.order.PushFront(&replayEntry{
		key:       key,
		expiresAt: now.Add(ttl),
	})
	s.items[key] = elem
	return true, nil
}

// Contains reports whether key is live.
func (s *ReplayStore) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, exists := s.items[key]
	if !exists {
		return false
	}
	return s.now().Before(elem.Value.(*replayEntry).expiresAt)
}

// cleanupExpiredLocked drops expired entries from the oldest end.
// It stops at the first live entry, so an expired entry behind a live one
// survives until sweepExpiredLocked or a lookup removes it.
func (s *ReplayStore) cleanupExpiredLocked(now time.Time) {
	for elem := s.order.Back(); elem != nil; {
		entry := elem.Value.(*replayEntry)
		if now.Before(entry.expiresAt) {
			break
		}
		prev := elem.Prev()
		delete(s.items, entry.key)
		s.order.Remove(elem)
		elem = prev
	}
}

// sweepExpiredLocked drops every expired entry.
func (s *ReplayStore) sweepExpiredLocked(now time.Time) {
	for elem := s.order.Back(); elem != nil; {
		prev := elem.Prev()
		entry := elem.Value.(*replayEntry)
		if !now.Before(entry.expiresAt) {
			delete(s.items, entry.key)
			s.order.Remove(elem)
		}
		elem = prev
	}
}

// Len returns the number of tracked entries, including expired ones not yet
// cleaned up.
func (s *ReplayStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Rejected returns how many MarkUsed calls failed with ErrFull.
func (s *ReplayStore) Rejected() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

// Clear removes all entries.
func (s *ReplayStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*list.Element)
	s.order.Init()
}

// Close implements the replay store interface. It only clears the store.
func (s *ReplayStore) Close() error {
	s.Clear()
	return nil
}
