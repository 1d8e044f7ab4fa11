package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/yndnr/nonceguard-go/internal/core/domain"
	"github.com/yndnr/nonceguard-go/internal/telemetry/logger"
)

// DefaultAuthCacheTTL is how long a successfully verified secret skips the
// Argon2 check.
const DefaultAuthCacheTTL = 60 * time.Second

// AuthService authenticates API keys and checks their permissions.
type AuthService struct {
	mu   sync.RWMutex
	keys map[string]*authEntry
	ttl  time.Duration
	now  func() time.Time
}

// authEntry is a configured key plus its verification cache.
type authEntry struct {
	key *domain.APIKey

	mu            sync.Mutex
	verified      [sha256.Size]byte
	verifiedUntil time.Time
}

// AuthServiceConfig holds configuration for AuthService.
type AuthServiceConfig struct {
	// CacheTTL is how long a verified secret is remembered (default: 60s).
	// Negative disables the cache.
	CacheTTL time.Duration

	// Now overrides the clock.
	Now func() time.Time
}

// NewAuthService creates an AuthService accepting keys.
func NewAuthService(keys []*domain.APIKey, cfg *AuthServiceConfig) (*AuthService, error) {
	if cfg == nil {
		cfg = &AuthServiceConfig{}
	}
	s := &AuthService{
		ttl: cfg.CacheTTL,
		now: cfg.Now,
	}
	if s.ttl == 0 {
		s.ttl = DefaultAuthCacheTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if err := s.ReplaceKeys(keys); err != nil {
		return nil, err
	}
	return s, nil
}

// ReplaceKeys swaps the accepted key set. The verification cache is dropped.
func (s *AuthService) ReplaceKeys(keys []*domain.APIKey) error {
	entries := make(map[string]*authEntry, len(keys))
	for i, k := range keys {
		if k == nil {
			return domain.ErrConfigInvalid.WithDetails(fmt.Sprintf("api key %d is empty", i))
		}
		if err := k.Validate(); err != nil {
			return domain.ErrConfigInvalid.WithDetails(fmt.Sprintf("api key %q", k.KeyID)).WithCause(err)
		}
		if _, dup := entries[k.KeyID]; dup {
			return domain.ErrConfigInvalid.WithDetails(fmt.Sprintf("duplicate api key %q", k.KeyID))
		}
		clone := *k
		entries[k.KeyID] = &authEntry{key: &clone}
	}

	s.mu.Lock()
	s.keys = entries
	s.mu.Unlock()
	return nil
}

// Len returns the number of configured keys.
func (s *AuthService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// ValidateAPIKeyRequest contains parameters for API key validation.
type ValidateAPIKeyRequest struct {
	KeyID     string
	KeySecret string
}

// ValidateAPIKeyResponse contains the result of API key validation.
type ValidateAPIKeyResponse struct {
	Valid  bool
	APIKey *domain.APIKey
}

// ValidateAPIKey validates an API key and returns the key if valid.
func (s *AuthService) ValidateAPIKey(ctx context.Context, req *ValidateAPIKeyRequest) (*ValidateAPIKeyResponse, error) {
	if req.KeyID == "" || req.KeySecret == "" {
		return nil, domain.ErrAuthRequired
	}

	s.mu.RLock()
	entry, ok := s.keys[req.KeyID]
	s.mu.RUnlock()
	if !ok {
		logger.L(ctx).Warn("unknown api key", "key_id", req.KeyID)
		return nil, domain.ErrAPIKeyInvalid
	}
	if entry.key.Disabled {
		logger.L(ctx).Warn("disabled api key", "key_id", req.KeyID)
		return nil, domain.ErrAPIKeyInvalid.WithDetails("api key disabled")
	}

	if !s.verifySecret(entry, req.KeySecret) {
		logger.L(ctx).Warn("api key secret mismatch",
			"key_id", req.KeyID,
			"secret", domain.MaskAPIKeySecret(req.KeySecret))
		return nil, domain.ErrAPIKeyInvalid
	}

	return &ValidateAPIKeyResponse{
		Valid:  true,
		APIKey: entry.key,
	}, nil
}

// verifySecret checks secret against the entry, consulting the cache before
// running Argon2.
func (s *AuthService) verifySecret(entry *authEntry, secret string) bool {
	digest := sha256.Sum256([]byte(secret))
	now := s.now()

	entry.mu.Lock()
	cached := s.ttl > 0 && now.Before(entry.verifiedUntil) &&
		subtle.ConstantTimeCompare(digest[:], entry.verified[:]) == 1
	entry.mu.Unlock()
	if cached {
		return true
	}

	if !entry.key.VerifySecret(secret) {
		return false
	}

	if s.ttl > 0 {
		entry.mu.Lock()
		entry.verified = digest
		entry.verifiedUntil = now.Add(s.ttl)
		entry.mu.Unlock()
	}
	return true
}

// CheckPermission checks if an API key has the required permission.
func (s *AuthService) CheckPermission(apiKey *domain.APIKey, perm domain.Permission) error {
	if !domain.HasPermission(apiKey.Role, perm) {
		return domain.ErrPermissionDenied.WithDetails(
			"role " + string(apiKey.Role) + " does not have permission " + string(perm),
		)
	}
	return nil
}
