package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yndnr/nonceguard-go/internal/core/domain"
	"github.com/yndnr/nonceguard-go/internal/telemetry/logger"
	"github.com/yndnr/nonceguard-go/pkg/nonce"
)

// ReplayStore records consumed nonces for single-use mode.
type ReplayStore interface {
	// MarkUsed returns true on first use of key, false on a replay.
	MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Metrics receives nonce events.
type Metrics interface {
	IncIssued(action string)
	IncVerification(result string)
	IncReplay()
}

// NonceServiceConfig contains configuration for NonceService.
type NonceServiceConfig struct {
	// Secret is the installation secret. Required.
	Secret []byte

	// Lifetime is the default bucket width (default: 24h).
	Lifetime time.Duration

	// Lifetimes overrides the lifetime per action.
	Lifetimes map[string]time.Duration

	// MaxTokenLength bounds presented candidates (default: 256).
	MaxTokenLength int

	// RequireConsume makes every successful verification consume the nonce.
	RequireConsume bool
}

// DefaultNonceServiceConfig returns the default configuration without a secret.
func DefaultNonceServiceConfig() *NonceServiceConfig {
	return &NonceServiceConfig{
		Lifetime:       nonce.DefaultLifetime,
		MaxTokenLength: nonce.DefaultMaxTokenLength,
	}
}

// NonceService issues and verifies nonces.
type NonceService struct {
	base           nonce.TokenContext
	requireConsume bool

	mu        sync.RWMutex
	lifetimes map[string]nonce.TokenContext // validated per-action overrides

	replay  ReplayStore
	metrics Metrics
	logger  logger.Logger
	now     func() time.Time
}

// Option configures a NonceService.
type Option func(*NonceService)

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *NonceService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReplayStore enables single-use verification.
func WithReplayStore(store ReplayStore) Option {
	return func(s *NonceService) {
		s.replay = store
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *NonceService) {
		s.metrics = m
	}
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *NonceService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewNonceService creates a new NonceService.
//
// All configuration errors (missing secret, sub-second lifetimes) are
// reported here as domain.ErrConfigInvalid.
func NewNonceService(cfg *NonceServiceConfig, opts ...Option) (*NonceService, error) {
	if cfg == nil {
		cfg = DefaultNonceServiceConfig()
	}
	lifetime := cfg.Lifetime
	if lifetime == 0 {
		lifetime = nonce.DefaultLifetime
	}

	base, err := nonce.NewTokenContext("", lifetime, cfg.Secret,
		nonce.WithMaxTokenLength(cfg.MaxTokenLength))
	if err != nil {
		return nil, domain.ErrConfigInvalid.WithCause(err)
	}

	lifetimes := make(map[string]nonce.TokenContext, len(cfg.Lifetimes))
	for action, d := range cfg.Lifetimes {
		tc, err := nonce.ConfigureLifetime(base, d)
		if err != nil {
			return nil, domain.ErrConfigInvalid.WithDetails(fmt.Sprintf("lifetime for action %q", action)).WithCause(err)
		}
		lifetimes[action] = tc
	}

	s := &NonceService{
		base:           base,
		requireConsume: cfg.RequireConsume,
		lifetimes:      lifetimes,
		logger:         logger.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.requireConsume && s.replay == nil {
		return nil, domain.ErrConfigInvalid.WithDetails("single-use mode requires a replay store")
	}
	return s, nil
}

// ============================================================================
// Lifetimes
// ============================================================================

// Lifetime returns the effective lifetime for action.
func (s *NonceService) Lifetime(action string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tc, ok := s.lifetimes[action]; ok {
		return tc.Lifetime()
	}
	return s.base.Lifetime()
}

// SetLifetime changes the lifetime of one action, or the default lifetime
// when action is empty. Tokens issued under the old lifetime stop verifying.
func (s *NonceService) SetLifetime(action string, lifetime time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if action == "" {
		tc, err := nonce.ConfigureLifetime(s.base, lifetime)
		if err != nil {
			return domain.ErrConfigInvalid.WithCause(err)
		}
		s.base = tc
		return nil
	}

	tc, err := nonce.ConfigureLifetime(s.base, lifetime)
	if err != nil {
		return domain.ErrConfigInvalid.WithCause(err)
	}
	s.lifetimes[action] = tc
	return nil
}

// tokenContext builds the context for one action and subject.
func (s *NonceService) tokenContext(action, subject string) nonce.TokenContext {
	s.mu.RLock()
	tc, ok := s.lifetimes[action]
	if !ok {
		tc = s.base
	}
	s.mu.RUnlock()

	return nonce.ForSubject(nonce.WithAction(tc, action), subject)
}

func validateBinding(action, subject string) error {
	if err := domain.ValidateAction(action); err != nil {
		return err
	}
	return domain.ValidateSubject(subject)
}

// ============================================================================
// Issue
// ============================================================================

// IssueRequest contains parameters for nonce issuance.
type IssueRequest struct {
	Action  string // Required
	Subject string // Optional caller binding (user ID, session ID)
}

// IssueResponse contains an issued nonce.
type IssueResponse struct {
	Token     nonce.Token
	Action    string
	Lifetime  time.Duration
	IssuedAt  time.Time
	ExpiresAt time.Time // Last instant (exclusive) at which the token verifies
}

// Issue returns the nonce for req at the current time.
func (s *NonceService) Issue(ctx context.Context, req *IssueRequest) (*IssueResponse, error) {
	if err := validateBinding(req.Action, req.Subject); err != nil {
		return nil, err
	}

	tc := s.tokenContext(req.Action, req.Subject)
	now := s.now()
	token := nonce.Issue(tc, now)

	if s.metrics != nil {
		s.metrics.IncIssued(req.Action)
	}
	logger.L(ctx).Debug("nonce issued",
		"action", req.Action,
		"nonce", token.String())

	return &IssueResponse{
		Token:     token,
		Action:    req.Action,
		Lifetime:  tc.Lifetime(),
		IssuedAt:  now,
		ExpiresAt: nonce.Expiry(tc, nonce.Fresh, now),
	}, nil
}

// ============================================================================
// Verify
// ============================================================================

// VerifyRequest contains parameters for nonce verification.
type VerifyRequest struct {
	Action  string // Required
	Subject string // Must match the subject used at issue
	Token   string // Presented candidate
	Consume bool   // Reject any later presentation of the same nonce
}

// VerifyResponse contains the verification outcome.
type VerifyResponse struct {
	Result    nonce.Result
	Replayed  bool      // Valid nonce rejected because it was already consumed
	ExpiresAt time.Time // Zero unless Result is Fresh or Aging
}

// Verify checks req.Token.
//
// A token that does not verify is reported through VerifyResponse.Result;
// errors are returned only for malformed input, invalid arguments, and
// replay store failures.
func (s *NonceService) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error) {
	if err := validateBinding(req.Action, req.Subject); err != nil {
		return nil, err
	}

	tc := s.tokenContext(req.Action, req.Subject)
	now := s.now()

	result, err := nonce.Verify(tc, req.Token, now)
	if err != nil {
		if errors.Is(err, nonce.ErrMalformedInput) {
			return nil, domain.ErrNonceMalformed.WithCause(err)
		}
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	resp := &VerifyResponse{
		Result:    result,
		ExpiresAt: nonce.Expiry(tc, result, now),
	}

	if result.Valid() && (req.Consume || s.requireConsume) {
		if err := s.consume(ctx, req, resp, now); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		s.metrics.IncVerification(resp.Result.String())
	}
	logger.L(ctx).Debug("nonce verified",
		"action", req.Action,
		"result", resp.Result.String(),
		"replayed", resp.Replayed)

	return resp, nil
}

// consume records a valid nonce in the replay store until it would stop
// verifying. A nonce already recorded turns resp into a replay rejection.
func (s *NonceService) consume(ctx context.Context, req *VerifyRequest, resp *VerifyResponse, now time.Time) error {
	if s.replay == nil {
		return domain.ErrConfigInvalid.WithDetails("single-use verification requested but no replay store is configured")
	}

	key := domain.HashNonce(req.Action, req.Subject, req.Token)
	first, err := s.replay.MarkUsed(ctx, key, resp.ExpiresAt.Sub(now))
	if err != nil {
		logger.L(ctx).Error("replay store failed", "replay_key", key, "error", err)
		return domain.ErrStorageError.WithCause(err)
	}
	if first {
		return nil
	}

	if s.metrics != nil {
		s.metrics.IncReplay()
	}
	logger.L(ctx).Warn("nonce replay rejected", "action", req.Action, "replay_key", key)

	resp.Result = nonce.Invalid
	resp.Replayed = true
	resp.ExpiresAt = time.Time{}
	return nil
}
