package config

import (
	"time"

	"github.com/yndnr/nonceguard-go/internal/storage"
	"github.com/yndnr/nonceguard-go/internal/storage/memory"
	"github.com/yndnr/nonceguard-go/pkg/nonce"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5480"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultRateLimitRPS   = 50
	DefaultRateLimitBurst = 100

	// DefaultFieldName is the form field and query parameter that carries
	// a nonce.
	DefaultFieldName  = "oop_nonce"
	DefaultHeaderName = "X-Nonce"

	DefaultReplayBackend = storage.BackendMemory
	DefaultDataDir       = "/var/lib/nonceguard/replay"
	DefaultRedisAddr     = "127.0.0.1:6379"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// MinSecretLength is the shortest installation secret accepted.
	MinSecretLength = 16

	DefaultAuthCacheTTL = 60 * time.Second
)

// Default returns the default server configuration. It carries no secret
// and no API keys.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ReadTimeout:     DefaultReadTimeout,
				WriteTimeout:    DefaultWriteTimeout,
				IdleTimeout:     DefaultIdleTimeout,
				ShutdownTimeout: DefaultShutdownTimeout,
				RateLimit: RateLimitConfig{
					Enabled: true,
					RPS:     DefaultRateLimitRPS,
					Burst:   DefaultRateLimitBurst,
				},
			},
		},
		Nonce: NonceSection{
			Lifetime:       nonce.DefaultLifetime,
			Lifetimes:      map[string]time.Duration{},
			FieldName:      DefaultFieldName,
			HeaderName:     DefaultHeaderName,
			MaxTokenLength: nonce.DefaultMaxTokenLength,
		},
		Replay: ReplaySection{
			Backend:    DefaultReplayBackend,
			MemorySize: memory.DefaultCapacity,
			DataDir:    DefaultDataDir,
			Redis: RedisConfig{
				Addr:   DefaultRedisAddr,
				Prefix: storage.DefaultRedisPrefix,
			},
		},
		Auth: AuthSection{
			Enabled:  true,
			CacheTTL: DefaultAuthCacheTTL,
		},
		Metrics: MetricsSection{
			Enabled: true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
