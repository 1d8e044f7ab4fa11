package config

import "time"

// ServerConfig is the root configuration for nonceguard-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Nonce   NonceSection   `koanf:"nonce"`
	Replay  ReplaySection  `koanf:"replay"`
	Auth    AuthSection    `koanf:"auth"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`

	// CORSAllowedOrigins enables CORS for the listed origins ("*" for any).
	// Empty disables CORS headers.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// TrustedProxies lists the peers (IPs or CIDRs) whose X-Forwarded-For
	// and X-Real-IP headers name the client. Empty ignores both headers.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// RateLimitConfig configures per-client-IP rate limiting.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// NonceSection configures issuance and verification.
type NonceSection struct {
	// Secret is the installation secret. Prefer SecretFile in production.
	Secret string `koanf:"secret"`

	// SecretFile is read at startup; surrounding whitespace is trimmed.
	SecretFile string `koanf:"secret_file"`

	// Lifetime is the default bucket width.
	Lifetime time.Duration `koanf:"lifetime"`

	// Lifetimes overrides Lifetime per action.
	Lifetimes map[string]time.Duration `koanf:"lifetimes"`

	// FieldName is the form field and query parameter the guard reads.
	FieldName string `koanf:"field_name"`

	// HeaderName is the request header the guard reads first.
	HeaderName string `koanf:"header_name"`

	// MaxTokenLength bounds presented candidates.
	MaxTokenLength int `koanf:"max_token_length"`

	// Required makes the guard reject requests without a nonce. When false,
	// a request that carries no nonce passes through unchecked.
	Required bool `koanf:"required"`
}

// ReplaySection configures single-use mode.
type ReplaySection struct {
	// Enabled makes the guard consume every nonce it accepts.
	Enabled bool `koanf:"enabled"`

	// Backend is memory, badger, or redis.
	Backend string `koanf:"backend"`

	MemorySize int    `koanf:"memory_size"`
	DataDir    string `koanf:"data_dir"`

	Redis RedisConfig `koanf:"redis"`
}

// RedisConfig configures the redis replay backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`

	TLS RedisTLSConfig `koanf:"tls"`
}

// RedisTLSConfig enables TLS to Redis. CAFile is added to the system roots;
// CertFile and KeyFile present a client certificate.
type RedisTLSConfig struct {
	Enabled    bool   `koanf:"enabled"`
	CAFile     string `koanf:"ca_file"`
	CertFile   string `koanf:"cert_file"`
	KeyFile    string `koanf:"key_file"`
	ServerName string `koanf:"server_name"`
}

// AuthSection configures API-key authentication of the nonce API.
type AuthSection struct {
	// Enabled requires an API key on POST /v1/nonces and
	// POST /v1/nonces/verify. The guard routes stay open.
	Enabled bool `koanf:"enabled"`

	// APIKeys lists the accepted keys. Generate entries with
	// "nonceguard-cli apikey create".
	APIKeys []APIKeyConfig `koanf:"api_keys"`

	// MetricsRequired also requires a key on /metrics.
	MetricsRequired bool `koanf:"metrics_required"`

	// CacheTTL is how long a verified secret skips Argon2.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// APIKeyConfig is one accepted API key. Only the Argon2id hash of the
// secret is configured.
type APIKeyConfig struct {
	ID         string `koanf:"id"`
	Name       string `koanf:"name"`
	Role       string `koanf:"role"`
	SecretHash string `koanf:"secret_hash"`
	Disabled   bool   `koanf:"disabled"`
}

// MetricsSection configures the /metrics endpoint.
type MetricsSection struct {
	Enabled bool `koanf:"enabled"`

	// AllowList restricts /metrics to these IPs and CIDRs. Empty allows all.
	AllowList []string `koanf:"allow_list"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
