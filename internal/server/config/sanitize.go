package config

import (
	"strconv"
	"strings"
	"time"
)

// Sanitize returns a copy of the config with sensitive fields masked.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Nonce.Secret != "" {
		sanitized.Nonce.Secret = maskSecret(sanitized.Nonce.Secret)
	}
	if sanitized.Replay.Redis.Password != "" {
		sanitized.Replay.Redis.Password = maskSecret(sanitized.Replay.Redis.Password)
	}

	// Copy the map so callers cannot reach the original through the copy.
	lifetimes := make(map[string]time.Duration, len(cfg.Nonce.Lifetimes))
	for k, v := range cfg.Nonce.Lifetimes {
		lifetimes[k] = v
	}
	sanitized.Nonce.Lifetimes = lifetimes

	keys := make([]APIKeyConfig, len(cfg.Auth.APIKeys))
	for i, k := range cfg.Auth.APIKeys {
		k.SecretHash = maskSecret(k.SecretHash)
		keys[i] = k
	}
	sanitized.Auth.APIKeys = keys

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// Flatten returns cfg as dotted keys mapped to display strings, in the
// form accepted by the config file and environment. Call it on a sanitized
// config.
func Flatten(cfg *ServerConfig) map[string]string {
	h := cfg.Server.HTTP
	out := map[string]string{
		"server.http.addr":               h.Addr,
		"server.http.tls_cert_file":      h.TLSCertFile,
		"server.http.tls_key_file":       h.TLSKeyFile,
		"server.http.read_timeout":       h.ReadTimeout.String(),
		"server.http.write_timeout":      h.WriteTimeout.String(),
		"server.http.idle_timeout":       h.IdleTimeout.String(),
		"server.http.shutdown_timeout":   h.ShutdownTimeout.String(),
		"server.http.rate_limit.enabled": strconv.FormatBool(h.RateLimit.Enabled),
		"server.http.rate_limit.rps":     strconv.FormatFloat(h.RateLimit.RPS, 'g', -1, 64),
		"server.http.rate_limit.burst":   strconv.Itoa(h.RateLimit.Burst),

		"server.http.cors_allowed_origins": strings.Join(h.CORSAllowedOrigins, ","),
		"server.http.trusted_proxies":      strings.Join(h.TrustedProxies, ","),

		"nonce.secret":           cfg.Nonce.Secret,
		"nonce.secret_file":      cfg.Nonce.SecretFile,
		"nonce.lifetime":         cfg.Nonce.Lifetime.String(),
		"nonce.field_name":       cfg.Nonce.FieldName,
		"nonce.header_name":      cfg.Nonce.HeaderName,
		"nonce.max_token_length": strconv.Itoa(cfg.Nonce.MaxTokenLength),
		"nonce.required":         strconv.FormatBool(cfg.Nonce.Required),

		"replay.enabled":        strconv.FormatBool(cfg.Replay.Enabled),
		"replay.backend":        cfg.Replay.Backend,
		"replay.memory_size":    strconv.Itoa(cfg.Replay.MemorySize),
		"replay.data_dir":       cfg.Replay.DataDir,
		"replay.redis.addr":     cfg.Replay.Redis.Addr,
		"replay.redis.password": cfg.Replay.Redis.Password,
		"replay.redis.db":       strconv.Itoa(cfg.Replay.Redis.DB),
		"replay.redis.prefix":   cfg.Replay.Redis.Prefix,

		"replay.redis.tls.enabled":     strconv.FormatBool(cfg.Replay.Redis.TLS.Enabled),
		"replay.redis.tls.ca_file":     cfg.Replay.Redis.TLS.CAFile,
		"replay.redis.tls.cert_file":   cfg.Replay.Redis.TLS.CertFile,
		"replay.redis.tls.key_file":    cfg.Replay.Redis.TLS.KeyFile,
		"replay.redis.tls.server_name": cfg.Replay.Redis.TLS.ServerName,

		"auth.enabled":          strconv.FormatBool(cfg.Auth.Enabled),
		"auth.metrics_required": strconv.FormatBool(cfg.Auth.MetricsRequired),
		"auth.cache_ttl":        cfg.Auth.CacheTTL.String(),

		"metrics.enabled":    strconv.FormatBool(cfg.Metrics.Enabled),
		"metrics.allow_list": strings.Join(cfg.Metrics.AllowList, ","),
		"log.level":          cfg.Log.Level,
		"log.format":         cfg.Log.Format,
	}
	for action, d := range cfg.Nonce.Lifetimes {
		out["nonce.lifetimes."+action] = d.String()
	}
	for _, k := range cfg.Auth.APIKeys {
		role := k.Role
		if k.Disabled {
			role += " (disabled)"
		}
		out["auth.api_keys."+k.ID] = role
	}
	return out
}
