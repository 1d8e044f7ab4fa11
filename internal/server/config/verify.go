package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/yndnr/nonceguard-go/internal/core/domain"
	"github.com/yndnr/nonceguard-go/internal/storage"
	"github.com/yndnr/nonceguard-go/internal/telemetry/logger"
	"github.com/yndnr/nonceguard-go/pkg/nonce"
)

// Verify validates the configuration. Errors are domain.ErrConfigInvalid
// with the offending key in the details.
func Verify(cfg *ServerConfig) error {
	checks := []func(*ServerConfig) error{
		verifyServer,
		verifyNonce,
		verifyReplay,
		verifyAuth,
		verifyMetrics,
		verifyLog,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return domain.ErrConfigInvalid.WithDetails(fmt.Sprintf(format, args...))
}

func verifyServer(cfg *ServerConfig) error {
	h := &cfg.Server.HTTP
	if h.Addr == "" {
		return invalid("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(h.Addr); err != nil {
		return invalid("server.http.addr %q: %v", h.Addr, err)
	}

	if (h.TLSCertFile == "") != (h.TLSKeyFile == "") {
		return invalid("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{h.TLSCertFile, h.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return invalid("tls file: %v", err)
		}
	}

	for name, d := range map[string]time.Duration{
		"read_timeout":     h.ReadTimeout,
		"write_timeout":    h.WriteTimeout,
		"idle_timeout":     h.IdleTimeout,
		"shutdown_timeout": h.ShutdownTimeout,
	} {
		if d < 0 {
			return invalid("server.http.%s must not be negative", name)
		}
	}

	if err := verifyIPList("server.http.trusted_proxies", h.TrustedProxies); err != nil {
		return err
	}

	if rl := h.RateLimit; rl.Enabled {
		if rl.RPS <= 0 {
			return invalid("server.http.rate_limit.rps must be positive")
		}
		if rl.Burst < 1 {
			return invalid("server.http.rate_limit.burst must be at least 1")
		}
	}
	return nil
}

func verifyNonce(cfg *ServerConfig) error {
	n := &cfg.Nonce

	switch {
	case n.Secret == "" && n.SecretFile == "":
		return invalid("nonce.secret or nonce.secret_file is required")
	case n.Secret != "" && n.SecretFile != "":
		return invalid("nonce.secret and nonce.secret_file are mutually exclusive")
	case n.Secret != "" && len(n.Secret) < MinSecretLength:
		return invalid("nonce.secret must be at least %d bytes", MinSecretLength)
	}

	if n.Lifetime < time.Second {
		return invalid("nonce.lifetime must be at least 1s, got %s", n.Lifetime)
	}
	for action, d := range n.Lifetimes {
		if err := domain.ValidateAction(action); err != nil {
			return invalid("nonce.lifetimes key %q: %v", action, err)
		}
		if d < time.Second {
			return invalid("nonce.lifetimes.%s must be at least 1s, got %s", action, d)
		}
	}

	if strings.TrimSpace(n.FieldName) == "" {
		return invalid("nonce.field_name is required")
	}
	if strings.TrimSpace(n.HeaderName) == "" {
		return invalid("nonce.header_name is required")
	}
	if n.MaxTokenLength < nonce.TokenLength {
		return invalid("nonce.max_token_length must be at least %d", nonce.TokenLength)
	}
	return nil
}

func verifyReplay(cfg *ServerConfig) error {
	r := &cfg.Replay
	switch r.Backend {
	case storage.BackendMemory:
		if r.MemorySize < 1 {
			return invalid("replay.memory_size must be at least 1")
		}
	case storage.BackendBadger:
		if r.DataDir == "" {
			return invalid("replay.data_dir is required for the badger backend")
		}
	case storage.BackendRedis:
		if r.Redis.Addr == "" {
			return invalid("replay.redis.addr is required for the redis backend")
		}
		if r.Redis.DB < 0 {
			return invalid("replay.redis.db must not be negative")
		}
		if t := r.Redis.TLS; t.Enabled && (t.CertFile == "") != (t.KeyFile == "") {
			return invalid("replay.redis.tls.cert_file and key_file must be set together")
		}
	default:
		return invalid("replay.backend %q is not one of memory, badger, redis", r.Backend)
	}
	return nil
}

func verifyAuth(cfg *ServerConfig) error {
	a := &cfg.Auth
	if a.CacheTTL < 0 {
		return invalid("auth.cache_ttl must not be negative")
	}
	if !a.Enabled {
		if a.MetricsRequired {
			return invalid("auth.metrics_required needs auth.enabled")
		}
		return nil
	}
	if len(a.APIKeys) == 0 {
		return invalid("auth.enabled requires at least one auth.api_keys entry; generate one with \"nonceguard-cli apikey create\"")
	}

	seen := make(map[string]bool, len(a.APIKeys))
	for i, key := range APIKeys(cfg) {
		if err := key.Validate(); err != nil {
			return invalid("auth.api_keys[%d]: %v", i, err)
		}
		if seen[key.KeyID] {
			return invalid("auth.api_keys[%d]: duplicate id %q", i, key.KeyID)
		}
		seen[key.KeyID] = true
	}
	return nil
}

func verifyMetrics(cfg *ServerConfig) error {
	return verifyIPList("metrics.allow_list", cfg.Metrics.AllowList)
}

func verifyIPList(key string, entries []string) error {
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return invalid("%s entry %q: %v", key, entry, err)
			}
			continue
		}
		if net.ParseIP(entry) == nil {
			return invalid("%s entry %q is not an IP or CIDR", key, entry)
		}
	}
	return nil
}

func verifyLog(cfg *ServerConfig) error {
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text", "console":
	default:
		return invalid("log.format %q is not one of json, text", cfg.Log.Format)
	}
	return nil
}
