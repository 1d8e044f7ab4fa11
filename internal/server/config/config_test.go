package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/nonceguard-go/internal/core/domain"
	"github.com/yndnr/nonceguard-go/pkg/nonce"
)

const testSecret = "0123456789abcdef-test"

var testAPIKey = func() APIKeyConfig {
	key, _, err := domain.NewAPIKey("test backend", domain.RoleIssuer)
	if err != nil {
		panic(err)
	}
	return APIKeyConfig{ID: key.KeyID, Name: key.Name, Role: string(key.Role), SecretHash: key.SecretHash}
}()

func validConfig() *ServerConfig {
	cfg := Default()
	cfg.Nonce.Secret = testSecret
	cfg.Auth.APIKeys = []APIKeyConfig{testAPIKey}
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.Server.HTTP.Addr, DefaultHTTPAddr)
	}
	if cfg.Nonce.Lifetime != nonce.DefaultLifetime {
		t.Errorf("Nonce.Lifetime = %v, want %v", cfg.Nonce.Lifetime, nonce.DefaultLifetime)
	}
	if cfg.Nonce.FieldName != "oop_nonce" {
		t.Errorf("Nonce.FieldName = %q, want oop_nonce", cfg.Nonce.FieldName)
	}
	if cfg.Nonce.Required {
		t.Error("Nonce.Required should be false by default")
	}
	if cfg.Replay.Enabled {
		t.Error("Replay should be disabled by default")
	}
	if cfg.Replay.Backend != "memory" {
		t.Errorf("Replay.Backend = %q, want memory", cfg.Replay.Backend)
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if !cfg.Auth.Enabled {
		t.Error("Auth should be enabled by default")
	}
	if len(cfg.Server.HTTP.TrustedProxies) != 0 {
		t.Errorf("TrustedProxies = %v, want none", cfg.Server.HTTP.TrustedProxies)
	}

	// Defaults carry no secret, so they do not verify on their own.
	if err := Verify(cfg); err == nil {
		t.Error("Verify(Default()) should fail without a secret")
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"valid", func(*ServerConfig) {}, ""},
		{"missing addr", func(c *ServerConfig) { c.Server.HTTP.Addr = "" }, "server.http.addr"},
		{"bad addr", func(c *ServerConfig) { c.Server.HTTP.Addr = "localhost" }, "server.http.addr"},
		{"cert without key", func(c *ServerConfig) { c.Server.HTTP.TLSCertFile = "/tmp/cert.pem" }, "tls_cert_file"},
		{"missing tls files", func(c *ServerConfig) {
			c.Server.HTTP.TLSCertFile = "/nonexistent/cert.pem"
			c.Server.HTTP.TLSKeyFile = "/nonexistent/key.pem"
		}, "tls file"},
		{"negative timeout", func(c *ServerConfig) { c.Server.HTTP.ReadTimeout = -time.Second }, "read_timeout"},
		{"zero rps", func(c *ServerConfig) { c.Server.HTTP.RateLimit.RPS = 0 }, "rps"},
		{"zero rps when disabled", func(c *ServerConfig) {
			c.Server.HTTP.RateLimit.Enabled = false
			c.Server.HTTP.RateLimit.RPS = 0
		}, ""},
		{"no secret", func(c *ServerConfig) { c.Nonce.Secret = "" }, "nonce.secret or nonce.secret_file"},
		{"short secret", func(c *ServerConfig) { c.Nonce.Secret = "k" }, "at least 16 bytes"},
		{"both secrets", func(c *ServerConfig) { c.Nonce.SecretFile = "/run/secret" }, "mutually exclusive"},
		{"sub-second lifetime", func(c *ServerConfig) { c.Nonce.Lifetime = 500 * time.Millisecond }, "nonce.lifetime"},
		{"bad per-action lifetime", func(c *ServerConfig) {
			c.Nonce.Lifetimes = map[string]time.Duration{"delete": 0}
		}, "nonce.lifetimes.delete"},
		{"empty field name", func(c *ServerConfig) { c.Nonce.FieldName = " " }, "field_name"},
		{"empty header name", func(c *ServerConfig) { c.Nonce.HeaderName = "" }, "header_name"},
		{"tiny max length", func(c *ServerConfig) { c.Nonce.MaxTokenLength = 8 }, "max_token_length"},
		{"unknown backend", func(c *ServerConfig) { c.Replay.Backend = "etcd" }, "replay.backend"},
		{"zero memory size", func(c *ServerConfig) { c.Replay.MemorySize = 0 }, "memory_size"},
		{"badger without dir", func(c *ServerConfig) {
			c.Replay.Backend = "badger"
			c.Replay.DataDir = ""
		}, "data_dir"},
		{"redis without addr", func(c *ServerConfig) {
			c.Replay.Backend = "redis"
			c.Replay.Redis.Addr = ""
		}, "replay.redis.addr"},
		{"redis tls cert without key", func(c *ServerConfig) {
			c.Replay.Backend = "redis"
			c.Replay.Redis.Addr = "127.0.0.1:6379"
			c.Replay.Redis.TLS = RedisTLSConfig{Enabled: true, CertFile: "client.crt"}
		}, "replay.redis.tls"},
		{"metrics allow list", func(c *ServerConfig) {
			c.Metrics.AllowList = []string{"10.0.0.1", "192.168.0.0/16", "::1"}
		}, ""},
		{"bad metrics allow list", func(c *ServerConfig) {
			c.Metrics.AllowList = []string{"10.0.0.300"}
		}, "metrics.allow_list"},
		{"bad metrics cidr", func(c *ServerConfig) {
			c.Metrics.AllowList = []string{"10.0.0.0/99"}
		}, "metrics.allow_list"},
		{"trusted proxies", func(c *ServerConfig) {
			c.Server.HTTP.TrustedProxies = []string{"10.0.0.1", "172.16.0.0/12"}
		}, ""},
		{"bad trusted proxy", func(c *ServerConfig) {
			c.Server.HTTP.TrustedProxies = []string{"proxy.internal"}
		}, "server.http.trusted_proxies"},
		{"auth without keys", func(c *ServerConfig) { c.Auth.APIKeys = nil }, "auth.api_keys"},
		{"auth disabled without keys", func(c *ServerConfig) {
			c.Auth.Enabled = false
			c.Auth.APIKeys = nil
		}, ""},
		{"metrics auth without auth", func(c *ServerConfig) {
			c.Auth.Enabled = false
			c.Auth.MetricsRequired = true
		}, "auth.metrics_required"},
		{"plaintext api key", func(c *ServerConfig) {
			c.Auth.APIKeys = []APIKeyConfig{{ID: testAPIKey.ID, Role: "issuer", SecretHash: "ngas_plaintext"}}
		}, "auth.api_keys[0]"},
		{"bad api key role", func(c *ServerConfig) {
			k := testAPIKey
			k.Role = "root"
			c.Auth.APIKeys = []APIKeyConfig{k}
		}, "invalid role"},
		{"duplicate api key", func(c *ServerConfig) {
			c.Auth.APIKeys = []APIKeyConfig{testAPIKey, testAPIKey}
		}, "duplicate id"},
		{"negative auth cache ttl", func(c *ServerConfig) { c.Auth.CacheTTL = -time.Second }, "auth.cache_ttl"},
		{"bad log level", func(c *ServerConfig) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *ServerConfig) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Verify(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Verify() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Verify() should fail with %q", tt.wantErr)
			}
			if !errors.Is(err, domain.ErrConfigInvalid) {
				t.Errorf("Verify() error should be ErrConfigInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Verify() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolveSecret(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		got, err := ResolveSecret(validConfig())
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != testSecret {
			t.Errorf("ResolveSecret() = %q", got)
		}
	})

	t.Run("file trims whitespace", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secret")
		if err := os.WriteFile(path, []byte("  "+testSecret+"\n"), 0600); err != nil {
			t.Fatal(err)
		}
		cfg := Default()
		cfg.Nonce.SecretFile = path

		got, err := ResolveSecret(cfg)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != testSecret {
			t.Errorf("ResolveSecret() = %q, want %q", got, testSecret)
		}
	})

	t.Run("short file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secret")
		if err := os.WriteFile(path, []byte("short\n"), 0600); err != nil {
			t.Fatal(err)
		}
		cfg := Default()
		cfg.Nonce.SecretFile = path

		if _, err := ResolveSecret(cfg); !errors.Is(err, domain.ErrConfigInvalid) {
			t.Errorf("ResolveSecret() error = %v, want ErrConfigInvalid", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := Default()
		cfg.Nonce.SecretFile = "/nonexistent/secret"
		if _, err := ResolveSecret(cfg); err == nil {
			t.Error("ResolveSecret() should fail for a missing file")
		}
	})
}

func TestSanitize(t *testing.T) {
	cfg := validConfig()
	cfg.Replay.Redis.Password = "redis-password"
	cfg.Nonce.Lifetimes = map[string]time.Duration{"delete": time.Minute}

	sanitized := Sanitize(cfg)

	if cfg.Nonce.Secret != testSecret {
		t.Error("Sanitize() modified the original")
	}
	if sanitized.Nonce.Secret == testSecret || !strings.Contains(sanitized.Nonce.Secret, "***") {
		t.Errorf("Nonce.Secret not masked: %q", sanitized.Nonce.Secret)
	}
	if sanitized.Replay.Redis.Password != "re**********rd" {
		t.Errorf("Redis.Password = %q", sanitized.Replay.Redis.Password)
	}

	sanitized.Nonce.Lifetimes["delete"] = time.Hour
	if cfg.Nonce.Lifetimes["delete"] != time.Minute {
		t.Error("Sanitize() should copy the lifetimes map")
	}

	if sanitized.Auth.APIKeys[0].SecretHash == testAPIKey.SecretHash {
		t.Error("api key hash not masked")
	}
	if cfg.Auth.APIKeys[0].SecretHash != testAPIKey.SecretHash {
		t.Error("Sanitize() modified the original api keys")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":       "****",
		"abcd":   "****",
		"abcdef": "ab**ef",
	}
	for in, want := range tests {
		if got := maskSecret(in); got != want {
			t.Errorf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFlatten(t *testing.T) {
	cfg := Sanitize(validConfig())
	cfg.Nonce.Lifetimes = map[string]time.Duration{"delete-post": 90 * time.Second}

	flat := Flatten(cfg)
	if flat["nonce.lifetime"] != "24h0m0s" {
		t.Errorf("nonce.lifetime = %q", flat["nonce.lifetime"])
	}
	if flat["nonce.lifetimes.delete-post"] != "1m30s" {
		t.Errorf("nonce.lifetimes.delete-post = %q", flat["nonce.lifetimes.delete-post"])
	}
	if flat["nonce.secret"] == testSecret {
		t.Error("Flatten() of a sanitized config leaked the secret")
	}
	if flat["auth.api_keys."+testAPIKey.ID] != "issuer" {
		t.Errorf("auth.api_keys.%s = %q", testAPIKey.ID, flat["auth.api_keys."+testAPIKey.ID])
	}
	if flat["auth.enabled"] != "true" {
		t.Errorf("auth.enabled = %q", flat["auth.enabled"])
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonceguard.yaml")
	content := `
server:
  http:
    addr: "0.0.0.0:8080"
    trusted_proxies: ["10.0.0.0/8"]
auth:
  api_keys:
    - id: ` + testAPIKey.ID + `
      role: issuer
      secret_hash: "` + testAPIKey.SecretHash + `"
nonce:
  secret: "` + testSecret + `"
  lifetime: 2h
  lifetimes:
    delete-post: 5m
  required: true
replay:
  enabled: true
  backend: badger
  data_dir: /tmp/nonceguard-test
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, loader, err := Load(path, map[string]any{"log.level": "debug"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loader.ConfigFile() != path {
		t.Errorf("loader.ConfigFile() = %q", loader.ConfigFile())
	}

	if cfg.Server.HTTP.Addr != "0.0.0.0:8080" {
		t.Errorf("Addr = %q", cfg.Server.HTTP.Addr)
	}
	if cfg.Nonce.Lifetime != 2*time.Hour {
		t.Errorf("Lifetime = %v", cfg.Nonce.Lifetime)
	}
	if cfg.Nonce.Lifetimes["delete-post"] != 5*time.Minute {
		t.Errorf("Lifetimes = %v", cfg.Nonce.Lifetimes)
	}
	if !cfg.Nonce.Required || !cfg.Replay.Enabled || cfg.Replay.Backend != "badger" {
		t.Errorf("Nonce/Replay = %+v %+v", cfg.Nonce, cfg.Replay)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("overlay not applied, Log.Level = %q", cfg.Log.Level)
	}
	if got := cfg.Server.HTTP.TrustedProxies; len(got) != 1 || got[0] != "10.0.0.0/8" {
		t.Errorf("TrustedProxies = %v", got)
	}
	keys := APIKeys(cfg)
	if len(keys) != 1 || keys[0].KeyID != testAPIKey.ID || keys[0].Role != domain.RoleIssuer {
		t.Errorf("APIKeys() = %+v", keys)
	}
	// Untouched defaults survive
	if cfg.Nonce.FieldName != DefaultFieldName {
		t.Errorf("FieldName = %q", cfg.Nonce.FieldName)
	}

	if err := os.WriteFile(path, []byte(strings.Replace(content, "lifetime: 2h", "lifetime: 3h", 1)), 0600); err != nil {
		t.Fatal(err)
	}
	reloaded, err := Reload(loader)
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if reloaded.Nonce.Lifetime != 3*time.Hour {
		t.Errorf("reloaded Lifetime = %v", reloaded.Nonce.Lifetime)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonceguard.yaml")
	if err := os.WriteFile(path, []byte("nonce:\n  lifetime: 1h\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path, nil); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("Load() error = %v, want ErrConfigInvalid", err)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("NONCEGUARD_NONCE__SECRET", testSecret)
	t.Setenv("NONCEGUARD_NONCE__MAX_TOKEN_LENGTH", "64")
	t.Setenv("NONCEGUARD_AUTH__ENABLED", "false")

	cfg, _, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Nonce.MaxTokenLength != 64 {
		t.Errorf("MaxTokenLength = %d, want 64", cfg.Nonce.MaxTokenLength)
	}
	if cfg.Auth.Enabled {
		t.Error("NONCEGUARD_AUTH__ENABLED=false not applied")
	}
}
