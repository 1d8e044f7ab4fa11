package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yndnr/nonceguard-go/internal/core/domain"
	"github.com/yndnr/nonceguard-go/internal/core/service"
	"github.com/yndnr/nonceguard-go/internal/telemetry/logger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), mark("first"), mark("second"), mark("third"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := strings.Join(order, ","); got != "first,second,third" {
		t.Errorf("order = %s, want first,second,third", got)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		got := rec.Header().Get("X-Request-ID")
		if !strings.HasPrefix(got, "req-") || len(got) != len("req-")+26 {
			t.Errorf("X-Request-ID = %q, want req-<ulid>", got)
		}
		if seen != got {
			t.Errorf("context request ID = %q, header = %q", seen, got)
		}
	})

	t.Run("client supplied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "trace-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != "trace-123" {
			t.Errorf("X-Request-ID = %q, want trace-123", got)
		}
	})

	t.Run("client supplied garbage is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "has space")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got == "has space" {
			t.Error("invalid request ID was echoed")
		}
	})
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(NewRateLimiterRegistry(1, 2), nil)(okHandler())

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if got := send("10.0.0.1"); got != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, got)
		}
	}
	if got := send("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Errorf("over burst: status = %d, want 429", got)
	}
	if got := send("10.0.0.2"); got != http.StatusOK {
		t.Errorf("other client: status = %d, want 200", got)
	}
}

func TestRateLimit_ErrorBody(t *testing.T) {
	h := RateLimit(NewRateLimiterRegistry(1, 1), nil)(okHandler())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("Retry-After") != "1" {
		t.Error("missing Retry-After")
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["code"] != "NG-SYS-4290" {
		t.Errorf("code = %v, want NG-SYS-4290", body["code"])
	}
}

func TestAudit(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestID()(Audit(log, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Nonce-Result", "aging")
		w.WriteHeader(http.StatusForbidden)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/guard/x", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("audit output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if entry["status"] != float64(http.StatusForbidden) {
		t.Errorf("status = %v", entry["status"])
	}
	if entry["nonce_result"] != "aging" {
		t.Errorf("nonce_result = %v", entry["nonce_result"])
	}
	if id, _ := entry["request_id"].(string); !strings.HasPrefix(id, "req-") {
		t.Errorf("request_id = %v", entry["request_id"])
	}
}

func TestRecover(t *testing.T) {
	h := Recover(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if got := rec.Header().Get("X-Error-Code"); got != "NG-SYS-5000" {
		t.Errorf("X-Error-Code = %q", got)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"}, "X-Nonce")(okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/nonces", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
			t.Errorf("Allow-Origin = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-Nonce") {
			t.Errorf("Allow-Headers = %q, want X-Nonce", got)
		}
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/nonces", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/v1/nonces", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})
}

func TestNetworkACL(t *testing.T) {
	h := NetworkACL([]string{"10.0.0.5", "192.168.0.0/16", "not-an-ip"}, nil, discardLogger())(okHandler())

	tests := []struct {
		remote string
		want   int
	}{
		{"10.0.0.5:1234", http.StatusOK},
		{"192.168.44.2:1234", http.StatusOK},
		{"10.0.0.6:1234", http.StatusForbidden},
		{"[::1]:1234", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.RemoteAddr = tt.remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.remote, rec.Code, tt.want)
		}
	}
}

func TestNetworkACL_EmptyAllowsAll(t *testing.T) {
	h := NetworkACL(nil, nil, discardLogger())(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestClientIPResolver(t *testing.T) {
	ips := NewClientIPResolver([]string{"10.0.0.1", "172.16.0.0/12"}, discardLogger())

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded by trusted proxy", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "10.0.0.1:80", "203.0.113.7"},
		{"rightmost untrusted hop wins", map[string]string{"X-Forwarded-For": "198.51.100.1, 203.0.113.7, 172.16.4.4"}, "10.0.0.1:80", "203.0.113.7"},
		{"real ip from trusted proxy", map[string]string{"X-Real-IP": "203.0.113.8"}, "172.20.0.9:80", "203.0.113.8"},
		{"garbage header from trusted proxy", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.1:80", "10.0.0.1"},
		{"forwarded for from untrusted peer", map[string]string{"X-Forwarded-For": "127.0.0.1"}, "203.0.113.9:80", "203.0.113.9"},
		{"real ip from untrusted peer", map[string]string{"X-Real-IP": "10.0.0.5"}, "203.0.113.9:80", "203.0.113.9"},
		{"remote addr", nil, "198.51.100.2:4444", "198.51.100.2"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:4444", "2001:db8::1"},
		{"no port", nil, "198.51.100.3", "198.51.100.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ips.ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIPResolver_NilTrustsNoProxy(t *testing.T) {
	var ips *ClientIPResolver
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	req.Header.Set("X-Real-IP", "127.0.0.1")

	if got := ips.ClientIP(req); got != "203.0.113.9" {
		t.Errorf("ClientIP() = %q, want the peer address", got)
	}
}

func TestNetworkACL_IgnoresSpoofedHeaders(t *testing.T) {
	h := NetworkACL([]string{"127.0.0.1"}, NewClientIPResolver(nil, discardLogger()), discardLogger())(okHandler())

	for _, header := range []string{"X-Forwarded-For", "X-Real-IP"} {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		req.Header.Set(header, "127.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: 127.0.0.1 from 203.0.113.9: status = %d, want 403", header, rec.Code)
		}
	}
}

func TestNetworkACL_TrustedProxy(t *testing.T) {
	ips := NewClientIPResolver([]string{"10.0.0.1"}, discardLogger())
	h := NetworkACL([]string{"192.0.2.10"}, ips, discardLogger())(okHandler())

	send := func(remote, xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send("10.0.0.1:80", "192.0.2.10"); got != http.StatusOK {
		t.Errorf("allowed client behind trusted proxy: status = %d, want 200", got)
	}
	if got := send("10.0.0.1:80", "192.0.2.11"); got != http.StatusForbidden {
		t.Errorf("other client behind trusted proxy: status = %d, want 403", got)
	}
}

func TestRateLimit_IgnoresSpoofedHeaders(t *testing.T) {
	h := RateLimit(NewRateLimiterRegistry(1, 1), NewClientIPResolver(nil, discardLogger()))(okHandler())

	allowed := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	if allowed != 1 {
		t.Errorf("allowed %d of 20 requests with rotating X-Forwarded-For, want 1", allowed)
	}
}

func newAuthService(t *testing.T, roles ...domain.Role) (*service.AuthService, map[domain.Role][2]string) {
	t.Helper()
	var keys []*domain.APIKey
	creds := map[domain.Role][2]string{}
	for _, role := range roles {
		key, secret, err := domain.NewAPIKey(string(role), role)
		if err != nil {
			t.Fatal(err)
		}
		keys = append(keys, key)
		creds[role] = [2]string{key.KeyID, secret}
	}
	svc, err := service.NewAuthService(keys, nil)
	if err != nil {
		t.Fatalf("NewAuthService() error = %v", err)
	}
	return svc, creds
}

func TestAuth(t *testing.T) {
	authSvc, creds := newAuthService(t, domain.RoleIssuer, domain.RoleVerifier)

	var seen *domain.APIKey
	h := Auth(authSvc, domain.PermNonceIssue)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAPIKeyFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	send := func(set func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/nonces", nil)
		set(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	issuer := creds[domain.RoleIssuer]
	verifier := creds[domain.RoleVerifier]

	tests := []struct {
		name     string
		set      func(*http.Request)
		wantCode int
		wantErr  string
	}{
		{"headers", func(r *http.Request) {
			r.Header.Set("X-API-Key-ID", issuer[0])
			r.Header.Set("X-API-Key", issuer[1])
		}, http.StatusOK, ""},
		{"bearer", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+issuer[0]+":"+issuer[1])
		}, http.StatusOK, ""},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, "NG-AUTH-4010"},
		{"bearer without secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+issuer[0])
		}, http.StatusUnauthorized, "NG-AUTH-4010"},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("X-API-Key-ID", issuer[0])
			r.Header.Set("X-API-Key", verifier[1])
		}, http.StatusUnauthorized, "NG-AUTH-4011"},
		{"insufficient role", func(r *http.Request) {
			r.Header.Set("X-API-Key-ID", verifier[0])
			r.Header.Set("X-API-Key", verifier[1])
		}, http.StatusForbidden, "NG-AUTH-4030"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			rec := send(tt.set)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Header().Get("X-Error-Code"); got != tt.wantErr {
				t.Errorf("X-Error-Code = %q, want %q", got, tt.wantErr)
			}
			if tt.wantCode == http.StatusOK && (seen == nil || seen.KeyID != issuer[0]) {
				t.Errorf("context key = %+v, want %s", seen, issuer[0])
			}
		})
	}
}

func TestMetricsAuth(t *testing.T) {
	authSvc, creds := newAuthService(t, domain.RoleMetrics, domain.RoleVerifier)
	metrics := creds[domain.RoleMetrics]

	send := func(h http.Handler, id, secret string) int {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		if id != "" {
			req.Header.Set("X-API-Key-ID", id)
			req.Header.Set("X-API-Key", secret)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	open := MetricsAuth(authSvc, false)(okHandler())
	if got := send(open, "", ""); got != http.StatusOK {
		t.Errorf("not required: status = %d, want 200", got)
	}

	h := MetricsAuth(authSvc, true)(okHandler())
	if got := send(h, "", ""); got != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", got)
	}
	if got := send(h, metrics[0], "ngas_wrong"); got != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", got)
	}
	if got := send(h, metrics[0], metrics[1]); got != http.StatusOK {
		t.Errorf("metrics key: status = %d, want 200", got)
	}
}
