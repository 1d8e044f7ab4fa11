package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/nonceguard-go/internal/core/domain"
	"github.com/yndnr/nonceguard-go/internal/core/service"
	"github.com/yndnr/nonceguard-go/internal/server/httpserver/handler"
	"github.com/yndnr/nonceguard-go/internal/storage/memory"
	"github.com/yndnr/nonceguard-go/internal/telemetry/metric"
)

func newTestRouter(t *testing.T, mutate func(*RouterConfig)) (http.Handler, *metric.Registry) {
	t.Helper()

	reg := metric.NewRegistry()
	svc, err := service.NewNonceService(&service.NonceServiceConfig{
		Secret:   []byte("router-test-secret-0123456789"),
		Lifetime: time.Hour,
	},
		service.WithReplayStore(memory.NewReplayStore(100)),
		service.WithMetrics(reg),
	)
	if err != nil {
		t.Fatalf("NewNonceService() error = %v", err)
	}

	cfg := &RouterConfig{
		Handler: handler.New(svc, handler.Config{Required: true}, discardLogger()),
		Logger:  discardLogger(),
		Metrics: reg,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return NewRouter(cfg), reg
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_IssueThenGuard(t *testing.T) {
	router, reg := newTestRouter(t, nil)

	rec := post(t, router, "/v1/nonces", `{"action":"delete-post-42"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	var env struct {
		RequestID string                      `json:"request_id"`
		Data      handler.IssueNonceResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.RequestID != rec.Header().Get("X-Request-ID") {
		t.Errorf("envelope request_id = %q, header = %q", env.RequestID, rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/guard/delete-post-42", nil)
	req.Header.Set("X-Nonce", env.Data.Token)
	guardRec := httptest.NewRecorder()
	router.ServeHTTP(guardRec, req)
	if guardRec.Code != http.StatusNoContent {
		t.Fatalf("guard status = %d, want 204", guardRec.Code)
	}

	if got := testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("POST", "POST /v1/nonces", "201")); got != 1 {
		t.Errorf("requests_total{POST /v1/nonces,201} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("GET", "GET /v1/guard/{action}", "204")); got != 1 {
		t.Errorf("requests_total{GET /v1/guard/{action},204} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.NoncesIssued.WithLabelValues("delete-post-42")); got != 1 {
		t.Errorf("nonces_issued_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.NonceVerifications.WithLabelValues("fresh")); got != 1 {
		t.Errorf("nonce_verifications_total{fresh} = %v, want 1", got)
	}
}

func TestRouter_Metrics(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "nonceguard_build_info") {
		t.Error("metrics output missing nonceguard_build_info")
	}
}

func TestRouter_MetricsAllowList(t *testing.T) {
	router, _ := newTestRouter(t, func(c *RouterConfig) {
		c.MetricsAllowList = []string{"127.0.0.1"}
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for 192.0.2.1", rec.Code)
	}
}

func TestRouter_MetricsDisabled(t *testing.T) {
	router, _ := newTestRouter(t, func(c *RouterConfig) { c.Metrics = nil })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	router, _ := newTestRouter(t, func(c *RouterConfig) {
		c.RateLimit = NewRateLimiterRegistry(0.001, 1)
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/health", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}
}

func TestRouter_CORS(t *testing.T) {
	router, _ := newTestRouter(t, func(c *RouterConfig) {
		c.CORSAllowedOrigins = []string{"*"}
		c.NonceHeader = "X-Nonce"
	})

	req := httptest.NewRequest(http.MethodOptions, "/v1/nonces", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestRouter_NonceAPIRequiresAPIKey(t *testing.T) {
	authSvc, creds := newAuthService(t, domain.RoleIssuer, domain.RoleVerifier)
	router, _ := newTestRouter(t, func(c *RouterConfig) { c.Auth = authSvc })

	send := func(path, body string, cred [2]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if cred[0] != "" {
			req.Header.Set("Authorization", "Bearer "+cred[0]+":"+cred[1])
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("/v1/nonces", `{"action":"delete-post-42"}`, [2]string{}); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous issue status = %d, want 401", rec.Code)
	}
	if rec := send("/v1/nonces/verify", `{"action":"delete-post-42","token":"x"}`, [2]string{}); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous verify status = %d, want 401", rec.Code)
	}
	if rec := send("/v1/nonces", `{"action":"delete-post-42"}`, creds[domain.RoleVerifier]); rec.Code != http.StatusForbidden {
		t.Errorf("verifier issue status = %d, want 403", rec.Code)
	}

	rec := send("/v1/nonces", `{"action":"delete-post-42"}`, creds[domain.RoleIssuer])
	if rec.Code != http.StatusCreated {
		t.Fatalf("issuer issue status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data handler.IssueNonceResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}

	verifyBody := `{"action":"delete-post-42","token":"` + env.Data.Token + `"}`
	if rec := send("/v1/nonces/verify", verifyBody, creds[domain.RoleVerifier]); rec.Code != http.StatusOK {
		t.Errorf("verifier verify status = %d, want 200", rec.Code)
	}

	// The guard is authenticated by the nonce alone.
	req := httptest.NewRequest(http.MethodGet, "/v1/guard/delete-post-42", nil)
	req.Header.Set("X-Nonce", env.Data.Token)
	guardRec := httptest.NewRecorder()
	router.ServeHTTP(guardRec, req)
	if guardRec.Code != http.StatusNoContent {
		t.Errorf("guard status = %d, want 204", guardRec.Code)
	}
}

func TestRouter_MetricsAuth(t *testing.T) {
	authSvc, creds := newAuthService(t, domain.RoleMetrics)
	router, _ := newTestRouter(t, func(c *RouterConfig) {
		c.Auth = authSvc
		c.MetricsAuthRequired = true
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous scrape status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-API-Key-ID", creds[domain.RoleMetrics][0])
	req.Header.Set("X-API-Key", creds[domain.RoleMetrics][1])
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("metrics key scrape status = %d, want 200", rec.Code)
	}
}

func TestRouter_MetricsAllowListIgnoresForwardedFor(t *testing.T) {
	router, _ := newTestRouter(t, func(c *RouterConfig) {
		c.MetricsAllowList = []string{"127.0.0.1"}
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "203.0.113.9:40000"
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for an untrusted peer claiming 127.0.0.1", rec.Code)
	}
}

func TestRouter_TrustedProxyForwardsClientIP(t *testing.T) {
	router, _ := newTestRouter(t, func(c *RouterConfig) {
		c.MetricsAllowList = []string{"192.0.2.10"}
		c.TrustedProxies = []string{"10.0.0.0/8"}
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "10.1.2.3:40000"
	req.Header.Set("X-Forwarded-For", "192.0.2.10")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for an allowed client behind a trusted proxy", rec.Code)
	}
}
