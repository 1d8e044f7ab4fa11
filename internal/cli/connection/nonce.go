package connection

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// IssueResult mirrors the server's issue response.
type IssueResult struct {
	Token           string    `json:"token" yaml:"token"`
	Action          string    `json:"action" yaml:"action"`
	LifetimeSeconds int64     `json:"lifetime_seconds" yaml:"lifetime_seconds"`
	IssuedAt        time.Time `json:"issued_at" yaml:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at" yaml:"expires_at"`
}

// VerifyResult mirrors the server's verify response.
type VerifyResult struct {
	Result    string     `json:"result" yaml:"result"`
	Valid     bool       `json:"valid" yaml:"valid"`
	Tick      int        `json:"tick" yaml:"tick"`
	Replayed  bool       `json:"replayed,omitempty" yaml:"replayed,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// HealthResult mirrors the server's health response.
type HealthResult struct {
	Status string `json:"status" yaml:"status"`
	Time   string `json:"time" yaml:"time"`
}

// GuardResult is the outcome of a forward-auth check.
type GuardResult struct {
	Status int    `json:"status" yaml:"status"`
	Result string `json:"result" yaml:"result"`
}

// IssueNonce calls POST /v1/nonces.
func (c *HTTPClient) IssueNonce(ctx context.Context, action, subject string) (*IssueResult, error) {
	resp, err := c.Post(ctx, "/v1/nonces", map[string]string{
		"action":  action,
		"subject": subject,
	})
	if err != nil {
		return nil, err
	}
	var out IssueResult
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyNonce calls POST /v1/nonces/verify.
func (c *HTTPClient) VerifyNonce(ctx context.Context, action, subject, token string, consume bool) (*VerifyResult, error) {
	resp, err := c.Post(ctx, "/v1/nonces/verify", map[string]any{
		"action":  action,
		"subject": subject,
		"token":   token,
		"consume": consume,
	})
	if err != nil {
		return nil, err
	}
	var out VerifyResult
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Guard calls the forward-auth endpoint for action with token in the
// X-Nonce header. A rejection is returned as *APIError.
func (c *HTTPClient) Guard(ctx context.Context, action, subject, token string) (*GuardResult, error) {
	header := http.Header{}
	if token != "" {
		header.Set("X-Nonce", token)
	}
	if subject != "" {
		header.Set("X-Nonce-Subject", subject)
	}

	resp, err := c.Do(ctx, http.MethodPost, "/v1/guard/"+url.PathEscape(action), nil, header)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, ParseResponse(resp, nil)
	}
	resp.Body.Close()

	return &GuardResult{
		Status: resp.StatusCode,
		Result: resp.Header.Get("X-Nonce-Result"),
	}, nil
}

// Health calls GET /health, or GET /ready when ready is set.
func (c *HTTPClient) Health(ctx context.Context, ready bool) (*HealthResult, error) {
	path := "/health"
	if ready {
		path = "/ready"
	}
	resp, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var out HealthResult
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
