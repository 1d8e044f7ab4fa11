package handler

import "time"

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"` // Additional error details
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// IssueNonceRequest is the request body for POST /v1/nonces.
type IssueNonceRequest struct {
	Action  string `json:"action"`
	Subject string `json:"subject,omitempty"`
}

// IssueNonceResponse is the response body for POST /v1/nonces.
type IssueNonceResponse struct {
	Token           string    `json:"token"`
	Action          string    `json:"action"`
	LifetimeSeconds int64     `json:"lifetime_seconds"`
	IssuedAt        time.Time `json:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// VerifyNonceRequest is the request body for POST /v1/nonces/verify.
type VerifyNonceRequest struct {
	Action  string `json:"action"`
	Subject string `json:"subject,omitempty"`
	Token   string `json:"token"`
	Consume bool   `json:"consume,omitempty"`
}

// VerifyNonceResponse is the response body for POST /v1/nonces/verify.
//
// Result is "fresh", "aging" or "invalid"; Tick carries the classic
// numeric form (1, 2, 0).
type VerifyNonceResponse struct {
	Result    string     `json:"result"`
	Valid     bool       `json:"valid"`
	Tick      int        `json:"tick"`
	Replayed  bool       `json:"replayed,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// HealthResponse is the response body for GET /health and GET /ready.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}
