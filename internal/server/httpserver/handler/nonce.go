package handler

import (
	"net/http"

	"github.com/yndnr/nonceguard-go/internal/core/service"
)

// handleIssueNonce handles POST /v1/nonces.
func (h *Handler) handleIssueNonce(w http.ResponseWriter, r *http.Request) {
	var req IssueNonceRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp, err := h.nonceSvc.Issue(r.Context(), &service.IssueRequest{
		Action:  req.Action,
		Subject: req.Subject,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, IssueNonceResponse{
		Token:           resp.Token.String(),
		Action:          resp.Action,
		LifetimeSeconds: int64(resp.Lifetime.Seconds()),
		IssuedAt:        resp.IssuedAt.UTC(),
		ExpiresAt:       resp.ExpiresAt.UTC(),
	})
}

// handleVerifyNonce handles POST /v1/nonces/verify.
//
// An invalid nonce is a successful verification with result "invalid";
// only malformed requests produce an error status.
func (h *Handler) handleVerifyNonce(w http.ResponseWriter, r *http.Request) {
	var req VerifyNonceRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp, err := h.nonceSvc.Verify(r.Context(), &service.VerifyRequest{
		Action:  req.Action,
		Subject: req.Subject,
		Token:   req.Token,
		Consume: req.Consume,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	out := VerifyNonceResponse{
		Result:   resp.Result.String(),
		Valid:    resp.Result.Valid(),
		Tick:     int(resp.Result),
		Replayed: resp.Replayed,
	}
	if !resp.ExpiresAt.IsZero() {
		expiresAt := resp.ExpiresAt.UTC()
		out.ExpiresAt = &expiresAt
	}
	h.writeJSON(w, r, http.StatusOK, out)
}
