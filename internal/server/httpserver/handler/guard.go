package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/yndnr/nonceguard-go/internal/core/domain"
	"github.com/yndnr/nonceguard-go/internal/core/service"
	"github.com/yndnr/nonceguard-go/pkg/httpguard"
	"github.com/yndnr/nonceguard-go/pkg/nonce"
)

const (
	// HeaderNonceResult reports the verification result of a guarded request.
	HeaderNonceResult = "X-Nonce-Result"

	// HeaderNonceSubject carries the subject binding of a guarded request.
	HeaderNonceSubject = "X-Nonce-Subject"
)

// guard builds the forward-auth endpoint: a reverse proxy sends the
// original request's nonce here and forwards the request only on 2xx.
func (h *Handler) guard() http.Handler {
	mw := httpguard.Guard(httpguard.Config{
		Verify:     h.verifyGuarded,
		Action:     func(r *http.Request) string { return r.PathValue("action") },
		Subject:    func(r *http.Request) string { return r.Header.Get(HeaderNonceSubject) },
		HeaderName: h.cfg.HeaderName,
		FieldName:  h.cfg.FieldName,
		Required:   h.cfg.Required,
		OnFailure:  h.guardFailure,
	})
	return mw(http.HandlerFunc(h.handleGuardPassed))
}

// verifyGuarded adapts NonceService to httpguard.VerifyFunc. A replayed
// nonce becomes an error so the rejection keeps its own code.
func (h *Handler) verifyGuarded(ctx context.Context, action, subject, candidate string) (nonce.Result, error) {
	resp, err := h.nonceSvc.Verify(ctx, &service.VerifyRequest{
		Action:  action,
		Subject: subject,
		Token:   candidate,
		Consume: h.cfg.Consume,
	})
	if err != nil {
		return nonce.Invalid, err
	}
	if resp.Replayed {
		return nonce.Invalid, domain.ErrNonceReplayed
	}
	return resp.Result, nil
}

func (h *Handler) guardFailure(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set(HeaderNonceResult, nonce.Invalid.String())
	switch {
	case errors.Is(err, httpguard.ErrMissing):
		err = domain.ErrNonceMissing
	case errors.Is(err, httpguard.ErrInvalid):
		err = domain.ErrNonceInvalid
	}
	h.handleServiceError(w, r, err)
}

// handleGuardPassed handles a request the guard let through.
func (h *Handler) handleGuardPassed(w http.ResponseWriter, r *http.Request) {
	result := "none"
	if res, ok := httpguard.ResultFromContext(r.Context()); ok {
		result = res.String()
	}
	w.Header().Set(HeaderNonceResult, result)
	w.WriteHeader(http.StatusNoContent)
}
