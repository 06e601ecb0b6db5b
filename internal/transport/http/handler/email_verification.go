package handler

import (
	"net/http"

	"github.com/valid-names/internal/application/auth"
	"github.com/valid-names/internal/transport/http/middleware"
)

// EmailVerificationHandler handles the email verification flow.
type EmailVerificationHandler struct {
	svc auth.Service
}

func NewEmailVerificationHandler(svc auth.Service) *EmailVerificationHandler {
	return &EmailVerificationHandler{svc: svc}
}

// Request mails a fresh verification link to the caller.
func (h *EmailVerificationHandler) Request(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if _, err := h.svc.RequestEmailVerification(r.Context(), claims.UserID, middleware.ClientIP(r)); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification email sent"})
}

func (h *EmailVerificationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req auth.ConfirmTokenRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.svc.ConfirmEmailVerification(r.Context(), req.Token); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "email verified"})
}
