package handler

import (
	"net/http"

	"github.com/valid-names/internal/application/auth"
	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/transport/http/middleware"
)

// resetRequested is returned whether or not the address has an account.
const resetRequested = "if that address has an account, a reset link is on its way"

// PasswordResetHandler handles the password reset flow.
type PasswordResetHandler struct {
	svc auth.Service
}

func NewPasswordResetHandler(svc auth.Service) *PasswordResetHandler {
	return &PasswordResetHandler{svc: svc}
}

func (h *PasswordResetHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req auth.PasswordResetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email, middleware.ClientIP(r)); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: resetRequested})
}

// Validate lets the reset form check a link before asking for a new password.
// It never consumes the token.
func (h *PasswordResetHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httpError(w, domain.ErrInvalidToken)
		return
	}
	if _, err := h.svc.ValidatePasswordResetToken(r.Context(), token); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (h *PasswordResetHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated"})
}
