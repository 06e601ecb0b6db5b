package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/valid-names/internal/application/application"
	"github.com/valid-names/internal/application/report"
	"github.com/valid-names/internal/domain"
	"github.com/valid-names/internal/transport/http/middleware"
)

// currentUser returns the caller's user ID or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return claims.UserID, true
}

// ApplicationHandler handles application endpoints and report export.
type ApplicationHandler struct {
	svc     application.Service
	reports report.Service
}

func NewApplicationHandler(svc application.Service, reports report.Service) *ApplicationHandler {
	return &ApplicationHandler{svc: svc, reports: reports}
}

func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in domain.ApplicationInput
	if !decode(w, r, &in) {
		return
	}
	a, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	apps, err := h.svc.List(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *ApplicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in domain.ApplicationInput
	if !decode(w, r, &in) {
		return
	}
	a, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *ApplicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "application deleted"})
}

func (h *ApplicationHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	rep, err := h.reports.Export(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}
