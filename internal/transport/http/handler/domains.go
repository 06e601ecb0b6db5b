package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/valid-names/internal/application/check"
	"github.com/valid-names/internal/application/domainname"
	"github.com/valid-names/internal/domain"
)

// DomainHandler handles tracked domain names and their availability checks.
type DomainHandler struct {
	svc    domainname.Service
	checks check.Service
}

func NewDomainHandler(svc domainname.Service, checks check.Service) *DomainHandler {
	return &DomainHandler{svc: svc, checks: checks}
}

// Create adds a name under the category in the URL.
func (h *DomainHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in domain.DomainInput
	if !decode(w, r, &in) {
		return
	}
	d, err := h.svc.Create(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *DomainHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ds, err := h.svc.ListByCategory(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *DomainHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DomainHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "domain deleted"})
}

func (h *DomainHandler) RunChecks(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	cs, err := h.checks.RunChecks(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *DomainHandler) ListChecks(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	cs, err := h.checks.ListChecks(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}
