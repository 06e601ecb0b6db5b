package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/valid-names/internal/application/tld"
	"github.com/valid-names/internal/domain"
)

// TLDHandler handles TLD endpoints. Writes are admin-only at the router.
type TLDHandler struct {
	svc tld.Service
}

func NewTLDHandler(svc tld.Service) *TLDHandler { return &TLDHandler{svc: svc} }

func (h *TLDHandler) List(w http.ResponseWriter, r *http.Request) {
	tlds, err := h.svc.ListEnabled(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tlds)
}

func (h *TLDHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.TLDInput
	if !decode(w, r, &in) {
		return
	}
	t, err := h.svc.Create(r.Context(), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TLDHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in domain.TLDInput
	if !decode(w, r, &in) {
		return
	}
	t, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TLDHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "tld deleted"})
}
