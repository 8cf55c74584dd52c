package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/ordzaar/internal/httputil"
)

func (h *handler) collectionRoutes(api *mux.Router) {
	api.HandleFunc("/collections", h.listCollections).Methods(http.MethodGet)
	api.Handle("/collections", h.admin(h.createCollection)).Methods(http.MethodPost)
	api.Handle("/collections/debug-images", h.admin(h.debugCollectionImages)).Methods(http.MethodGet)
	api.HandleFunc("/collections/{slug}", h.getCollection).Methods(http.MethodGet)
	api.HandleFunc("/collections/{slug}/ordinals", h.collectionOrdinals).Methods(http.MethodGet)
	api.Handle("/collections/{id}", h.admin(h.updateCollection)).Methods(http.MethodPut)
}

func (h *handler) listCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := h.app.Collections.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, cols)
}

func (h *handler) getCollection(w http.ResponseWriter, r *http.Request) {
	col, err := h.app.Collections.GetBySlug(r.Context(), pathVar(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, col)
}

func (h *handler) collectionOrdinals(w http.ResponseWriter, r *http.Request) {
	ords, err := h.app.Collections.OrdinalsBySlug(r.Context(), pathVar(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, ords)
}

func (h *handler) createCollection(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ApplicationID string `json:"applicationId"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.app.Collections.CreateFromApplication(r.Context(), strings.TrimSpace(payload.ApplicationID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, created)
}

func (h *handler) updateCollection(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	updated, err := h.app.Collections.Update(r.Context(), pathVar(r, "id"), raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, updated)
}

func (h *handler) debugCollectionImages(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Collections.FixImages(r.Context(), r.URL.Query().Get("fix") == "true")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, report)
}
