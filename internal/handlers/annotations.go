package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"meagle/internal/catalog"
	"meagle/internal/logging"
)

// ListAssetAnnotations returns an asset's annotations, newest first.
func (h *Handlers) ListAssetAnnotations(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.loadAsset(w, r)
	if !ok {
		return
	}

	annotations, err := h.catalog.ListAnnotations(r.Context(), asset.ID)
	if err != nil {
		logging.Error("failed to list annotations for asset %d: %v", asset.ID, err)
		writeJSONError(w, "failed to list annotations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, annotations)
}

// CreateAnnotation attaches an annotation to an asset.
func (h *Handlers) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	var payload struct {
		Kind string         `json:"kind"`
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	annotation, err := h.catalog.CreateAnnotation(r.Context(), id, payload.Kind, payload.Data)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("failed to create annotation on asset %d: %v", id, err)
		writeJSONError(w, "failed to create annotation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, annotation)
}

// DeleteAnnotation removes an annotation by id.
func (h *Handlers) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid annotation id", http.StatusBadRequest)
		return
	}
	if err := h.catalog.DeleteAnnotation(r.Context(), id); err != nil {
		logging.Error("failed to delete annotation %d: %v", id, err)
		writeJSONError(w, "failed to delete annotation", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "deleted")
}

// ListAnnotationTexts aggregates annotation texts across all assets.
func (h *Handlers) ListAnnotationTexts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.catalog.CountAnnotationTexts(r.Context())
	if err != nil {
		logging.Error("failed to count annotation texts: %v", err)
		writeJSONError(w, "failed to list annotations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, counts)
}
