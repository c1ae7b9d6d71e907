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

// ListSmartFolders returns all saved queries.
func (h *Handlers) ListSmartFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.catalog.ListSmartFolders(r.Context())
	if err != nil {
		logging.Error("failed to list smart folders: %v", err)
		writeJSONError(w, "failed to list smart folders", http.StatusInternalServerError)
		return
	}
	writeJSON(w, folders)
}

// CreateSmartFolder saves a named asset query.
func (h *Handlers) CreateSmartFolder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  string              `json:"name"`
		Query *catalog.AssetQuery `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if payload.Name == "" || payload.Query == nil {
		writeJSONError(w, "name and query required", http.StatusBadRequest)
		return
	}

	folder, err := h.catalog.CreateSmartFolder(r.Context(), payload.Name, *payload.Query)
	if err != nil {
		logging.Error("failed to create smart folder: %v", err)
		writeJSONError(w, "failed to create smart folder", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, folder)
}

// SmartFolderAssets evaluates a saved query and returns the matching
// assets.
func (h *Handlers) SmartFolderAssets(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid smart folder id", http.StatusBadRequest)
		return
	}

	folder, err := h.catalog.GetSmartFolder(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "smart folder not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("failed to load smart folder %d: %v", id, err)
		writeJSONError(w, "failed to load smart folder", http.StatusInternalServerError)
		return
	}

	assets, err := h.catalog.ListAssets(r.Context(), folder.Query)
	if err != nil {
		logging.Error("failed to evaluate smart folder %d: %v", id, err)
		writeJSONError(w, "failed to evaluate smart folder", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []*catalog.Asset{}
	}
	writeJSON(w, assets)
}
