package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"

	"meagle/internal/catalog"
	"meagle/internal/derivative"
	"meagle/internal/logging"
)

// ListFolders returns the whole folder tree ordered by path.
func (h *Handlers) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.catalog.ListFolders(r.Context())
	if err != nil {
		logging.Error("failed to list folders: %v", err)
		writeJSONError(w, "failed to list folders", http.StatusInternalServerError)
		return
	}
	if folders == nil {
		folders = []*catalog.Folder{}
	}
	writeJSON(w, folders)
}

// CreateFolder creates a folder and mirrors it as a storage
// subdirectory so uploads into it land in matching paths.
func (h *Handlers) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		ParentID *int64 `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if payload.Name == "" {
		writeJSONError(w, "name required", http.StatusBadRequest)
		return
	}

	folder, err := h.catalog.CreateFolder(r.Context(), payload.Name, payload.ParentID)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "parent not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "create folder failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	dir := h.store.Resolve(derivative.SanitizePath(folder.Path))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.Warn("failed to create storage directory for folder %s: %v", folder.Path, err)
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, folder)
}

// DeleteFolder removes an empty folder and its storage directory.
func (h *Handlers) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid folder id", http.StatusBadRequest)
		return
	}

	folder, err := h.catalog.GetFolder(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "folder not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("failed to load folder %d: %v", id, err)
		writeJSONError(w, "failed to load folder", http.StatusInternalServerError)
		return
	}

	err = h.catalog.DeleteFolder(r.Context(), id)
	if errors.Is(err, catalog.ErrFolderNotEmpty) {
		writeJSONError(w, "folder not empty", http.StatusBadRequest)
		return
	}
	if err != nil {
		logging.Error("failed to delete folder %d: %v", id, err)
		writeJSONError(w, "failed to delete folder", http.StatusInternalServerError)
		return
	}

	// Storage directory removal is best effort; it may hold stray files.
	if rmErr := os.Remove(h.store.Resolve(derivative.SanitizePath(folder.Path))); rmErr != nil && !os.IsNotExist(rmErr) {
		logging.Debug("storage directory for folder %s not removed: %v", folder.Path, rmErr)
	}

	writeJSONStatus(w, "deleted")
}
