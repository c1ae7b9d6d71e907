package handlers

import (
	"net/http"

	"meagle/internal/logging"
)

// ListTags returns every tag with its asset count.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.catalog.ListTags(r.Context())
	if err != nil {
		logging.Error("failed to list tags: %v", err)
		writeJSONError(w, "failed to list tags", http.StatusInternalServerError)
		return
	}
	writeJSON(w, tags)
}
