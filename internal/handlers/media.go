package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"meagle/internal/derivative"
	"meagle/internal/mediatypes"
	"meagle/internal/streaming"
)

// ServeMedia streams a stored blob by its relative name with full Range
// support. Traversal segments in the path are dropped before resolving,
// so requests can never escape the storage root.
func (h *Handlers) ServeMedia(w http.ResponseWriter, r *http.Request) {
	rel := derivative.SanitizePath(mux.Vars(r)["path"])
	if rel == "" {
		writeJSONError(w, "file missing", http.StatusNotFound)
		return
	}
	streaming.ServeBlob(w, r, h.store.Resolve(rel), mediatypes.ContentType(rel))
}
