package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"meagle/internal/catalog"
	"meagle/internal/derivative"
	"meagle/internal/logging"
	"meagle/internal/media"
	"meagle/internal/mediatypes"
	"meagle/internal/metrics"
	"meagle/internal/streaming"
)

const maxUploadMemory = 64 << 20 // form parsing buffer, not an upload cap

// UploadAsset ingests one file: store the blob, derive whatever
// metadata its kind allows, and register it in the catalog. Extraction
// failures degrade to an asset with null metadata; ingestion itself
// never fails because of them.
func (h *Handlers) UploadAsset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeJSONError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := header.Filename
	relDir := ""
	if rp := r.FormValue("relative_path"); rp != "" {
		var relFile string
		relDir, relFile = splitDirFile(rp)
		if relFile != "" {
			filename = relFile
		}
	}
	if filename == "" {
		writeJSONError(w, "filename required", http.StatusBadRequest)
		return
	}

	declared := header.Header.Get("Content-Type")
	ext := mediatypes.Ext(filename)
	mime := mediatypes.SniffMime(filename, declared)
	kind := mediatypes.DetectKind(filename, declared)

	ctx := r.Context()

	var folderID *int64
	if relDir != "" {
		folderID, err = h.catalog.EnsureFolderPath(ctx, relDir)
		if err != nil {
			logging.Error("failed to ensure folder path %q: %v", relDir, err)
			writeJSONError(w, "failed to create folders", http.StatusInternalServerError)
			return
		}
	} else if v := r.FormValue("folder_id"); v != "" {
		id, parseErr := strconv.ParseInt(v, 10, 64)
		if parseErr != nil {
			writeJSONError(w, "invalid folder_id", http.StatusBadRequest)
			return
		}
		folderID = &id
	}

	storageSubdir := relDir
	if storageSubdir == "" && folderID != nil {
		folder, folderErr := h.catalog.GetFolder(ctx, *folderID)
		if folderErr != nil {
			writeJSONError(w, "folder not found", http.StatusNotFound)
			return
		}
		storageSubdir = folder.Path
	}

	storedName, size, err := h.store.StoreOriginal(storageSubdir, ext, file)
	if err != nil {
		logging.Error("failed to store upload %q: %v", filename, err)
		writeJSONError(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	derived := h.pipeline.Extract(ctx, kind, h.store.Resolve(storedName))

	var previewName *string
	if derived.Preview != nil {
		start := time.Now()
		if data, encErr := media.EncodePreview(derived.Preview); encErr == nil {
			if rel, writeErr := h.store.WritePreview(storedName, data); writeErr == nil {
				previewName = &rel
				metrics.PreviewGenerationsTotal.WithLabelValues("ingest").Inc()
				metrics.PreviewGenerationDuration.Observe(time.Since(start).Seconds())
			} else {
				logging.Warn("failed to write preview for %s: %v", storedName, writeErr)
			}
		} else {
			logging.Warn("failed to encode preview for %s: %v", storedName, encErr)
		}
	}

	newAsset := catalog.NewAsset{
		Filename:    filename,
		StoredName:  storedName,
		PreviewName: previewName,
		MediaType:   kind,
		SizeBytes:   size,
		Width:       derived.Width,
		Height:      derived.Height,
		DurationMs:  derived.DurationMs,
		FolderID:    folderID,
		Colors:      derived.Colors,
	}
	if mime != "" {
		newAsset.Mime = &mime
	}
	if ext != "" {
		newAsset.Format = &ext
	}
	if note := r.FormValue("note"); note != "" {
		newAsset.Note = &note
	}

	id, err := h.catalog.CreateAsset(ctx, newAsset)
	if err != nil {
		logging.Error("failed to register asset %q: %v", filename, err)
		writeJSONError(w, "failed to register asset", http.StatusInternalServerError)
		return
	}
	metrics.IngestionsTotal.WithLabelValues(string(kind)).Inc()

	tags := catalog.NormalizeTags(r.FormValue("tags"))
	tags = append(tags, autoTags(kind, ext, derived.Width, derived.Height)...)
	if _, err := h.catalog.SetAssetTags(ctx, id, tags); err != nil {
		logging.Warn("failed to tag asset %d: %v", id, err)
	}

	logging.Info("ingested asset id=%d ext=%s kind=%s preview=%v size=%d", id, ext, kind, previewName != nil, size)

	asset, err := h.catalog.GetAsset(ctx, id)
	if err != nil {
		writeJSONError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, asset)
}

// autoTags derives the tags every upload gets for free: kind, extension
// and orientation.
func autoTags(kind mediatypes.Kind, ext string, width, height *int) []string {
	tags := []string{string(kind)}
	if ext != "" {
		tags = append(tags, ext)
	}
	if width != nil && height != nil {
		switch {
		case *width == *height:
			tags = append(tags, "square")
		case *width > *height:
			tags = append(tags, "landscape")
		default:
			tags = append(tags, "portrait")
		}
	}
	return tags
}

// splitDirFile splits a client-supplied relative path into its sanitized
// directory part and bare filename.
func splitDirFile(p string) (string, string) {
	p = derivative.SanitizePath(p)
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[:idx], p[idx+1:]
	}
	return "", p
}

// ListAssets returns assets matching the request's filter parameters.
func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	query, err := parseAssetQuery(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	assets, err := h.catalog.ListAssets(r.Context(), query)
	if err != nil {
		logging.Error("failed to list assets: %v", err)
		writeJSONError(w, "failed to list assets", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []*catalog.Asset{}
	}
	writeJSON(w, assets)
}

func parseAssetQuery(r *http.Request) (catalog.AssetQuery, error) {
	q := r.URL.Query()
	query := catalog.AssetQuery{
		Q:           q.Get("q"),
		Tags:        splitList(q.Get("tags")),
		Annotations: splitList(q.Get("annotations")),
		Formats:     splitList(q.Get("format")),
		MediaType:   mediatypes.Kind(q.Get("media_type")),
		Colors:      splitList(q.Get("color")),
	}

	for _, id := range splitList(q.Get("folder_id")) {
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return query, fmt.Errorf("invalid folder_id %q", id)
		}
		query.FolderIDs = append(query.FolderIDs, parsed)
	}

	for _, dim := range []struct {
		name string
		dst  **int
	}{
		{"min_w", &query.MinWidth},
		{"max_w", &query.MaxWidth},
		{"min_h", &query.MinHeight},
		{"max_h", &query.MaxHeight},
	} {
		if v := q.Get(dim.name); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return query, fmt.Errorf("invalid %s %q", dim.name, v)
			}
			*dim.dst = &parsed
		}
	}

	if v := q.Get("color_threshold"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return query, fmt.Errorf("invalid color_threshold %q", v)
		}
		query.ColorThreshold = parsed
	}
	return query, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// GetAsset returns a single asset by id.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.loadAsset(w, r)
	if !ok {
		return
	}
	writeJSON(w, asset)
}

// UpdateAsset changes an asset's folder, note or tags. Only fields
// present in the payload change; an explicit null clears the field.
func (h *Handlers) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.loadAsset(w, r)
	if !ok {
		return
	}

	var payload struct {
		FolderID json.RawMessage `json:"folder_id"`
		Note     json.RawMessage `json:"note"`
		Tags     []string        `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	folderID := asset.FolderID
	if payload.FolderID != nil {
		if err := json.Unmarshal(payload.FolderID, &folderID); err != nil {
			writeJSONError(w, "invalid folder_id", http.StatusBadRequest)
			return
		}
	}
	note := asset.Note
	if payload.Note != nil {
		if err := json.Unmarshal(payload.Note, &note); err != nil {
			writeJSONError(w, "invalid note", http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	if err := h.catalog.UpdateAsset(ctx, asset.ID, folderID, note); err != nil {
		logging.Error("failed to update asset %d: %v", asset.ID, err)
		writeJSONError(w, "failed to update asset", http.StatusInternalServerError)
		return
	}
	if payload.Tags != nil {
		if _, err := h.catalog.SetAssetTags(ctx, asset.ID, payload.Tags); err != nil {
			logging.Error("failed to retag asset %d: %v", asset.ID, err)
			writeJSONError(w, "failed to update tags", http.StatusInternalServerError)
			return
		}
	}

	updated, err := h.catalog.GetAsset(ctx, asset.ID)
	if err != nil {
		writeJSONError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}
	writeJSON(w, updated)
}

// DeleteAsset removes the catalog record and its blobs.
func (h *Handlers) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.loadAsset(w, r)
	if !ok {
		return
	}

	if err := h.store.Remove(asset.StoredName); err != nil {
		logging.Warn("failed to remove blob %s: %v", asset.StoredName, err)
	}
	if asset.PreviewName != nil {
		if err := h.store.Remove(*asset.PreviewName); err != nil {
			logging.Warn("failed to remove preview %s: %v", *asset.PreviewName, err)
		}
	}

	if err := h.catalog.DeleteAsset(r.Context(), asset.ID); err != nil {
		logging.Error("failed to delete asset %d: %v", asset.ID, err)
		writeJSONError(w, "failed to delete asset", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "deleted")
}

// DownloadAsset serves the original blob with its upload filename as an
// attachment.
func (h *Handlers) DownloadAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.loadAsset(w, r)
	if !ok {
		return
	}

	contentType := "application/octet-stream"
	if asset.Mime != nil && *asset.Mime != "" {
		contentType = *asset.Mime
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", asset.Filename))
	streaming.ServeBlob(w, r, h.store.Resolve(asset.StoredName), contentType)
}

// AssetPreview serves a browser-displayable rendition of the asset. A
// recorded preview is served from disk; RAW assets without one get a
// preview synthesized on first request and cached. Images and GIFs fall
// back to the original; anything else has no displayable form and gets
// 415.
func (h *Handlers) AssetPreview(w http.ResponseWriter, r *http.Request) {
	asset, ok := h.loadAsset(w, r)
	if !ok {
		return
	}

	previewName := ""
	if asset.PreviewName != nil {
		previewName = *asset.PreviewName
	}
	canRegenerate := asset.MediaType == mediatypes.KindRaw || (asset.Format != nil && *asset.Format == "dng")

	if previewName != "" || canRegenerate {
		rel, created, err := h.store.GetOrCreatePreview(r.Context(), asset.StoredName, previewName, canRegenerate, h.pipeline.RawExtractor())
		switch {
		case err == nil:
			if created {
				if recErr := h.catalog.SetPreviewName(r.Context(), asset.ID, rel); recErr != nil {
					logging.Warn("failed to record preview for asset %d: %v", asset.ID, recErr)
				}
			}
			streaming.ServeBlob(w, r, h.store.Resolve(rel), "image/jpeg")
			return
		case errors.Is(err, derivative.ErrMissingBlob):
			writeJSONError(w, "file missing", http.StatusNotFound)
			return
		case errors.Is(err, derivative.ErrNotAvailable):
			// Fall through to the original-serving path below.
		default:
			logging.Error("failed to produce preview for asset %d: %v", asset.ID, err)
			writeJSONError(w, "failed to produce preview", http.StatusInternalServerError)
			return
		}
	}

	if asset.MediaType == mediatypes.KindImage || asset.MediaType == mediatypes.KindGif {
		contentType := "application/octet-stream"
		if asset.Mime != nil && *asset.Mime != "" {
			contentType = *asset.Mime
		}
		streaming.ServeBlob(w, r, h.store.Resolve(asset.StoredName), contentType)
		return
	}

	writeJSONError(w, "preview not available", http.StatusUnsupportedMediaType)
}

// loadAsset resolves the {id} route variable to an asset, writing the
// error response itself when it cannot.
func (h *Handlers) loadAsset(w http.ResponseWriter, r *http.Request) (*catalog.Asset, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return nil, false
	}

	asset, err := h.catalog.GetAsset(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		logging.Error("failed to load asset %d: %v", id, err)
		writeJSONError(w, "failed to load asset", http.StatusInternalServerError)
		return nil, false
	}
	return asset, true
}
