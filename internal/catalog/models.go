package catalog

import "meagle/internal/mediatypes"

// Asset is a stored media item plus whatever derived metadata extraction
// produced for it. Fields extraction could not provide stay nil and
// serialize as JSON null.
type Asset struct {
	ID          int64           `json:"id"`
	Filename    string          `json:"filename"`
	StoredName  string          `json:"stored_name"`
	PreviewName *string         `json:"preview_name"`
	MediaType   mediatypes.Kind `json:"media_type"`
	Mime        *string         `json:"mime"`
	Format      *string         `json:"format"`
	SizeBytes   int64           `json:"size_bytes"`
	Width       *int            `json:"width"`
	Height      *int            `json:"height"`
	DurationMs  *int64          `json:"duration_ms"`
	FolderID    *int64          `json:"folder_id"`
	Note        *string         `json:"note"`
	Colors      []string        `json:"colors"`
	CreatedAt   string          `json:"created_at"`
	Tags        []string        `json:"tags"`
	URL         string          `json:"url"`
	PreviewURL  *string         `json:"preview_url"`
}

// AssetQuery is a filter set for ListAssets. It doubles as the stored
// payload of a smart folder, so the JSON tags match the query-string
// parameter names.
type AssetQuery struct {
	Q              string          `json:"q,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	Annotations    []string        `json:"annotations,omitempty"`
	FolderIDs      []int64         `json:"folder_id,omitempty"`
	Formats        []string        `json:"format,omitempty"`
	MediaType      mediatypes.Kind `json:"media_type,omitempty"`
	MinWidth       *int            `json:"min_w,omitempty"`
	MaxWidth       *int            `json:"max_w,omitempty"`
	MinHeight      *int            `json:"min_h,omitempty"`
	MaxHeight      *int            `json:"max_h,omitempty"`
	Colors         []string        `json:"color,omitempty"`
	ColorThreshold float64         `json:"color_threshold,omitempty"`
}

// Folder is a node in the materialized-path folder tree.
type Folder struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ParentID  *int64 `json:"parent_id"`
	Path      string `json:"path"`
	CreatedAt string `json:"created_at"`
}

// TagCount is a tag name with the number of assets carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SmartFolder is a saved asset query.
type SmartFolder struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Query     AssetQuery `json:"query"`
	CreatedAt string     `json:"created_at"`
}

// Annotation is a typed note attached to an asset, with free-form data.
type Annotation struct {
	ID        int64          `json:"id"`
	AssetID   int64          `json:"asset_id"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data"`
	CreatedAt string         `json:"created_at"`
}

// AnnotationCount aggregates annotation texts across all assets.
type AnnotationCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}
