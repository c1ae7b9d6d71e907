package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"meagle/internal/mediatypes"
	"meagle/internal/palette"
)

// DefaultColorThreshold is the Euclidean RGB distance used for color
// matching when the query does not set one.
const DefaultColorThreshold = 60.0

const assetColumns = "id, filename, stored_name, preview_name, media_type, mime, format, size_bytes, width, height, duration_ms, folder_id, note, colors, created_at"

// NewAsset carries the fields CreateAsset persists.
type NewAsset struct {
	Filename    string
	StoredName  string
	PreviewName *string
	MediaType   mediatypes.Kind
	Mime        *string
	Format      *string
	SizeBytes   int64
	Width       *int
	Height      *int
	DurationMs  *int64
	FolderID    *int64
	Note        *string
	Colors      []string
}

// CreateAsset inserts an asset record and returns its id.
func (c *Catalog) CreateAsset(ctx context.Context, a NewAsset) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	colors, err := json.Marshal(a.Colors)
	if err != nil {
		return 0, fmt.Errorf("failed to encode colors: %w", err)
	}

	res, err := c.db.ExecContext(opCtx, `
		INSERT INTO assets(filename, stored_name, preview_name, media_type, mime, format, size_bytes, width, height, duration_ms, folder_id, note, colors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Filename, a.StoredName, a.PreviewName, string(a.MediaType), a.Mime, a.Format,
		a.SizeBytes, a.Width, a.Height, a.DurationMs, a.FolderID, a.Note, string(colors), nowISO())
	if err != nil {
		return 0, fmt.Errorf("failed to insert asset: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read asset id: %w", err)
	}
	return id, nil
}

// GetAsset loads a single asset with its tags resolved.
func (c *Catalog) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := c.db.QueryRowContext(opCtx, "SELECT "+assetColumns+" FROM assets WHERE id = ?", id)
	asset, err := scanAsset(row)
	if err != nil {
		return nil, err
	}

	tags, err := c.TagsForAssets(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	asset.Tags = tags[id]
	if asset.Tags == nil {
		asset.Tags = []string{}
	}
	return asset, nil
}

// UpdateAsset changes an asset's folder and note. Tag replacement is
// handled separately via SetAssetTags.
func (c *Catalog) UpdateAsset(ctx context.Context, id int64, folderID *int64, note *string) error {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := c.db.ExecContext(opCtx, "UPDATE assets SET folder_id = ?, note = ? WHERE id = ?", folderID, note, id)
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	return requireRows(res)
}

// SetPreviewName records the relative path of a generated preview so
// later requests reuse it instead of regenerating.
func (c *Catalog) SetPreviewName(ctx context.Context, id int64, previewName string) error {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := c.db.ExecContext(opCtx, "UPDATE assets SET preview_name = ? WHERE id = ?", previewName, id)
	if err != nil {
		return fmt.Errorf("failed to set preview name: %w", err)
	}
	return requireRows(res)
}

// DeleteAsset removes the asset record. Associated tags and annotations
// cascade; blob removal is the caller's job.
func (c *Catalog) DeleteAsset(ctx context.Context, id int64) error {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := c.db.ExecContext(opCtx, "DELETE FROM assets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return requireRows(res)
}

// ListAssets returns assets matching the query, newest first. Structural
// filters (folder, format, media type, dimensions) run in SQL; text,
// tag, annotation and color filters run over the candidate rows because
// they need joined or decoded data.
func (c *Catalog) ListAssets(ctx context.Context, query AssetQuery) ([]*Asset, error) {
	sqlStr := "SELECT " + assetColumns + " FROM assets WHERE 1=1"
	var params []any

	if len(query.FolderIDs) > 0 {
		sqlStr += " AND folder_id IN (" + placeholders(len(query.FolderIDs)) + ")"
		for _, id := range query.FolderIDs {
			params = append(params, id)
		}
	}
	if len(query.Formats) > 0 {
		sqlStr += " AND format IN (" + placeholders(len(query.Formats)) + ")"
		for _, f := range query.Formats {
			params = append(params, strings.ToLower(strings.TrimSpace(f)))
		}
	}
	if query.MediaType != "" {
		sqlStr += " AND media_type = ?"
		params = append(params, string(query.MediaType))
	}
	// Dimension filters keep assets with unknown dimensions: degraded
	// uploads must stay reachable.
	if query.MinWidth != nil {
		sqlStr += " AND (width >= ? OR width IS NULL)"
		params = append(params, *query.MinWidth)
	}
	if query.MaxWidth != nil {
		sqlStr += " AND (width <= ? OR width IS NULL)"
		params = append(params, *query.MaxWidth)
	}
	if query.MinHeight != nil {
		sqlStr += " AND (height >= ? OR height IS NULL)"
		params = append(params, *query.MinHeight)
	}
	if query.MaxHeight != nil {
		sqlStr += " AND (height <= ? OR height IS NULL)"
		params = append(params, *query.MaxHeight)
	}
	sqlStr += " ORDER BY created_at DESC"

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(opCtx, sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	var ids []int64
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
		ids = append(ids, asset.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assets: %w", err)
	}

	tagsMap, err := c.TagsForAssets(ctx, ids)
	if err != nil {
		return nil, err
	}

	qLower := strings.ToLower(strings.TrimSpace(query.Q))
	annotationFilters := normalizeLower(query.Annotations)
	var annotationsMap map[int64][]string
	if qLower != "" || len(annotationFilters) > 0 {
		annotationsMap, err = c.TextsForAssets(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	threshold := query.ColorThreshold
	if threshold <= 0 {
		threshold = DefaultColorThreshold
	}

	results := make([]*Asset, 0, len(assets))
	for _, asset := range assets {
		asset.Tags = tagsMap[asset.ID]
		if asset.Tags == nil {
			asset.Tags = []string{}
		}

		if len(query.Tags) > 0 && !intersects(query.Tags, asset.Tags) {
			continue
		}
		if len(annotationFilters) > 0 && !intersects(annotationFilters, normalizeLower(annotationsMap[asset.ID])) {
			continue
		}
		if qLower != "" {
			hay := asset.Filename + " " + strings.Join(asset.Tags, " ") + " " + strings.Join(annotationsMap[asset.ID], " ")
			if asset.Note != nil {
				hay += " " + *asset.Note
			}
			if !strings.Contains(strings.ToLower(hay), qLower) {
				continue
			}
		}
		if len(query.Colors) > 0 {
			if len(asset.Colors) == 0 {
				continue
			}
			matched := false
			for _, target := range query.Colors {
				if target != "" && palette.Matches(asset.Colors, target, threshold) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		results = append(results, asset)
	}
	return results, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var a Asset
	var mediaType string
	var colors sql.NullString
	if err := row.Scan(&a.ID, &a.Filename, &a.StoredName, &a.PreviewName, &mediaType,
		&a.Mime, &a.Format, &a.SizeBytes, &a.Width, &a.Height, &a.DurationMs,
		&a.FolderID, &a.Note, &colors, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}
	a.MediaType = mediatypes.Kind(mediaType)
	a.Colors = []string{}
	if colors.Valid && colors.String != "" {
		if err := json.Unmarshal([]byte(colors.String), &a.Colors); err != nil {
			a.Colors = []string{}
		}
	}
	a.fillURLs()
	return &a, nil
}

// fillURLs derives the delivery URLs from the stored names. Raw assets
// without a recorded preview point at the lazy preview endpoint.
func (a *Asset) fillURLs() {
	a.URL = "/media/" + a.StoredName
	if a.PreviewName != nil && *a.PreviewName != "" {
		url := "/media/" + *a.PreviewName
		a.PreviewURL = &url
		return
	}
	if a.MediaType == mediatypes.KindRaw || (a.Format != nil && *a.Format == "dng") {
		url := fmt.Sprintf("/assets/%d/preview", a.ID)
		a.PreviewURL = &url
	}
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func normalizeLower(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
