package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CreateAnnotation attaches a typed annotation to an asset. The asset
// must exist.
func (c *Catalog) CreateAnnotation(ctx context.Context, assetID int64, kind string, data map[string]any) (*Annotation, error) {
	if _, err := c.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}

	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "text"
	}
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode annotation data: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	createdAt := nowISO()
	res, err := c.db.ExecContext(opCtx,
		"INSERT INTO annotations(asset_id, kind, data_json, created_at) VALUES (?, ?, ?, ?)",
		assetID, kind, string(payload), createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create annotation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation id: %w", err)
	}
	return &Annotation{ID: id, AssetID: assetID, Kind: kind, Data: data, CreatedAt: createdAt}, nil
}

// ListAnnotations returns an asset's annotations, newest first.
func (c *Catalog) ListAnnotations(ctx context.Context, assetID int64) ([]*Annotation, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(opCtx,
		"SELECT id, asset_id, kind, data_json, created_at FROM annotations WHERE asset_id = ? ORDER BY created_at DESC", assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer rows.Close()

	annotations := []*Annotation{}
	for rows.Next() {
		var a Annotation
		var dataJSON string
		if err := rows.Scan(&a.ID, &a.AssetID, &a.Kind, &dataJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		a.Data = map[string]any{}
		if err := json.Unmarshal([]byte(dataJSON), &a.Data); err != nil {
			a.Data = map[string]any{}
		}
		annotations = append(annotations, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate annotations: %w", err)
	}
	return annotations, nil
}

// DeleteAnnotation removes an annotation by id. Missing ids are not an
// error.
func (c *Catalog) DeleteAnnotation(ctx context.Context, id int64) error {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(opCtx, "DELETE FROM annotations WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete annotation: %w", err)
	}
	return nil
}

// TextsForAssets resolves annotation text values for a batch of assets.
// Only annotations whose data carries a non-empty "text" field count.
func (c *Catalog) TextsForAssets(ctx context.Context, assetIDs []int64) (map[int64][]string, error) {
	result := make(map[int64][]string, len(assetIDs))
	if len(assetIDs) == 0 {
		return result, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	args := make([]any, len(assetIDs))
	for i, id := range assetIDs {
		args[i] = id
	}
	rows, err := c.db.QueryContext(opCtx,
		"SELECT asset_id, data_json FROM annotations WHERE asset_id IN ("+placeholders(len(assetIDs))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotation texts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var assetID int64
		var dataJSON string
		if err := rows.Scan(&assetID, &dataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan annotation text: %w", err)
		}
		if text := annotationText(dataJSON); text != "" {
			result[assetID] = append(result[assetID], text)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate annotation texts: %w", err)
	}
	return result, nil
}

// CountAnnotationTexts aggregates annotation texts across all assets,
// case-insensitively, most frequent first.
func (c *Catalog) CountAnnotationTexts(ctx context.Context) ([]AnnotationCount, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(opCtx, "SELECT data_json FROM annotations")
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var dataJSON string
		if err := rows.Scan(&dataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		if text := annotationText(dataJSON); text != "" {
			counts[strings.ToLower(text)]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate annotations: %w", err)
	}

	result := make([]AnnotationCount, 0, len(counts))
	for text, count := range counts {
		result = append(result, AnnotationCount{Text: text, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Text < result[j].Text
	})
	return result, nil
}

func annotationText(dataJSON string) string {
	var data map[string]any
	if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
		return ""
	}
	text, _ := data["text"].(string)
	return strings.TrimSpace(text)
}
