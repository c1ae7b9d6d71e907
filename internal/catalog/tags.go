package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// NormalizeTags splits a comma-separated tag string into trimmed,
// non-empty names.
func NormalizeTags(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// EnsureTags creates any missing tags and returns name -> id for all of
// them.
func (c *Catalog) EnsureTags(ctx context.Context, names []string) (map[string]int64, error) {
	tagMap := make(map[string]int64, len(names))
	if len(names) == 0 {
		return tagMap, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	rows, err := c.db.QueryContext(opCtx, "SELECT id, name FROM tags WHERE name IN ("+placeholders(len(names))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tagMap[name] = id
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close tag rows: %w", err)
	}

	for _, name := range names {
		if _, ok := tagMap[name]; ok {
			continue
		}
		res, err := c.db.ExecContext(opCtx, "INSERT INTO tags(name) VALUES (?)", name)
		if err != nil {
			return nil, fmt.Errorf("failed to create tag %q: %w", name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read tag id: %w", err)
		}
		tagMap[name] = id
	}
	return tagMap, nil
}

// SetAssetTags replaces an asset's tag set with the given names,
// creating tags as needed, and returns the sorted deduplicated names.
func (c *Catalog) SetAssetTags(ctx context.Context, assetID int64, names []string) ([]string, error) {
	unique := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			unique[n] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(unique))
	for n := range unique {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	tagMap, err := c.EnsureTags(ctx, sorted)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := c.db.BeginTx(opCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tag transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(opCtx, "DELETE FROM asset_tags WHERE asset_id = ?", assetID); err != nil {
		return nil, fmt.Errorf("failed to clear asset tags: %w", err)
	}
	for _, name := range sorted {
		if _, err := tx.ExecContext(opCtx, "INSERT INTO asset_tags(asset_id, tag_id) VALUES (?, ?)", assetID, tagMap[name]); err != nil {
			return nil, fmt.Errorf("failed to attach tag %q: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tag transaction: %w", err)
	}
	return sorted, nil
}

// TagsForAssets resolves tag names for a batch of assets in one query.
func (c *Catalog) TagsForAssets(ctx context.Context, assetIDs []int64) (map[int64][]string, error) {
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
	rows, err := c.db.QueryContext(opCtx, `
		SELECT asset_tags.asset_id, tags.name
		FROM asset_tags
		JOIN tags ON tags.id = asset_tags.tag_id
		WHERE asset_tags.asset_id IN (`+placeholders(len(assetIDs))+`)
		ORDER BY tags.name`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var assetID int64
		var name string
		if err := rows.Scan(&assetID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan asset tag: %w", err)
		}
		result[assetID] = append(result[assetID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate asset tags: %w", err)
	}
	return result, nil
}

// ListTags returns every tag with its asset count, ordered by name.
func (c *Catalog) ListTags(ctx context.Context) ([]TagCount, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(opCtx, `
		SELECT tags.name, COUNT(asset_tags.asset_id) as count
		FROM tags
		LEFT JOIN asset_tags ON asset_tags.tag_id = tags.id
		GROUP BY tags.id
		ORDER BY tags.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	tags := []TagCount{}
	for rows.Next() {
		var t TagCount
		if err := rows.Scan(&t.Name, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tag count: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return tags, nil
}
