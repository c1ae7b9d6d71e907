package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CreateSmartFolder saves a named asset query for later evaluation.
func (c *Catalog) CreateSmartFolder(ctx context.Context, name string, query AssetQuery) (*SmartFolder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("name required")
	}

	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode smart folder query: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	createdAt := nowISO()
	res, err := c.db.ExecContext(opCtx,
		"INSERT INTO smart_folders(name, query_json, created_at) VALUES (?, ?, ?)",
		name, string(payload), createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create smart folder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read smart folder id: %w", err)
	}
	return &SmartFolder{ID: id, Name: name, Query: query, CreatedAt: createdAt}, nil
}

// ListSmartFolders returns all saved queries, newest first.
func (c *Catalog) ListSmartFolders(ctx context.Context) ([]*SmartFolder, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(opCtx,
		"SELECT id, name, query_json, created_at FROM smart_folders ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query smart folders: %w", err)
	}
	defer rows.Close()

	folders := []*SmartFolder{}
	for rows.Next() {
		sf, err := scanSmartFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, sf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate smart folders: %w", err)
	}
	return folders, nil
}

// GetSmartFolder loads a saved query by id.
func (c *Catalog) GetSmartFolder(ctx context.Context, id int64) (*SmartFolder, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := c.db.QueryRowContext(opCtx,
		"SELECT id, name, query_json, created_at FROM smart_folders WHERE id = ?", id)
	sf, err := scanSmartFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sf, err
}

func scanSmartFolder(row rowScanner) (*SmartFolder, error) {
	var sf SmartFolder
	var queryJSON string
	if err := row.Scan(&sf.ID, &sf.Name, &queryJSON, &sf.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan smart folder: %w", err)
	}
	if err := json.Unmarshal([]byte(queryJSON), &sf.Query); err != nil {
		return nil, fmt.Errorf("failed to decode smart folder query: %w", err)
	}
	return &sf, nil
}
