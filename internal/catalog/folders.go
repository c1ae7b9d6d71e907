package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrFolderNotEmpty indicates a folder still holds subfolders or assets.
var ErrFolderNotEmpty = errors.New("folder not empty")

// ListFolders returns all folders ordered by path.
func (c *Catalog) ListFolders(ctx context.Context) ([]*Folder, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(opCtx, "SELECT id, name, parent_id, path, created_at FROM folders ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query folders: %w", err)
	}
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		var f Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.ParentID, &f.Path, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folders: %w", err)
	}
	return folders, nil
}

// GetFolder loads a folder by id.
func (c *Catalog) GetFolder(ctx context.Context, id int64) (*Folder, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var f Folder
	err := c.db.QueryRowContext(opCtx, "SELECT id, name, parent_id, path, created_at FROM folders WHERE id = ?", id).
		Scan(&f.ID, &f.Name, &f.ParentID, &f.Path, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load folder: %w", err)
	}
	return &f, nil
}

// CreateFolder creates a folder under the given parent. The path is the
// parent's path joined with the name; a duplicate path is an error.
func (c *Catalog) CreateFolder(ctx context.Context, name string, parentID *int64) (*Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("name required")
	}

	path := name
	if parentID != nil {
		parent, err := c.GetFolder(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		path = parent.Path + "/" + name
	}

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	createdAt := nowISO()
	res, err := c.db.ExecContext(opCtx,
		"INSERT INTO folders(name, parent_id, path, created_at) VALUES (?, ?, ?, ?)",
		name, parentID, path, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read folder id: %w", err)
	}
	return &Folder{ID: id, Name: name, ParentID: parentID, Path: path, CreatedAt: createdAt}, nil
}

// EnsureFolderPath walks a slash-separated path and creates any missing
// folders along the chain, returning the id of the deepest one. An
// empty path yields nil.
func (c *Catalog) EnsureFolderPath(ctx context.Context, path string) (*int64, error) {
	var parts []string
	for _, p := range strings.Split(strings.ReplaceAll(path, "\\", "/"), "/") {
		if p != "" && p != "." && p != ".." {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}

	var parentID *int64
	current := ""
	for _, part := range parts {
		if current == "" {
			current = part
		} else {
			current = current + "/" + part
		}

		opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		var id int64
		err := c.db.QueryRowContext(opCtx, "SELECT id FROM folders WHERE path = ?", current).Scan(&id)
		cancel()
		if err == nil {
			parentID = &id
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to look up folder path %q: %w", current, err)
		}

		folder, err := c.createFolderAt(ctx, part, parentID, current)
		if err != nil {
			return nil, err
		}
		parentID = &folder.ID
	}
	return parentID, nil
}

func (c *Catalog) createFolderAt(ctx context.Context, name string, parentID *int64, path string) (*Folder, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	createdAt := nowISO()
	res, err := c.db.ExecContext(opCtx,
		"INSERT INTO folders(name, parent_id, path, created_at) VALUES (?, ?, ?, ?)",
		name, parentID, path, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create folder %q: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read folder id: %w", err)
	}
	return &Folder{ID: id, Name: name, ParentID: parentID, Path: path, CreatedAt: createdAt}, nil
}

// DeleteFolder removes an empty folder. Folders with subfolders or
// assets return ErrFolderNotEmpty.
func (c *Catalog) DeleteFolder(ctx context.Context, id int64) error {
	if _, err := c.GetFolder(ctx, id); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var childID int64
	err := c.db.QueryRowContext(opCtx, "SELECT id FROM folders WHERE parent_id = ? LIMIT 1", id).Scan(&childID)
	if err == nil {
		return ErrFolderNotEmpty
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check subfolders: %w", err)
	}

	var assetID int64
	err = c.db.QueryRowContext(opCtx, "SELECT id FROM assets WHERE folder_id = ? LIMIT 1", id).Scan(&assetID)
	if err == nil {
		return ErrFolderNotEmpty
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check folder assets: %w", err)
	}

	if _, err := c.db.ExecContext(opCtx, "DELETE FROM folders WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}
