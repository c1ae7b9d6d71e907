// Package catalog persists the asset catalog: uploaded assets and their
// derived metadata, folders, tags, annotations and saved smart-folder
// queries, backed by SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"meagle/internal/logging"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Catalog manages all catalog persistence.
type Catalog struct {
	db     *sql.DB
	dbPath string
}

// Open creates a Catalog backed by the SQLite file at dbPath. The parent
// directory must already exist and be writable; use startup.LoadConfig()
// for directory validation before calling this.
func Open(ctx context.Context, dbPath string) (*Catalog, error) {
	logging.Info("Catalog database path: %s", dbPath)

	// WAL mode and busy_timeout prevent "database is locked" errors
	// under concurrent uploads.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	c := &Catalog{db: db, dbPath: dbPath}

	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Catalog initialized successfully at %s", dbPath)
	return c, nil
}

func (c *Catalog) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS folders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		parent_id INTEGER,
		path TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		FOREIGN KEY(parent_id) REFERENCES folders(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		stored_name TEXT NOT NULL,
		preview_name TEXT,
		media_type TEXT NOT NULL,
		mime TEXT,
		format TEXT,
		size_bytes INTEGER NOT NULL,
		width INTEGER,
		height INTEGER,
		duration_ms INTEGER,
		folder_id INTEGER,
		note TEXT,
		colors TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY(folder_id) REFERENCES folders(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS asset_tags (
		asset_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		PRIMARY KEY(asset_id, tag_id),
		FOREIGN KEY(asset_id) REFERENCES assets(id) ON DELETE CASCADE,
		FOREIGN KEY(tag_id) REFERENCES tags(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS smart_folders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		query_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS annotations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		data_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY(asset_id) REFERENCES assets(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_assets_format ON assets(format);
	CREATE INDEX IF NOT EXISTS idx_assets_media_type ON assets(media_type);
	CREATE INDEX IF NOT EXISTS idx_assets_folder ON assets(folder_id);
	CREATE INDEX IF NOT EXISTS idx_assets_created ON assets(created_at);
	CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name);
	CREATE INDEX IF NOT EXISTS idx_asset_tags_tag ON asset_tags(tag_id);
	CREATE INDEX IF NOT EXISTS idx_annotations_asset ON annotations(asset_id);
	`

	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(initCtx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// nowISO returns the current UTC time in the catalog's timestamp format.
func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
