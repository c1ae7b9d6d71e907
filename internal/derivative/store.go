// Package derivative owns the naming and on-disk placement of stored
// asset blobs and their generated previews. All path construction for
// the storage tree goes through here so the co-location invariant
// (previews live next to their originals) is enforced in one place.
package derivative

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"meagle/internal/logging"
	"meagle/internal/media"
	"meagle/internal/metrics"

	"github.com/google/uuid"
)

// ErrNotAvailable indicates a preview cannot be produced for an asset's
// kind or state. This is a client-visible condition, not a server fault.
var ErrNotAvailable = errors.New("preview not available")

// ErrMissingBlob indicates a blob referenced by the catalog is absent
// from disk.
var ErrMissingBlob = errors.New("blob missing from storage")

// Store manages the storage directory holding original blobs and
// generated previews.
type Store struct {
	root string
}

// NewStore creates a Store rooted at root. The directory must already
// exist and be writable (validated at startup).
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// SanitizePath normalizes a relative storage path: backslashes become
// slashes and empty, "." and ".." segments are dropped, so a sanitized
// path can never escape the storage root.
func SanitizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "/")
}

// Resolve returns the absolute filesystem path for a relative storage
// name, sanitizing it first.
func (s *Store) Resolve(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(SanitizePath(rel)))
}

// randomToken returns a fresh unique filename token. Each write attempt
// gets its own token so concurrent regeneration never collides with an
// in-progress read of the same path.
func randomToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// StoreOriginal writes an uploaded blob under subdir (may be empty for
// the root) with a random token name keeping the original extension.
// Returns the relative stored name and the byte count written.
func (s *Store) StoreOriginal(subdir, ext string, r io.Reader) (string, int64, error) {
	name := randomToken()
	if ext != "" {
		name += "." + ext
	}

	rel := name
	if subdir = SanitizePath(subdir); subdir != "" {
		rel = subdir + "/" + name
	}

	dest := s.Resolve(rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create storage directory: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create blob file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		// Incomplete blob is useless; best effort cleanup.
		os.Remove(dest)
		return "", 0, fmt.Errorf("failed to write blob: %w", err)
	}
	return rel, size, nil
}

// WritePreview persists preview bytes co-located with the original:
// same storage subdirectory, filename "<random-token>.jpg". Returns the
// relative preview name.
func (s *Store) WritePreview(storedName string, data []byte) (string, error) {
	rel := randomToken() + ".jpg"
	if dir := filepath.ToSlash(filepath.Dir(SanitizePath(storedName))); dir != "." && dir != "" {
		rel = dir + "/" + rel
	}

	dest := s.Resolve(rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create preview directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write preview: %w", err)
	}
	return rel, nil
}

// Remove deletes a stored blob by relative name. Missing files are not
// an error.
func (s *Store) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	if err := os.Remove(s.Resolve(rel)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GetOrCreatePreview returns the relative name of the asset's preview,
// lazily synthesizing one through regen when the asset is RAW-capable
// and none was produced at upload time. The second return value reports
// whether a new preview was written (so the caller can record its path).
//
// Once a preview exists this is a pure cache lookup: the stored file is
// returned without re-deriving anything.
func (s *Store) GetOrCreatePreview(ctx context.Context, storedName, previewName string, canRegenerate bool, regen media.Extractor) (string, bool, error) {
	if previewName != "" {
		if _, err := os.Stat(s.Resolve(previewName)); err == nil {
			return previewName, false, nil
		}
		logging.Warn("recorded preview %s missing from disk, attempting regeneration", previewName)
	}

	if !canRegenerate || regen == nil {
		return "", false, ErrNotAvailable
	}

	src := s.Resolve(storedName)
	if _, err := os.Stat(src); err != nil {
		return "", false, fmt.Errorf("%w: %s", ErrMissingBlob, storedName)
	}

	start := time.Now()
	derived := regen.Extract(ctx, src)
	if derived.Preview == nil {
		return "", false, ErrNotAvailable
	}

	data, err := media.EncodePreview(derived.Preview)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode lazy preview: %w", err)
	}

	rel, err := s.WritePreview(storedName, data)
	if err != nil {
		return "", false, err
	}

	metrics.PreviewGenerationsTotal.WithLabelValues("lazy").Inc()
	metrics.PreviewGenerationDuration.Observe(time.Since(start).Seconds())
	logging.Info("lazily generated preview %s for %s in %v", rel, storedName, time.Since(start))
	return rel, true, nil
}
