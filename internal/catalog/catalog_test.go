package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"meagle/internal/mediatypes"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("failed to close catalog: %v", err)
		}
	})
	return c
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func createTestAsset(t *testing.T, c *Catalog, a NewAsset) int64 {
	t.Helper()
	if a.Filename == "" {
		a.Filename = "photo.jpg"
	}
	if a.StoredName == "" {
		a.StoredName = "abc123.jpg"
	}
	if a.MediaType == "" {
		a.MediaType = mediatypes.KindImage
	}
	id, err := c.CreateAsset(context.Background(), a)
	if err != nil {
		t.Fatalf("failed to create asset: %v", err)
	}
	return id
}

func TestAssetRoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	ctx := context.Background()

	durationMs := int64(12345)
	id := createTestAsset(t, c, NewAsset{
		Filename:   "clip.mp4",
		StoredName: "vids/deadbeef.mp4",
		MediaType:  mediatypes.KindVideo,
		Mime:       strPtr("video/mp4"),
		Format:     strPtr("mp4"),
		SizeBytes:  2048,
		Width:      intPtr(1920),
		Height:     intPtr(1080),
		DurationMs: &durationMs,
		Colors:     []string{"#336699", "#ffffff"},
	})

	asset, err := c.GetAsset(ctx, id)
	if err != nil {
		t.Fatalf("failed to load asset: %v", err)
	}
	if asset.Filename != "clip.mp4" || asset.StoredName != "vids/deadbeef.mp4" {
		t.Errorf("unexpected names: %q / %q", asset.Filename, asset.StoredName)
	}
	if asset.MediaType != mediatypes.KindVideo {
		t.Errorf("media type = %q, want video", asset.MediaType)
	}
	if asset.Width == nil || *asset.Width != 1920 || asset.Height == nil || *asset.Height != 1080 {
		t.Errorf("dimensions = %v x %v, want 1920 x 1080", asset.Width, asset.Height)
	}
	if asset.DurationMs == nil || *asset.DurationMs != 12345 {
		t.Errorf("duration = %v, want 12345", asset.DurationMs)
	}
	if len(asset.Colors) != 2 || asset.Colors[0] != "#336699" {
		t.Errorf("colors = %v, want [#336699 #ffffff]", asset.Colors)
	}
	if asset.URL != "/media/vids/deadbeef.mp4" {
		t.Errorf("url = %q", asset.URL)
	}
	if asset.PreviewURL != nil {
		t.Errorf("preview url = %v, want nil without preview", *asset.PreviewURL)
	}
}

func TestAssetNullableMetadata(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	ctx := context.Background()

	// Degraded extraction stores an asset with no metadata at all.
	id := createTestAsset(t, c, NewAsset{
		Filename:   "song.mp3",
		StoredName: "cafe01.mp3",
		MediaType:  mediatypes.KindAudio,
		SizeBytes:  512,
	})

	asset, err := c.GetAsset(ctx, id)
	if err != nil {
		t.Fatalf("failed to load asset: %v", err)
	}
	if asset.Width != nil || asset.Height != nil || asset.DurationMs != nil {
		t.Errorf("expected nil metadata, got %v %v %v", asset.Width, asset.Height, asset.DurationMs)
	}
	if asset.Mime != nil || asset.Note != nil {
		t.Errorf("expected nil mime and note, got %v %v", asset.Mime, asset.Note)
	}
	if asset.Colors == nil || len(asset.Colors) != 0 {
		t.Errorf("colors should be empty slice, got %v", asset.Colors)
	}
}

func TestRawAssetLazyPreviewURL(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	ctx := context.Background()

	id := createTestAsset(t, c, NewAsset{
		Filename:   "shot.dng",
		StoredName: "aa11.dng",
		MediaType:  mediatypes.KindRaw,
		Format:     strPtr("dng"),
		SizeBytes:  4096,
	})

	asset, err := c.GetAsset(ctx, id)
	if err != nil {
		t.Fatalf("failed to load asset: %v", err)
	}
	if asset.PreviewURL == nil || *asset.PreviewURL != "/assets/"+strconv.FormatInt(id, 10)+"/preview" {
		t.Fatalf("preview url = %v, want lazy endpoint", asset.PreviewURL)
	}

	if err := c.SetPreviewName(ctx, id, "bb22.jpg"); err != nil {
		t.Fatalf("failed to set preview name: %v", err)
	}
	asset, err = c.GetAsset(ctx, id)
	if err != nil {
		t.Fatalf("failed to reload asset: %v", err)
	}
	if asset.PreviewURL == nil || *asset.PreviewURL != "/media/bb22.jpg" {
		t.Errorf("preview url = %v, want /media/bb22.jpg after recording", asset.PreviewURL)
	}
}

func TestGetAssetNotFound(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)

	if _, err := c.GetAsset(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAsset(9999) error = %v, want ErrNotFound", err)
	}
	if err := c.DeleteAsset(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteAsset(9999) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateAsset(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	ctx := context.Background()

	folder, err := c.CreateFolder(ctx, "trips", nil)
	if err != nil {
		t.Fatalf("failed to create folder: %v", err)
	}
	id := createTestAsset(t, c, NewAsset{})

	if err := c.UpdateAsset(ctx, id, &folder.ID, strPtr("sunset")); err != nil {
		t.Fatalf("failed to update asset: %v", err)
	}
	asset, err := c.GetAsset(ctx, id)
	if err != nil {
		t.Fatalf("failed to reload asset: %v", err)
	}
	if asset.FolderID == nil || *asset.FolderID != folder.ID {
		t.Errorf("folder id = %v, want %d", asset.FolderID, folder.ID)
	}
	if asset.Note == nil || *asset.Note != "sunset" {
		t.Errorf("note = %v, want sunset", asset.Note)
	}
}

func TestListAssetsFilters(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	ctx := context.Background()

	wide := createTestAsset(t, c, NewAsset{
		Filename:   "wide.jpg",
		StoredName: "w.jpg",
		Format:     strPtr("jpg"),
		Width:      intPtr(4000),
		Height:     intPtr(2000),
		Colors:     []string{"#ff0000"},
	})
	small := createTestAsset(t, c, NewAsset{
		Filename:   "small.png",
		StoredName: "s.png",
		Format:     strPtr("png"),
		Width:      intPtr(100),
		Height:     intPtr(100),
		Colors:     []string{"#0000ff"},
	})
	unknown := createTestAsset(t, c, NewAsset{
		Filename:   "mystery.bin",
		StoredName: "m.bin",
		MediaType:  mediatypes.KindFile,
	})

	got, err := c.ListAssets(ctx, AssetQuery{MediaType: mediatypes.KindImage})
	if err != nil {
		t.Fatalf("failed to list by media type: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("media_type=image returned %d assets, want 2", len(got))
	}

	// Unknown dimensions pass dimension filters.
	got, err = c.ListAssets(ctx, AssetQuery{MinWidth: intPtr(1000)})
	if err != nil {
		t.Fatalf("failed to list by min width: %v", err)
	}
	ids := map[int64]bool{}
	for _, a := range got {
		ids[a.ID] = true
	}
	if !ids[wide] || !ids[unknown] || ids[small] {
		t.Errorf("min_w=1000 returned %v, want wide and unknown only", ids)
	}

	got, err = c.ListAssets(ctx, AssetQuery{Formats: []string{"png"}})
	if err != nil {
		t.Fatalf("failed to list by format: %v", err)
	}
	if len(got) != 1 || got[0].ID != small {
		t.Errorf("format=png returned %d assets", len(got))
	}

	// Color filter with generous threshold.
	got, err = c.ListAssets(ctx, AssetQuery{Colors: []string{"#fe0101"}, ColorThreshold: 10})
	if err != nil {
		t.Fatalf("failed to list by color: %v", err)
	}
	if len(got) != 1 || got[0].ID != wide {
		t.Errorf("color filter returned %d assets, want the red one", len(got))
	}
}

func TestListAssetsTextSearch(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	ctx := context.Background()

	tagged := createTestAsset(t, c, NewAsset{Filename: "a.jpg", StoredName: "a.jpg"})
	if _, err := c.SetAssetTags(ctx, tagged, []string{"beach", "holiday"}); err != nil {
		t.Fatalf("failed to tag asset: %v", err)
	}
	noted := createTestAsset(t, c, NewAsset{Filename: "b.jpg", StoredName: "b.jpg", Note: strPtr("mountain hike")})
	annotated := createTestAsset(t, c, NewAsset{Filename: "c.jpg", StoredName: "c.jpg"})
	if _, err := c.CreateAnnotation(ctx, annotated, "text", map[string]any{"text": "red lighthouse"}); err != nil {
		t.Fatalf("failed to annotate asset: %v", err)
	}

	cases := []struct {
		name  string
		query AssetQuery
		want  int64
	}{
		{name: "Query matches tag", query: AssetQuery{Q: "beach"}, want: tagged},
		{name: "Query matches note", query: AssetQuery{Q: "mountain"}, want: noted},
		{name: "Query matches annotation text", query: AssetQuery{Q: "lighthouse"}, want: annotated},
		{name: "Tag filter", query: AssetQuery{Tags: []string{"holiday"}}, want: tagged},
		{name: "Annotation filter is case insensitive", query: AssetQuery{Annotations: []string{"RED LIGHTHOUSE"}}, want: annotated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.ListAssets(ctx, tc.query)
			if err != nil {
				t.Fatalf("failed to list assets: %v", err)
			}
			if len(got) != 1 || got[0].ID != tc.want {
				t.Errorf("query returned %d assets, want exactly asset %d", len(got), tc.want)
			}
		})
	}
}

func TestFolderTree(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	ctx := context.Background()

	id, err := c.EnsureFolderPath(ctx, "trips/2026/iceland")
	if err != nil {
		t.Fatalf("failed to ensure folder path: %v", err)
	}
	if id == nil {
		t.Fatal("EnsureFolderPath returned nil id")
	}

	folders, err := c.ListFolders(ctx)
	if err != nil {
		t.Fatalf("failed to list folders: %v", err)
	}
	if len(folders) != 3 {
		t.Fatalf("folder count = %d, want 3", len(folders))
	}
	if folders[0].Path != "trips" || folders[1].Path != "trips/2026" || folders[2].Path != "trips/2026/iceland" {
		t.Errorf("unexpected paths: %q %q %q", folders[0].Path, folders[1].Path, folders[2].Path)
	}
	if folders[2].ParentID == nil || *folders[2].ParentID != folders[1].ID {
		t.Error("deepest folder not linked to its parent")
	}

	// Re-ensuring the same path creates nothing new.
	again, err := c.EnsureFolderPath(ctx, "trips/2026/iceland")
	if err != nil {
		t.Fatalf("failed to re-ensure folder path: %v", err)
	}
	if *again != *id {
		t.Errorf("re-ensure returned %d, want %d", *again, *id)
	}
	folders, err = c.ListFolders(ctx)
	if err != nil {
		t.Fatalf("failed to re-list folders: %v", err)
	}
	if len(folders) != 3 {
		t.Errorf("folder count after re-ensure = %d, want 3", len(folders))
	}

	// Traversal parts are dropped, not honored.
	cleaned, err := c.EnsureFolderPath(ctx, "../trips/./2026")
	if err != nil {
		t.Fatalf("failed to ensure cleaned path: %v", err)
	}
	if cleaned == nil || *cleaned != folders[1].ID {
		t.Errorf("cleaned path resolved to %v, want trips/2026", cleaned)
	}
}

func TestDeleteFolder(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	ctx := context.Background()

	parent, err := c.CreateFolder(ctx, "parent", nil)
	if err != nil {
		t.Fatalf("failed to create parent: %v", err)
	}
	child, err := c.CreateFolder(ctx, "child", &parent.ID)
	if err != nil {
		t.Fatalf("failed to create child: %v", err)
	}
	if child.Path != "parent/child" {
		t.Errorf("child path = %q, want parent/child", child.Path)
	}

	if err := c.DeleteFolder(ctx, parent.ID); !errors.Is(err, ErrFolderNotEmpty) {
		t.Errorf("deleting parent with child: error = %v, want ErrFolderNotEmpty", err)
	}

	createTestAsset(t, c, NewAsset{FolderID: &child.ID})
	if err := c.DeleteFolder(ctx, child.ID); !errors.Is(err, ErrFolderNotEmpty) {
		t.Errorf("deleting folder with asset: error = %v, want ErrFolderNotEmpty", err)
	}

	empty, err := c.CreateFolder(ctx, "empty", nil)
	if err != nil {
		t.Fatalf("failed to create empty folder: %v", err)
	}
	if err := c.DeleteFolder(ctx, empty.ID); err != nil {
		t.Errorf("failed to delete empty folder: %v", err)
	}
	if err := c.DeleteFolder(ctx, empty.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete error = %v, want ErrNotFound", err)
	}
}

func TestTags(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	ctx := context.Background()

	a := createTestAsset(t, c, NewAsset{Filename: "a.jpg", StoredName: "a.jpg"})
	b := createTestAsset(t, c, NewAsset{Filename: "b.jpg", StoredName: "b.jpg"})

	got, err := c.SetAssetTags(ctx, a, []string{"zebra", "alpha", "alpha", " ", "mid"})
	if err != nil {
		t.Fatalf("failed to set tags: %v", err)
	}
	if len(got) != 3 || got[0] != "alpha" || got[1] != "mid" || got[2] != "zebra" {
		t.Errorf("tags = %v, want sorted deduplicated [alpha mid zebra]", got)
	}

	if _, err := c.SetAssetTags(ctx, b, []string{"alpha"}); err != nil {
		t.Fatalf("failed to tag second asset: %v", err)
	}

	counts, err := c.ListTags(ctx)
	if err != nil {
		t.Fatalf("failed to list tags: %v", err)
	}
	want := map[string]int{"alpha": 2, "mid": 1, "zebra": 1}
	if len(counts) != len(want) {
		t.Fatalf("tag count entries = %d, want %d", len(counts), len(want))
	}
	for _, tc := range counts {
		if want[tc.Name] != tc.Count {
			t.Errorf("tag %q count = %d, want %d", tc.Name, tc.Count, want[tc.Name])
		}
	}

	// Replacement drops the old associations.
	if _, err := c.SetAssetTags(ctx, a, []string{"new"}); err != nil {
		t.Fatalf("failed to replace tags: %v", err)
	}
	asset, err := c.GetAsset(ctx, a)
	if err != nil {
		t.Fatalf("failed to reload asset: %v", err)
	}
	if len(asset.Tags) != 1 || asset.Tags[0] != "new" {
		t.Errorf("tags after replace = %v, want [new]", asset.Tags)
	}
}

func TestNormalizeTags(t *testing.T) {
	t.Parallel()

	got := NormalizeTags(" beach , , holiday,beach ,")
	if len(got) != 3 || got[0] != "beach" || got[1] != "holiday" || got[2] != "beach" {
		t.Errorf("NormalizeTags = %v", got)
	}
	if got := NormalizeTags(""); len(got) != 0 {
		t.Errorf("NormalizeTags(\"\") = %v, want empty", got)
	}
}

func TestAnnotations(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	ctx := context.Background()

	id := createTestAsset(t, c, NewAsset{})

	if _, err := c.CreateAnnotation(ctx, 9999, "text", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("annotating missing asset: error = %v, want ErrNotFound", err)
	}

	first, err := c.CreateAnnotation(ctx, id, "", map[string]any{"text": "Boat"})
	if err != nil {
		t.Fatalf("failed to create annotation: %v", err)
	}
	if first.Kind != "text" {
		t.Errorf("empty kind defaulted to %q, want text", first.Kind)
	}
	if _, err := c.CreateAnnotation(ctx, id, "box", map[string]any{"text": "boat", "x": 1.0}); err != nil {
		t.Fatalf("failed to create second annotation: %v", err)
	}

	list, err := c.ListAnnotations(ctx, id)
	if err != nil {
		t.Fatalf("failed to list annotations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("annotation count = %d, want 2", len(list))
	}

	counts, err := c.CountAnnotationTexts(ctx)
	if err != nil {
		t.Fatalf("failed to count annotation texts: %v", err)
	}
	if len(counts) != 1 || counts[0].Text != "boat" || counts[0].Count != 2 {
		t.Errorf("annotation counts = %v, want boat x2 (case folded)", counts)
	}

	if err := c.DeleteAnnotation(ctx, first.ID); err != nil {
		t.Fatalf("failed to delete annotation: %v", err)
	}
	list, err = c.ListAnnotations(ctx, id)
	if err != nil {
		t.Fatalf("failed to re-list annotations: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("annotation count after delete = %d, want 1", len(list))
	}
}

func TestSmartFolders(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	ctx := context.Background()

	query := AssetQuery{MediaType: mediatypes.KindImage, Tags: []string{"beach"}, MinWidth: intPtr(800)}
	created, err := c.CreateSmartFolder(ctx, "big beach photos", query)
	if err != nil {
		t.Fatalf("failed to create smart folder: %v", err)
	}

	loaded, err := c.GetSmartFolder(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to load smart folder: %v", err)
	}
	if loaded.Query.MediaType != mediatypes.KindImage {
		t.Errorf("query media type = %q, want image", loaded.Query.MediaType)
	}
	if len(loaded.Query.Tags) != 1 || loaded.Query.Tags[0] != "beach" {
		t.Errorf("query tags = %v, want [beach]", loaded.Query.Tags)
	}
	if loaded.Query.MinWidth == nil || *loaded.Query.MinWidth != 800 {
		t.Errorf("query min width = %v, want 800", loaded.Query.MinWidth)
	}

	if _, err := c.GetSmartFolder(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing smart folder error = %v, want ErrNotFound", err)
	}
	if _, err := c.CreateSmartFolder(ctx, "  ", query); err == nil {
		t.Error("blank name accepted, want error")
	}

	all, err := c.ListSmartFolders(ctx)
	if err != nil {
		t.Fatalf("failed to list smart folders: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("smart folder count = %d, want 1", len(all))
	}
}
