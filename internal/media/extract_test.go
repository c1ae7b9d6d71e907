package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"meagle/internal/mediatypes"
	"meagle/internal/probe"
)

// fakeProber returns canned metadata without invoking ffprobe.
type fakeProber struct {
	meta *probe.VideoMeta
	err  error
}

func (f *fakeProber) Probe(context.Context, string) (*probe.VideoMeta, error) {
	return f.meta, f.err
}

// fakeFrameExtractor writes a tiny JPEG to dst, standing in for ffmpeg.
type fakeFrameExtractor struct {
	err   error
	calls int
}

func (f *fakeFrameExtractor) ExtractFrame(_ context.Context, _, dst string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	return jpeg.Encode(out, img, nil)
}

func writeTestPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return path
}

func newTestPipeline(prober probe.Prober, frames probe.FrameExtractor) *Pipeline {
	return NewPipeline(prober, frames, false)
}

func TestDurationMillis(t *testing.T) {
	t.Parallel()

	seconds := 12.345
	got := durationMillis(&seconds)
	if got == nil || *got != 12345 {
		t.Errorf("durationMillis(12.345) = %v, want 12345", got)
	}

	if got := durationMillis(nil); got != nil {
		t.Errorf("durationMillis(nil) = %v, want nil", *got)
	}

	zero := 0.0
	if got := durationMillis(&zero); got == nil || *got != 0 {
		t.Errorf("durationMillis(0) should be 0 ms, got %v", got)
	}
}

func TestImageExtraction(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeTestPNG(t, dir, "photo.png", 40, 30)

	p := newTestPipeline(&fakeProber{}, &fakeFrameExtractor{})
	d := p.Extract(context.Background(), mediatypes.KindImage, path)

	if d.Width == nil || *d.Width != 40 {
		t.Errorf("width = %v, want 40", d.Width)
	}
	if d.Height == nil || *d.Height != 30 {
		t.Errorf("height = %v, want 30", d.Height)
	}
	if len(d.Colors) != 1 || d.Colors[0] != "#336699" {
		t.Errorf("colors = %v, want [#336699]", d.Colors)
	}
	if d.Preview != nil {
		t.Error("directly servable image must not produce a preview")
	}
	if d.DurationMs != nil {
		t.Errorf("image duration = %v, want nil", *d.DurationMs)
	}
}

func TestImageExtractionDegradesOnCorruptFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(path, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(&fakeProber{}, &fakeFrameExtractor{})
	d := p.Extract(context.Background(), mediatypes.KindImage, path)

	if d.Width != nil || d.Height != nil || len(d.Colors) != 0 || d.Preview != nil {
		t.Errorf("corrupt image should degrade to empty result, got %+v", d)
	}
}

func TestHeicWithoutNativeDecoder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "photo.heic")
	if err := os.WriteFile(path, []byte("heic bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(&fakeProber{}, &fakeFrameExtractor{})
	d := p.Extract(context.Background(), mediatypes.KindImage, path)

	if d.Width != nil || d.Preview != nil {
		t.Errorf("HEIC without native decoder should degrade, got %+v", d)
	}
}

func TestRawWithoutNativeDecoder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "shot.dng")
	if err := os.WriteFile(path, []byte("raw bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(&fakeProber{}, &fakeFrameExtractor{})
	d := p.Extract(context.Background(), mediatypes.KindRaw, path)

	if d.Width != nil || d.Preview != nil || len(d.Colors) != 0 {
		t.Errorf("RAW without native decoder should degrade, got %+v", d)
	}
}

func TestVideoExtraction(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("fake video"), 0o644); err != nil {
		t.Fatal(err)
	}

	seconds := 12.345
	prober := &fakeProber{meta: &probe.VideoMeta{Width: 1920, Height: 1080, Duration: &seconds}}
	frames := &fakeFrameExtractor{}

	p := newTestPipeline(prober, frames)
	d := p.Extract(context.Background(), mediatypes.KindVideo, path)

	if d.Width == nil || *d.Width != 1920 {
		t.Errorf("width = %v, want 1920", d.Width)
	}
	if d.Height == nil || *d.Height != 1080 {
		t.Errorf("height = %v, want 1080", d.Height)
	}
	if d.DurationMs == nil || *d.DurationMs != 12345 {
		t.Errorf("duration = %v, want 12345", d.DurationMs)
	}
	if d.Preview == nil {
		t.Error("expected a frame preview")
	}
	if frames.calls != 1 {
		t.Errorf("frame extractor called %d times, want 1", frames.calls)
	}
}

func TestVideoExtractionToolsUnavailable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("fake video"), 0o644); err != nil {
		t.Fatal(err)
	}

	prober := &fakeProber{err: probe.ErrUnavailable}
	frames := &fakeFrameExtractor{err: probe.ErrUnavailable}

	p := newTestPipeline(prober, frames)
	d := p.Extract(context.Background(), mediatypes.KindVideo, path)

	if d.Width != nil || d.Height != nil || d.DurationMs != nil || d.Preview != nil {
		t.Errorf("missing tools should degrade everything to nil, got %+v", d)
	}
}

func TestVideoProbeWithoutDuration(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("fake video"), 0o644); err != nil {
		t.Fatal(err)
	}

	prober := &fakeProber{meta: &probe.VideoMeta{Width: 640, Height: 480}}
	p := newTestPipeline(prober, &fakeFrameExtractor{err: probe.ErrUnavailable})
	d := p.Extract(context.Background(), mediatypes.KindVideo, path)

	if d.DurationMs != nil {
		t.Errorf("missing probe duration must stay nil, got %v", *d.DurationMs)
	}
	if d.Width == nil || *d.Width != 640 {
		t.Errorf("width = %v, want 640", d.Width)
	}
}

func TestAudioAndFileExtractNothing(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(&fakeProber{}, &fakeFrameExtractor{})
	for _, kind := range []mediatypes.Kind{mediatypes.KindAudio, mediatypes.KindFile} {
		d := p.Extract(context.Background(), kind, "/nonexistent")
		if d.Width != nil || d.Height != nil || d.DurationMs != nil || len(d.Colors) != 0 || d.Preview != nil {
			t.Errorf("kind %s should extract nothing, got %+v", kind, d)
		}
	}
}

func TestEncodePreviewCapsDimensions(t *testing.T) {
	t.Parallel()

	big := image.NewNRGBA(image.Rect(0, 0, 3200, 1600))
	data, err := EncodePreview(big)
	if err != nil {
		t.Fatalf("EncodePreview failed: %v", err)
	}

	cfg, format, err := decodeConfig(t, data)
	if err != nil {
		t.Fatalf("failed to decode preview: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("preview format = %s, want jpeg", format)
	}
	if cfg.Width > PreviewMaxDim || cfg.Height > PreviewMaxDim {
		t.Errorf("preview %dx%d exceeds %d cap", cfg.Width, cfg.Height, PreviewMaxDim)
	}
	// Aspect ratio of 2:1 preserved.
	if cfg.Width != 1600 || cfg.Height != 800 {
		t.Errorf("preview = %dx%d, want 1600x800", cfg.Width, cfg.Height)
	}
}

func TestEncodePreviewDoesNotUpscale(t *testing.T) {
	t.Parallel()

	small := image.NewNRGBA(image.Rect(0, 0, 120, 80))
	data, err := EncodePreview(small)
	if err != nil {
		t.Fatalf("EncodePreview failed: %v", err)
	}

	cfg, _, err := decodeConfig(t, data)
	if err != nil {
		t.Fatalf("failed to decode preview: %v", err)
	}
	if cfg.Width != 120 || cfg.Height != 80 {
		t.Errorf("preview = %dx%d, want unchanged 120x80", cfg.Width, cfg.Height)
	}
}

func TestEncodePreviewNilImage(t *testing.T) {
	t.Parallel()

	if _, err := EncodePreview(nil); err == nil {
		t.Error("expected error for nil image")
	}
}

func decodeConfig(t *testing.T, data []byte) (image.Config, string, error) {
	t.Helper()
	return image.DecodeConfig(bytes.NewReader(data))
}
