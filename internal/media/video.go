package media

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"

	"meagle/internal/logging"
	"meagle/internal/probe"

	"github.com/disintegration/imaging"
)

// videoExtractor probes stream dimensions and container duration with
// ffprobe and grabs a single scaled frame with ffmpeg. Both tools are
// advisory: absence or failure leaves the corresponding fields empty.
type videoExtractor struct {
	prober probe.Prober
	frames probe.FrameExtractor
}

func (e *videoExtractor) Extract(ctx context.Context, path string) Derived {
	var d Derived

	meta, err := e.prober.Probe(ctx, path)
	if err != nil {
		if errors.Is(err, probe.ErrUnavailable) {
			logging.Debug("ffprobe not available, skipping metadata for %s", filepath.Base(path))
		} else {
			logging.Warn("ffprobe failed for %s: %v", filepath.Base(path), err)
		}
	} else if meta != nil {
		if meta.Width > 0 {
			d.Width = intPtr(meta.Width)
		}
		if meta.Height > 0 {
			d.Height = intPtr(meta.Height)
		}
		d.DurationMs = durationMillis(meta.Duration)
	}

	d.Preview = e.extractFrame(ctx, path)
	return d
}

func (e *videoExtractor) extractFrame(ctx context.Context, path string) image.Image {
	tmp, err := os.CreateTemp("", "frame-*.jpg")
	if err != nil {
		logging.Warn("failed to create temp file for frame extraction: %v", err)
		return nil
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		logging.Warn("failed to close temp file %s: %v", tmpPath, err)
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove temp frame %s: %v", tmpPath, err)
		}
	}()

	if err := e.frames.ExtractFrame(ctx, path, tmpPath); err != nil {
		if errors.Is(err, probe.ErrUnavailable) {
			logging.Debug("ffmpeg not available, skipping frame for %s", filepath.Base(path))
		} else {
			logging.Warn("frame extraction failed for %s: %v", filepath.Base(path), err)
		}
		return nil
	}

	img, err := imaging.Open(tmpPath)
	if err != nil {
		logging.Warn("failed to decode extracted frame for %s: %v", filepath.Base(path), err)
		return nil
	}
	return img
}
