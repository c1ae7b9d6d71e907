// Package probe wraps the external ffprobe/ffmpeg binaries behind small
// collaborator interfaces so extraction strategies stay testable without
// invoking real tools. Tool absence is a distinct, non-fatal condition.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"meagle/internal/logging"
)

// ErrUnavailable indicates the external binary is not installed. Callers
// treat this the same as a probe failure: metadata and previews degrade,
// the surrounding request continues.
var ErrUnavailable = errors.New("external tool not available")

// DefaultTimeout bounds a single external tool invocation.
const DefaultTimeout = 30 * time.Second

// VideoMeta holds the subset of stream/container metadata the pipeline
// consumes. Zero Width/Height and nil Duration are valid outcomes: the
// probe succeeded but the container did not report those fields.
type VideoMeta struct {
	Width    int
	Height   int
	Duration *float64 // seconds
}

// Prober reads stream dimensions and container duration from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*VideoMeta, error)
}

// FrameExtractor writes a single scaled video frame as a JPEG to dst.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, src, dst string) error
}

// FFProber probes files with ffprobe.
type FFProber struct {
	Timeout time.Duration
}

// FFMpegExtractor grabs frames with ffmpeg.
type FFMpegExtractor struct {
	Timeout time.Duration
}

// NewFFProber returns a Prober backed by the ffprobe binary.
func NewFFProber(timeout time.Duration) *FFProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FFProber{Timeout: timeout}
}

// NewFFMpegExtractor returns a FrameExtractor backed by the ffmpeg binary.
func NewFFMpegExtractor(timeout time.Duration) *FFMpegExtractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FFMpegExtractor{Timeout: timeout}
}

type ffprobeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe against path and returns the first video stream's
// dimensions plus the container duration. Returns ErrUnavailable when
// ffprobe is not installed.
func (p *FFProber) Probe(ctx context.Context, path string) (*VideoMeta, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (*VideoMeta, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	meta := &VideoMeta{}
	if len(out.Streams) > 0 {
		meta.Width = out.Streams[0].Width
		meta.Height = out.Streams[0].Height
	}
	if out.Format.Duration != "" {
		if seconds, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			meta.Duration = &seconds
		}
	}
	return meta, nil
}

// ExtractFrame grabs the frame at the 1-second mark of src, scaled so the
// larger dimension is at most 1280, and writes it to dst. Returns
// ErrUnavailable when ffmpeg is not installed.
func (e *FFMpegExtractor) ExtractFrame(ctx context.Context, src, dst string) error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", "00:00:01",
		"-i", src,
		"-frames:v", "1",
		"-vf", "scale='min(1280,iw)':-2",
		dst,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logging.Debug("ffmpeg frame extraction failed for %s: %v, stderr: %s", src, err, stderr.String())
		return fmt.Errorf("ffmpeg error: %w", err)
	}
	return nil
}
