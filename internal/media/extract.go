// Package media implements the per-kind metadata and preview extraction
// strategies of the derivative pipeline. Strategies never fail the
// surrounding ingestion: malformed input degrades to nil metadata, an
// empty palette, and no preview.
package media

import (
	"context"
	"image"

	"meagle/internal/mediatypes"
	"meagle/internal/metrics"
	"meagle/internal/probe"
	"meagle/internal/workers"
)

// PreviewMaxDim caps generated preview JPEGs to fit within a
// PreviewMaxDim square while preserving aspect ratio.
const PreviewMaxDim = 1600

// Derived is the uniform result of a strategy run. Nil pointer fields
// mean extraction was not applicable or failed; a nil Preview means no
// side JPEG should be written.
type Derived struct {
	Width      *int
	Height     *int
	DurationMs *int64
	Colors     []string
	Preview    image.Image
}

// Extractor is a metadata/preview strategy for one media kind. Extract
// never returns an error: failures are logged and yield a partial or
// empty Derived.
type Extractor interface {
	Extract(ctx context.Context, path string) Derived
}

// Pipeline dispatches extraction to the strategy for an asset's kind and
// bounds concurrent CPU-heavy decode work so long-running RAW or video
// extraction cannot stall blob delivery.
type Pipeline struct {
	nativeDecode bool
	prober       probe.Prober
	frames       probe.FrameExtractor
	sem          chan struct{}
}

// NewPipeline builds a Pipeline. nativeDecode is the process-wide
// capability flag for the libvips decoder, resolved once at startup.
func NewPipeline(prober probe.Prober, frames probe.FrameExtractor, nativeDecode bool) *Pipeline {
	return &Pipeline{
		nativeDecode: nativeDecode,
		prober:       prober,
		frames:       frames,
		sem:          make(chan struct{}, workers.ForCPU(8)),
	}
}

// Extract runs the strategy for kind against the blob at path.
func (p *Pipeline) Extract(ctx context.Context, kind mediatypes.Kind, path string) Derived {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return Derived{}
	}

	d := p.extractorFor(kind).Extract(ctx, path)
	metrics.ExtractionsTotal.WithLabelValues(string(kind), extractionStatus(d)).Inc()
	return d
}

// RawExtractor returns the RAW strategy used for lazy preview
// regeneration by the derivative store.
func (p *Pipeline) RawExtractor() Extractor {
	return &rawExtractor{native: p.nativeDecode}
}

func (p *Pipeline) extractorFor(kind mediatypes.Kind) Extractor {
	switch kind {
	case mediatypes.KindImage:
		return &imageExtractor{native: p.nativeDecode}
	case mediatypes.KindGif:
		return &gifExtractor{}
	case mediatypes.KindRaw:
		return &rawExtractor{native: p.nativeDecode}
	case mediatypes.KindVideo:
		return &videoExtractor{prober: p.prober, frames: p.frames}
	default:
		return nullExtractor{}
	}
}

func extractionStatus(d Derived) string {
	if d.Width != nil || d.Height != nil || d.DurationMs != nil || d.Preview != nil {
		return "success"
	}
	return "degraded"
}

func intPtr(v int) *int { return &v }

// durationMillis converts probed seconds to truncated milliseconds.
// A nil input stays nil rather than becoming zero.
func durationMillis(seconds *float64) *int64 {
	if seconds == nil {
		return nil
	}
	ms := int64(*seconds * 1000)
	return &ms
}

// nullExtractor is the audio/file strategy: nothing to derive.
type nullExtractor struct{}

func (nullExtractor) Extract(context.Context, string) Derived {
	return Derived{}
}
