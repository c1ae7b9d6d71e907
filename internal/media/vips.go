package media

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"meagle/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes libvips, the native decoder used for HEIC and
// camera-RAW files. Call once at startup; strategies receive the resulting
// capability via NativeDecodeAvailable rather than probing per call.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vips.LogLevelWarning)

	// Conservative memory settings: uploads decode one image at a time.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// NativeDecodeAvailable reports whether the native decoder capability is
// present. When false, HEIC previews are skipped and RAW extraction
// degrades to empty metadata.
func NativeDecodeAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// loadNative decodes path with libvips, shrinking at decode time to fit
// within PreviewMaxDim when the source is larger. It returns the decoded
// image together with the source's original dimensions, which callers
// persist as asset metadata.
func loadNative(path string) (image.Image, int, int, error) {
	if !NativeDecodeAvailable() {
		return nil, 0, 0, fmt.Errorf("native decoder not available")
	}

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, 0, 0, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	origW := ref.Width()
	origH := ref.Height()

	// Decode-time shrinking keeps memory bounded for large RAW frames;
	// the preview is capped to PreviewMaxDim anyway.
	if origW > PreviewMaxDim || origH > PreviewMaxDim {
		if err := ref.Thumbnail(PreviewMaxDim, PreviewMaxDim, vips.InterestingNone); err != nil {
			return nil, 0, 0, fmt.Errorf("vips resize failed: %w", err)
		}
	}

	imgBytes, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode vips output: %w", err)
	}

	return img, origW, origH, nil
}
