package media

import (
	"context"
	"image"
	"os"
	"path/filepath"

	"meagle/internal/logging"
	"meagle/internal/mediatypes"
	"meagle/internal/palette"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

// imageExtractor handles still images. Most formats are directly
// servable and get no preview; HEIC needs the native decoder and a side
// JPEG since browsers cannot render it.
type imageExtractor struct {
	native bool
}

func (e *imageExtractor) Extract(_ context.Context, path string) Derived {
	if mediatypes.Ext(path) == "heic" {
		return e.extractHeic(path)
	}

	img, err := openImage(path)
	if err != nil {
		logging.Warn("failed to decode image %s: %v", filepath.Base(path), err)
		return Derived{}
	}

	bounds := img.Bounds()
	return Derived{
		Width:  intPtr(bounds.Dx()),
		Height: intPtr(bounds.Dy()),
		Colors: palette.Extract(img),
	}
}

func (e *imageExtractor) extractHeic(path string) Derived {
	if !e.native {
		logging.Warn("skipping HEIC decode for %s: native decoder not available", filepath.Base(path))
		return Derived{}
	}

	img, origW, origH, err := loadNative(path)
	if err != nil {
		logging.Warn("failed to decode HEIC %s: %v", filepath.Base(path), err)
		return Derived{}
	}

	return Derived{
		Width:   intPtr(origW),
		Height:  intPtr(origH),
		Colors:  palette.Extract(img),
		Preview: img,
	}
}

// gifExtractor reads first-frame dimensions and a palette; the original
// GIF is always served directly so no preview is produced.
type gifExtractor struct{}

func (gifExtractor) Extract(_ context.Context, path string) Derived {
	img, err := openImage(path)
	if err != nil {
		logging.Warn("failed to decode gif %s: %v", filepath.Base(path), err)
		return Derived{}
	}

	bounds := img.Bounds()
	return Derived{
		Width:  intPtr(bounds.Dx()),
		Height: intPtr(bounds.Dy()),
		Colors: palette.Extract(img),
	}
}

// rawExtractor demosaics camera-RAW files through the native decoder and
// always produces a capped JPEG preview, since RAW is never directly
// displayable.
type rawExtractor struct {
	native bool
}

func (e *rawExtractor) Extract(_ context.Context, path string) Derived {
	if !e.native {
		logging.Warn("skipping RAW decode for %s: native decoder not available", filepath.Base(path))
		return Derived{}
	}

	img, origW, origH, err := loadNative(path)
	if err != nil {
		logging.Warn("failed to decode RAW %s: %v", filepath.Base(path), err)
		return Derived{}
	}

	return Derived{
		Width:   intPtr(origW),
		Height:  intPtr(origH),
		Colors:  palette.Extract(img),
		Preview: img,
	}
}

// openImage decodes an image file, trying imaging first (which applies
// EXIF auto-orientation) and falling back to the registered stdlib
// decoders.
func openImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	logging.Debug("imaging.Open failed for %s: %v, trying stdlib decode", filepath.Base(path), err)

	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, openErr
	}
	defer file.Close()

	img, format, decodeErr := image.Decode(file)
	if decodeErr != nil {
		return nil, err
	}
	logging.Debug("decoded image format %s for %s", format, filepath.Base(path))
	return img, nil
}
