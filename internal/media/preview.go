package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
)

const previewJPEGQuality = 90

// EncodePreview renders img as a JPEG capped to fit within a
// PreviewMaxDim square, preserving aspect ratio. Images already within
// the cap are not upscaled.
func EncodePreview(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("nil preview image")
	}

	bounds := img.Bounds()
	if bounds.Dx() > PreviewMaxDim || bounds.Dy() > PreviewMaxDim {
		img = imaging.Fit(img, PreviewMaxDim, PreviewMaxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: previewJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
