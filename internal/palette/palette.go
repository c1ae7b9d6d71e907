// Package palette extracts dominant colors from decoded images for
// color-based search. Colors are sampled from a small downsampled render
// so extraction cost is independent of the source image size.
package palette

import (
	"fmt"
	"image"
	"math"
	"sort"
	"strconv"

	"github.com/disintegration/imaging"
)

const (
	// MaxColors is the maximum number of palette entries returned.
	MaxColors = 5

	// sampleSize bounds the downsampled render used for the histogram.
	sampleSize = 64
)

// Extract returns up to MaxColors dominant colors of img as lowercase
// "#rrggbb" strings, ranked by descending pixel frequency in a 64x64
// aspect-preserving downsample. Equal counts are ordered by ascending
// packed RGB value so output is stable across runs. A zero-pixel image
// yields an empty slice.
func Extract(img image.Image) []string {
	if img == nil {
		return nil
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil
	}

	small := imaging.Fit(img, sampleSize, sampleSize, imaging.Lanczos)

	counts := make(map[uint32]int)
	b := small.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := small.At(x, y).RGBA()
			packed := (r>>8)<<16 | (g>>8)<<8 | bl>>8
			counts[packed]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	type entry struct {
		rgb   uint32
		count int
	}
	entries := make([]entry, 0, len(counts))
	for rgb, count := range counts {
		entries = append(entries, entry{rgb, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].rgb < entries[j].rgb
	})

	n := len(entries)
	if n > MaxColors {
		n = MaxColors
	}
	colors := make([]string, 0, n)
	for _, e := range entries[:n] {
		colors = append(colors, fmt.Sprintf("#%06x", e.rgb))
	}
	return colors
}

// RGB is a parsed 8-bit-per-channel color.
type RGB struct {
	R, G, B int
}

// ParseHex parses a "#rrggbb" or "rrggbb" string. Returns false on any
// malformed input.
func ParseHex(value string) (RGB, bool) {
	if len(value) > 0 && value[0] == '#' {
		value = value[1:]
	}
	if len(value) != 6 {
		return RGB{}, false
	}
	v, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{
		R: int(v >> 16 & 0xff),
		G: int(v >> 8 & 0xff),
		B: int(v & 0xff),
	}, true
}

// Distance returns the Euclidean distance between two colors in RGB space.
func Distance(a, b RGB) float64 {
	dr := float64(a.R - b.R)
	dg := float64(a.G - b.G)
	db := float64(a.B - b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// Matches reports whether any color in colors is within threshold of the
// target hex color. A malformed target never matches.
func Matches(colors []string, target string, threshold float64) bool {
	want, ok := ParseHex(target)
	if !ok {
		return false
	}
	for _, c := range colors {
		got, ok := ParseHex(c)
		if !ok {
			continue
		}
		if Distance(got, want) <= threshold {
			return true
		}
	}
	return false
}
