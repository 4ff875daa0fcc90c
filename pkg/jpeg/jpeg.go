// Package jpeg encodes baseline JPEG. cgo builds use libjpeg with Huffman
// table optimisation; CGO_ENABLED=0 or purego builds fall back to the
// standard library encoder, which always writes the standard tables.
package jpeg

import (
	"image"
	"io"

	"gitlab.com/tozd/go/errors"
)

const (
	minQuality = 1
	maxQuality = 100
)

// ErrEmptyImage is returned for images with no pixels.
var ErrEmptyImage = errors.New("jpeg: empty image")

// Encode writes img to w as JPEG at the given quality. Quality is clamped to
// [1, 100]. Any alpha channel is ignored.
func Encode(w io.Writer, img image.Image, quality int) error {
	if img == nil || img.Bounds().Empty() {
		return ErrEmptyImage
	}
	return encode(w, img, clampQuality(quality))
}

// Optimized reports whether this build writes optimised Huffman tables.
func Optimized() bool {
	return optimized
}

func clampQuality(q int) int {
	if q < minQuality {
		return minQuality
	}
	if q > maxQuality {
		return maxQuality
	}
	return q
}
