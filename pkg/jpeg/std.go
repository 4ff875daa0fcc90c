//go:build !cgo || purego

package jpeg

import (
	"image"
	"image/jpeg"
	"io"

	"gitlab.com/tozd/go/errors"
)

const optimized = false

func encode(w io.Writer, img image.Image, quality int) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return errors.Errorf("jpeg encode failed: %w", err)
	}
	return nil
}
