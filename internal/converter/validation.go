package converter

import (
	"bytes"
	"image"

	"gitlab.com/tozd/go/errors"
)

var (
	// ErrInvalidImageDimensions is returned when a decoded image has no pixels
	ErrInvalidImageDimensions = errors.New("invalid image dimensions")
	// ErrImageTooLarge is returned when image dimensions exceed limits
	ErrImageTooLarge = errors.New("image dimensions exceed maximum allowed")
)

// Validation limits
const (
	MaxImageWidth  = 20000       // 20K pixels max width
	MaxImageHeight = 20000       // 20K pixels max height
	MaxImagePixels = 250_000_000 // 250 megapixels max total pixels
)

// heifBrands lists the ftyp major brands written by HEIF/HEIC producers.
var heifBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("heim"), []byte("heis"),
	[]byte("hevc"), []byte("hevx"), []byte("hevm"), []byte("hevs"),
	[]byte("mif1"), []byte("msf1"),
}

// ValidateImage checks decoded image dimensions are within acceptable limits
func ValidateImage(img image.Image) error {
	if img == nil {
		return ErrInvalidHEIF
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= 0 || height <= 0 {
		return errors.Errorf("%w: %dx%d", ErrInvalidImageDimensions, width, height)
	}

	if width > MaxImageWidth || height > MaxImageHeight {
		return errors.Errorf("%w: %dx%d (max %dx%d)", ErrImageTooLarge, width, height, MaxImageWidth, MaxImageHeight)
	}

	// Decompression bombs usually pass the per-axis check.
	if total := int64(width) * int64(height); total > MaxImagePixels {
		return errors.Errorf("%w: %d pixels (max %d)", ErrImageTooLarge, total, MaxImagePixels)
	}

	return nil
}

// IsHEIFMagic reports whether data starts with an ISOBMFF ftyp box whose
// major brand belongs to the HEIF family.
func IsHEIFMagic(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	brand := data[8:12]
	for _, b := range heifBrands {
		if bytes.Equal(brand, b) {
			return true
		}
	}
	return false
}
