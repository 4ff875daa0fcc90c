// Package convertertest provides a fake HEIF decoder and synthetic rasters so
// packages built on the converter can be tested without HEIC fixtures.
package convertertest

import (
	"bytes"
	"image"
	"image/color"

	"gitlab.com/tozd/go/errors"

	"github.com/harliandi/heicconv/internal/converter"
)

// Magic prefixes every payload the fake decoder accepts.
var Magic = []byte("FAKEHEIC")

// ErrNotFake is returned for payloads without Magic.
var ErrNotFake = errors.New("fake decoder: not a heic payload")

// Decoder returns Image for any payload starting with Magic.
type Decoder struct {
	Image image.Image
}

func (d Decoder) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, converter.ErrEmptyInput
	}
	if !bytes.HasPrefix(data, Magic) {
		return nil, ErrNotFake
	}
	return d.Image, nil
}

// Payload returns bytes the fake decoder accepts.
func Payload() []byte {
	return append(append([]byte(nil), Magic...), []byte("....payload....")...)
}

// NewConverter returns a converter that decodes with a fake Decoder for img.
func NewConverter(img image.Image) *converter.Converter {
	return converter.New(converter.WithDecoder(Decoder{Image: img}))
}

// Gradient returns an opaque YCbCr 4:2:0 image, the layout HEIC photos decode to.
func Gradient(w, h int) *image.YCbCr {
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Y[img.YOffset(x, y)] = uint8((x * 255) / max(w-1, 1))
		}
	}
	for i := range img.Cb {
		img.Cb[i] = 128
		img.Cr[i] = 128
	}
	return img
}

// HalfTransparent returns an NRGBA image whose left half is fully
// transparent and whose right half is opaque fill.
func HalfTransparent(w, h int, fill color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	return img
}

// Gray returns a uniform grayscale image.
func Gray(w, h int, level uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return img
}

// PalettedWithTransparency returns a paletted image whose left half uses a
// fully transparent palette entry and whose right half uses opaque fill.
func PalettedWithTransparency(w, h int, fill color.RGBA) *image.Paletted {
	pal := color.Palette{color.RGBA{0, 0, 0, 0}, fill}
	img := image.NewPaletted(image.Rect(0, 0, w, h), pal)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.SetColorIndex(x, y, 1)
		}
	}
	return img
}
