package converter

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// PixelMode classifies a decoded image by its channel layout.
type PixelMode int

const (
	ModeGray PixelMode = iota
	ModePaletted
	ModeRGB
	ModeRGBA
)

func (m PixelMode) String() string {
	switch m {
	case ModeGray:
		return "gray"
	case ModePaletted:
		return "paletted"
	case ModeRGB:
		return "rgb"
	default:
		return "rgba"
	}
}

// ModeOf reports the pixel mode of img. Types with an alpha channel, and any
// type not listed, are treated as RGBA so transparency is never dropped
// silently.
func ModeOf(img image.Image) PixelMode {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return ModeGray
	case *image.Paletted:
		return ModePaletted
	case *image.YCbCr, *image.CMYK:
		return ModeRGB
	default:
		return ModeRGBA
	}
}

// Normalize converts img into a layout the target format can encode.
//
// JPEG has no alpha, so transparent and paletted images are composited onto
// white and grayscale is promoted to RGB. WebP keeps alpha; grayscale and
// paletted images are expanded to NRGBA. Images already in a compatible
// layout are returned unchanged.
func Normalize(img image.Image, f Format) image.Image {
	mode := ModeOf(img)

	if f == FormatWebP {
		if mode == ModeRGB || mode == ModeRGBA {
			return img
		}
		return imaging.Clone(img)
	}

	switch mode {
	case ModeRGB:
		return img
	case ModeGray:
		return toRGB(img)
	case ModePaletted:
		// Palette entries may carry alpha; expand first so the composite
		// sees it per pixel.
		return flatten(imaging.Clone(img), color.White)
	default:
		return flatten(img, color.White)
	}
}

// flatten composites src over an opaque background of colour bg.
func flatten(src image.Image, bg color.Color) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}

func toRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

// toNRGBA returns img as straight-alpha NRGBA, copying only when needed.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	return imaging.Clone(img)
}
