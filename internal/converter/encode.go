package converter

import (
	"image"
	"io"

	webp "github.com/chai2010/webp"
	"gitlab.com/tozd/go/errors"

	"github.com/harliandi/heicconv/pkg/jpeg"
)

// Encoder writes a normalized image in the format named by opts.
type Encoder interface {
	Encode(w io.Writer, img image.Image, opts Options) error
}

// StdEncoder encodes JPEG through pkg/jpeg and WebP through libwebp.
type StdEncoder struct{}

func (StdEncoder) Encode(w io.Writer, img image.Image, opts Options) error {
	if opts.Format == FormatWebP {
		return encodeWebP(w, img, opts.Quality)
	}
	return jpeg.Encode(w, img, opts.Quality)
}

func encodeWebP(w io.Writer, img image.Image, quality int) error {
	// libwebp expects straight alpha in RGBA byte order. The NRGBA pixels are
	// handed over as-is; wrapping them in image.RGBA keeps chai2010 from
	// converting through premultiplied colour.
	n := toNRGBA(img)
	straight := &image.RGBA{Pix: n.Pix, Stride: n.Stride, Rect: n.Rect}

	if err := webp.Encode(w, straight, &webp.Options{Quality: float32(quality)}); err != nil {
		return errors.Errorf("webp encode failed: %w", err)
	}
	return nil
}

// encodeToBytes runs enc through a pooled buffer and returns an owned copy.
func encodeToBytes(enc Encoder, img image.Image, opts Options) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	if err := enc.Encode(buf, img, opts); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, errors.Errorf("%s encoder produced no output", opts.Format)
	}
	return detach(buf), nil
}
