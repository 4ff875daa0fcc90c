package converter

import (
	"bytes"
	"fmt"
	"image"

	"github.com/adrium/goheif"
	"gitlab.com/tozd/go/errors"
)

// Decoder turns encoded HEIF bytes into a raster image.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// DecoderFunc adapts a plain function to the Decoder interface.
type DecoderFunc func(data []byte) (image.Image, error)

func (f DecoderFunc) Decode(data []byte) (image.Image, error) {
	return f(data)
}

// HEIFDecoder decodes HEIF/HEIC containers with goheif.
type HEIFDecoder struct{}

// Decode rejects anything without an HEIF ftyp box before handing the data to
// the HEVC decoder. Panics inside the decoder are reported as errors.
func (HEIFDecoder) Decode(data []byte) (img image.Image, err error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	if !IsHEIFMagic(data) {
		return nil, ErrInvalidHEIF
	}

	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = errors.Errorf("%w: decoder panic: %s", ErrInvalidHEIF, fmt.Sprint(r))
		}
	}()

	img, err = goheif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Errorf("goheif: %w", err)
	}
	return img, nil
}
