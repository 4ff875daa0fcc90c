//go:build govips && cgo

package converter

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"runtime"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"gitlab.com/tozd/go/errors"
)

var (
	vipsMu      sync.Mutex
	vipsStarted bool
)

// Startup starts libvips once per process. Safe to call repeatedly.
func Startup() error {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	if vipsStarted {
		return nil
	}
	vips.Startup(&vips.Config{
		ConcurrencyLevel: runtime.NumCPU(),
		MaxCacheFiles:    0,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})
	vipsStarted = true
	return nil
}

// Shutdown stops libvips if Startup started it.
func Shutdown() {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	if !vipsStarted {
		return
	}
	vips.Shutdown()
	vipsStarted = false
}

// Backend names the codec backend compiled into this binary.
func Backend() string { return "libvips" }

// NewDefaultDecoder returns the decoder used when none is injected.
func NewDefaultDecoder() Decoder { return vipsDecoder{} }

// NewDefaultEncoder returns the encoder used when none is injected.
func NewDefaultEncoder() Encoder { return vipsEncoder{} }

// vipsDecoder loads HEIF through libheif and hands the raster back as PNG so
// the normalisation rules see ordinary Go image types.
type vipsDecoder struct{}

func (vipsDecoder) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	if !IsHEIFMagic(data) {
		return nil, ErrInvalidHEIF
	}

	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, errors.Errorf("libvips load: %w", err)
	}
	defer ref.Close()

	params := vips.NewPngExportParams()
	params.Compression = 1
	raw, _, err := ref.ExportPng(params)
	if err != nil {
		return nil, errors.Errorf("libvips export: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Errorf("libvips raster: %w", err)
	}
	return img, nil
}

type vipsEncoder struct{}

func (vipsEncoder) Encode(w io.Writer, img image.Image, opts Options) error {
	var staging bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&staging, img); err != nil {
		return errors.Errorf("libvips staging: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(staging.Bytes())
	if err != nil {
		return errors.Errorf("libvips load: %w", err)
	}
	defer ref.Close()

	var out []byte
	if opts.Format == FormatWebP {
		p := vips.NewWebpExportParams()
		p.Quality = opts.Quality
		p.ReductionEffort = 6
		p.StripMetadata = true
		out, _, err = ref.ExportWebp(p)
	} else {
		p := vips.NewJpegExportParams()
		p.Quality = opts.Quality
		p.OptimizeCoding = true
		p.StripMetadata = true
		out, _, err = ref.ExportJpeg(p)
	}
	if err != nil {
		return errors.Errorf("libvips %s export: %w", opts.Format, err)
	}

	if _, err := w.Write(out); err != nil {
		return errors.Errorf("write %s: %w", opts.Format, err)
	}
	return nil
}
