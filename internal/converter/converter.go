// Package converter turns HEIF/HEIC images into JPEG or WebP.
package converter

import (
	"context"
	"image"
	"io"
	"os"
	"time"

	"gitlab.com/tozd/go/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harliandi/heicconv/pkg/metrics"
)

const tracerName = "github.com/harliandi/heicconv/internal/converter"

// Result is an encoded image ready to be written or sent.
type Result struct {
	Data      []byte
	MIMEType  string
	Extension string
	Width     int
	Height    int
}

// Converter handles HEIF to JPEG/WebP conversion. It holds no mutable state
// and is safe for concurrent use.
type Converter struct {
	decoder Decoder
	encoder Encoder
	tracer  trace.Tracer
}

// Option configures a Converter.
type Option func(*Converter)

// WithDecoder replaces the default HEIF decoder.
func WithDecoder(d Decoder) Option {
	return func(c *Converter) { c.decoder = d }
}

// WithEncoder replaces the default encoder.
func WithEncoder(e Encoder) Option {
	return func(c *Converter) { c.encoder = e }
}

// New creates a Converter using the backend compiled into this build.
func New(opts ...Option) *Converter {
	c := &Converter{
		decoder: NewDefaultDecoder(),
		encoder: NewDefaultEncoder(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert reads all of source and converts it.
func (c *Converter) Convert(ctx context.Context, source io.Reader, opts Options) (*Result, error) {
	if source == nil {
		return nil, &ConversionError{Op: "read", Err: ErrEmptyInput}
	}
	data, err := io.ReadAll(source)
	if err != nil {
		return nil, &ConversionError{Op: "read", Err: err}
	}
	return c.ConvertBytes(ctx, data, opts)
}

// ConvertFile converts the HEIF file at path.
func (c *Converter) ConvertFile(ctx context.Context, path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConversionError{Op: "read", Err: err}
	}
	return c.ConvertBytes(ctx, data, opts)
}

// ConvertBytes converts HEIF bytes. The codec work cannot be interrupted, so
// when ctx ends first the call returns immediately and the late result is
// discarded.
func (c *Converter) ConvertBytes(ctx context.Context, data []byte, opts Options) (*Result, error) {
	opts = opts.Normalize()
	format := opts.Format.String()

	if len(data) == 0 {
		metrics.RecordConversion("error", format, 0, 0, 0)
		return nil, &ConversionError{Op: "read", Err: ErrEmptyInput}
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordConversion("timeout", format, 0, len(data), 0)
		return nil, &ConversionError{Op: "timeout", Err: err}
	}

	type outcome struct {
		res *Result
		err error
	}
	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &ConversionError{Op: "decode", Err: errors.Errorf("codec panic: %v", r)}}
			}
		}()
		res, err := c.convert(ctx, data, opts)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		metrics.RecordConversion("timeout", format, time.Since(start), len(data), 0)
		return nil, &ConversionError{Op: "timeout", Err: ctx.Err()}
	case out := <-done:
		if out.err != nil {
			metrics.RecordConversion("error", format, time.Since(start), len(data), 0)
			return nil, out.err
		}
		metrics.RecordConversion("success", format, time.Since(start), len(data), len(out.res.Data))
		return out.res, nil
	}
}

func (c *Converter) convert(ctx context.Context, data []byte, opts Options) (*Result, error) {
	var img image.Image
	err := c.span(ctx, "converter.decode", opts, func() error {
		var err error
		img, err = c.decoder.Decode(data)
		if err != nil {
			return &ConversionError{Op: "decode", Err: err}
		}
		if err := ValidateImage(img); err != nil {
			return &ConversionError{Op: "validate", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var normalized image.Image
	_ = c.span(ctx, "converter.normalize", opts, func() error {
		normalized = Normalize(img, opts.Format)
		return nil
	})

	var encoded []byte
	err = c.span(ctx, "converter.encode", opts, func() error {
		var err error
		encoded, err = encodeToBytes(c.encoder, normalized, opts)
		if err != nil {
			return &ConversionError{Op: "encode", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &Result{
		Data:      encoded,
		MIMEType:  opts.Format.MIMEType(),
		Extension: opts.Format.Extension(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}

func (c *Converter) span(ctx context.Context, name string, opts Options, fn func() error) error {
	_, span := c.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("heicconv.format", opts.Format.String()),
		attribute.Int("heicconv.quality", opts.Quality),
	))
	defer span.End()

	if err := fn(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
