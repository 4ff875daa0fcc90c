package converter

import (
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrEmptyInput is returned when there are no bytes to decode
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidHEIF is returned when the data is not an HEIF container
	ErrInvalidHEIF = errors.New("invalid HEIF file")
)

// ConversionError reports a codec failure for one conversion. Op names the
// stage that failed: read, decode, validate, encode or timeout.
type ConversionError struct {
	Op  string
	Err error
}

func (e *ConversionError) Error() string {
	return "conversion failed: " + e.Op + ": " + e.Err.Error()
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// InputError reports a request rejected before any conversion is attempted:
// no file, an empty selection, a disallowed extension or a bad path.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return e.Reason
}

// IsConversionError reports whether err wraps a *ConversionError.
func IsConversionError(err error) bool {
	var ce *ConversionError
	return errors.As(err, &ce)
}

// IsInputError reports whether err wraps an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
