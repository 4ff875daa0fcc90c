package converter

import (
	"strconv"
	"strings"
)

// Format is a supported output encoding.
type Format int

const (
	FormatJPEG Format = iota
	FormatWebP
)

// Quality bounds. Anything outside falls back to DefaultQuality.
const (
	DefaultQuality = 95
	MinQuality     = 1
	MaxQuality     = 100
)

func (f Format) String() string {
	if f == FormatWebP {
		return "webp"
	}
	return "jpeg"
}

// MIMEType returns the canonical media type for the format.
func (f Format) MIMEType() string {
	if f == FormatWebP {
		return "image/webp"
	}
	return "image/jpeg"
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	if f == FormatWebP {
		return "webp"
	}
	return "jpg"
}

// Options is a sanitized conversion request. Use NewOptions or ParseOptions
// to build one from user input; neither ever fails.
type Options struct {
	Format  Format
	Quality int
}

// DefaultOptions returns JPEG at DefaultQuality.
func DefaultOptions() Options {
	return Options{Format: FormatJPEG, Quality: DefaultQuality}
}

// NewOptions builds Options from a format token and an integer quality.
func NewOptions(format string, quality int) Options {
	return Options{Format: ParseFormat(format), Quality: NormalizeQuality(quality)}
}

// ParseOptions builds Options from raw string inputs such as form fields.
func ParseOptions(format, quality string) Options {
	return Options{Format: ParseFormat(format), Quality: ParseQuality(quality)}
}

// Normalize returns o with the quality forced into range.
func (o Options) Normalize() Options {
	if o.Format != FormatWebP {
		o.Format = FormatJPEG
	}
	o.Quality = NormalizeQuality(o.Quality)
	return o
}

// ParseFormat maps "webp" to FormatWebP and everything else to FormatJPEG.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "webp") {
		return FormatWebP
	}
	return FormatJPEG
}

// ParseQuality returns the quality encoded in s, or DefaultQuality when s is
// missing, non-numeric or out of range.
func ParseQuality(s string) int {
	q, _ := LookupQuality(s)
	return q
}

// LookupQuality is ParseQuality that also reports whether s was accepted as
// given. Callers that want to warn about the fallback use the second value.
func LookupQuality(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultQuality, false
	}
	q, err := strconv.Atoi(s)
	if err != nil || q < MinQuality || q > MaxQuality {
		return DefaultQuality, false
	}
	return q, true
}

// NormalizeQuality returns q if it is within [MinQuality, MaxQuality] and
// DefaultQuality otherwise.
func NormalizeQuality(q int) int {
	if q < MinQuality || q > MaxQuality {
		return DefaultQuality
	}
	return q
}
