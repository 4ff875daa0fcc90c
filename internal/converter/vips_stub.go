//go:build !govips || !cgo

package converter

// Startup prepares the codec backend. The pure Go backend needs nothing.
func Startup() error { return nil }

// Shutdown releases the codec backend.
func Shutdown() {}

// Backend names the codec backend compiled into this binary.
func Backend() string { return "goheif" }

// NewDefaultDecoder returns the decoder used when none is injected.
func NewDefaultDecoder() Decoder { return HEIFDecoder{} }

// NewDefaultEncoder returns the encoder used when none is injected.
func NewDefaultEncoder() Encoder { return StdEncoder{} }
