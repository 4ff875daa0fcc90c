package converter

import (
	"bytes"
	"sync"
)

const (
	initialBufferSize = 512 * 1024       // typical JPEG output
	maxPooledBuffer   = 16 * 1024 * 1024 // larger buffers are left to the GC
)

// encodeBuffers holds scratch buffers for encoder output. Encoded bytes are
// always copied out before a buffer goes back, so callers own their result.
var encodeBuffers = sync.Pool{
	New: func() any {
		b := new(bytes.Buffer)
		b.Grow(initialBufferSize)
		return b
	},
}

func getBuffer() *bytes.Buffer {
	b := encodeBuffers.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

func putBuffer(b *bytes.Buffer) {
	if b.Cap() > maxPooledBuffer {
		return
	}
	encodeBuffers.Put(b)
}

// detach returns a copy of the buffer contents that does not alias pool memory.
func detach(b *bytes.Buffer) []byte {
	out := make([]byte, b.Len())
	copy(out, b.Bytes())
	return out
}
