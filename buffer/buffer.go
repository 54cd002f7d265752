package buffer

import (
	"io"

	"github.com/indigo-web/utils/uf"
)

// Buffer is a growable byte sequence, the unit of data exchanged between the network and
// handlers. Buffers are shared by pointer, so a mutation is observed by all the holders.
//
// Buffers passed into data handlers are views over the connection read buffer and are valid
// only until the handler returns. Use Copy in order to retain the data.
type Buffer struct {
	data []byte
}

func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// Wrap returns a buffer viewing the passed slice without copying it.
func Wrap(b []byte) *Buffer {
	return &Buffer{data: b}
}

// FromString returns a buffer containing a copy of the string.
func FromString(str string) *Buffer {
	return &Buffer{data: []byte(str)}
}

func (b *Buffer) Append(data []byte) *Buffer {
	b.data = append(b.data, data...)
	return b
}

func (b *Buffer) AppendString(str string) *Buffer {
	b.data = append(b.data, str...)
	return b
}

func (b *Buffer) AppendByte(c byte) *Buffer {
	b.data = append(b.data, c)
	return b
}

// Write implements io.Writer. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(p)
	return len(p), nil
}

// WriteTo implements io.WriterTo.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.data)
	return int64(n), err
}

func (b *Buffer) Len() int {
	return len(b.data)
}

// Slice returns a read view of the [start, end) range. No copy is made, therefore the view
// reflects further in-place mutations.
func (b *Buffer) Slice(start, end int) []byte {
	return b.data[start:end:end]
}

// Bytes returns the underlying slice.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// String returns the content as a string. The string shares the memory with the buffer.
func (b *Buffer) String() string {
	return uf.B2S(b.data)
}

// Copy returns a new buffer with a copy of the content.
func (b *Buffer) Copy() *Buffer {
	return &Buffer{data: append(make([]byte, 0, len(b.data)), b.data...)}
}

// Reset empties the buffer, keeping the allocated memory.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}
