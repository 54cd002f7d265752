package http1

import (
	"io"
	"math"

	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/reactor/http/status"
)

// Body decodes request bodies, either length-framed or chunked. It's fed with the data from
// the connection and cuts the body pieces out of it.
type Body struct {
	chunked, trailer bool
	left             int64
	received, max    uint64
	parser           *chunkedbody.Parser
}

func NewBody(maxSize uint64) *Body {
	return &Body{max: maxSize}
}

// Reset prepares the decoder for the body of the passed head. Trailer fields are accepted
// only if announced by the Trailer header: the chunked decoder otherwise expects the body to
// end right after the last chunk.
func (b *Body) Reset(head *Head) {
	b.chunked = head.Chunked
	b.trailer = head.HasTrailer
	b.left = head.ContentLength
	b.received = 0

	if b.chunked {
		b.parser = chunkedbody.NewParser(chunkedbody.DefaultSettings())
	}
}

// Parse returns the next piece of the body. The returned chunk is a sub-slice of the data,
// so it's valid only as long as the data is. Extra is the rest of the data, that must be fed
// again. io.EOF is returned when the body is completed, and the chunk may still be non-empty
// in this case.
func (b *Body) Parse(data []byte) (chunk, extra []byte, err error) {
	if b.chunked {
		chunk, extra, err = b.parser.Parse(data, b.trailer)
		switch err {
		case nil, io.EOF:
		default:
			return nil, nil, status.ErrBadChunk
		}

		return chunk, extra, b.account(chunk, err)
	}

	if b.left == 0 {
		return nil, data, io.EOF
	}

	n := int64(len(data))
	if n > b.left {
		n = b.left
	}

	chunk, extra = data[:n], data[n:]
	b.left -= n
	if b.left == 0 {
		err = io.EOF
	}

	return chunk, extra, b.account(chunk, err)
}

func (b *Body) account(chunk []byte, err error) error {
	n := uint64(len(chunk))
	if math.MaxUint64-b.received < n || b.received+n > b.max {
		return status.ErrBodyTooLarge
	}

	b.received += n
	return err
}

// Received returns the number of body bytes decoded so far.
func (b *Body) Received() uint64 {
	return b.received
}
