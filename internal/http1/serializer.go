package http1

import (
	"maps"
	"slices"
	"strconv"

	"github.com/indigo-web/reactor/http/mime"
	"github.com/indigo-web/reactor/http/proto"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/kv"
	"github.com/valyala/bytebufferpool"
)

const crlf = "\r\n"

// Serializer renders response heads and chunk frames into pooled buffers. It is stateless
// except the default headers, so a single instance may be shared by all the connections.
type Serializer struct {
	defaults []kv.Pair
}

// NewSerializer captures the default headers. They are rendered sorted by their names, so
// the output is deterministic.
func NewSerializer(defaults map[string]string) *Serializer {
	s := &Serializer{
		defaults: make([]kv.Pair, 0, len(defaults)),
	}

	for _, key := range slices.Sorted(maps.Keys(defaults)) {
		s.defaults = append(s.defaults, kv.Pair{Key: key, Value: defaults[key]})
	}

	return s
}

// Head renders the status line and the headers, followed by the default headers which
// weren't overridden. Empty message is replaced by the standard one.
func (s *Serializer) Head(
	buf *bytebufferpool.ByteBuffer, p proto.Proto, code status.Code, message string, headers *kv.Storage,
) {
	if p != proto.HTTP10 {
		p = proto.HTTP11
	}

	if len(message) == 0 {
		message = string(status.Text(code))
	}

	buf.B = append(buf.B, p.String()...)
	buf.B = append(buf.B, ' ')
	buf.B = strconv.AppendUint(buf.B, uint64(code), 10)
	buf.B = append(buf.B, ' ')
	buf.B = append(buf.B, message...)
	buf.B = append(buf.B, crlf...)

	for _, pair := range headers.Expose() {
		appendField(buf, pair.Key, pair.Value)
	}

	for _, pair := range s.defaults {
		if !headers.Has(pair.Key) {
			appendField(buf, pair.Key, pair.Value)
		}
	}

	buf.B = append(buf.B, crlf...)
}

// Chunk renders a single chunk frame. Empty data renders nothing, as a zero-length chunk
// terminates the body.
func Chunk(buf *bytebufferpool.ByteBuffer, data []byte) {
	if len(data) == 0 {
		return
	}

	buf.B = strconv.AppendUint(buf.B, uint64(len(data)), 16)
	buf.B = append(buf.B, crlf...)
	buf.B = append(buf.B, data...)
	buf.B = append(buf.B, crlf...)
}

// LastChunk renders the terminating zero-length chunk carrying the trailers.
func LastChunk(buf *bytebufferpool.ByteBuffer, trailers *kv.Storage) {
	buf.B = append(buf.B, "0"+crlf...)

	if trailers != nil {
		for _, pair := range trailers.Expose() {
			appendField(buf, pair.Key, pair.Value)
		}
	}

	buf.B = append(buf.B, crlf...)
}

// Error renders a complete minimal response for an error, that happened before the request
// could ever be handled. The connection is expected to be closed afterward.
func (s *Serializer) Error(buf *bytebufferpool.ByteBuffer, p proto.Proto, err status.HTTPError) {
	headers := kv.NewPrealloc(3).
		Add("Content-Type", mime.Plain).
		Add("Content-Length", strconv.Itoa(len(err.Message))).
		Add("Connection", "close")

	s.Head(buf, p, err.Code, "", headers)
	buf.B = append(buf.B, err.Message...)
}

func appendField(buf *bytebufferpool.ByteBuffer, key, value string) {
	buf.B = append(buf.B, key...)
	buf.B = append(buf.B, ": "...)
	buf.B = append(buf.B, value...)
	buf.B = append(buf.B, crlf...)
}
