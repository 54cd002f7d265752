package http1

import (
	"github.com/indigo-web/reactor/http/method"
	"github.com/indigo-web/reactor/http/proto"
	"github.com/indigo-web/reactor/kv"
)

// Head is the request line and the headers of a single request, together with the body
// framing derived from them. All the strings are owned by the head, so it's safe to retain
// it for as long as needed.
type Head struct {
	Method method.Method
	// URI is the request-target exactly as it was received.
	URI string
	// Path and Query are kept escaped. Path is normalized to origin-form, even if the
	// request-target was in absolute-form.
	Path, Query string
	Proto       proto.Proto
	Headers     *kv.Storage
	// ContentLength is the declared body length. Meaningless for chunked bodies.
	ContentLength int64
	Chunked       bool
	// HasTrailer reports whether the client announced trailer fields via the Trailer header.
	HasTrailer bool
}

// HasBody tells whether there's any body expected to follow the head.
func (h *Head) HasBody() bool {
	return h.Chunked || h.ContentLength > 0
}
