package http

import (
	"errors"
	"fmt"

	"github.com/indigo-web/reactor/http/status"
)

var (
	// ErrState is matched by every StateError via errors.Is.
	ErrState = errors.New("illegal state")
	// ErrConnectionClosed is the cause delivered to the in-flight request and response once
	// the connection is gone.
	ErrConnectionClosed = errors.New("connection is closed")
	// ErrLengthRequired is returned when a body is written into a response, which is neither
	// chunked nor has the Content-Length set.
	ErrLengthRequired        = errors.New("neither Content-Length nor chunked encoding is set")
	ErrContentLengthExceeded = errors.New("written more than declared by Content-Length")
	ErrBadContentLength      = errors.New("malformed Content-Length header value")
	ErrBadHeaderField        = errors.New("invalid header field name or value")
	ErrBadStatusCode         = errors.New("status code must be a 3-digit number")
	ErrBadStatusMessage      = errors.New("status message must not contain line breaks")
)

// ProtocolError is a malformed request line or headers. The request handler is never
// invoked for such requests, the connection is closed right after the error response.
type ProtocolError struct {
	Err status.HTTPError
}

func (p ProtocolError) Error() string {
	return "protocol error: " + p.Err.Message
}

func (p ProtocolError) Unwrap() error {
	return p.Err
}

// StateError is returned by an operation called in a state it isn't permitted in. The
// connection isn't affected.
type StateError struct {
	Op    string
	State string
}

func (s StateError) Error() string {
	return fmt.Sprintf("%s: illegal in state %s", s.Op, s.State)
}

func (s StateError) Is(target error) bool {
	return target == ErrState
}

// StreamError is a failure in the middle of a body, e.g. malformed chunked encoding, an
// oversize body or the connection being lost. It's delivered via the OnError handler of the
// request and the response is forced into the Closed state.
type StreamError struct {
	Err error
}

func (s StreamError) Error() string {
	return "stream error: " + s.Err.Error()
}

func (s StreamError) Unwrap() error {
	return s.Err
}

// MultipartError is a malformed multipart/form-data (or urlencoded form) body. Handled
// as StreamError.
type MultipartError struct {
	Err error
}

func (m MultipartError) Error() string {
	return "multipart error: " + m.Err.Error()
}

func (m MultipartError) Unwrap() error {
	return m.Err
}
