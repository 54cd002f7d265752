package status

// HTTPError is an error carrying the status code it must be responded with.
type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrBadRequest              = NewError(BadRequest, "bad request")
	ErrTooLongRequestLine      = NewError(BadRequest, "request line is too long")
	ErrBadChunk                = NewError(BadRequest, "malformed chunk-encoded data")
	ErrBadContentLength        = NewError(BadRequest, "malformed or conflicting Content-Length")
	ErrAmbiguousFraming        = NewError(BadRequest, "both Content-Length and Transfer-Encoding are set")
	ErrBadHeaderField          = NewError(BadRequest, "malformed header field")
	ErrURLDecoding             = NewError(BadRequest, "invalid urlencoded sequence")
	ErrBadMultipart            = NewError(BadRequest, "malformed multipart body")
	ErrNotFound                = NewError(NotFound, "not found")
	ErrRequestTimeout          = NewError(RequestTimeout, "request timeout")
	ErrBodyTooLarge            = NewError(RequestEntityTooLarge, "request body is too large")
	ErrURITooLong              = NewError(RequestURITooLong, "request URI too long")
	ErrUnsupportedMediaType    = NewError(UnsupportedMediaType, "unsupported media type")
	ErrHeaderFieldsTooLarge    = NewError(RequestHeaderFieldsTooLarge, "too large headers section")
	ErrTooManyHeaders          = NewError(RequestHeaderFieldsTooLarge, "too many headers")
	ErrInternalServerError     = NewError(InternalServerError, "internal server error")
	ErrNotImplemented          = NewError(NotImplemented, "not implemented")
	ErrMethodNotImplemented    = NewError(NotImplemented, "request method is not supported")
	ErrUnsupportedEncoding     = NewError(NotImplemented, "transfer coding is not supported")
	ErrHTTPVersionNotSupported = NewError(HTTPVersionNotSupported, "HTTP version not supported")
)
