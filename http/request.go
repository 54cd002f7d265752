package http

import (
	"net"

	"github.com/indigo-web/reactor/buffer"
	"github.com/indigo-web/reactor/http/method"
	"github.com/indigo-web/reactor/http/mime"
	"github.com/indigo-web/reactor/http/proto"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/internal/http1"
	"github.com/indigo-web/reactor/internal/multipart"
	"github.com/indigo-web/reactor/internal/strutil"
	"github.com/indigo-web/reactor/kv"
	"github.com/indigo-web/reactor/loop"
	"github.com/indigo-web/reactor/stream"
)

type RequestState uint8

const (
	Created RequestState = iota
	HeadersReceived
	BodyStreaming
	Ended
	Failed
)

func (s RequestState) String() string {
	switch s {
	case Created:
		return "Created"
	case HeadersReceived:
		return "HeadersReceived"
	case BodyStreaming:
		return "BodyStreaming"
	case Ended:
		return "Ended"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

var _ stream.ReadStream = new(Request)

// Request is a single HTTP request. The head is available right away, when the request
// handler is called, and the body is pushed to the handlers as it arrives. All the handlers
// are called on the loop owning the connection.
type Request struct {
	conn   *conn
	head   http1.Head
	resp   *Response
	state  RequestState
	paused bool
	params *kv.Storage

	onData      func(*buffer.Buffer)
	onEnd       func()
	onError     func(error)
	bodyHandler func(*buffer.Buffer)
	body        *buffer.Buffer

	expectMultipart bool
	uploadHandler   func(*FileUpload)
	form            *kv.Storage
	multipart       *multipart.Parser
	backlog         bool
	upload          *FileUpload
	field           *buffer.Buffer
	urlencoded      *buffer.Buffer
}

func newRequest(c *conn, head http1.Head) *Request {
	r := &Request{
		conn: c,
		head: head,
	}
	r.resp = newResponse(r)

	return r
}

func (r *Request) Method() method.Method {
	return r.head.Method
}

// URI returns the request-target as it was received.
func (r *Request) URI() string {
	return r.head.URI
}

// Path returns the escaped path of the request-target.
func (r *Request) Path() string {
	return r.head.Path
}

// Query returns the escaped query of the request-target, without the question mark.
func (r *Request) Query() string {
	return r.head.Query
}

// Params returns the decoded query parameters. They are parsed on the first call, up to the
// first malformed pair.
func (r *Request) Params() *kv.Storage {
	if r.params == nil {
		r.params = kv.New()
		strutil.ParseQuery(r.head.Query, func(key, value string) {
			r.params.Add(key, value)
		})
	}

	return r.params
}

func (r *Request) Proto() proto.Proto {
	return r.head.Proto
}

func (r *Request) Headers() *kv.Storage {
	return r.head.Headers
}

// Header returns the first value of the header.
func (r *Request) Header(key string) string {
	return r.head.Headers.Value(key)
}

func (r *Request) Remote() net.Addr {
	return r.conn.nc.RemoteAddr()
}

func (r *Request) IsTLS() bool {
	return r.conn.enc.IsTLS()
}

func (r *Request) Response() *Response {
	return r.resp
}

func (r *Request) State() RequestState {
	return r.state
}

// Ended reports whether the whole body was received and the end handler was called.
func (r *Request) Ended() bool {
	return r.state == Ended
}

// Loop returns the loop the request is bound to.
func (r *Request) Loop() *loop.Loop {
	return r.conn.loop
}

// ExecuteBlocking runs fn on the blocking pool and calls done with its result on the
// request's loop.
func (r *Request) ExecuteBlocking(fn func() (any, error), done func(any, error)) {
	loop.ExecuteBlocking(r.conn.loop, r.conn.srv.Pool, fn, done)
}

// OnData sets the handler receiving the body pieces. The passed buffer is valid only during
// the call, it must be copied in order to be retained.
func (r *Request) OnData(handler func(*buffer.Buffer)) {
	r.onData = handler
}

// OnEnd sets the handler called once the whole body is received.
func (r *Request) OnEnd(handler func()) {
	r.onEnd = handler
}

// OnError sets the handler receiving StreamError and MultipartError.
func (r *Request) OnError(handler func(error)) {
	r.onError = handler
}

// BodyHandler aggregates the whole body into a single buffer, which is passed to the handler
// before the end handler is called. It doesn't interfere with OnData.
func (r *Request) BodyHandler(handler func(*buffer.Buffer)) {
	r.bodyHandler = handler
	if handler != nil && r.body == nil {
		r.body = buffer.New(int(min(max(r.head.ContentLength, 0), 64*1024)))
	}
}

// SetExpectMultipart enables parsing of multipart/form-data and application/x-www-form-urlencoded
// bodies. Must be called before any body byte is delivered, i.e. in the request handler.
func (r *Request) SetExpectMultipart(expect bool) error {
	if r.state != Created && r.state != HeadersReceived {
		return StateError{Op: "SetExpectMultipart", State: r.state.String()}
	}

	r.expectMultipart = expect
	return nil
}

func (r *Request) ExpectMultipart() bool {
	return r.expectMultipart
}

// UploadHandler sets the handler called on every file part of a multipart body. Requires
// SetExpectMultipart(true).
func (r *Request) UploadHandler(handler func(*FileUpload)) {
	r.uploadHandler = handler
}

// FormAttributes returns the form fields. It's complete only once the request has ended.
func (r *Request) FormAttributes() *kv.Storage {
	if r.form == nil {
		r.form = kv.New()
	}

	return r.form
}

// Pause stops the data delivery. The connection isn't read anymore, so the client is
// eventually throttled by TCP flow control.
func (r *Request) Pause() {
	r.paused = true
}

func (r *Request) Resume() {
	if r.paused {
		r.paused = false
		r.conn.wake()
	}
}

// begin prepares the body processing on the very first chunk.
func (r *Request) begin() error {
	r.state = BodyStreaming
	if !r.expectMultipart {
		return nil
	}

	contentType := r.head.Headers.Value("Content-Type")
	switch {
	case mime.Complies(mime.Multipart, contentType):
		boundary, ok := mime.Boundary(contentType)
		if !ok {
			return MultipartError{Err: multipart.ErrBadBoundary}
		}

		parser, err := multipart.NewParser(boundary, r.conn.srv.Config.Body.Form.MaxPartHeaderSize)
		if err != nil {
			return MultipartError{Err: err}
		}

		r.multipart = parser
		r.field = buffer.New(256)
	case mime.Complies(mime.FormUrlencoded, contentType):
		r.urlencoded = buffer.New(256)
	}

	return nil
}

// deliver handles a piece of the body.
func (r *Request) deliver(chunk []byte) error {
	if r.state != BodyStreaming {
		if err := r.begin(); err != nil {
			return err
		}
	}

	if r.multipart != nil {
		r.multipart.Feed(chunk)
		r.backlog = true
		return r.drainMultipart()
	}

	if r.urlencoded != nil {
		if r.urlencoded.Len()+len(chunk) > r.conn.srv.Config.Body.Form.MaxFieldSize {
			return MultipartError{Err: status.ErrBodyTooLarge}
		}

		r.urlencoded.Append(chunk)
	}

	if r.bodyHandler != nil {
		r.body.Append(chunk)
	}

	if r.onData != nil {
		r.onData(buffer.Wrap(chunk))
	}

	return nil
}

// drainMultipart emits the multipart events until either more data is needed or the
// request is paused.
func (r *Request) drainMultipart() error {
	for !r.paused {
		event, err := r.multipart.Next()
		if err != nil {
			return MultipartError{Err: err}
		}

		switch event {
		case multipart.NeedMore, multipart.Done:
			r.backlog = false
			return nil
		case multipart.PartBegin:
			part := r.multipart.Part()
			if part.File {
				r.upload = newUpload(r, part)
				if r.uploadHandler != nil {
					r.uploadHandler(r.upload)
				}
			} else {
				r.field.Reset()
			}
		case multipart.PartData:
			data := r.multipart.Data()
			if r.upload != nil {
				r.upload.deliver(data)
				continue
			}

			if r.field.Len()+len(data) > r.conn.srv.Config.Body.Form.MaxFieldSize {
				return MultipartError{Err: status.ErrBodyTooLarge}
			}

			r.field.Append(data)
		case multipart.PartEnd:
			if upload := r.upload; upload != nil {
				r.upload = nil
				upload.end()
				continue
			}

			r.FormAttributes().Add(r.multipart.Part().Name, r.field.String())
		}
	}

	return nil
}

// end completes the body.
func (r *Request) end() error {
	if r.state != BodyStreaming {
		if err := r.begin(); err != nil {
			return err
		}
	}

	if r.multipart != nil {
		if err := r.multipart.Close(); err != nil {
			return MultipartError{Err: err}
		}
	}

	if r.urlencoded != nil {
		form := r.FormAttributes()
		ok := strutil.ParseQuery(r.urlencoded.String(), func(key, value string) {
			form.Add(key, value)
		})
		if !ok {
			return MultipartError{Err: status.ErrURLDecoding}
		}
	}

	r.state = Ended

	if r.bodyHandler != nil {
		r.bodyHandler(r.body)
	}

	if r.onEnd != nil {
		r.onEnd()
	}

	return nil
}

// fail terminates the request with the error unless it has already ended. Handlers aren't
// called anymore afterward.
func (r *Request) fail(err error) {
	if r.state == Ended || r.state == Failed {
		return
	}

	r.state = Failed
	upload, onError := r.upload, r.onError
	r.upload = nil
	r.detach()

	if upload != nil {
		upload.fail(err)
	}

	if onError != nil {
		onError(err)
	} else {
		r.conn.srv.Logger.Debug().Err(err).Str("path", r.head.Path).Msg("request failed")
	}
}

func (r *Request) detach() {
	r.onData, r.onEnd, r.onError = nil, nil, nil
	r.bodyHandler, r.uploadHandler = nil, nil
}
