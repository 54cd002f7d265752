package http

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/indigo-web/reactor/http/method"
	"github.com/indigo-web/reactor/http/mime"
	"github.com/indigo-web/reactor/http/proto"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/internal/http1"
	"github.com/indigo-web/reactor/kv"
	"github.com/indigo-web/reactor/loop"
	"github.com/indigo-web/reactor/stream"
	"github.com/indigo-web/utils/uf"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/net/http/httpguts"
)

type ResponseState uint8

const (
	Idle ResponseState = iota
	HeadersFlushed
	ResponseEnded
	Closed
)

func (s ResponseState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case HeadersFlushed:
		return "HeadersFlushed"
	case ResponseEnded:
		return "Ended"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

var _ stream.WriteStream = new(Response)

// Response is the response to a single request. The status line and the headers are
// captured and flushed on the first write or end. Non-chunked responses must carry the
// Content-Length header by that moment, except responses ended right away, which get it
// computed from the passed body.
type Response struct {
	req         *Request
	conn        *conn
	state       ResponseState
	sending     bool
	headWritten bool

	code     status.Code
	message  string
	headers  *kv.Storage
	trailers *kv.Storage
	chunked  bool
	// raw is set if chunked encoding was requested by a peer not supporting it. The body
	// is delimited by the connection close instead.
	raw       bool
	keepAlive bool
	length    int64
	written   int64

	onEnd   func()
	onClose func()
	onError func(error)
	onDrain func()
}

func newResponse(req *Request) *Response {
	return &Response{
		req:     req,
		conn:    req.conn,
		code:    status.OK,
		headers: kv.New(),
		length:  -1,
	}
}

func (r *Response) State() ResponseState {
	return r.state
}

func (r *Response) StatusCode() status.Code {
	return r.code
}

// SetStatusCode sets the status code. The status message is derived from it, unless set
// explicitly.
func (r *Response) SetStatusCode(code status.Code) error {
	if err := r.mutable("SetStatusCode"); err != nil {
		return err
	}

	if code < 100 || code > 999 {
		return ErrBadStatusCode
	}

	r.code = code
	return nil
}

func (r *Response) StatusMessage() string {
	if len(r.message) == 0 {
		return string(status.Text(r.code))
	}

	return r.message
}

func (r *Response) SetStatusMessage(message string) error {
	if err := r.mutable("SetStatusMessage"); err != nil {
		return err
	}

	if strings.ContainsAny(message, "\r\n") {
		return ErrBadStatusMessage
	}

	r.message = message
	return nil
}

// PutHeader replaces all the values of the header by the passed one.
func (r *Response) PutHeader(key, value string) error {
	if err := r.validField("PutHeader", key, value); err != nil {
		return err
	}

	r.headers.Set(key, value)
	return nil
}

// AddHeader adds one more value to the header.
func (r *Response) AddHeader(key, value string) error {
	if err := r.validField("AddHeader", key, value); err != nil {
		return err
	}

	r.headers.Add(key, value)
	return nil
}

func (r *Response) RemoveHeader(key string) error {
	if err := r.mutable("RemoveHeader"); err != nil {
		return err
	}

	r.headers.Delete(key)
	return nil
}

// Header returns the first value of the header.
func (r *Response) Header(key string) string {
	return r.headers.Value(key)
}

// Headers exposes the underlying headers. Note that modifying them directly bypasses both
// the state and the validity checks.
func (r *Response) Headers() *kv.Storage {
	return r.headers
}

// PutTrailer sets the trailer. Trailers are sent with the terminating chunk, therefore
// they're dropped for non-chunked responses.
func (r *Response) PutTrailer(key, value string) error {
	if err := r.writable("PutTrailer"); err != nil {
		return err
	}

	if !httpguts.ValidHeaderFieldName(key) || !httpguts.ValidHeaderFieldValue(value) {
		return ErrBadHeaderField
	}

	r.Trailers().Set(key, value)
	return nil
}

func (r *Response) Trailers() *kv.Storage {
	if r.trailers == nil {
		r.trailers = kv.New()
	}

	return r.trailers
}

// SetChunked enables the chunked transfer encoding. Each Write becomes a separate chunk,
// split by the maximal frame size.
func (r *Response) SetChunked(chunked bool) error {
	if err := r.mutable("SetChunked"); err != nil {
		return err
	}

	r.chunked = chunked
	return nil
}

func (r *Response) Chunked() bool {
	return r.chunked
}

// HeadWritten reports whether the status line and headers were already flushed.
func (r *Response) HeadWritten() bool {
	return r.headWritten
}

// BytesWritten returns the number of body bytes written so far.
func (r *Response) BytesWritten() int64 {
	return r.written
}

func (r *Response) Ended() bool {
	return r.state == ResponseEnded
}

func (r *Response) Closed() bool {
	return r.state == Closed
}

// Write writes the data as the body piece. The head is flushed first, if it wasn't yet.
func (r *Response) Write(data []byte) error {
	if err := r.writable("Write"); err != nil {
		return err
	}

	if r.state == Idle {
		if err := r.flushHead(); err != nil {
			return err
		}
	}

	return r.writeBody(data)
}

func (r *Response) WriteString(data string) error {
	return r.Write(uf.S2B(data))
}

// End completes the response.
func (r *Response) End() error {
	return r.EndWith(nil)
}

// EndString is EndWith for strings.
func (r *Response) EndString(data string) error {
	return r.EndWith(uf.S2B(data))
}

// EndWith writes the data and completes the response. If the head wasn't flushed yet and
// neither Content-Length nor chunked encoding is set, Content-Length is set to the data
// length. HEAD responses ended without any data are sent with no Content-Length at all.
func (r *Response) EndWith(data []byte) error {
	if err := r.writable("End"); err != nil {
		return err
	}

	if r.state == Idle {
		// HEAD responses ended without data know nothing about the length
		headOnly := r.req.head.Method == method.HEAD && len(data) == 0
		if !r.chunked && !r.bodyless() && !headOnly && !r.headers.Has("Content-Length") {
			r.headers.Set("Content-Length", strconv.Itoa(len(data)))
		}

		if err := r.flushHead(); err != nil {
			return err
		}
	}

	if err := r.writeBody(data); err != nil {
		return err
	}

	return r.finish()
}

// SendFile responds with the file as the body. The file is opened on the blocking pool and
// transferred without copying it into the userspace on cleartext connections. Missing files
// are responded with 404 Not Found. Must be called before anything was written. The done
// callback may be nil.
func (r *Response) SendFile(path string, done func(error)) error {
	if err := r.mutable("SendFile"); err != nil {
		return err
	}

	if done == nil {
		done = func(error) {}
	}

	r.sending = true

	type opened struct {
		fd   *os.File
		size int64
	}

	loop.ExecuteBlocking(r.conn.loop, r.conn.srv.Pool, func() (opened, error) {
		fd, err := os.Open(path)
		if err != nil {
			return opened{}, err
		}

		stat, err := fd.Stat()
		if err == nil && stat.IsDir() {
			err = os.ErrNotExist
		}

		if err != nil {
			_ = fd.Close()
			return opened{}, err
		}

		return opened{fd: fd, size: stat.Size()}, nil
	}, func(file opened, err error) {
		r.sending = false

		if r.state != Idle {
			if file.fd != nil {
				_ = file.fd.Close()
			}

			done(ErrConnectionClosed)
			return
		}

		if err != nil {
			code := status.InternalServerError
			if errors.Is(err, os.ErrNotExist) {
				code = status.NotFound
			}

			r.code, r.message, r.chunked = code, "", false
			r.headers.Clear()
			if endErr := r.EndString(string(status.Text(code))); endErr != nil {
				err = errors.Join(err, endErr)
			}

			done(err)
			return
		}

		done(r.transfer(path, file.fd, file.size))
	})

	return nil
}

func (r *Response) transfer(path string, fd *os.File, size int64) error {
	r.chunked = false
	r.headers.Set("Content-Length", strconv.FormatInt(size, 10))
	if !r.headers.Has("Content-Type") {
		r.headers.Set("Content-Type", mime.ByFilename(filepath.Base(path)))
	}

	if err := r.flushHead(); err != nil {
		_ = fd.Close()
		return err
	}

	if r.req.head.Method == method.HEAD {
		_ = fd.Close()
		return r.finish()
	}

	if err := r.conn.out.Transfer(fd, size); err != nil {
		return err
	}

	r.written = size
	return r.finish()
}

// Close closes the underlying connection immediately, dropping everything that wasn't
// flushed yet.
func (r *Response) Close() {
	r.conn.shutdown(false, ErrConnectionClosed)
}

// OnEnd sets the handler called once the response is ended.
func (r *Response) OnEnd(handler func()) {
	r.onEnd = handler
}

// OnClose sets the handler called if the connection is closed before the response has ended.
func (r *Response) OnClose(handler func()) {
	r.onClose = handler
}

// OnError sets the handler called if writing into the connection fails.
func (r *Response) OnError(handler func(error)) {
	r.onError = handler
}

func (r *Response) OnDrain(handler func()) {
	r.onDrain = handler
}

func (r *Response) WriteQueueFull() bool {
	return r.conn.out.WriteQueueFull()
}

// SetWriteQueueMaxSize sets the high watermark of the connection's outbound queue.
func (r *Response) SetWriteQueueMaxSize(size int) {
	r.conn.out.SetWriteQueueMaxSize(size)
}

func (r *Response) mutable(op string) error {
	if r.state != Idle || r.sending {
		return r.stateError(op)
	}

	return nil
}

func (r *Response) writable(op string) error {
	switch {
	case r.sending, r.state == ResponseEnded, r.state == Closed:
		return r.stateError(op)
	default:
		return nil
	}
}

func (r *Response) stateError(op string) error {
	state := r.state.String()
	if r.sending {
		state = "SendingFile"
	}

	return StateError{Op: op, State: state}
}

func (r *Response) validField(op, key, value string) error {
	if err := r.mutable(op); err != nil {
		return err
	}

	if !httpguts.ValidHeaderFieldName(key) || !httpguts.ValidHeaderFieldValue(value) {
		return ErrBadHeaderField
	}

	return nil
}

// bodyless reports whether the status code forbids the body, so no framing is needed.
func (r *Response) bodyless() bool {
	return r.code < 200 || r.code == status.NoContent || r.code == status.NotModified
}

func (r *Response) flushHead() error {
	if r.bodyless() {
		r.chunked = false
		r.length = 0
	} else if r.chunked {
		r.headers.Delete("Content-Length")
		if r.req.head.Proto == proto.HTTP10 {
			r.raw = true
		} else {
			r.headers.Set("Transfer-Encoding", "chunked")
		}
	} else {
		value, found := r.headers.Get("Content-Length")
		switch {
		case found:
			length, err := strconv.ParseInt(value, 10, 64)
			if err != nil || length < 0 {
				return ErrBadContentLength
			}

			r.length = length
		case r.req.head.Method != method.HEAD:
			return ErrLengthRequired
		}
	}

	r.keepAlive = r.decideKeepAlive()
	switch {
	case !r.keepAlive && r.req.head.Proto != proto.HTTP10:
		r.headers.Set("Connection", "close")
	case r.keepAlive && r.req.head.Proto == proto.HTTP10:
		r.headers.Set("Connection", "keep-alive")
	}

	buf := bytebufferpool.Get()
	r.conn.srv.serializer.Head(buf, r.req.head.Proto, r.code, r.message, r.headers)
	err := r.conn.out.Write(buf.B)
	bytebufferpool.Put(buf)
	if err != nil {
		return err
	}

	r.state = HeadersFlushed
	r.headWritten = true
	return nil
}

func (r *Response) decideKeepAlive() bool {
	if !r.conn.srv.Config.HTTP.KeepAlive || r.raw {
		return false
	}

	if httpguts.HeaderValuesContainsToken(r.headers.Values("Connection"), "close") {
		return false
	}

	requested := r.req.head.Headers.Values("Connection")
	if r.req.head.Proto == proto.HTTP10 {
		return httpguts.HeaderValuesContainsToken(requested, "keep-alive")
	}

	return !httpguts.HeaderValuesContainsToken(requested, "close")
}

func (r *Response) writeBody(data []byte) error {
	if len(data) == 0 || r.req.head.Method == method.HEAD {
		return nil
	}

	if !r.chunked || r.raw {
		if r.length >= 0 && r.written+int64(len(data)) > r.length {
			return ErrContentLengthExceeded
		}

		if err := r.conn.out.Write(data); err != nil {
			return err
		}

		r.written += int64(len(data))
		return nil
	}

	frame := r.conn.srv.Config.HTTP.MaxFrameSize
	if frame <= 0 {
		frame = len(data)
	}

	buf := bytebufferpool.Get()
	for piece := data; len(piece) > 0; {
		n := min(len(piece), frame)
		http1.Chunk(buf, piece[:n])
		piece = piece[n:]
	}

	err := r.conn.out.Write(buf.B)
	bytebufferpool.Put(buf)
	if err != nil {
		return err
	}

	r.written += int64(len(data))
	return nil
}

func (r *Response) finish() error {
	if r.chunked && !r.raw && r.req.head.Method != method.HEAD {
		buf := bytebufferpool.Get()
		http1.LastChunk(buf, r.trailers)
		err := r.conn.out.Write(buf.B)
		bytebufferpool.Put(buf)
		if err != nil {
			return err
		}
	}

	// the client can't tell the end of a body shorter than announced
	short := !r.chunked && r.written < r.length && r.req.head.Method != method.HEAD

	r.state = ResponseEnded
	onEnd := r.onEnd
	r.onEnd, r.onClose, r.onDrain = nil, nil, nil

	if onEnd != nil {
		onEnd()
	}

	r.conn.responseEnded(r.keepAlive && !short)
	return nil
}

// forceClose moves the response into the Closed state, notifying the close handler.
func (r *Response) forceClose() {
	if r.state == ResponseEnded || r.state == Closed {
		return
	}

	r.state = Closed
	onClose := r.onClose
	r.onEnd, r.onClose, r.onDrain, r.onError = nil, nil, nil, nil

	if onClose != nil {
		onClose()
	}
}

func (r *Response) drained() {
	if r.onDrain != nil {
		r.onDrain()
	}
}

func (r *Response) failed(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}
