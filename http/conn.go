package http

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/indigo-web/reactor/http/crypt"
	"github.com/indigo-web/reactor/http/proto"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/internal/http1"
	"github.com/indigo-web/reactor/loop"
	"github.com/indigo-web/reactor/stream"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/net/http/httpguts"
)

type phase uint8

const (
	phaseHead phase = iota
	phaseBody
	phaseAwaitResponse
	phaseClosed
)

// verdict is the loop's decision about the reading goroutine.
type verdict uint8

const (
	// vRead allows reading more data. The previously passed data is not referenced anymore.
	vRead verdict = iota
	// vWait holds the reader back, as the data is still in use. Another verdict follows.
	vWait
	vClose
)

const continueResponse = "HTTP/1.1 100 Continue\r\n\r\n"

// conn is the state of a single connection. All the fields are owned by the loop, except
// verdicts, which connects it with the reading goroutine.
type conn struct {
	srv    *Server
	loop   *loop.Loop
	nc     net.Conn
	enc    crypt.Encryption
	out    *stream.Queue
	parser *http1.Parser
	body   *http1.Body

	phase      phase
	req        *Request
	pending    []byte
	bodyDone   bool
	// continued is set once the 100 Continue was sent for the current request.
	continued bool
	// closeAfter defers closing the connection until the current request has ended.
	closeAfter bool
	waiting    bool
	closed     bool
	verdicts   chan verdict
}

func newConn(s *Server, l *loop.Loop, nc net.Conn, enc crypt.Encryption) *conn {
	c := &conn{
		srv:      s,
		loop:     l,
		nc:       nc,
		enc:      enc,
		out:      stream.NewQueue(l, nc, s.Config.NET.WriteQueueSize, enc.ZeroCopy()),
		parser:   http1.NewParser(s.Config),
		body:     http1.NewBody(s.Config.Body.MaxSize),
		verdicts: make(chan verdict, 2),
	}
	c.out.OnDrain(c.drained)
	c.out.OnError(c.writeFailed)

	return c
}

// dispatch hands the data over to the loop and blocks until it's allowed to read again.
// Returns false if the connection must be closed.
func (c *conn) dispatch(data []byte) bool {
	if !c.loop.Execute(func() { c.feed(data) }) {
		c.out.Abort()
		return false
	}

	for {
		switch <-c.verdicts {
		case vRead:
			return true
		case vClose:
			return false
		}
	}
}

func (c *conn) feed(data []byte) {
	c.pending = data
	c.proceed()
}

func (c *conn) proceed() {
	c.verdicts <- c.safeProcess()
}

// wake continues processing the pending data, if the reader is waiting for it.
func (c *conn) wake() {
	if c.waiting && !c.closed {
		c.waiting = false
		c.loop.Execute(c.proceed)
	}
}

func (c *conn) safeProcess() (v verdict) {
	defer func() {
		if r := recover(); r != nil {
			c.srv.Logger.Error().
				Str("panic", fmt.Sprint(r)).
				Stringer("remote", c.nc.RemoteAddr()).
				Msg("recovered a panic in a request handler")
			c.fatal(status.ErrInternalServerError.(status.HTTPError), StreamError{Err: fmt.Errorf("panic: %v", r)})
			v = vClose
		}
	}()

	return c.process()
}

func (c *conn) process() verdict {
	for {
		if c.closed {
			return vClose
		}

		switch c.phase {
		case phaseHead:
			if len(c.pending) == 0 {
				return vRead
			}

			done, extra, err := c.parser.Parse(c.pending)
			if err != nil {
				c.protocolError(err)
				return vClose
			}

			if !done {
				c.pending = nil
				return vRead
			}

			c.pending = extra
			c.begin()
		case phaseBody:
			req := c.req
			if req.paused {
				c.waiting = true
				return vWait
			}

			if req.backlog {
				if err := req.drainMultipart(); err != nil {
					c.streamError(err)
				}

				continue
			}

			if c.bodyDone {
				c.phase = phaseAwaitResponse
				if err := req.end(); err != nil {
					c.streamError(err)
				}

				continue
			}

			if len(c.pending) == 0 {
				c.sendContinue()
				return vRead
			}

			chunk, extra, err := c.body.Parse(c.pending)
			c.pending = extra
			switch err {
			case nil:
			case io.EOF:
				c.bodyDone = true
			default:
				c.streamError(StreamError{Err: err})
				continue
			}

			if len(chunk) > 0 {
				if err = req.deliver(chunk); err != nil {
					c.streamError(err)
				}
			}
		case phaseAwaitResponse:
			if !c.req.resp.Ended() {
				c.waiting = true
				return vWait
			}

			if c.closeAfter {
				c.shutdown(true, ErrConnectionClosed)
				continue
			}

			c.req = nil
			c.phase = phaseHead
		case phaseClosed:
			return vClose
		}
	}
}

// begin starts processing the request, which head was just parsed.
func (c *conn) begin() {
	head := c.parser.Head()
	c.body.Reset(&head)
	c.req = newRequest(c, head)
	c.phase = phaseBody
	c.bodyDone = !head.HasBody()
	c.continued = false

	c.req.state = HeadersReceived
	c.srv.Handler(c.req)
}

// sendContinue responds with 100 Continue, if the client waits for it before sending the body.
func (c *conn) sendContinue() {
	if c.continued || c.req.head.Proto != proto.HTTP11 || c.req.resp.HeadWritten() {
		return
	}

	c.continued = true
	if httpguts.HeaderValuesContainsToken(c.req.head.Headers.Values("Expect"), "100-continue") {
		_ = c.out.Write([]byte(continueResponse))
	}
}

// responseEnded is called by the response once it's complete.
func (c *conn) responseEnded(keepAlive bool) {
	if !keepAlive {
		if c.phase == phaseBody && c.bodyDone {
			// the request is about to end, so let it
			c.closeAfter = true
			return
		}

		if c.phase != phaseAwaitResponse {
			c.shutdown(true, ErrConnectionClosed)
			return
		}

		c.closeAfter = true
	}

	if c.phase == phaseAwaitResponse {
		c.wake()
	}
}

func (c *conn) drained() {
	if c.req != nil {
		c.req.resp.drained()
	}
}

func (c *conn) writeFailed(err error) {
	c.srv.Logger.Debug().Err(err).Stringer("remote", c.nc.RemoteAddr()).Msg("write failed")
	if c.req != nil {
		c.req.resp.failed(err)
	}

	c.shutdown(false, StreamError{Err: err})
}

func (c *conn) protocolError(err error) {
	var httpErr status.HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = status.ErrBadRequest.(status.HTTPError)
	}

	c.srv.Logger.Debug().
		Err(err).
		Stringer("remote", c.nc.RemoteAddr()).
		Msg("malformed request")

	c.respondError(proto.HTTP11, httpErr)
	c.shutdown(true, ProtocolError{Err: httpErr})
}

// streamError fails the current request. The error is responded with, if the response
// wasn't started yet.
func (c *conn) streamError(err error) {
	httpErr := status.ErrBadRequest.(status.HTTPError)
	_ = errors.As(err, &httpErr)
	c.fatal(httpErr, err)
}

func (c *conn) fatal(httpErr status.HTTPError, cause error) {
	if c.closed {
		return
	}

	if c.req != nil && !c.req.resp.HeadWritten() && !c.req.resp.sending {
		c.respondError(c.req.head.Proto, httpErr)
	}

	c.shutdown(true, cause)
}

func (c *conn) respondError(p proto.Proto, err status.HTTPError) {
	buf := bytebufferpool.Get()
	c.srv.serializer.Error(buf, p, err)
	_ = c.out.Write(buf.B)
	bytebufferpool.Put(buf)
}

// shutdown closes the connection, either gracefully flushing everything queued or dropping
// it. The in-flight request fails with the cause and the response is closed, unless they
// have already ended.
func (c *conn) shutdown(graceful bool, cause error) {
	if c.closed {
		return
	}

	c.closed = true
	c.phase = phaseClosed
	c.pending = nil

	if req := c.req; req != nil {
		if !errors.As(cause, new(StreamError)) && !errors.As(cause, new(MultipartError)) {
			cause = StreamError{Err: cause}
		}

		req.fail(cause)
		req.resp.forceClose()
	}

	if graceful {
		c.out.Close(nil)
	} else {
		c.out.Abort()
	}

	if c.waiting {
		c.waiting = false
		c.verdicts <- vClose
	}
}
