package http

import (
	"net"

	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http/crypt"
	"github.com/indigo-web/reactor/internal/http1"
	"github.com/indigo-web/reactor/loop"
	"github.com/indigo-web/reactor/transport"
	"github.com/rs/zerolog"
)

// Handler is called once per request, as soon as its head is received. The body, if any,
// is delivered afterward via the request's handlers.
type Handler func(request *Request)

// Server drives HTTP/1.x connections. It's stateless between connections, therefore a
// single instance serves all of them.
type Server struct {
	Config  *config.Config
	Handler Handler
	Pool    *loop.Pool
	Logger  zerolog.Logger

	serializer *http1.Serializer
}

func NewServer(cfg *config.Config, handler Handler, pool *loop.Pool, logger zerolog.Logger) *Server {
	return &Server{
		Config:     cfg,
		Handler:    handler,
		Pool:       pool,
		Logger:     logger,
		serializer: http1.NewSerializer(cfg.Headers.Default),
	}
}

// ServeConn serves the connection until it's closed. It must be called on its own goroutine,
// which is used to read from the connection only. Everything else happens on the loop.
func (s *Server) ServeConn(l *loop.Loop, nc net.Conn, enc crypt.Encryption) {
	c := newConn(s, l, nc, enc)
	client := transport.NewClient(nc, s.Config.NET.IdleTimeout, make([]byte, s.Config.NET.ReadBufferSize))

	for {
		data, err := client.Read()
		if len(data) > 0 && !c.dispatch(data) {
			break
		}

		if err != nil {
			if !l.Execute(func() { c.shutdown(false, ErrConnectionClosed) }) {
				c.out.Abort()
			}

			break
		}
	}

	// the connection is closed by the caller once we return, so let the queue flush first
	<-c.out.Done()
}
