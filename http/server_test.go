package http

import (
	"bufio"
	"io"
	"net"
	stdhttp "net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http/crypt"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/loop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// launch serves the handler on a random loopback port. Every connection is bound to the
// same loop.
func launch(t *testing.T, handler Handler, tune ...func(*config.Config)) string {
	t.Helper()

	cfg := config.Default()
	for _, fn := range tune {
		fn(cfg)
	}

	l := loop.New(0, zerolog.Nop())
	pool := loop.NewPool(2, 8)
	srv := NewServer(cfg, handler, pool, zerolog.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				srv.ServeConn(l, nc, crypt.Plain)
				_ = nc.Close()
			}()
		}
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		wg.Wait()
		l.Stop()
		l.Wait()
		pool.Close()
	})

	return ln.Addr().String()
}

type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *client {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return &client{
		t:    t,
		conn: conn,
		r:    bufio.NewReader(conn),
	}
}

func (c *client) send(data string) *client {
	c.t.Helper()
	_, err := c.conn.Write([]byte(data))
	require.NoError(c.t, err)

	return c
}

// read reads a single response to the request with the method.
func (c *client) read(method string) (*stdhttp.Response, string) {
	c.t.Helper()

	resp, err := stdhttp.ReadResponse(c.r, &stdhttp.Request{Method: method})
	require.NoError(c.t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	require.NoError(c.t, resp.Body.Close())

	return resp, string(body)
}

func (c *client) requireClosed() {
	c.t.Helper()
	_, err := c.r.ReadByte()
	require.ErrorIs(c.t, err, io.EOF)
}

func TestServer(t *testing.T) {
	t.Run("simple get", func(t *testing.T) {
		addr := launch(t, func(req *Request) {
			resp := req.Response()
			_ = resp.PutHeader("X-Path", req.Path())
			_ = resp.PutHeader("X-Query", req.Query())
			_ = resp.PutHeader("X-Host", req.Header("host"))
			_ = resp.PutHeader("X-Remote", req.Remote().String())
			_ = resp.EndString(req.Params().Value("name"))
		})

		resp, body := dial(t, addr).
			send("GET /hello/world?name=John+Doe&x=1 HTTP/1.1\r\nHost: localhost\r\n\r\n").
			read("GET")
		require.Equal(t, 200, resp.StatusCode)
		require.Equal(t, "John Doe", body)
		require.Equal(t, int64(len(body)), resp.ContentLength)
		require.Equal(t, "/hello/world", resp.Header.Get("X-Path"))
		require.Equal(t, "name=John+Doe&x=1", resp.Header.Get("X-Query"))
		require.Equal(t, "localhost", resp.Header.Get("X-Host"))
		require.Contains(t, resp.Header.Get("X-Remote"), "127.0.0.1:")
		require.False(t, resp.Close)
	})

	t.Run("pipelined requests", func(t *testing.T) {
		addr := launch(t, func(req *Request) {
			_ = req.Response().EndString(req.Path())
		})

		c := dial(t, addr).send(
			"GET /first HTTP/1.1\r\nHost: x\r\n\r\n" +
				"GET /second HTTP/1.1\r\nHost: x\r\n\r\n" +
				"GET /third HTTP/1.1\r\nHost: x\r\n\r\n",
		)

		for _, path := range []string{"/first", "/second", "/third"} {
			resp, body := c.read("GET")
			require.Equal(t, 200, resp.StatusCode)
			require.Equal(t, path, body)
		}
	})

	t.Run("connection close", func(t *testing.T) {
		addr := launch(t, func(req *Request) {
			_ = req.Response().EndString("bye")
		})

		c := dial(t, addr).send("GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
		resp, body := c.read("GET")
		require.Equal(t, "bye", body)
		require.True(t, resp.Close)
		c.requireClosed()
	})

	t.Run("HTTP/1.0", func(t *testing.T) {
		addr := launch(t, func(req *Request) {
			_ = req.Response().EndString(req.Proto().String())
		})

		c := dial(t, addr).send("GET / HTTP/1.0\r\n\r\n")
		resp, body := c.read("GET")
		require.Equal(t, 1, resp.ProtoMajor)
		require.Equal(t, 0, resp.ProtoMinor)
		require.Equal(t, "HTTP/1.0", body)
		c.requireClosed()

		c = dial(t, addr).send("GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n")
		resp, _ = c.read("GET")
		require.Equal(t, "keep-alive", resp.Header.Get("Connection"))
		resp, body = c.send("GET / HTTP/1.0\r\n\r\n").read("GET")
		require.Equal(t, 200, resp.StatusCode)
		require.Equal(t, "HTTP/1.0", body)
	})

	t.Run("protocol error", func(t *testing.T) {
		var called atomic.Bool
		addr := launch(t, func(req *Request) {
			called.Store(true)
			_ = req.Response().End()
		})

		c := dial(t, addr).send("GET / HTTP/1.1\r\nHost: x\r\nBad Header\r\n\r\n")
		resp, body := c.read("GET")
		require.Equal(t, 400, resp.StatusCode)
		require.True(t, resp.Close)
		require.NotEmpty(t, body)
		c.requireClosed()
		require.False(t, called.Load())
	})

	t.Run("unsupported version", func(t *testing.T) {
		addr := launch(t, func(req *Request) {
			_ = req.Response().End()
		})

		c := dial(t, addr).send("GET / HTTP/2.0\r\n\r\n")
		resp, _ := c.read("GET")
		require.Equal(t, int(status.HTTPVersionNotSupported), resp.StatusCode)
		c.requireClosed()
	})

	t.Run("too long URI", func(t *testing.T) {
		addr := launch(t, func(req *Request) {
			_ = req.Response().End()
		}, func(cfg *config.Config) {
			cfg.URI.MaxLength = 64
		})

		c := dial(t, addr).send("GET /" + strings.Repeat("a", 100) + " HTTP/1.1\r\n\r\n")
		resp, _ := c.read("GET")
		require.Equal(t, int(status.RequestURITooLong), resp.StatusCode)
		c.requireClosed()
	})

	t.Run("panicking handler", func(t *testing.T) {
		addr := launch(t, func(req *Request) {
			panic("unexpected")
		})

		c := dial(t, addr).send("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
		resp, _ := c.read("GET")
		require.Equal(t, 500, resp.StatusCode)
		c.requireClosed()
	})

	t.Run("idle timeout", func(t *testing.T) {
		addr := launch(t, func(req *Request) {
			_ = req.Response().End()
		}, func(cfg *config.Config) {
			cfg.NET.IdleTimeout = 100 * time.Millisecond
		})

		c := dial(t, addr)
		resp, _ := c.send("GET / HTTP/1.1\r\nHost: x\r\n\r\n").read("GET")
		require.Equal(t, 200, resp.StatusCode)
		c.requireClosed()
	})

	t.Run("asynchronous response", func(t *testing.T) {
		addr := launch(t, func(req *Request) {
			req.ExecuteBlocking(func() (any, error) {
				time.Sleep(10 * time.Millisecond)
				return "computed", nil
			}, func(result any, err error) {
				if err != nil {
					_ = req.Response().SetStatusCode(status.InternalServerError)
				}

				_ = req.Response().EndString(result.(string))
			})
		})

		c := dial(t, addr).send(
			"GET /a HTTP/1.1\r\nHost: x\r\n\r\n" +
				"GET /b HTTP/1.1\r\nHost: x\r\n\r\n",
		)
		for range 2 {
			resp, body := c.read("GET")
			require.Equal(t, 200, resp.StatusCode)
			require.Equal(t, "computed", body)
		}
	})

	t.Run("keep-alive after asynchronous response", func(t *testing.T) {
		addr := launch(t, func(req *Request) {
			req.ExecuteBlocking(func() (any, error) {
				return req.Path(), nil
			}, func(result any, _ error) {
				_ = req.Response().EndString(result.(string))
			})
		})

		c := dial(t, addr)
		for _, path := range []string{"/a", "/b", "/c"} {
			// the loop goes idle between the requests
			time.Sleep(20 * time.Millisecond)
			resp, body := c.send("GET " + path + " HTTP/1.1\r\nHost: x\r\n\r\n").read("GET")
			require.Equal(t, 200, resp.StatusCode)
			require.Equal(t, path, body)
		}

		resp, body := c.send("GET /last HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n").read("GET")
		require.Equal(t, "/last", body)
		require.True(t, resp.Close)
		c.requireClosed()
	})

	t.Run("default headers", func(t *testing.T) {
		addr := launch(t, func(req *Request) {
			_ = req.Response().PutHeader("Server", "custom")
			_ = req.Response().End()
		}, func(cfg *config.Config) {
			cfg.Headers.Default = map[string]string{
				"Server":       "reactor",
				"X-Powered-By": "loops",
			}
		})

		resp, _ := dial(t, addr).send("GET / HTTP/1.1\r\nHost: x\r\n\r\n").read("GET")
		require.Equal(t, "custom", resp.Header.Get("Server"))
		require.Equal(t, "loops", resp.Header.Get("X-Powered-By"))
	})
}
