package http1

import (
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http/method"
	"github.com/indigo-web/reactor/http/proto"
	"github.com/indigo-web/reactor/http/status"
	"github.com/stretchr/testify/require"
)

func getParser() *Parser {
	return NewParser(config.Default())
}

func splitIntoParts(req string, n int) (parts []string) {
	for i := 0; i < len(req); i += n {
		parts = append(parts, req[i:min(i+n, len(req))])
	}

	return parts
}

func feedPartially(parser *Parser, raw string, n int) (done bool, extra []byte, err error) {
	for _, part := range splitIntoParts(raw, n) {
		done, extra, err = parser.Parse([]byte(part))
		if err != nil || done {
			return done, extra, err
		}
	}

	return done, extra, err
}

func TestParser(t *testing.T) {
	t.Run("simple GET", func(t *testing.T) {
		parser := getParser()
		done, extra, err := parser.Parse([]byte("GET / HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		require.True(t, done)
		require.Empty(t, extra)

		head := parser.Head()
		require.Equal(t, method.GET, head.Method)
		require.Equal(t, "/", head.Path)
		require.Equal(t, proto.HTTP11, head.Proto)
		require.True(t, head.Headers.Empty())
		require.False(t, head.HasBody())
	})

	t.Run("path and query", func(t *testing.T) {
		parser := getParser()
		done, _, err := parser.Parse([]byte("GET /a/b/c/page.html?param1=abc&param2=xyz HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		require.True(t, done)

		head := parser.Head()
		require.Equal(t, "/a/b/c/page.html?param1=abc&param2=xyz", head.URI)
		require.Equal(t, "/a/b/c/page.html", head.Path)
		require.Equal(t, "param1=abc&param2=xyz", head.Query)
	})

	t.Run("absolute form", func(t *testing.T) {
		for raw, path := range map[string]string{
			"http://example.com/hello?a=b": "/hello",
			"https://example.com":          "/",
			"http://example.com?a=b":       "/",
		} {
			parser := getParser()
			done, _, err := parser.Parse([]byte("GET " + raw + " HTTP/1.1\r\n\r\n"))
			require.NoError(t, err, raw)
			require.True(t, done)
			require.Equal(t, path, parser.Head().Path)
			require.Equal(t, raw, parser.Head().URI)
		}
	})

	t.Run("headers", func(t *testing.T) {
		raw := "POST /upload HTTP/1.0\r\n" +
			"Host: localhost:8080\r\n" +
			"Content-Length:   13  \r\n" +
			"Hello: World\r\n" +
			"hello: Pavlo\r\n" +
			"\r\n" +
			"Hello, world!"

		for _, n := range []int{1, 2, 7, len(raw)} {
			parser := getParser()
			done, extra, err := feedPartially(parser, raw, n)
			require.NoError(t, err)
			require.True(t, done)

			head := parser.Head()
			require.Equal(t, method.POST, head.Method)
			require.Equal(t, proto.HTTP10, head.Proto)
			require.Equal(t, "localhost:8080", head.Headers.Value("host"))
			require.Equal(t, []string{"World", "Pavlo"}, head.Headers.Values("HELLO"))
			require.Equal(t, int64(13), head.ContentLength)
			require.True(t, head.HasBody())

			if n == len(raw) {
				require.Equal(t, "Hello, world!", string(extra))
			}
		}
	})

	t.Run("random header names", func(t *testing.T) {
		parser := getParser()
		var request strings.Builder
		request.WriteString("GET / HTTP/1.1\r\n")
		keys := make([]string, 20)
		for i := range keys {
			keys[i] = uniuri.NewLen(16)
			request.WriteString(keys[i] + ": " + keys[i] + "\r\n")
		}
		request.WriteString("\r\n")

		done, _, err := parser.Parse([]byte(request.String()))
		require.NoError(t, err)
		require.True(t, done)

		for _, key := range keys {
			require.Equal(t, key, parser.Head().Headers.Value(strings.ToUpper(key)))
		}
	})

	t.Run("leading empty lines", func(t *testing.T) {
		parser := getParser()
		done, _, err := parser.Parse([]byte("\r\n\r\nGET / HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		require.True(t, done)
	})

	t.Run("bare LF", func(t *testing.T) {
		parser := getParser()
		done, _, err := parser.Parse([]byte("GET / HTTP/1.1\nHost: x\n\n"))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, "x", parser.Head().Headers.Value("Host"))
	})

	t.Run("pipelined requests", func(t *testing.T) {
		parser := getParser()
		done, extra, err := parser.Parse([]byte("GET /first HTTP/1.1\r\n\r\nGET /second HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		require.True(t, done)
		first := parser.Head()
		require.Equal(t, "/first", first.Path)

		done, extra, err = parser.Parse(extra)
		require.NoError(t, err)
		require.True(t, done)
		require.Empty(t, extra)
		require.Equal(t, "/second", parser.Head().Path)
		// heads don't share header storages
		require.NotSame(t, first.Headers, parser.Head().Headers)
	})

	t.Run("chunked", func(t *testing.T) {
		parser := getParser()
		done, _, err := parser.Parse([]byte(
			"POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\nTrailer: X-Done\r\n\r\n",
		))
		require.NoError(t, err)
		require.True(t, done)
		require.True(t, parser.Head().Chunked)
		require.True(t, parser.Head().HasTrailer)
		require.True(t, parser.Head().HasBody())
	})

	t.Run("repeated equal content length", func(t *testing.T) {
		parser := getParser()
		_, _, err := parser.Parse([]byte(
			"POST / HTTP/1.1\r\nContent-Length: 5, 5\r\nContent-Length: 5\r\n\r\n",
		))
		require.NoError(t, err)
		require.Equal(t, int64(5), parser.Head().ContentLength)
	})
}

func TestParserErrors(t *testing.T) {
	cfg := config.Default()
	cfg.URI.MaxLength = 64
	cfg.Headers.Number.Maximal = 3
	cfg.Headers.Space.Maximal = 128
	cfg.Body.MaxSize = 1024

	tcs := []struct {
		Name    string
		Request string
		Err     error
	}{
		{"unknown method", "FETCH / HTTP/1.1\r\n\r\n", status.ErrMethodNotImplemented},
		{"connect", "CONNECT example.com:443 HTTP/1.1\r\n\r\n", status.ErrMethodNotImplemented},
		{"method with garbage", "G(T / HTTP/1.1\r\n\r\n", status.ErrBadRequest},
		{"empty method", " / HTTP/1.1\r\n\r\n", status.ErrBadRequest},
		{"empty path", "GET  HTTP/1.1\r\n\r\n", status.ErrBadRequest},
		{"fragment", "GET /#top HTTP/1.1\r\n\r\n", status.ErrBadRequest},
		{"control character", "GET /\x01 HTTP/1.1\r\n\r\n", status.ErrBadRequest},
		{"unknown scheme", "GET ftp://example.com/ HTTP/1.1\r\n\r\n", status.ErrBadRequest},
		{"asterisk not for OPTIONS", "GET * HTTP/1.1\r\n\r\n", status.ErrBadRequest},
		{"too long URI", "GET /" + strings.Repeat("a", 64) + " HTTP/1.1\r\n\r\n", status.ErrURITooLong},
		{"garbage protocol", "GET / HTTX/1.1\r\n\r\n", status.ErrBadRequest},
		{"HTTP/2", "GET / HTTP/2.0\r\n\r\n", status.ErrHTTPVersionNotSupported},
		{"too long protocol", "GET / HTTP/1.1.1\r\n\r\n", status.ErrHTTPVersionNotSupported},
		{"no LF after CR", "GET / HTTP/1.1\rX", status.ErrBadRequest},
		{"bad header name", "GET / HTTP/1.1\r\nHel lo: x\r\n\r\n", status.ErrBadHeaderField},
		{"no colon", "GET / HTTP/1.1\r\nHello\r\n\r\n", status.ErrBadHeaderField},
		{"line folding", "GET / HTTP/1.1\r\nA: b\r\n c\r\n\r\n", status.ErrBadHeaderField},
		{"bad header value", "GET / HTTP/1.1\r\nA: b\x00c\r\n\r\n", status.ErrBadHeaderField},
		{"too many headers", "GET / HTTP/1.1\r\nA: 1\r\nB: 2\r\nC: 3\r\nD: 4\r\n\r\n", status.ErrTooManyHeaders},
		{"too large headers", "GET / HTTP/1.1\r\nA: " + strings.Repeat("b", 128) + "\r\n\r\n", status.ErrHeaderFieldsTooLarge},
		{"bad content length", "POST / HTTP/1.1\r\nContent-Length: 1a\r\n\r\n", status.ErrBadContentLength},
		{"negative content length", "POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n", status.ErrBadContentLength},
		{"conflicting content length", "POST / HTTP/1.1\r\nContent-Length: 1\r\nContent-Length: 2\r\n\r\n", status.ErrBadContentLength},
		{"overflowing content length", "POST / HTTP/1.1\r\nContent-Length: 99999999999999999999\r\n\r\n", status.ErrBadContentLength},
		{"too large body", "POST / HTTP/1.1\r\nContent-Length: 1025\r\n\r\n", status.ErrBodyTooLarge},
		{"ambiguous framing", "POST / HTTP/1.1\r\nContent-Length: 1\r\nTransfer-Encoding: chunked\r\n\r\n", status.ErrAmbiguousFraming},
		{"unsupported encoding", "POST / HTTP/1.1\r\nTransfer-Encoding: gzip, chunked\r\n\r\n", status.ErrUnsupportedEncoding},
		{"double chunked", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked, chunked\r\n\r\n", status.ErrUnsupportedEncoding},
	}

	for _, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			parser := NewParser(cfg)
			done, _, err := parser.Parse([]byte(tc.Request))
			require.False(t, done)
			require.Equal(t, tc.Err, err)
		})
	}
}
