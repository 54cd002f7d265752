package http1

import (
	"math"
	"strings"

	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http/method"
	"github.com/indigo-web/reactor/http/proto"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/internal/strutil"
	"github.com/indigo-web/reactor/kv"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"golang.org/x/net/http/httpguts"
)

const (
	// the longest supported method, OPTIONS or CONNECT
	maxMethodLength = len("CONNECT")
	protoLength     = len("HTTP/x.x")
)

// Parser is a stream-based parser of request heads. It is fed with arbitrary pieces of data,
// so the head may come in a single piece as well as byte-by-byte. Once the head is completed,
// the rest of the data is returned as an extra, which is the body or the next request.
//
// The parser never retains the passed data, all the values are copied.
type Parser struct {
	cfg           *config.Config
	state         parserState
	token         token
	head          Head
	headersNumber int
	headersSize   int
	key           string
}

func NewParser(cfg *config.Config) *Parser {
	return &Parser{
		cfg:   cfg,
		state: eLeadingCRLF,
		token: newToken(256, max(cfg.URI.MaxLength, cfg.Headers.Space.Maximal)+1),
		head:  Head{Headers: kv.New()},
	}
}

// Parse consumes the data until the head is completed. In that case, done is true and
// extra contains the data left unprocessed. The completed head is available via Head until
// the next call to Parse.
func (p *Parser) Parse(data []byte) (done bool, extra []byte, err error) {
	if p.state == eDone {
		p.Reset()
	}

	for i := 0; i < len(data); i++ {
		c := data[i]

		switch p.state {
		case eLeadingCRLF:
			// RFC 9112, 2.2: a server SHOULD ignore at least one empty line received prior
			// to the request-line
			if c == '\r' || c == '\n' {
				continue
			}

			p.state = eMethod
			fallthrough
		case eMethod:
			if c == ' ' {
				token := p.token.bytes()
				if len(token) == 0 {
					return false, nil, status.ErrBadRequest
				}

				p.head.Method = method.Parse(uf.B2S(token))
				switch p.head.Method {
				case method.Unknown, method.CONNECT:
					return false, nil, status.ErrMethodNotImplemented
				}

				p.token.reset()
				p.state = eURI
				continue
			}

			if !httpguts.IsTokenRune(rune(c)) {
				return false, nil, status.ErrBadRequest
			}

			if p.token.len() >= maxMethodLength {
				return false, nil, status.ErrMethodNotImplemented
			}

			p.token.push(c)
		case eURI:
			switch {
			case c == ' ':
				if p.token.len() == 0 {
					return false, nil, status.ErrBadRequest
				}

				if err = p.setURI(string(p.token.bytes())); err != nil {
					return false, nil, err
				}

				p.token.reset()
				p.state = eProto
			case c == '#', c <= 0x20, c == 0x7f:
				// fragments are never sent by conforming clients, and no control characters
				// are allowed
				return false, nil, status.ErrBadRequest
			default:
				if p.token.len() >= p.cfg.URI.MaxLength {
					return false, nil, status.ErrURITooLong
				}

				p.token.push(c)
			}
		case eProto:
			switch c {
			case '\r':
				p.state = eProtoCR
			case '\n':
				if err = p.setProto(); err != nil {
					return false, nil, err
				}

				p.state = eHeaderLine
			default:
				if p.token.len() >= protoLength {
					return false, nil, status.ErrHTTPVersionNotSupported
				}

				p.token.push(c)
			}
		case eProtoCR:
			if c != '\n' {
				return false, nil, status.ErrBadRequest
			}

			if err = p.setProto(); err != nil {
				return false, nil, err
			}

			p.state = eHeaderLine
		case eHeaderLine:
			switch c {
			case '\r':
				p.state = eHeadersEndCR
			case '\n':
				return p.complete(data[i+1:])
			case ' ', '\t':
				// obsolete line folding
				return false, nil, status.ErrBadHeaderField
			default:
				p.headersNumber++
				if p.headersNumber > p.cfg.Headers.Number.Maximal {
					return false, nil, status.ErrTooManyHeaders
				}

				if err = p.appendHeaderByte(c); err != nil {
					return false, nil, err
				}

				p.state = eHeaderKey
			}
		case eHeadersEndCR:
			if c != '\n' {
				return false, nil, status.ErrBadRequest
			}

			return p.complete(data[i+1:])
		case eHeaderKey:
			switch c {
			case ':':
				key := p.token.bytes()
				if !httpguts.ValidHeaderFieldName(uf.B2S(key)) {
					return false, nil, status.ErrBadHeaderField
				}

				p.key = string(key)
				p.token.reset()
				p.state = eHeaderValueLead
			case '\r', '\n':
				return false, nil, status.ErrBadHeaderField
			default:
				if err = p.appendHeaderByte(c); err != nil {
					return false, nil, err
				}
			}
		case eHeaderValueLead:
			if c == ' ' || c == '\t' {
				continue
			}

			p.state = eHeaderValue
			fallthrough
		case eHeaderValue:
			switch c {
			case '\r':
				p.state = eHeaderValueCR
			case '\n':
				if err = p.addHeader(); err != nil {
					return false, nil, err
				}

				p.state = eHeaderLine
			default:
				if err = p.appendHeaderByte(c); err != nil {
					return false, nil, err
				}
			}
		case eHeaderValueCR:
			if c != '\n' {
				return false, nil, status.ErrBadHeaderField
			}

			if err = p.addHeader(); err != nil {
				return false, nil, err
			}

			p.state = eHeaderLine
		}
	}

	return false, nil, nil
}

// Head returns the last completed head. The returned value shares nothing with the parser,
// except the headers storage, which is replaced by a new one on Reset.
func (p *Parser) Head() Head {
	return p.head
}

// Reset prepares the parser for the next request.
func (p *Parser) Reset() {
	p.state = eLeadingCRLF
	p.token.reset()
	p.head = Head{Headers: kv.New()}
	p.headersNumber = 0
	p.headersSize = 0
	p.key = ""
}

func (p *Parser) appendHeaderByte(c byte) error {
	p.headersSize++
	if p.headersSize > p.cfg.Headers.Space.Maximal || !p.token.push(c) {
		return status.ErrHeaderFieldsTooLarge
	}

	return nil
}

func (p *Parser) addHeader() error {
	value := strutil.RStripWS(string(p.token.bytes()))
	p.token.reset()
	if !httpguts.ValidHeaderFieldValue(value) {
		return status.ErrBadHeaderField
	}

	p.head.Headers.Add(p.key, value)
	return nil
}

func (p *Parser) setProto() error {
	token := p.token.bytes()
	p.token.reset()

	if len(token) != protoLength || !strings.HasPrefix(uf.B2S(token), "HTTP/") {
		return status.ErrBadRequest
	}

	switch proto.FromBytes(token) {
	case proto.HTTP10:
		p.head.Proto = proto.HTTP10
	case proto.HTTP11:
		p.head.Proto = proto.HTTP11
	default:
		return status.ErrHTTPVersionNotSupported
	}

	return nil
}

func (p *Parser) setURI(uri string) error {
	p.head.URI = uri
	target := uri

	switch {
	case uri == "*":
		if p.head.Method != method.OPTIONS {
			return status.ErrBadRequest
		}

		p.head.Path = uri
		return nil
	case uri[0] == '/':
	default:
		// absolute-form, e.g. http://example.com/path?query
		scheme, rest, found := strings.Cut(uri, "://")
		if !found || !(strcomp.EqualFold(scheme, "http") || strcomp.EqualFold(scheme, "https")) {
			return status.ErrBadRequest
		}

		switch boundary := strings.IndexAny(rest, "/?"); {
		case boundary == -1:
			target = "/"
		case rest[boundary] == '?':
			target = "/" + rest[boundary:]
		default:
			target = rest[boundary:]
		}
	}

	p.head.Path, p.head.Query, _ = strings.Cut(target, "?")
	return nil
}

func (p *Parser) complete(extra []byte) (bool, []byte, error) {
	if err := p.framing(); err != nil {
		return false, nil, err
	}

	p.state = eDone
	return true, extra, nil
}

// framing derives the body framing, following RFC 9112, 6.3.
func (p *Parser) framing() error {
	h := &p.head

	if encodings := h.Headers.Values("Transfer-Encoding"); len(encodings) > 0 {
		if h.Headers.Has("Content-Length") {
			return status.ErrAmbiguousFraming
		}

		if !chunkedOnly(encodings) {
			return status.ErrUnsupportedEncoding
		}

		h.Chunked = true
		h.HasTrailer = h.Headers.Has("Trailer")
		return nil
	}

	if values := h.Headers.Values("Content-Length"); len(values) > 0 {
		length, err := contentLength(values)
		if err != nil {
			return err
		}

		if uint64(length) > p.cfg.Body.MaxSize {
			return status.ErrBodyTooLarge
		}

		h.ContentLength = length
	}

	return nil
}

// chunkedOnly reports whether chunked is the one and only transfer coding applied. No other
// codings are supported.
func chunkedOnly(values []string) bool {
	var chunked int

	for _, value := range values {
		for _, token := range strings.Split(value, ",") {
			token = strutil.StripWS(token)
			if len(token) == 0 {
				continue
			}

			if !strcomp.EqualFold(token, "chunked") {
				return false
			}

			chunked++
		}
	}

	return chunked == 1
}

// contentLength parses the Content-Length values. Repeated fields or lists are allowed as
// long as all of them carry the same value.
func contentLength(values []string) (length int64, err error) {
	length = -1

	for _, value := range values {
		for _, token := range strings.Split(value, ",") {
			n, ok := parseUint(strutil.StripWS(token))
			if !ok || (length != -1 && n != length) {
				return 0, status.ErrBadContentLength
			}

			length = n
		}
	}

	return length, nil
}

// parseUint is a tiny strict implementation of strconv.ParseInt, accepting digits only.
func parseUint(str string) (num int64, ok bool) {
	if len(str) == 0 {
		return 0, false
	}

	for i := 0; i < len(str); i++ {
		digit := int64(str[i] - '0')
		if digit > 9 {
			return 0, false
		}

		if num > (math.MaxInt64-digit)/10 {
			return 0, false
		}

		num = num*10 + digit
	}

	return num, true
}
