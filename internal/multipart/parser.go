// Package multipart implements an incremental multipart/form-data parser. Unlike the
// mime/multipart package, it never pulls the data: it's fed with whatever arrives from the
// connection and emits events as soon as they can be decided, so arbitrary large files are
// streamed with the memory bounded by the delimiter length and part headers limit.
package multipart

import (
	"bytes"
	"strings"

	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/internal/strutil"
	"github.com/indigo-web/reactor/kv"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
)

// RFC 2046, 5.1.1: boundary := 0*69<bchars> bcharsnospace
const maxBoundaryLength = 70

var (
	ErrMalformed          = status.ErrBadMultipart
	ErrUnexpectedEOF      = status.NewError(status.BadRequest, "unexpected end of multipart body")
	ErrPartHeadersTooLong = status.NewError(status.RequestHeaderFieldsTooLarge, "too large multipart part headers")
	ErrBadBoundary        = status.NewError(status.BadRequest, "bad multipart boundary")
)

type Event uint8

const (
	// NeedMore means no more events can be emitted until more data is fed.
	NeedMore Event = iota
	// PartBegin signals that headers of a new part are parsed. See Parser.Part.
	PartBegin
	// PartData carries a piece of the current part's content. See Parser.Data.
	PartData
	// PartEnd signals that the current part is completed.
	PartEnd
	// Done is emitted once the closing delimiter is met. All the data afterward is discarded.
	Done
)

func (e Event) String() string {
	switch e {
	case NeedMore:
		return "NeedMore"
	case PartBegin:
		return "PartBegin"
	case PartData:
		return "PartData"
	case PartEnd:
		return "PartEnd"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Part describes a single body part by its headers.
type Part struct {
	Name             string
	Filename         string
	ContentType      string
	Charset          string
	TransferEncoding string
	// File is set if the filename parameter is presented, even empty one, which is
	// what browsers send for a file input with no file chosen.
	File    bool
	Headers *kv.Storage
}

type parserState uint8

const (
	ePreamble parserState = iota
	eAfterBoundary
	eHeaders
	eBody
	eEpilogue
)

type Parser struct {
	// dashBoundary opens the first part, delimiter all the following ones.
	dashBoundary, delimiter string
	maxHeaderSize           int
	state                   parserState
	buf                     []byte
	offset                  int
	headersSize             int
	part                    Part
	data                    []byte
}

// NewParser returns a parser for the boundary, as it's presented in the Content-Type
// parameter.
func NewParser(boundary string, maxHeaderSize int) (*Parser, error) {
	if len(boundary) == 0 || len(boundary) > maxBoundaryLength || strings.HasSuffix(boundary, " ") {
		return nil, ErrBadBoundary
	}

	return &Parser{
		dashBoundary:  "--" + boundary,
		delimiter:     "\r\n--" + boundary,
		maxHeaderSize: maxHeaderSize,
		state:         ePreamble,
	}, nil
}

// Feed appends the data to the parser. The data is copied, so the caller may reuse it right
// after the call. Previously returned Data views are invalidated.
func (p *Parser) Feed(data []byte) {
	if p.state == eEpilogue {
		return
	}

	if p.offset > 0 {
		n := copy(p.buf, p.buf[p.offset:])
		p.buf = p.buf[:n]
		p.offset = 0
	}

	p.buf = append(p.buf, data...)
}

// Part returns the current part. Valid since PartBegin until the next PartBegin.
func (p *Parser) Part() Part {
	return p.part
}

// Data returns the content piece of the latest PartData event. The slice is valid only until
// the next Feed call.
func (p *Parser) Data() []byte {
	return p.data
}

// Next advances the parser by a single event. Once NeedMore is returned, the parser must be
// fed before calling Next again.
func (p *Parser) Next() (Event, error) {
	for {
		rest := p.buf[p.offset:]

		switch p.state {
		case ePreamble:
			// the preamble is ignored, as well as the data preceding the very first boundary
			// on the same line
			i := bytes.Index(rest, uf.S2B(p.dashBoundary))
			if i == -1 {
				p.discard(len(rest) - (len(p.dashBoundary) - 1))
				return NeedMore, nil
			}

			p.offset += i + len(p.dashBoundary)
			p.state = eAfterBoundary
		case eAfterBoundary:
			// linear whitespaces are allowed between the boundary and the line break
			trimmed := bytes.TrimLeft(rest, " \t")
			p.offset += len(rest) - len(trimmed)

			if len(trimmed) < 2 {
				return NeedMore, nil
			}

			switch {
			case trimmed[0] == '-' && trimmed[1] == '-':
				p.state = eEpilogue
				p.buf, p.offset = nil, 0
				return Done, nil
			case trimmed[0] == '\r' && trimmed[1] == '\n':
				p.offset += 2
				p.state = eHeaders
				p.headersSize = 0
				p.part = Part{Headers: kv.New()}
			default:
				return NeedMore, ErrMalformed
			}
		case eHeaders:
			i := bytes.Index(rest, []byte("\r\n"))
			if i == -1 {
				if p.headersSize+len(rest) > p.maxHeaderSize {
					return NeedMore, ErrPartHeadersTooLong
				}

				return NeedMore, nil
			}

			p.headersSize += i + 2
			if p.headersSize > p.maxHeaderSize {
				return NeedMore, ErrPartHeadersTooLong
			}

			line := string(rest[:i])
			p.offset += i + 2

			if len(line) == 0 {
				if len(p.part.Name) == 0 {
					return NeedMore, ErrMalformed
				}

				p.state = eBody
				return PartBegin, nil
			}

			if err := p.header(line); err != nil {
				return NeedMore, err
			}
		case eBody:
			i := bytes.Index(rest, uf.S2B(p.delimiter))
			switch {
			case i == 0:
				p.offset += len(p.delimiter)
				p.state = eAfterBoundary
				p.data = nil
				return PartEnd, nil
			case i > 0:
				return p.emit(i), nil
			}

			// the tail might be the beginning of the delimiter, so hold it back
			if safe := len(rest) - (len(p.delimiter) - 1); safe > 0 {
				return p.emit(safe), nil
			}

			return NeedMore, nil
		case eEpilogue:
			return NeedMore, nil
		}
	}
}

// Close must be called when the body is over. It fails if the closing delimiter was never
// met.
func (p *Parser) Close() error {
	if p.state != eEpilogue {
		return ErrUnexpectedEOF
	}

	return nil
}

func (p *Parser) emit(n int) Event {
	p.data = p.buf[p.offset : p.offset+n]
	p.offset += n
	return PartData
}

func (p *Parser) discard(n int) {
	if n > 0 {
		p.offset += n
	}
}

func (p *Parser) header(line string) error {
	key, value, found := strings.Cut(line, ":")
	if !found || len(key) == 0 {
		return ErrMalformed
	}

	key, value = strutil.StripWS(key), strutil.StripWS(value)
	p.part.Headers.Add(key, value)

	switch {
	case strcomp.EqualFold(key, "Content-Disposition"):
		disposition, params := strutil.CutHeader(value)
		if !strcomp.EqualFold(disposition, "form-data") {
			return ErrMalformed
		}

		for param, paramValue := range strutil.WalkKV(params) {
			switch param {
			case "":
				return ErrMalformed
			case "name":
				p.part.Name = paramValue
			case "filename":
				p.part.Filename = paramValue
				p.part.File = true
			}
		}
	case strcomp.EqualFold(key, "Content-Type"):
		var params string
		p.part.ContentType, params = strutil.CutHeader(value)
		for param, paramValue := range strutil.WalkKV(params) {
			if param == "charset" {
				p.part.Charset = paramValue
			}
		}
	case strcomp.EqualFold(key, "Content-Transfer-Encoding"):
		p.part.TransferEncoding = value
	}

	return nil
}
