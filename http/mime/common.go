package mime

import (
	"strings"

	"github.com/indigo-web/reactor/internal/strutil"
)

type MIME = string

const (
	OctetStream    MIME = "application/octet-stream"
	Plain          MIME = "text/plain"
	HTML           MIME = "text/html"
	XML            MIME = "text/xml"
	CSS            MIME = "text/css"
	JS             MIME = "text/javascript"
	JSON           MIME = "application/json"
	YAML           MIME = "application/yaml"
	PDF            MIME = "application/pdf"
	ZIP            MIME = "application/zip"
	GZIP           MIME = "application/gzip"
	WASM           MIME = "application/wasm"
	FormUrlencoded MIME = "application/x-www-form-urlencoded"
	Multipart      MIME = "multipart/form-data"
	AVIF           MIME = "image/avif"
	GIF            MIME = "image/gif"
	JPEG           MIME = "image/jpeg"
	PNG            MIME = "image/png"
	SVG            MIME = "image/svg+xml"
	ICO            MIME = "image/vnd.microsoft.icon"
	WEBP           MIME = "image/webp"
	MP4            MIME = "video/mp4"
)

// Complies returns whether the header value (parameters are ignored) denotes the MIME.
// Comparison is case-insensitive.
func Complies(mime MIME, with string) bool {
	with, _ = strutil.CutHeader(with)
	return strings.EqualFold(with, mime)
}

// Boundary extracts the boundary parameter of a multipart Content-Type value. Returns false
// if the boundary is missing or is invalid.
func Boundary(contentType string) (string, bool) {
	value, params := strutil.CutHeader(contentType)
	if !Complies(Multipart, value) {
		return "", false
	}

	for key, param := range strutil.WalkKV(params) {
		if len(key) == 0 {
			return "", false
		}

		if key == "boundary" {
			return param, len(param) > 0 && len(param) <= 70
		}
	}

	return "", false
}
