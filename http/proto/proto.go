// Package proto enumerates the supported protocol versions.
package proto

import "github.com/indigo-web/utils/uf"

type Proto uint8

const (
	Unknown Proto = iota
	HTTP10
	HTTP11
)

var names = [...]string{
	Unknown: "",
	HTTP10:  "HTTP/1.0",
	HTTP11:  "HTTP/1.1",
}

// String returns the protocol token as it appears in the start line.
func (p Proto) String() string {
	if int(p) >= len(names) {
		return ""
	}

	return names[p]
}

// FromBytes recognizes the HTTP-version token. Anything but the exact (case-sensitive)
// HTTP/1.0 or HTTP/1.1 is Unknown.
func FromBytes(raw []byte) Proto {
	switch uf.B2S(raw) {
	case "HTTP/1.1":
		return HTTP11
	case "HTTP/1.0":
		return HTTP10
	default:
		return Unknown
	}
}
