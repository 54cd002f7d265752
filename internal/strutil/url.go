package strutil

import (
	"strings"

	"github.com/indigo-web/reactor/internal/hexconv"
)

// URLDecode decodes an urlencoded string and tells whether the string was properly formed.
// Plus signs are decoded as spaces only if plus is set.
func URLDecode(str string, plus bool) (string, bool) {
	if strings.IndexByte(str, '%') == -1 && (!plus || strings.IndexByte(str, '+') == -1) {
		return str, true
	}

	var b strings.Builder
	b.Grow(len(str))

	for i := 0; i < len(str); i++ {
		switch c := str[i]; c {
		case '%':
			if i+2 >= len(str) {
				return "", false
			}

			x, y := hexconv.Halfbyte[str[i+1]], hexconv.Halfbyte[str[i+2]]
			if x|y == 0xFF {
				return "", false
			}

			b.WriteByte((x << 4) | y)
			i += 2
		case '+':
			if plus {
				c = ' '
			}

			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), true
}

// ParseQuery decodes pairs of an urlencoded query or form, passing them to the callback.
// Returns false on malformed input.
func ParseQuery(query string, add func(key, value string)) bool {
	for len(query) > 0 {
		var pair string
		pair, query, _ = strings.Cut(query, "&")
		if len(pair) == 0 {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, ok := URLDecode(rawKey, true)
		if !ok {
			return false
		}

		value, ok := URLDecode(rawValue, true)
		if !ok {
			return false
		}

		add(key, value)
	}

	return true
}
