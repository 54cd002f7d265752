package strutil

import (
	"iter"
	"strings"
)

// WalkKV iterates over semicolon-separated header parameters, e.g. `name="field"; filename="a b.txt"`.
// Keys are lower-cased, values are unquoted, quoted-pairs inside quoted values are unescaped.
// A malformed parameter is yielded as a pair of empty strings, after which the iteration stops.
func WalkKV(data string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for data = LStripWS(data); len(data) > 0; data = LStripWS(data) {
			eq := strings.IndexAny(data, "=;")
			if eq == -1 || data[eq] == ';' {
				// parameter without a value
				end := len(data)
				if eq != -1 {
					end = eq
				}

				key := StripWS(data[:end])
				data = data[min(end+1, len(data)):]
				if len(key) == 0 {
					continue
				}

				if !yield(strings.ToLower(key), "") {
					return
				}

				continue
			}

			key := StripWS(data[:eq])
			if len(key) == 0 {
				yield("", "")
				return
			}

			data = LStripWS(data[eq+1:])
			var value string

			if len(data) > 0 && data[0] == '"' {
				var ok bool
				value, data, ok = cutQuoted(data)
				if !ok {
					yield("", "")
					return
				}

				semicolon := strings.IndexByte(data, ';')
				if semicolon == -1 {
					data = ""
				} else {
					data = data[semicolon+1:]
				}
			} else {
				semicolon := strings.IndexByte(data, ';')
				if semicolon == -1 {
					value, data = RStripWS(data), ""
				} else {
					value, data = RStripWS(data[:semicolon]), data[semicolon+1:]
				}
			}

			if !yield(strings.ToLower(key), value) {
				return
			}
		}
	}
}

// cutQuoted cuts the leading quoted string, returning its unescaped content.
func cutQuoted(data string) (value, rest string, ok bool) {
	var b *strings.Builder

	for i := 1; i < len(data); i++ {
		switch data[i] {
		case '\\':
			if b == nil {
				b = new(strings.Builder)
				b.WriteString(data[1:i])
			}

			if i+1 < len(data) {
				i++
				b.WriteByte(data[i])
			}
		case '"':
			if b == nil {
				return data[1:i], data[i+1:], true
			}

			return b.String(), data[i+1:], true
		default:
			if b != nil {
				b.WriteByte(data[i])
			}
		}
	}

	return "", "", false
}
