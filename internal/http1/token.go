package http1

// token accumulates a single lexeme, which may be split across multiple reads. It's bounded,
// so a peer can't make it grow indefinitely.
type token struct {
	data []byte
	max  int
}

func newToken(size, max int) token {
	return token{
		data: make([]byte, 0, size),
		max:  max,
	}
}

// push appends the byte, reporting false if the limit is reached.
func (t *token) push(c byte) bool {
	if len(t.data) >= t.max {
		return false
	}

	t.data = append(t.data, c)
	return true
}

func (t *token) len() int {
	return len(t.data)
}

// bytes returns the accumulated lexeme. It's valid until the next push.
func (t *token) bytes() []byte {
	return t.data
}

func (t *token) reset() {
	t.data = t.data[:0]
}
