package http1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	tok := newToken(2, 4)
	for _, c := range []byte("abcd") {
		require.True(t, tok.push(c))
	}

	require.False(t, tok.push('e'))
	require.Equal(t, 4, tok.len())
	require.Equal(t, "abcd", string(tok.bytes()))

	tok.reset()
	require.Zero(t, tok.len())
	require.True(t, tok.push('x'))
	require.Equal(t, "x", string(tok.bytes()))
}
