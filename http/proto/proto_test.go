package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromBytes(t *testing.T) {
	for token, want := range map[string]Proto{
		"HTTP/1.0":  HTTP10,
		"HTTP/1.1":  HTTP11,
		"HTTP/1.1 ": Unknown,
		"http/1.1":  Unknown,
		"HTTPS/1.1": Unknown,
		"HTTP/2.0":  Unknown,
		"":          Unknown,
	} {
		require.Equal(t, want, FromBytes([]byte(token)), token)
	}
}

func TestString(t *testing.T) {
	require.Equal(t, "HTTP/1.1", HTTP11.String())
	require.Equal(t, "HTTP/1.0", HTTP10.String())
	require.Empty(t, Unknown.String())
	require.Empty(t, Proto(42).String())
}
