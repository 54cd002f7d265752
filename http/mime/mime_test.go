package mime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComplies(t *testing.T) {
	require.True(t, Complies(Multipart, "multipart/form-data; boundary=abc"))
	require.True(t, Complies(Multipart, "Multipart/Form-Data"))
	require.False(t, Complies(Multipart, "multipart/mixed; boundary=abc"))
	require.False(t, Complies(JSON, ""))
}

func TestBoundary(t *testing.T) {
	boundary, ok := Boundary(`multipart/form-data; boundary="----WebKitFormBoundary7MA4YWxk"`)
	require.True(t, ok)
	require.Equal(t, "----WebKitFormBoundary7MA4YWxk", boundary)

	boundary, ok = Boundary("multipart/form-data; charset=utf-8; boundary=simple")
	require.True(t, ok)
	require.Equal(t, "simple", boundary)

	_, ok = Boundary("multipart/form-data")
	require.False(t, ok)

	_, ok = Boundary("text/plain; boundary=abc")
	require.False(t, ok)
}

func TestByFilename(t *testing.T) {
	require.Equal(t, HTML, ByFilename("web/index.HTML"))
	require.Equal(t, PNG, ByFilename("/static/logo.png"))
	require.Equal(t, OctetStream, ByFilename("Makefile"))
}
