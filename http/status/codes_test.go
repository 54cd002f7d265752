package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	require.Equal(t, Status("OK"), Text(OK))
	require.Equal(t, Status("Not Found"), Text(NotFound))
	require.Equal(t, Status("Request Header Fields Too Large"), Text(RequestHeaderFieldsTooLarge))
	require.Equal(t, Status("Unknown Status Code"), Text(599))
}

func TestHTTPError(t *testing.T) {
	var httpErr HTTPError
	require.True(t, errors.As(ErrURITooLong, &httpErr))
	require.Equal(t, RequestURITooLong, httpErr.Code)
	require.Equal(t, "request URI too long", ErrURITooLong.Error())
}
