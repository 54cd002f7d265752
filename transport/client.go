package transport

import (
	"net"
	"time"

	"github.com/indigo-web/reactor/internal/timer"
)

// Client reads from a connection into a fixed buffer, renewing the read deadline before
// each read, so a connection idling longer than the timeout fails the read.
type Client struct {
	conn    net.Conn
	buff    []byte
	timeout time.Duration
}

func NewClient(conn net.Conn, timeout time.Duration, buff []byte) *Client {
	return &Client{
		conn:    conn,
		buff:    buff,
		timeout: timeout,
	}
}

// Read returns the next piece of data. It's a view into the buffer, therefore is valid only
// until the next call. Data may be returned along with an error.
func (c *Client) Read() ([]byte, error) {
	if err := c.conn.SetReadDeadline(timer.Deadline(c.timeout)); err != nil {
		return nil, err
	}

	n, err := c.conn.Read(c.buff)
	return c.buff[:n], err
}
