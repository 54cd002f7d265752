package transport

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/indigo-web/reactor/http/crypt"
	"github.com/indigo-web/reactor/internal/timer"
)

type TLS struct {
	cfg *tls.Config
	TCP
}

func NewTLS(cfg *tls.Config) *TLS {
	return &TLS{cfg: cfg}
}

func (t *TLS) Bind(addr string) error {
	tcp, err := bindTCP(addr)
	if err != nil {
		return err
	}

	l := tls.NewListener(tcp, t.cfg)
	t.TCP = newTCP(tlsAdapter{tcp, l})
	t.TCP.handshake = handshake

	return nil
}

// handshake is done explicitly in order to know the negotiated version before the first byte
// of the request is read.
func handshake(conn net.Conn, timeout time.Duration) (crypt.Encryption, error) {
	tlsconn, ok := conn.(*tls.Conn)
	if !ok {
		return crypt.Plain, nil
	}

	if err := tlsconn.SetDeadline(timer.Deadline(timeout)); err != nil {
		return crypt.Unknown, err
	}

	if err := tlsconn.Handshake(); err != nil {
		return crypt.Unknown, err
	}

	if err := tlsconn.SetDeadline(time.Time{}); err != nil {
		return crypt.Unknown, err
	}

	return crypt.FromTLSVersion(tlsconn.ConnectionState().Version), nil
}

type tlsAdapter struct {
	*net.TCPListener
	tls net.Listener
}

func (t tlsAdapter) Accept() (net.Conn, error) {
	return t.tls.Accept()
}
