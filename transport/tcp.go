package transport

import (
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http/crypt"
	"github.com/indigo-web/reactor/internal/timer"
	"github.com/puzpuzpuz/xsync/v3"
)

type listener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

type TCP struct {
	l     listener
	wg    *sync.WaitGroup
	stop  *atomic.Bool
	conns *xsync.MapOf[net.Conn, struct{}]
	// handshake completes the connection setup right after it's accepted.
	handshake func(net.Conn, time.Duration) (crypt.Encryption, error)
}

func NewTCP() *TCP {
	tcp := newTCP(nil)
	return &tcp
}

func newTCP(l listener) TCP {
	return TCP{
		l:     l,
		wg:    new(sync.WaitGroup),
		stop:  new(atomic.Bool),
		conns: xsync.NewMapOf[net.Conn, struct{}](),
		handshake: func(net.Conn, time.Duration) (crypt.Encryption, error) {
			return crypt.Plain, nil
		},
	}
}

func bindTCP(addr string) (*net.TCPListener, error) {
	tcpaddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	return net.ListenTCP("tcp", tcpaddr)
}

func (t *TCP) Bind(addr string) (err error) {
	t.l, err = bindTCP(addr)
	return err
}

func (t *TCP) Addr() net.Addr {
	if t.l == nil {
		return nil
	}

	return t.l.Addr()
}

func (t *TCP) Listen(cfg config.NET, cb OnConn) error {
	for !t.stop.Load() {
		err := t.l.SetDeadline(timer.Deadline(cfg.AcceptLoopInterruptPeriod))
		if err != nil {
			return err
		}

		conn, err := t.l.Accept()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}

			if t.stop.Load() {
				return nil
			}

			return err
		}

		t.wg.Add(1)
		t.conns.Store(conn, struct{}{})

		go func(conn net.Conn) {
			defer t.wg.Done()
			defer t.conns.Delete(conn)
			defer conn.Close()

			enc, err := t.handshake(conn, cfg.IdleTimeout)
			if err != nil {
				return
			}

			cb(conn, enc)
		}(conn)
	}

	return nil
}

func (t *TCP) Stop() {
	t.stop.Store(true)
}

// Close closes the listener and every connection that is still alive, which makes their
// callbacks return.
func (t *TCP) Close() {
	if t.l != nil {
		_ = t.l.Close()
	}

	t.conns.Range(func(conn net.Conn, _ struct{}) bool {
		_ = conn.Close()
		return true
	})
}

func (t *TCP) Wait() {
	t.wg.Wait()
}

// Alive returns the number of connections being served.
func (t *TCP) Alive() int {
	return t.conns.Size()
}
