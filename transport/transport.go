// Package transport accepts connections and hands them over to the callback, each on its own
// goroutine.
package transport

import (
	"net"

	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http/crypt"
)

// OnConn is called for every accepted connection on its own goroutine. The connection is
// closed after the callback returns.
type OnConn func(conn net.Conn, enc crypt.Encryption)

type Transport interface {
	Bind(addr string) error
	// Listen accepts connections until stopped or failed.
	Listen(cfg config.NET, cb OnConn) error
	// Stop makes Listen return at its next accept loop interruption.
	Stop()
	// Close closes the listener and all the connections still alive.
	Close()
	// Wait blocks until all the callbacks have returned.
	Wait()
	Addr() net.Addr
}
