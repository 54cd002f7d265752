package reactor

import (
	"crypto/tls"
	"errors"

	"github.com/indigo-web/reactor/transport"
	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

var (
	ErrBadCertificate = errors.New("one or more passed certificates are empty")
	ErrNoCertificates = errors.New("no certificates were passed")
)

// alpn announces HTTP/1.1 only, as nothing else is spoken.
var alpn = []string{"http/1.1"}

// Transport is a listener to be bound by the App.
type Transport struct {
	addr  string
	inner transport.Transport
	// error is a deferred construction error, reported by the App once it binds the listeners.
	error error
}

// TCP is a plain cleartext listener.
func TCP(addr string) Transport {
	return Transport{
		addr:  addr,
		inner: transport.NewTCP(),
	}
}

// TLS is a TLS listener with the certificate and key loaded from the files.
func TLS(addr, cert, key string) Transport {
	c, err := tls.LoadX509KeyPair(cert, key)
	if err != nil {
		return Transport{addr: addr, error: err}
	}

	return HTTPS(addr, c)
}

// HTTPS is a TLS listener serving the certificates.
func HTTPS(addr string, certs ...tls.Certificate) Transport {
	switch {
	case len(certs) == 0:
		return Transport{addr: addr, error: ErrNoCertificates}
	case !noEmptyCerts(certs):
		return Transport{addr: addr, error: ErrBadCertificate}
	}

	return Transport{
		addr: addr,
		inner: transport.NewTLS(&tls.Config{
			Certificates: certs,
			NextProtos:   alpn,
		}),
	}
}

// AutoTLS is a TLS listener with certificates obtained via ACME. If no domains are passed,
// certificates are requested for any server name the clients ask.
func AutoTLS(addr string, domains ...string) Transport {
	m := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
	}

	if len(domains) > 0 {
		m.HostPolicy = autocert.HostWhitelist(domains...)
	}

	if cache := cacheDir(); mkdirIfNotExists(cache) == nil {
		m.Cache = autocert.DirCache(cache)
	}

	return Transport{
		addr: addr,
		inner: transport.NewTLS(&tls.Config{
			GetCertificate: m.GetCertificate,
			NextProtos:     append(alpn, acme.ALPNProto),
		}),
	}
}

// Cert loads the certificate. Failures are reported by HTTPS as ErrBadCertificate.
func Cert(cert, key string) tls.Certificate {
	c, _ := tls.LoadX509KeyPair(cert, key)
	return c
}

func noEmptyCerts(certs []tls.Certificate) bool {
	for _, c := range certs {
		if c.Certificate == nil {
			return false
		}
	}

	return true
}
