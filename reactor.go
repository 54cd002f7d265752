// Package reactor hosts HTTP/1.x servers driven by event loops. Each connection is bound to a
// single loop, so every callback of its requests and responses runs sequentially, never
// concurrently with another one of the same connection.
package reactor

import (
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http"
	"github.com/indigo-web/reactor/http/crypt"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/loop"
	"github.com/indigo-web/reactor/transport"
	"github.com/rs/zerolog"
)

// App is the entry point. It binds the listeners, spawns the loops and the blocking pool
// and serves the connections until stopped.
type App struct {
	cfg        *config.Config
	logger     zerolog.Logger
	handler    http.Handler
	hooks      hooks
	transports []Transport
	supervisor atomic.Pointer[transport.Supervisor]

	mu    sync.Mutex
	addrs []net.Addr
}

// New returns a new App listening on the plain TCP addr.
func New(addr string) *App {
	return &App{
		cfg:        config.Default(),
		logger:     zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel),
		transports: []Transport{TCP(addr)},
	}
}

// Tune replaces the default config.
func (a *App) Tune(cfg *config.Config) *App {
	a.cfg = cfg
	return a
}

func (a *App) Logger(logger zerolog.Logger) *App {
	a.logger = logger
	return a
}

// RequestHandler sets the handler called for every request. Requests are responded with
// 404 Not Found if none is set.
func (a *App) RequestHandler(handler http.Handler) *App {
	a.handler = handler
	return a
}

// OnListen sets the callback called once all the listeners are bound, or on the failure to
// bind any of them.
func (a *App) OnListen(cb func(err error)) *App {
	a.hooks.OnListen = cb
	return a
}

// NotifyOnStart calls the callback right before the listeners start accepting connections.
func (a *App) NotifyOnStart(cb func()) *App {
	a.hooks.OnStart = cb
	return a
}

// NotifyOnStop calls the callback once all the listeners are closed and the clients are
// disconnected.
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// Listen adds one more transport.
func (a *App) Listen(t Transport) *App {
	a.transports = append(a.transports, t)
	return a
}

// HTTPS adds a TLS listener with the certificate and key loaded from the files.
func (a *App) HTTPS(addr, cert, key string) *App {
	return a.Listen(TLS(addr, cert, key))
}

// AutoHTTPS adds a TLS listener with certificates issued automatically by Let's Encrypt for
// the domains. If the addr is local, a self-signed certificate is generated instead.
func (a *App) AutoHTTPS(addr string, domains ...string) *App {
	if !isLocal(addr) {
		return a.Listen(AutoTLS(addr, domains...))
	}

	cert, key, err := generateSelfSignedCert()
	if err != nil {
		a.logger.Warn().Err(err).Msg("can't generate a self-signed certificate, disabling TLS")
		return a
	}

	return a.HTTPS(addr, cert, key)
}

// Addrs returns the addresses of the bound listeners. Useful when binding to random ports.
func (a *App) Addrs() []net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]net.Addr(nil), a.addrs...)
}

// Serve binds all the listeners and serves the connections. It blocks until either Stop is
// called or any of the listeners fails. An App can be served only once.
func (a *App) Serve() error {
	handler := a.handler
	if handler == nil {
		handler = notFound
	}

	group := loop.NewGroup(a.cfg.Loop.Workers, a.logger)
	pool := loop.NewPool(a.cfg.Loop.BlockingWorkers, a.cfg.Loop.BlockingQueue)
	server := http.NewServer(a.cfg, handler, pool, a.logger)
	defer func() {
		group.Stop()
		pool.Close()
	}()

	onConn := func(conn net.Conn, enc crypt.Encryption) {
		server.ServeConn(group.Next(), conn, enc)
	}

	supervisor := transport.NewSupervisor(a.logger)
	if err := a.bind(supervisor, onConn); err != nil {
		a.logger.Error().Err(err).Msg("failed to bind the listeners")
		if a.hooks.OnListen != nil {
			a.hooks.OnListen(err)
		}

		return err
	}

	for _, addr := range a.Addrs() {
		a.logger.Info().Stringer("addr", addr).Msg("listening")
	}

	// published before the hooks, so Stop called from them is never missed
	a.supervisor.Store(supervisor)

	if a.hooks.OnListen != nil {
		a.hooks.OnListen(nil)
	}

	callIfNotNil(a.hooks.OnStart)

	err := supervisor.Run(a.cfg.NET)

	callIfNotNil(a.hooks.OnStop)
	return err
}

func (a *App) bind(supervisor *transport.Supervisor, onConn transport.OnConn) error {
	for _, t := range a.transports {
		if t.error != nil {
			supervisor.Close()
			return t.error
		}

		if err := supervisor.Add(t.addr, t.inner, onConn); err != nil {
			return err
		}

		a.mu.Lock()
		a.addrs = append(a.addrs, t.inner.Addr())
		a.mu.Unlock()
	}

	return nil
}

// Stop makes Serve stop accepting new connections and close the alive ones. The call isn't
// blocking, Serve returns once all the connections are released. Does nothing if the app
// isn't serving yet.
func (a *App) Stop() {
	if supervisor := a.supervisor.Load(); supervisor != nil {
		supervisor.Stop()
	}
}

func notFound(request *http.Request) {
	resp := request.Response()
	_ = resp.SetStatusCode(status.NotFound)
	_ = resp.EndString(string(status.Text(status.NotFound)))
}

type hooks struct {
	OnListen func(error)
	OnStart  func()
	OnStop   func()
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}
