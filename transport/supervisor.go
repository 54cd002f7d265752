package transport

import (
	"fmt"
	"sync/atomic"

	"github.com/indigo-web/reactor/config"
	"github.com/rs/zerolog"
)

// Supervisor runs multiple transports together. Once any of them returns, all the others
// are shut down as well.
type Supervisor struct {
	logger   zerolog.Logger
	bound    []bound
	stopping atomic.Bool
	stop     chan struct{}
}

type bound struct {
	addr string
	t    Transport
	cb   OnConn
}

func NewSupervisor(logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Add binds the transport. On failure, all the transports bound so far are closed.
func (s *Supervisor) Add(addr string, t Transport, cb OnConn) error {
	if err := t.Bind(addr); err != nil {
		s.Close()
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	s.bound = append(s.bound, bound{addr: addr, t: t, cb: cb})
	return nil
}

// Run listens on all the bound transports. It blocks until either Stop is called or any
// of the transports returns, reporting the error it returned with.
func (s *Supervisor) Run(cfg config.NET) (err error) {
	if len(s.bound) == 0 {
		return nil
	}

	results := make(chan error, len(s.bound))
	for _, b := range s.bound {
		go func(b bound) {
			err := b.t.Listen(cfg, b.cb)
			if err != nil {
				err = fmt.Errorf("listen %s: %w", b.addr, err)
			}

			results <- err
		}(b)
	}

	pending := len(s.bound)
	select {
	case err = <-results:
		pending--
		if err != nil {
			s.logger.Error().Err(err).Msg("transport failed, shutting down")
		}
	case <-s.stop:
	}

	s.shutdown()
	for range pending {
		<-results
	}

	return err
}

// Stop makes Run return. The call isn't blocking: Run returns once all the transports are
// shut down. Stopping before Run makes it return right away.
func (s *Supervisor) Stop() {
	if s.stopping.CompareAndSwap(false, true) {
		close(s.stop)
	}
}

// Close closes all the bound transports. Used to release them if Run won't be called.
func (s *Supervisor) Close() {
	for _, b := range s.bound {
		b.t.Close()
	}
}

func (s *Supervisor) shutdown() {
	for _, b := range s.bound {
		b.t.Stop()
	}

	// connections may be waiting for data forever, so they're closed before waiting
	for _, b := range s.bound {
		b.t.Close()
		b.t.Wait()
	}
}
