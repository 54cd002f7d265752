// Package stream defines backpressure-aware push-based data channels and the primitives
// composing them.
package stream

import (
	"errors"

	"github.com/indigo-web/reactor/buffer"
)

// ErrClosed is returned on writes into a closed or closing stream.
var ErrClosed = errors.New("stream is closed")

// Executor runs tasks on the goroutine owning the stream, e.g. a *loop.Loop.
type Executor interface {
	Execute(task func()) bool
}

// ReadStream pushes data to its data handler. While paused, no data handler invocations
// occur. Registering a handler replaces the previous one, nil unsubscribes.
type ReadStream interface {
	OnData(handler func(*buffer.Buffer))
	OnEnd(handler func())
	OnError(handler func(error))
	Pause()
	Resume()
}

// WriteStream never blocks on Write. Once the outbound queue reaches its maximal size,
// WriteQueueFull reports true until the queue drains, at which point the drain handler
// is called once.
type WriteStream interface {
	Write(data []byte) error
	WriteQueueFull() bool
	OnDrain(handler func())
	SetWriteQueueMaxSize(size int)
}
