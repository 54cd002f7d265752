package stream

import (
	"github.com/indigo-web/reactor/buffer"
)

// Pump moves data from a ReadStream into a WriteStream. Whenever the destination reports
// its queue is full, the source is paused until the destination drains.
//
// The pump doesn't end the destination and doesn't subscribe to the end of the source, as
// both are up to the caller.
type Pump struct {
	src     ReadStream
	dst     WriteStream
	pumped  int64
	err     error
	running bool
}

func NewPump(src ReadStream, dst WriteStream) *Pump {
	return &Pump{
		src: src,
		dst: dst,
	}
}

// SetWriteQueueMaxSize sets the destination's maximal queue size.
func (p *Pump) SetWriteQueueMaxSize(size int) *Pump {
	p.dst.SetWriteQueueMaxSize(size)
	return p
}

func (p *Pump) Start() *Pump {
	if p.running {
		return p
	}

	p.running = true
	p.dst.OnDrain(p.onDrain)
	p.src.OnData(p.onData)

	return p
}

// Stop detaches the pump. The source is resumed, so no data is held back.
func (p *Pump) Stop() *Pump {
	if !p.running {
		return p
	}

	p.running = false
	p.src.OnData(nil)
	p.dst.OnDrain(nil)
	p.src.Resume()

	return p
}

// BytesPumped returns the number of bytes written into the destination so far.
func (p *Pump) BytesPumped() int64 {
	return p.pumped
}

// Err returns the error the destination failed with, if any.
func (p *Pump) Err() error {
	return p.err
}

func (p *Pump) onData(b *buffer.Buffer) {
	if err := p.dst.Write(b.Bytes()); err != nil {
		p.err = err
		p.running = false
		p.src.OnData(nil)
		p.dst.OnDrain(nil)
		p.src.Pause()
		return
	}

	p.pumped += int64(b.Len())

	if p.dst.WriteQueueFull() {
		p.src.Pause()
	}
}

func (p *Pump) onDrain() {
	if p.running {
		p.src.Resume()
	}
}
