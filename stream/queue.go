package stream

import (
	"io"
	"net"
	"os"
	"sync"
)

type item struct {
	data []byte
	file *os.File
	size int64
}

// Queue is an outbound queue in front of an io.Writer. Writes are copied into the queue and
// flushed by a dedicated goroutine, so they never block the caller. The queued amount is
// watched by the high and low watermarks: reaching the high one marks the queue as full, and
// once flushed down to the low one, the drain handler is called on the executor.
//
// All the methods except Done must be called from the executor goroutine.
type Queue struct {
	exec     Executor
	w        io.Writer
	zeroCopy bool
	fileBuff []byte

	mu      sync.Mutex
	items   []item
	queued  int
	high    int
	low     int
	full    bool
	closing bool
	onClose func(error)
	err     error
	wakeup  chan struct{}
	done    chan struct{}

	// executor-owned
	drain   func()
	onError func(error)
}

// NewQueue spawns the flushing goroutine. If w implements io.Closer, it's closed after the
// queue is closed and flushed. zeroCopy allows transferring files via w's io.ReaderFrom (e.g.
// sendfile(2) on *net.TCPConn), otherwise files are copied through an intermediate buffer.
func NewQueue(exec Executor, w io.Writer, maxSize int, zeroCopy bool) *Queue {
	q := &Queue{
		exec:     exec,
		w:        w,
		zeroCopy: zeroCopy,
		wakeup:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	q.SetWriteQueueMaxSize(maxSize)

	go q.run()

	return q
}

// Write copies the data into the queue.
func (q *Queue) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	q.mu.Lock()
	if err := q.checkWritable(); err != nil {
		q.mu.Unlock()
		return err
	}

	q.items = append(q.items, item{data: append([]byte(nil), data...)})
	q.queued += len(data)
	if q.queued >= q.high {
		q.full = true
	}
	q.mu.Unlock()
	q.notify()

	return nil
}

// Transfer enqueues size bytes of the file. The file is closed by the queue once
// transferred or dropped. Files don't count towards the queue size.
func (q *Queue) Transfer(file *os.File, size int64) error {
	q.mu.Lock()
	if err := q.checkWritable(); err != nil {
		q.mu.Unlock()
		_ = file.Close()
		return err
	}

	q.items = append(q.items, item{file: file, size: size})
	q.mu.Unlock()
	q.notify()

	return nil
}

func (q *Queue) checkWritable() error {
	switch {
	case q.err != nil:
		return q.err
	case q.closing:
		return ErrClosed
	default:
		return nil
	}
}

func (q *Queue) WriteQueueFull() bool {
	q.mu.Lock()
	full := q.full
	q.mu.Unlock()

	return full
}

// SetWriteQueueMaxSize sets the high watermark. The low one is half of it.
func (q *Queue) SetWriteQueueMaxSize(size int) {
	if size <= 0 {
		size = 1
	}

	q.mu.Lock()
	q.high, q.low = size, size/2
	q.mu.Unlock()
}

// OnDrain sets the handler called after the queue stopped being full.
func (q *Queue) OnDrain(handler func()) {
	q.drain = handler
}

// OnError sets the handler called once the underlying writer fails. The queue is unusable
// afterward.
func (q *Queue) OnError(handler func(error)) {
	q.onError = handler
}

// Close flushes everything queued, closes the writer if possible and calls the callback with
// the first error encountered, if any. The callback is called on the executor.
func (q *Queue) Close(callback func(error)) {
	q.mu.Lock()
	if q.closing {
		q.mu.Unlock()
		return
	}

	q.closing = true
	q.onClose = callback
	q.mu.Unlock()
	q.notify()
}

// Abort drops everything queued and closes the queue.
func (q *Queue) Abort() {
	q.mu.Lock()
	dropped := q.items
	q.items = nil
	q.queued = 0
	q.closing = true
	q.onClose = nil
	q.mu.Unlock()

	closeFiles(dropped)
	q.notify()
}

// Done is closed once the flushing goroutine has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) notify() {
	select {
	case q.wakeup <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer close(q.done)

	var batch []item

	for range q.wakeup {
		for {
			q.mu.Lock()
			batch, q.items = q.items, batch[:0]
			closing := q.closing
			q.mu.Unlock()

			if len(batch) == 0 {
				if closing {
					q.finish(nil)
					return
				}

				break
			}

			if err := q.flush(batch); err != nil {
				q.finish(err)
				return
			}

			clear(batch)
		}
	}
}

func (q *Queue) flush(batch []item) error {
	for len(batch) > 0 {
		if batch[0].file != nil {
			it := batch[0]
			batch = batch[1:]
			err := q.transfer(it.file, it.size)
			_ = it.file.Close()
			if err != nil {
				closeFiles(batch)
				return err
			}

			continue
		}

		n := 0
		for n < len(batch) && batch[n].file == nil {
			n++
		}

		buffs := make(net.Buffers, n)
		size := 0
		for i, it := range batch[:n] {
			buffs[i] = it.data
			size += len(it.data)
		}

		batch = batch[n:]
		if _, err := buffs.WriteTo(q.w); err != nil {
			closeFiles(batch)
			return err
		}

		q.release(size)
	}

	return nil
}

func (q *Queue) transfer(file *os.File, size int64) error {
	src := io.LimitReader(file, size)

	if q.zeroCopy {
		_, err := io.Copy(q.w, src)
		return err
	}

	if q.fileBuff == nil {
		q.fileBuff = make([]byte, 32*1024)
	}

	// hide the io.ReaderFrom of the destination, so the data goes through our buffer
	_, err := io.CopyBuffer(struct{ io.Writer }{q.w}, src, q.fileBuff)
	return err
}

func (q *Queue) release(n int) {
	q.mu.Lock()
	q.queued -= n
	drained := q.full && q.queued <= q.low
	if drained {
		q.full = false
	}
	q.mu.Unlock()

	if drained {
		q.exec.Execute(q.fireDrain)
	}
}

func (q *Queue) fireDrain() {
	if q.drain != nil {
		q.drain()
	}
}

func (q *Queue) finish(err error) {
	if closer, ok := q.w.(io.Closer); ok {
		if closeErr := closer.Close(); err == nil {
			err = closeErr
		}
	}

	q.mu.Lock()
	if err != nil {
		q.err = err
	}
	q.closing = true
	dropped := q.items
	q.items = nil
	callback := q.onClose
	q.onClose = nil
	q.mu.Unlock()

	closeFiles(dropped)

	q.exec.Execute(func() {
		if err != nil && q.onError != nil {
			q.onError(err)
		}

		if callback != nil {
			callback(err)
		}
	})
}

func closeFiles(items []item) {
	for _, it := range items {
		if it.file != nil {
			_ = it.file.Close()
		}
	}
}
