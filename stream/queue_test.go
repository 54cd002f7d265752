package stream

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// syncExecutor runs tasks in a dedicated goroutine, one by one, mimicking a loop.
type syncExecutor struct {
	tasks chan func()
}

func newExecutor() *syncExecutor {
	e := &syncExecutor{tasks: make(chan func(), 128)}
	go func() {
		for task := range e.tasks {
			task()
		}
	}()

	return e
}

func (e *syncExecutor) Execute(task func()) bool {
	e.tasks <- task
	return true
}

// do runs fn on the executor and waits for it.
func (e *syncExecutor) do(fn func()) {
	done := make(chan struct{})
	e.Execute(func() {
		fn()
		close(done)
	})
	<-done
}

type gatedWriter struct {
	mu   sync.Mutex
	buff bytes.Buffer
	gate chan struct{}
}

func (g *gatedWriter) Write(b []byte) (int, error) {
	if g.gate != nil {
		<-g.gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buff.Write(b)
}

func (g *gatedWriter) String() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buff.String()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestQueue(t *testing.T) {
	t.Run("flush and close", func(t *testing.T) {
		exec := newExecutor()
		w := new(gatedWriter)
		q := NewQueue(exec, w, 1024, false)

		closed := make(chan error, 1)
		exec.do(func() {
			require.NoError(t, q.Write([]byte("Hello, ")))
			require.NoError(t, q.Write([]byte("world")))
			q.Close(func(err error) {
				closed <- err
			})
			require.ErrorIs(t, q.Write([]byte("late")), ErrClosed)
		})

		require.NoError(t, <-closed)
		<-q.Done()
		require.Equal(t, "Hello, world", w.String())
	})

	t.Run("watermarks", func(t *testing.T) {
		exec := newExecutor()
		w := &gatedWriter{gate: make(chan struct{})}
		q := NewQueue(exec, w, 8, false)
		drained := make(chan struct{}, 1)

		exec.do(func() {
			q.OnDrain(func() {
				drained <- struct{}{}
			})
			require.NoError(t, q.Write([]byte("12345678")))
			require.True(t, q.WriteQueueFull())
		})

		close(w.gate)

		select {
		case <-drained:
		case <-time.After(time.Second):
			require.Fail(t, "drain handler wasn't called")
		}

		exec.do(func() {
			require.False(t, q.WriteQueueFull())
			q.Close(nil)
		})
		<-q.Done()
		require.Equal(t, "12345678", w.String())
	})

	t.Run("write error", func(t *testing.T) {
		exec := newExecutor()
		q := NewQueue(exec, failingWriter{}, 1024, false)
		errs := make(chan error, 1)

		exec.do(func() {
			q.OnError(func(err error) {
				errs <- err
			})
			require.NoError(t, q.Write([]byte("data")))
		})

		require.Error(t, <-errs)
		<-q.Done()
		exec.do(func() {
			require.Error(t, q.Write([]byte("more")))
		})
	})

	t.Run("transfer file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(path, []byte("file content and some extra"), 0o644))
		fd, err := os.Open(path)
		require.NoError(t, err)

		exec := newExecutor()
		w := new(gatedWriter)
		q := NewQueue(exec, w, 1024, false)
		closed := make(chan error, 1)

		exec.do(func() {
			require.NoError(t, q.Write([]byte("head|")))
			require.NoError(t, q.Transfer(fd, int64(len("file content"))))
			require.NoError(t, q.Write([]byte("|tail")))
			q.Close(func(err error) {
				closed <- err
			})
		})

		require.NoError(t, <-closed)
		require.Equal(t, "head|file content|tail", w.String())
	})
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.bin")
	exec := newExecutor()
	f := CreateFile(exec, path, 16)
	closed := make(chan error, 1)

	exec.do(func() {
		require.NoError(t, f.Write([]byte("first ")))
		require.NoError(t, f.Write([]byte("second")))
		f.Close(func(err error) {
			closed <- err
		})
	})

	require.NoError(t, <-closed)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first second", string(content))
}
