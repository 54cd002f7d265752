package stream

import (
	"os"
)

// File is an asynchronous WriteStream into a file. The file is created lazily by the
// flushing goroutine, so neither creating nor writing it blocks the caller.
type File struct {
	*Queue
}

// CreateFile returns a File creating (or truncating) the file at path. Any failure, including
// the one of creating the file, is reported via OnError and the Close callback.
func CreateFile(exec Executor, path string, maxQueueSize int) *File {
	return &File{
		Queue: NewQueue(exec, &lazyFile{path: path}, maxQueueSize, false),
	}
}

type lazyFile struct {
	path string
	fd   *os.File
}

func (l *lazyFile) open() (err error) {
	if l.fd == nil {
		l.fd, err = os.Create(l.path)
	}

	return err
}

func (l *lazyFile) Write(b []byte) (int, error) {
	if err := l.open(); err != nil {
		return 0, err
	}

	return l.fd.Write(b)
}

func (l *lazyFile) Close() error {
	// an empty file still must be created
	if err := l.open(); err != nil {
		return err
	}

	return l.fd.Close()
}
