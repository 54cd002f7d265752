package http

import (
	"github.com/indigo-web/reactor/buffer"
	"github.com/indigo-web/reactor/internal/multipart"
	"github.com/indigo-web/reactor/kv"
	"github.com/indigo-web/reactor/stream"
)

var _ stream.ReadStream = new(FileUpload)

// FileUpload is a single file part of a multipart body. It lives from the beginning of the
// part until its end, streaming the content in between. Pausing an upload pauses the whole
// request.
type FileUpload struct {
	req   *Request
	part  multipart.Part
	size  int64
	ended bool

	onData  func(*buffer.Buffer)
	onEnd   func()
	onError func(error)
}

func newUpload(req *Request, part multipart.Part) *FileUpload {
	return &FileUpload{
		req:  req,
		part: part,
	}
}

// Name returns the form field name.
func (u *FileUpload) Name() string {
	return u.part.Name
}

func (u *FileUpload) Filename() string {
	return u.part.Filename
}

func (u *FileUpload) ContentType() string {
	return u.part.ContentType
}

func (u *FileUpload) Charset() string {
	return u.part.Charset
}

func (u *FileUpload) TransferEncoding() string {
	return u.part.TransferEncoding
}

// Headers returns all the part headers.
func (u *FileUpload) Headers() *kv.Storage {
	return u.part.Headers
}

// Size returns the number of bytes received so far. It's the total size once the upload
// has ended.
func (u *FileUpload) Size() int64 {
	return u.size
}

func (u *FileUpload) Ended() bool {
	return u.ended
}

func (u *FileUpload) OnData(handler func(*buffer.Buffer)) {
	u.onData = handler
}

func (u *FileUpload) OnEnd(handler func()) {
	u.onEnd = handler
}

func (u *FileUpload) OnError(handler func(error)) {
	u.onError = handler
}

func (u *FileUpload) Pause() {
	u.req.Pause()
}

func (u *FileUpload) Resume() {
	u.req.Resume()
}

// StreamToFileSystem writes the upload into the file at path, creating or truncating it.
// The done callback is called once, after the file is completely written and closed or after
// the first failure.
func (u *FileUpload) StreamToFileSystem(path string, done func(error)) {
	c := u.req.conn
	file := stream.CreateFile(c.loop, path, c.srv.Config.NET.WriteQueueSize)
	pump := stream.NewPump(u, file).Start()

	var reported bool
	report := func(err error) {
		if !reported {
			reported = true
			if done != nil {
				done(err)
			}
		}
	}

	file.OnError(func(err error) {
		// the rest of the upload is discarded
		pump.Stop()
		report(err)
	})
	u.OnEnd(func() {
		file.Close(report)
	})
	u.OnError(func(err error) {
		pump.Stop()
		file.Abort()
		report(err)
	})
}

func (u *FileUpload) deliver(data []byte) {
	u.size += int64(len(data))
	if u.onData != nil {
		u.onData(buffer.Wrap(data))
	}
}

func (u *FileUpload) end() {
	u.ended = true
	if u.onEnd != nil {
		u.onEnd()
	}
}

func (u *FileUpload) fail(err error) {
	if u.ended {
		return
	}

	u.ended = true
	if u.onError != nil {
		u.onError(err)
	}
}
