package config

import (
	"io"
	"os"
	"runtime"
	"time"

	json "github.com/json-iterator/go"
)

type (
	HeadersNumber struct {
		Maximal int
	}

	HeadersSpace struct {
		Maximal int
	}

	BodyForm struct {
		// MaxFieldSize limits the size of a single non-file multipart field or the whole
		// application/x-www-form-urlencoded body, as both are buffered in memory.
		MaxFieldSize int
		// MaxPartHeaderSize limits the headers section of a single multipart part.
		MaxPartHeaderSize int
	}
)

type (
	URI struct {
		// MaxLength limits the request-target. Longer ones are rejected with
		// status.ErrURITooLong.
		MaxLength int
	}

	Headers struct {
		// Number limits how many header fields a single request may carry.
		Number HeadersNumber
		// Space limits the total length of the header fields, names and values included.
		Space HeadersSpace
		// Default headers are headers to be included into every response implicitly, unless
		// explicitly overridden.
		Default map[string]string `test:"nullable"`
	}

	Body struct {
		// MaxSize describes the maximal size of a body, that can be processed. Bodies exceeding it
		// fail with status.ErrBodyTooLarge. In order to disable the setting, use the math.MaxUint64
		// value.
		MaxSize uint64
		Form    BodyForm
	}

	NET struct {
		// ReadBufferSize is a size of buffer in bytes which will be used to read from
		// socket.
		ReadBufferSize int
		// IdleTimeout controls the maximal lifetime of idle connections. If no data was
		// received in this period of time, it'll be closed.
		IdleTimeout time.Duration
		// AcceptLoopInterruptPeriod controls how often will the Accept() call be interrupted
		// in order to check whether it's time to stop. Defaults to 5 seconds.
		AcceptLoopInterruptPeriod time.Duration
		// WriteQueueSize is the default high-water mark of the outbound queue of every connection.
		// Once it's reached, the response reports WriteQueueFull until half of it is flushed.
		WriteQueueSize int
	}

	HTTP struct {
		// KeepAlive disables persistent connections when false.
		KeepAlive bool `test:"nullable"`
		// MaxFrameSize limits a single chunk frame of chunked responses. Bigger writes are split.
		// Non-positive values disable the splitting.
		MaxFrameSize int
		// Compression is accepted for compatibility, no codecs are shipped.
		Compression bool `test:"nullable"`
	}

	Loop struct {
		// Workers is the number of event loops. Every connection is bound to exactly one.
		Workers int
		// BlockingWorkers is the size of the pool executing blocking jobs, e.g. file operations.
		BlockingWorkers int
		// BlockingQueue is the capacity of blocking jobs queue.
		BlockingQueue int
	}
)

// Config holds settings used across various parts of reactor, mainly restrictions and
// limitations.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	URI     URI
	Headers Headers
	Body    Body
	NET     NET
	HTTP    HTTP
	Loop    Loop
}

// Default returns default config. Those are initially well-balanced, however maximal defaults
// are pretty permitting.
func Default() *Config {
	return &Config{
		URI: URI{
			// most web-entities limit it to 4-8kb.
			MaxLength: 8 * 1024,
		},
		Headers: Headers{
			Number: HeadersNumber{
				Maximal: 100,
			},
			Space: HeadersSpace{
				// there might be extremely long cookies.
				Maximal: 16 * 1024,
			},
			Default: make(map[string]string),
		},
		Body: Body{
			MaxSize: 512 * 1024 * 1024, // 512 megabytes
			Form: BodyForm{
				MaxFieldSize:      64 * 1024,
				MaxPartHeaderSize: 4 * 1024,
			},
		},
		NET: NET{
			ReadBufferSize:            4 * 1024,
			IdleTimeout:               90 * time.Second,
			AcceptLoopInterruptPeriod: 5 * time.Second,
			WriteQueueSize:            64 * 1024,
		},
		HTTP: HTTP{
			KeepAlive:    true,
			MaxFrameSize: 16 * 1024,
		},
		Loop: Loop{
			Workers:         runtime.NumCPU(),
			BlockingWorkers: 4 * runtime.NumCPU(),
			BlockingQueue:   1024,
		},
	}
}

// Load reads a JSON document and overlays it onto the defaults, so only the fields being
// changed must be present. Durations are represented in nanoseconds.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromFile is Load with the document read from the file.
func FromFile(path string) (*Config, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer fd.Close()

	return Load(fd)
}
