// Package timer provides a coarse clock for I/O deadlines, which are set on every single read
// and therefore mustn't cost a syscall each.
package timer

import (
	"sync/atomic"
	"time"
)

// Resolution is the frequency at which the clock is updated. It's precise enough for
// deadlines measured in seconds.
const Resolution = 500 * time.Millisecond

var millis = new(atomic.Int64)

func init() {
	// store the time synchronously, so the clock is never zero even if the goroutine is
	// started late
	millis.Store(time.Now().UnixMilli())

	go func() {
		for {
			time.Sleep(Resolution)
			millis.Store(time.Now().UnixMilli())
		}
	}()
}

// Now returns the current time, lagging behind by at most Resolution.
func Now() time.Time {
	return time.UnixMilli(millis.Load())
}

// Deadline returns the point in time after the timeout. Non-positive timeout means no
// deadline at all.
func Deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}

	return Now().Add(timeout)
}
