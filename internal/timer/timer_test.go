package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNow(t *testing.T) {
	const (
		threshold = 200 * time.Millisecond
		// 1.5*Resolution, as the clock sometimes lags by Resolution+1ms
		tolerance = Resolution + Resolution/2
	)

	for range time.Second / threshold {
		require.Less(t, time.Since(Now()), tolerance)
		time.Sleep(threshold)
	}
}

func TestDeadline(t *testing.T) {
	require.True(t, Deadline(0).IsZero())
	require.True(t, Deadline(-time.Second).IsZero())

	deadline := Deadline(time.Minute)
	require.WithinDuration(t, time.Now().Add(time.Minute), deadline, 2*Resolution)
}
