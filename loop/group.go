package loop

import (
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Group is a fixed set of loops. Connections are distributed among them in round-robin manner,
// so each loop owns a disjoint subset of connections.
type Group struct {
	loops []*Loop
	next  atomic.Uint64
}

// NewGroup spawns n loops. Non-positive n defaults to the number of CPUs.
func NewGroup(n int, logger zerolog.Logger) *Group {
	if n <= 0 {
		n = runtime.NumCPU()
	}

	loops := make([]*Loop, n)
	for i := range loops {
		loops[i] = New(i, logger)
	}

	return &Group{loops: loops}
}

// Next returns a loop to which a new connection must be bound.
func (g *Group) Next() *Loop {
	n := g.next.Add(1) - 1
	return g.loops[n%uint64(len(g.loops))]
}

func (g *Group) Len() int {
	return len(g.loops)
}

// Stop stops all the loops and waits until they're done.
func (g *Group) Stop() {
	for _, l := range g.loops {
		l.Stop()
	}

	for _, l := range g.loops {
		l.Wait()
	}
}
