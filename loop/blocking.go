package loop

import (
	"runtime"
	"sync"
)

// Pool is a bounded set of goroutines serving explicitly blocking jobs, so the loops are
// never stalled by them.
type Pool struct {
	jobs    chan func()
	quit    chan struct{}
	wg      sync.WaitGroup
	closing sync.Once
}

// NewPool spawns a pool of size workers. Non-positive size defaults to 4 times the number
// of CPUs.
func NewPool(size, queue int) *Pool {
	if size <= 0 {
		size = 4 * runtime.NumCPU()
	}

	p := &Pool{
		jobs: make(chan func(), queue),
		quit: make(chan struct{}),
	}
	p.wg.Add(size)

	for range size {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			job()
		case <-p.quit:
			return
		}
	}
}

// Submit enqueues the job. It never blocks the caller: if the queue is full, the job is
// handed over by a short-living goroutine instead.
func (p *Pool) Submit(job func()) {
	select {
	case p.jobs <- job:
	default:
		go func() {
			select {
			case p.jobs <- job:
			case <-p.quit:
			}
		}()
	}
}

// Close stops the workers. Jobs which weren't picked up yet are dropped.
func (p *Pool) Close() {
	p.closing.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}

// ExecuteBlocking runs fn on the pool and schedules done back onto the origin loop with the
// result.
func ExecuteBlocking[T any](origin *Loop, pool *Pool, fn func() (T, error), done func(T, error)) {
	pool.Submit(func() {
		result, err := fn()
		if done != nil {
			origin.Execute(func() {
				done(result, err)
			})
		}
	})
}
