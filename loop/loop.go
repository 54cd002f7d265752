// Package loop implements the event loops the connections are dispatched on. A Loop is a single
// goroutine executing tasks one after another, in the order they were submitted. Every callback
// of a request, its response and its uploads runs on the very same loop, therefore none of them
// ever executes concurrently with another one.
package loop

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

type Loop struct {
	id     int
	logger zerolog.Logger

	mu      sync.Mutex
	queue   []func()
	stopped bool
	wakeup  chan struct{}
	done    chan struct{}

	// spare is accessed by the loop goroutine only
	spare []func()
}

// New spawns a new loop.
func New(id int, logger zerolog.Logger) *Loop {
	l := &Loop{
		id:     id,
		logger: logger.With().Int("loop", id).Logger(),
		wakeup: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	go l.run()

	return l
}

// ID returns the loop's index in its group.
func (l *Loop) ID() int {
	return l.id
}

// Execute schedules the task. It never blocks, even if called from the loop itself. Returns
// false if the loop is already stopped, in which case the task is dropped.
func (l *Loop) Execute(task func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}

	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wakeup <- struct{}{}:
	default:
	}

	return true
}

// Stop prevents new tasks from being scheduled. Already scheduled ones are still executed.
// The call isn't blocking, use Wait for that.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// Wait blocks until the loop is stopped and all the tasks are done. Must not be called from
// the loop itself.
func (l *Loop) Wait() {
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)

	for range l.wakeup {
		for {
			l.mu.Lock()
			tasks, stopped := l.queue, l.stopped
			l.queue, l.spare = l.spare[:0], nil
			l.mu.Unlock()

			if len(tasks) == 0 {
				// the queues must never share the backing array
				l.spare = tasks
				if stopped {
					return
				}

				break
			}

			for i, task := range tasks {
				l.call(task)
				tasks[i] = nil
			}

			l.spare = tasks
		}
	}
}

func (l *Loop) call(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().
				Str("panic", fmt.Sprint(r)).
				Msg("recovered a panic in a loop task")
		}
	}()

	task()
}
