// Package reader implements the reading state: navigation over cached
// pages, the background pagination worker, refresh scheduling, and the
// pre-paginated bitmap renderer.
package reader

import (
	"fmt"
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sumireader/sumi/internal/errs"
)

// StopTimeout bounds the wait for the worker to quiesce. Generous
// because a page commit can stall on SD I/O.
const StopTimeout = 10 * time.Second

// Task is the single-shot background pagination worker. It is started,
// runs to natural completion, and exits; starting it while running is a
// hard error. Stop is cooperative: the worker polls ShouldStop between
// page commits.
type Task struct {
	running atomic.Bool
	stop    atomic.Bool
	done    chan struct{}
}

// Start launches fn on a fresh goroutine. fn must poll shouldStop and
// return promptly once it reads true.
func (t *Task) Start(fn func(shouldStop func() bool)) error {
	if !t.running.CompareAndSwap(false, true) {
		err := errs.E(errs.InvalidState, "reader.Task.Start",
			fmt.Errorf("background task already running"))
		log.Printf("warning: %v", err)
		return err
	}
	t.stop.Store(false)
	t.done = make(chan struct{})
	done := t.done
	go func() {
		defer func() {
			t.running.Store(false)
			close(done)
		}()
		fn(t.stop.Load)
	}()
	return nil
}

// Running reports whether the worker is live.
func (t *Task) Running() bool { return t.running.Load() }

// Stop requests a cooperative stop and waits for the worker to exit,
// up to StopTimeout. On timeout the worker keeps running; it is never
// force-killed, the protocol relies on SD I/O eventually returning.
func (t *Task) Stop() {
	if !t.running.Load() {
		return
	}
	t.stop.Store(true)
	select {
	case <-t.done:
	case <-time.After(StopTimeout):
		log.Printf("warning: background task did not stop within %v", StopTimeout)
		return
	}
	// Let the scheduler retire the worker goroutine before the caller
	// touches the shared cache and parser.
	runtime.Gosched()
}
