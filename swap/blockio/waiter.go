package blockio

import (
	"sync"
)

// Waiter parks the goroutine that issued a blocking read until the
// completion handler finishes the request. Wake is a bare kick: Sleep may
// return without the transfer being done, and the caller is expected to
// loop, polling the queue, until Done reports true.
type Waiter struct {
	mu    sync.Mutex
	cond  *sync.Cond
	kicks int
	done  bool
	err   error
}

func NewWaiter() *Waiter {
	w := &Waiter{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Sleep blocks until a pending kick arrives or the waiter is finished.
func (w *Waiter) Sleep() {
	w.mu.Lock()
	for w.kicks == 0 && !w.done {
		w.cond.Wait()
	}
	if w.kicks > 0 {
		w.kicks--
	}
	w.mu.Unlock()
}

// Wake delivers one kick. Waking a finished waiter is harmless.
func (w *Waiter) Wake() {
	w.mu.Lock()
	w.kicks++
	w.cond.Signal()
	w.mu.Unlock()
}

// Finish marks the transfer complete and releases the sleeper for good.
func (w *Waiter) Finish(err error) {
	w.mu.Lock()
	w.done = true
	w.err = err
	w.cond.Broadcast()
	w.mu.Unlock()
}

// Done reports whether Finish was called.
func (w *Waiter) Done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Err returns the transfer result recorded by Finish.
func (w *Waiter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
