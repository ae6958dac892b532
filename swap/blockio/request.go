package blockio

import (
	"sync/atomic"

	"github.com/zhukovaskychina/xswap-engine/swap/page"
)

type Op uint8

const (
	OpRead Op = iota
	OpWrite
)

func (op Op) String() string {
	if op == OpWrite {
		return "write"
	}
	return "read"
}

type ReqFlags uint8

const (
	// ReqSync forces the device to flush after the write completes.
	ReqSync ReqFlags = 1 << iota
	// ReqHiPri routes the completion through the polled path instead of
	// the dispatcher goroutine.
	ReqHiPri
)

// CompletionFunc runs when a request finishes. It owns the request and
// must call Release when done with it.
type CompletionFunc func(req *Request, err error)

// Request is one transfer between a page frame and a device. Requests
// come from the queue's bounded pool; a nil AllocRequest result means the
// pool is exhausted and the caller has to back off.
type Request struct {
	Op     Op
	Flags  ReqFlags
	Sector uint64
	Data   []byte
	Page   *page.Page
	End    CompletionFunc

	q      *Queue
	cookie uint64
	err    error
	waiter atomic.Pointer[Waiter]
}

// Cookie identifies this submission on the queue's polled path.
func (r *Request) Cookie() uint64 {
	return r.cookie
}

// SetWaiter attaches the parked reader before submission.
func (r *Request) SetWaiter(w *Waiter) {
	r.waiter.Store(w)
}

// TakeWaiter atomically detaches the parked reader. Completion handlers
// detach before waking so a spurious wakeup never observes a half-finished
// request.
func (r *Request) TakeWaiter() *Waiter {
	return r.waiter.Swap(nil)
}

// Release returns the request to its queue's pool.
func (r *Request) Release() {
	r.q.putRequest(r)
}

func (r *Request) reset() {
	r.Op = OpRead
	r.Flags = 0
	r.Sector = 0
	r.Data = nil
	r.Page = nil
	r.End = nil
	r.err = nil
	r.waiter.Store(nil)
}
