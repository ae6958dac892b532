package blockio

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/zhukovaskychina/xswap-engine/logger"
)

var (
	// ErrQueueClosed is returned through completions for requests
	// submitted after Close.
	ErrQueueClosed = errors.New("I/O queue closed")
)

const (
	defaultDepth    = 128
	defaultPoolSize = 256
	defaultWorkers  = 4
)

// PollToken identifies a submission on the polled completion path.
type PollToken uint64

// Queue drives transfers against one device. Workers execute requests
// and hand finished ones either to the dispatcher goroutine or, for
// high-priority requests, to a list the submitting goroutine harvests
// with Poll. Completion handlers for polled requests therefore run in
// the poller's own context.
type Queue struct {
	dev Device

	submitCh chan *Request
	irqCh    chan *Request
	pool     chan *Request

	pollMu   sync.Mutex
	pollDone []*Request

	cookieSeq uint64

	// closeMu orders submissions against Close: a submission holding the
	// read side has either parked its request where the shutdown drain
	// will find it, or observed isClosed and kept the request out.
	closeMu  sync.RWMutex
	isClosed bool

	closed    chan struct{}
	closeOnce sync.Once
	workerWg  sync.WaitGroup
	irqWg     sync.WaitGroup
}

// NewQueue starts workers for dev. depth bounds the submission backlog,
// poolSize bounds the number of requests that can exist at once.
func NewQueue(dev Device, depth, poolSize, workers int) *Queue {
	if depth <= 0 {
		depth = defaultDepth
	}
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	q := &Queue{
		dev:      dev,
		submitCh: make(chan *Request, depth),
		irqCh:    make(chan *Request, depth),
		pool:     make(chan *Request, poolSize),
		closed:   make(chan struct{}),
	}
	for i := 0; i < poolSize; i++ {
		q.pool <- &Request{q: q}
	}

	q.workerWg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	q.irqWg.Add(1)
	go q.dispatchLoop()

	return q
}

// AllocRequest takes a request from the bounded pool. It returns nil when
// the pool is exhausted; the caller must treat that as backpressure, not
// as a fatal condition.
func (q *Queue) AllocRequest() *Request {
	select {
	case req := <-q.pool:
		req.reset()
		req.cookie = atomic.AddUint64(&q.cookieSeq, 1)
		return req
	default:
		return nil
	}
}

func (q *Queue) putRequest(req *Request) {
	req.reset()
	select {
	case q.pool <- req:
	default:
		// pool was sized for every allocated request, so this cannot
		// fill up unless a request is released twice
		logger.Warnf("request pool overflow, dropping request")
	}
}

// Submit queues the request for execution. Ownership passes to the queue
// until the completion handler runs. Submitting against a closed queue
// completes the request with ErrQueueClosed.
func (q *Queue) Submit(req *Request) PollToken {
	token := PollToken(req.cookie)
	q.closeMu.RLock()
	if q.isClosed {
		q.closeMu.RUnlock()
		q.finish(req, ErrQueueClosed)
		return token
	}
	// the read lock holds Close out, so the workers are still draining
	// submitCh and the send cannot strand the request
	q.submitCh <- req
	q.closeMu.RUnlock()
	return token
}

// Poll harvests finished high-priority requests, running their completion
// handlers in the caller's context. It reports whether any completions
// ran, which tells a waiting reader to re-check its waiter instead of
// sleeping.
func (q *Queue) Poll(t PollToken) bool {
	q.pollMu.Lock()
	done := q.pollDone
	q.pollDone = nil
	q.pollMu.Unlock()

	for _, req := range done {
		q.complete(req)
	}
	return len(done) > 0
}

func (q *Queue) worker() {
	defer q.workerWg.Done()
	for {
		select {
		case <-q.closed:
			return
		case req := <-q.submitCh:
			req.err = q.execute(req)
			if req.Flags&ReqHiPri != 0 {
				q.pollMu.Lock()
				q.pollDone = append(q.pollDone, req)
				q.pollMu.Unlock()
				// kick the parked reader the way a device interrupt
				// would; the completion itself runs when it polls
				if w := req.waiter.Load(); w != nil {
					w.Wake()
				}
			} else {
				select {
				case q.irqCh <- req:
				case <-q.closed:
					q.complete(req)
				}
			}
		}
	}
}

func (q *Queue) dispatchLoop() {
	defer q.irqWg.Done()
	for {
		select {
		case req := <-q.irqCh:
			q.complete(req)
		case <-q.closed:
			// drain whatever the workers already finished
			for {
				select {
				case req := <-q.irqCh:
					q.complete(req)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) execute(req *Request) error {
	off := int64(req.Sector) * SectorSize
	switch req.Op {
	case OpWrite:
		n, err := q.dev.WriteAt(req.Data, off)
		if err != nil {
			return errors.Trace(err)
		}
		if n < len(req.Data) {
			return errors.Trace(io.ErrShortWrite)
		}
		if req.Flags&ReqSync != 0 {
			return errors.Trace(q.dev.Sync())
		}
		return nil
	case OpRead:
		n, err := q.dev.ReadAt(req.Data, off)
		if err != nil {
			return errors.Trace(err)
		}
		if n < len(req.Data) {
			return errors.Trace(io.ErrUnexpectedEOF)
		}
		return nil
	default:
		return errors.NotValidf("request op %d", req.Op)
	}
}

func (q *Queue) complete(req *Request) {
	if req.End == nil {
		req.Release()
		return
	}
	req.End(req, req.err)
}

func (q *Queue) finish(req *Request, err error) {
	req.err = err
	q.complete(req)
}

// Close stops the workers. Unexecuted submissions racing with Close
// complete with ErrQueueClosed; a transfer the device already ran still
// gets its completion, carrying the transfer's own result. The device
// itself is owned by the store and stays open.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.closeMu.Lock()
		q.isClosed = true
		q.closeMu.Unlock()
		close(q.closed)
		q.workerWg.Wait()
		q.irqWg.Wait()

		// The workers and the dispatcher are gone. A worker finishing
		// during shutdown may park its request in irqCh after the
		// dispatcher's final drain; run those completions here, then
		// fail everything that never reached the device.
		for {
			select {
			case req := <-q.irqCh:
				q.complete(req)
			case req := <-q.submitCh:
				q.finish(req, ErrQueueClosed)
			default:
				q.Poll(0)
				return
			}
		}
	})
}
