package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/san-kum/ldpcsim/internal/ldpc"
)

var ErrQueueClosed = errors.New("sim: queue closed")

// Future is the pending result of a queued run.
type Future struct {
	done chan struct{}
	res  *Result
	err  error
}

// Done is closed when the run has finished, successfully or not.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the run finishes or ctx ends.
func (f *Future) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type job struct {
	params ldpc.RunParams
	future *Future
}

// Queue spreads pending runs over a fixed set of execution contexts so
// callers do not block on the device.
type Queue struct {
	session *Session
	jobs    chan job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewQueue starts contexts workers; depth bounds the runs waiting for one.
// contexts is clamped to the session pool capacity.
func NewQueue(s *Session, contexts, depth int) *Queue {
	if contexts <= 0 || contexts > s.opts.PoolCapacity {
		contexts = s.opts.PoolCapacity
	}
	if depth < 0 {
		depth = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		session: s,
		jobs:    make(chan job, depth),
		ctx:     ctx,
		cancel:  cancel,
	}
	q.wg.Add(contexts)
	for i := 0; i < contexts; i++ {
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		j.future.res, j.future.err = q.session.Run(q.ctx, j.params)
		close(j.future.done)
	}
}

// Submit enqueues a run. It fails with ErrResourceExhausted when the queue
// is full instead of blocking.
func (q *Queue) Submit(p ldpc.RunParams) (*Future, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	f := &Future{done: make(chan struct{})}
	select {
	case q.jobs <- job{params: p, future: f}:
		return f, nil
	default:
		return nil, fmt.Errorf("%w: run queue is full", ldpc.ErrResourceExhausted)
	}
}

// Close stops accepting runs and waits for queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()
}
