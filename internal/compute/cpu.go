package compute

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest lane range worth handing to its own goroutine.
const minChunk = 16

type CPUBackend struct {
	workers  int
	limit    int64
	validate bool

	mu        sync.Mutex
	allocated int64
	peak      int64
	buffers   int
	nextID    uint64
	closed    bool

	batches atomic.Uint64
}

type CPUOption func(*CPUBackend)

func WithWorkers(n int) CPUOption {
	return func(c *CPUBackend) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMemoryLimit caps the total bytes the backend hands out; 0 means unlimited.
func WithMemoryLimit(bytes int64) CPUOption {
	return func(c *CPUBackend) { c.limit = bytes }
}

// WithValidation toggles hazard checking of submitted batches.
func WithValidation(on bool) CPUOption {
	return func(c *CPUBackend) { c.validate = on }
}

func NewCPUBackend(opts ...CPUOption) *CPUBackend {
	c := &CPUBackend{
		workers:  runtime.NumCPU(),
		validate: true,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *CPUBackend) Name() string    { return fmt.Sprintf("cpu (%d lanes)", c.workers) }
func (c *CPUBackend) Available() bool { return true }

func (c *CPUBackend) Cleanup() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *CPUBackend) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Allocated: c.allocated,
		Peak:      c.peak,
		Limit:     c.limit,
		Buffers:   c.buffers,
		Batches:   c.batches.Load(),
	}
}

func (c *CPUBackend) Alloc(label string, size int, usage Usage) (*Buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d for %s", ErrAllocation, size, label)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: backend closed", ErrDevice)
	}
	if c.limit > 0 && c.allocated+int64(size) > c.limit {
		free := c.limit - c.allocated
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s needs %d bytes, %d free", ErrAllocation, label, size, free)
	}
	c.allocated += int64(size)
	if c.allocated > c.peak {
		c.peak = c.allocated
	}
	c.buffers++
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	return newBuffer(id, label, size, usage), nil
}

func (c *CPUBackend) Free(b *Buffer) {
	if b == nil || b.freed.Swap(true) {
		return
	}
	c.mu.Lock()
	c.allocated -= int64(b.Size())
	c.buffers--
	c.mu.Unlock()
}

func (c *CPUBackend) Submit(ctx context.Context, batch *Batch) (*Fence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: backend closed", ErrDevice)
	}
	if c.validate {
		if err := batch.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDevice, batch.label, err)
		}
	}
	for _, cmd := range batch.cmds {
		if cmd.kind == cmdFill && cmd.buf.Released() {
			return nil, fmt.Errorf("%w: %s", ErrFreed, cmd.buf.label)
		}
	}

	c.batches.Add(1)
	fence := newFence()
	phases := batch.phases()
	go func() {
		start := time.Now()
		var err error
		for _, phase := range phases {
			if err = c.runPhase(phase); err != nil {
				break
			}
		}
		fence.signal(err, time.Since(start))
	}()
	return fence, nil
}

// runPhase executes every command of one barrier interval concurrently.
func (c *CPUBackend) runPhase(phase []command) error {
	var g errgroup.Group
	g.SetLimit(c.workers)

	for _, cmd := range phase {
		switch cmd.kind {
		case cmdFill:
			g.Go(func() error {
				cmd.buf.fill(cmd.value)
				return nil
			})
		case cmdDispatch:
			k := cmd.kernel
			if k.Lanes <= 0 {
				continue
			}
			workers := c.workers
			if k.Lanes/minChunk < workers {
				workers = k.Lanes / minChunk
			}
			if workers < 1 {
				workers = 1
			}
			chunkSize := (k.Lanes + workers - 1) / workers
			for start := 0; start < k.Lanes; start += chunkSize {
				end := start + chunkSize
				if end > k.Lanes {
					end = k.Lanes
				}
				lo, hi := start, end
				g.Go(func() error { return runLanes(k, lo, hi) })
			}
		}
	}
	return g.Wait()
}

func runLanes(k Kernel, lo, hi int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: k.Label, Wrapped: fmt.Errorf("lane panic: %v", r)}
		}
	}()
	if err := k.Fn(lo, hi); err != nil {
		return &StageError{Stage: k.Label, Wrapped: err}
	}
	return nil
}
