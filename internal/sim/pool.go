package sim

import (
	"fmt"
	"sync"

	"github.com/san-kum/ldpcsim/internal/compute"
	"github.com/san-kum/ldpcsim/internal/ldpc"
)

// BufferPool recycles device buffers of one size. At most capacity buffers
// are checked out at once. Returned buffers keep whatever the last run left
// in them; the harness zero-fills on checkout inside the run's batch.
type BufferPool struct {
	backend  compute.Backend
	label    string
	size     int
	usage    compute.Usage
	capacity int

	mu     sync.Mutex
	free   []*compute.Buffer
	out    int
	closed bool
}

func NewBufferPool(backend compute.Backend, label string, size int, usage compute.Usage, capacity int) *BufferPool {
	if capacity <= 0 {
		capacity = DefaultPoolCapacity
	}
	return &BufferPool{
		backend:  backend,
		label:    label,
		size:     size,
		usage:    usage,
		capacity: capacity,
	}
}

func (p *BufferPool) Get() (*compute.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("%w: %s pool closed", ldpc.ErrResourceExhausted, p.label)
	}
	if p.out >= p.capacity {
		return nil, fmt.Errorf("%w: %s pool has %d of %d buffers checked out", ldpc.ErrResourceExhausted, p.label, p.out, p.capacity)
	}
	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free = p.free[:n-1]
		p.out++
		return b, nil
	}
	b, err := p.backend.Alloc(p.label, p.size, p.usage)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ldpc.ErrResourceExhausted, err)
	}
	p.out++
	return b, nil
}

func (p *BufferPool) Put(b *compute.Buffer) {
	if b == nil || b.Size() != p.size {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out--
	if p.closed {
		p.backend.Free(b)
		return
	}
	p.free = append(p.free, b)
}

func (p *BufferPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}

func (p *BufferPool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Close frees idle buffers. Buffers still checked out are freed on return.
func (p *BufferPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.free {
		p.backend.Free(b)
	}
	p.free = nil
	p.closed = true
}
