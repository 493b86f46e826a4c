package ldpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/san-kum/ldpcsim/internal/compute"
)

const DefaultColumnWeight = 4

type MatrixOptions struct {
	// ColumnWeight is the number of checks each message bit joins. Zero
	// picks DefaultColumnWeight, capped below ParityBits.
	ColumnWeight int
	// HostVisible allocates the matrix so Map can read it back.
	HostVisible bool
}

// MatrixStore owns the packed parity-check matrix and the graph derived
// from it. Generate and Reset are exclusive with any run holding a view.
type MatrixStore struct {
	backend compute.Backend
	shape   Shape
	opts    MatrixOptions

	mu        sync.RWMutex
	buf       *compute.Buffer
	graph     *Graph
	seed      uint64
	generated bool
}

func NewMatrixStore(backend compute.Backend, shape Shape, opts MatrixOptions) (*MatrixStore, error) {
	if err := shape.ValidateFor(ModeEncodeOnly); err != nil {
		return nil, err
	}
	if opts.ColumnWeight == 0 {
		opts.ColumnWeight = AutoColumnWeight(shape)
	}
	if opts.ColumnWeight < 1 || opts.ColumnWeight > maxColumnWeight(shape) {
		return nil, &ConfigError{Field: "column_weight", Value: opts.ColumnWeight,
			Reason: fmt.Sprintf("must be within [1, %d]", maxColumnWeight(shape))}
	}
	return &MatrixStore{backend: backend, shape: shape, opts: opts}, nil
}

// AutoColumnWeight is DefaultColumnWeight clamped to the largest weight
// shape allows.
func AutoColumnWeight(shape Shape) int {
	return min(DefaultColumnWeight, maxColumnWeight(shape))
}

// With weight == ParityBits every message column is the same, so two or
// more message bits need a smaller weight.
func maxColumnWeight(shape Shape) int {
	if shape.MessageBits > 1 && shape.ParityBits > 1 {
		return shape.ParityBits - 1
	}
	return shape.ParityBits
}

func (s *MatrixStore) Shape() Shape { return s.shape }

func (s *MatrixStore) ColumnWeight() int { return s.opts.ColumnWeight }

func (s *MatrixStore) ensureBuffer() error {
	if s.buf != nil {
		return nil
	}
	usage := compute.UsageStorage
	if s.opts.HostVisible {
		usage |= compute.UsageHostVisible
	}
	buf, err := s.backend.Alloc("matrix", s.shape.MatrixBytes(), usage)
	if err != nil {
		return fmt.Errorf("allocate matrix: %w", err)
	}
	s.buf = buf
	return nil
}

// Generate fills the matrix for seed. The same seed always yields the same
// bit image.
func (s *MatrixStore) Generate(ctx context.Context, seed uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureBuffer(); err != nil {
		return err
	}
	g := constructGraph(s.shape, s.opts.ColumnWeight, seed)
	p := s.shape.ParityBits
	buf := s.buf

	batch := compute.NewBatch("matrix.generate")
	batch.Fill(buf, 0).Barrier()
	batch.Dispatch(compute.Kernel{
		Label:  "matrix.pack",
		Lanes:  buf.Size(),
		Writes: []*compute.Buffer{buf},
		Fn: func(lo, hi int) error {
			data := buf.Bytes()
			for b := lo; b < hi; b++ {
				var v byte
				for k := 0; k < 8; k++ {
					i := b*8 + k
					if g.HasEdge(i/p, i%p) {
						v |= 1 << k
					}
				}
				data[b] = v
			}
			return nil
		},
	})
	if err := submitAndWait(ctx, s.backend, batch); err != nil {
		s.generated = false
		s.graph = nil
		return err
	}
	s.graph = g
	s.seed = seed
	s.generated = true
	return nil
}

// Reset zero-fills the matrix. Runs fail until the next Generate.
func (s *MatrixStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generated = false
	s.graph = nil
	if s.buf == nil {
		return nil
	}
	batch := compute.NewBatch("matrix.reset")
	batch.Fill(s.buf, 0)
	return submitAndWait(ctx, s.backend, batch)
}

func (s *MatrixStore) Generated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generated
}

func (s *MatrixStore) Seed() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seed
}

// Map returns a copy of the host visible matrix image.
func (s *MatrixStore) Map() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.buf == nil {
		return nil, ErrMatrixNotGenerated
	}
	data, err := s.buf.Map()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Graph returns the graph of the current matrix, nil after Reset.
func (s *MatrixStore) Graph() *Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// MatrixView pins the published matrix for the duration of a run.
type MatrixView struct {
	Buffer *compute.Buffer
	Graph  *Graph
	store  *MatrixStore
	once   sync.Once
}

func (v *MatrixView) Release() {
	v.once.Do(v.store.mu.RUnlock)
}

// Acquire blocks while a Generate or Reset is in progress.
func (s *MatrixStore) Acquire() (*MatrixView, error) {
	s.mu.RLock()
	if !s.generated {
		s.mu.RUnlock()
		return nil, ErrMatrixNotGenerated
	}
	return &MatrixView{Buffer: s.buf, Graph: s.graph, store: s}, nil
}

func (s *MatrixStore) Free() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf != nil {
		s.backend.Free(s.buf)
		s.buf = nil
	}
	s.graph = nil
	s.generated = false
}

func submitAndWait(ctx context.Context, backend compute.Backend, batch *compute.Batch) error {
	fence, err := backend.Submit(ctx, batch)
	if err != nil {
		return err
	}
	return fence.Wait()
}
