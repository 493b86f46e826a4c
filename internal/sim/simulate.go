package sim

import (
	"context"

	"github.com/san-kum/ldpcsim/internal/compute"
	"github.com/san-kum/ldpcsim/internal/ldpc"
)

// RunSimulation is the one-shot form of the harness: it builds a session
// with default options on backend, publishes the matrix, executes a single
// run and releases everything it allocated.
func RunSimulation(ctx context.Context, backend compute.Backend, shape ldpc.Shape, p ldpc.RunParams) (*Result, error) {
	s, err := NewSession(backend, Options{Shape: shape, PoolCapacity: 1})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := s.Generate(ctx); err != nil {
		return nil, err
	}
	return s.Run(ctx, p)
}
