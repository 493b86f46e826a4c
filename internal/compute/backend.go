package compute

import (
	"context"
	"fmt"
)

type Backend interface {
	Name() string
	Available() bool
	Alloc(label string, size int, usage Usage) (*Buffer, error)
	Free(b *Buffer)
	Submit(ctx context.Context, batch *Batch) (*Fence, error)
	Stats() Stats
	Cleanup()
}

type Stats struct {
	Allocated int64
	Peak      int64
	Limit     int64
	Buffers   int
	Batches   uint64
}

// AutoSelectBackend returns CUDA when a device is present, else the CPU lane engine.
func AutoSelectBackend(opts ...CPUOption) Backend {
	cuda := NewCUDABackend()
	if cuda.Available() {
		return cuda
	}
	return NewCPUBackend(opts...)
}

// Open returns the named backend: "auto", "cpu" or "cuda".
func Open(name string, opts ...CPUOption) (Backend, error) {
	switch name {
	case "", "auto":
		return AutoSelectBackend(opts...), nil
	case "cpu":
		return NewCPUBackend(opts...), nil
	case "cuda":
		cuda := NewCUDABackend()
		if !cuda.Available() {
			return nil, fmt.Errorf("%w: %s", ErrDevice, cuda.Name())
		}
		return cuda, nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", ErrDevice, name)
}
