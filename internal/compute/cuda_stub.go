package compute

import (
	"context"
	"fmt"
)

type CUDABackend struct{}

func NewCUDABackend() *CUDABackend {
	return &CUDABackend{}
}

func (c *CUDABackend) Name() string    { return "cuda (not available)" }
func (c *CUDABackend) Available() bool { return false }
func (c *CUDABackend) Cleanup()        {}
func (c *CUDABackend) Stats() Stats    { return Stats{} }
func (c *CUDABackend) Free(b *Buffer)  {}

func (c *CUDABackend) Alloc(label string, size int, usage Usage) (*Buffer, error) {
	return nil, fmt.Errorf("%w: %s", ErrDevice, c.Name())
}

func (c *CUDABackend) Submit(ctx context.Context, batch *Batch) (*Fence, error) {
	return nil, fmt.Errorf("%w: %s", ErrDevice, c.Name())
}
