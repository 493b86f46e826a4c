package ldpc

import (
	"context"
	"fmt"

	"github.com/san-kum/ldpcsim/internal/compute"
)

// Accumulator is the persistent bit error counter. It keeps counting across
// runs until Reset.
type Accumulator struct {
	backend compute.Backend
	buf     *compute.Buffer
}

func NewAccumulator(backend compute.Backend) (*Accumulator, error) {
	buf, err := backend.Alloc("errors", 4, compute.UsageStorage|compute.UsageHostVisible|compute.UsageAtomic)
	if err != nil {
		return nil, fmt.Errorf("allocate accumulator: %w", err)
	}
	return &Accumulator{backend: backend, buf: buf}, nil
}

func (a *Accumulator) Buffer() *compute.Buffer { return a.buf }

// Load reads the counter. The value is only meaningful once every batch
// that folds into it has completed.
func (a *Accumulator) Load() (uint32, error) {
	if _, err := a.buf.Map(); err != nil {
		return 0, err
	}
	return a.buf.LoadUint32(0), nil
}

func (a *Accumulator) Reset(ctx context.Context) error {
	batch := compute.NewBatch("errors.reset")
	batch.Fill(a.buf, 0)
	return submitAndWait(ctx, a.backend, batch)
}

func (a *Accumulator) Free() {
	a.backend.Free(a.buf)
}
