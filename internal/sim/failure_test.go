package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/san-kum/ldpcsim/internal/compute"
	"github.com/san-kum/ldpcsim/internal/ldpc"
)

// faultyBackend fails or sabotages "run" batches.
type faultyBackend struct {
	*compute.CPUBackend
	submitErr error
	failStage string
}

func (f *faultyBackend) Submit(ctx context.Context, b *compute.Batch) (*compute.Fence, error) {
	if b.Label() == "run" {
		if f.submitErr != nil {
			return nil, f.submitErr
		}
		if f.failStage != "" {
			b.Barrier().Dispatch(compute.Kernel{
				Label: f.failStage,
				Lanes: 1,
				Fn:    func(lo, hi int) error { return errors.New("device lost") },
			})
		}
	}
	return f.CPUBackend.Submit(ctx, b)
}

type recorder struct {
	mu       sync.Mutex
	runs     []*Result
	failures []string
}

func (r *recorder) OnRun(res *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, res)
}

func (r *recorder) OnFailure(stage string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, stage)
}

func openSession(t *testing.T, backend compute.Backend, opts Options) *Session {
	t.Helper()
	if opts.Shape == (ldpc.Shape{}) {
		opts.Shape = scenarioShape
	}
	s, err := NewSession(backend, opts)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Generate(context.Background()); err != nil {
		t.Fatalf("generate: %v", err)
	}
	return s
}

func TestRunSubmitFailure(t *testing.T) {
	backend := &faultyBackend{
		CPUBackend: compute.NewCPUBackend(),
		submitErr:  fmt.Errorf("%w: queue lost", compute.ErrDevice),
	}
	s := openSession(t, backend, Options{})
	rec := &recorder{}
	s.AddObserver(rec)

	_, err := s.Run(context.Background(), ldpc.RunParams{BPIterations: 1})
	if !errors.Is(err, ldpc.ErrDevice) {
		t.Fatalf("expected ErrDevice, got %v", err)
	}
	var stageErr *ldpc.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageSubmit {
		t.Errorf("expected submit stage, got %v", err)
	}
	if len(rec.failures) != 1 || rec.failures[0] != StageSubmit {
		t.Errorf("observer saw %v", rec.failures)
	}
	if s.InFlight() != 0 {
		t.Errorf("buffers leaked: %d in flight", s.InFlight())
	}
}

func TestRunStageFailure(t *testing.T) {
	backend := &faultyBackend{CPUBackend: compute.NewCPUBackend(), failStage: "decode.lost"}
	s := openSession(t, backend, Options{})
	rec := &recorder{}
	s.AddObserver(rec)

	res, err := s.Run(context.Background(), ldpc.RunParams{BPIterations: 1})
	if res != nil {
		t.Error("a failed run must not surface a result")
	}
	if !errors.Is(err, ldpc.ErrDevice) {
		t.Fatalf("expected ErrDevice, got %v", err)
	}
	var stageErr *ldpc.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "decode.lost" {
		t.Errorf("expected decode.lost stage, got %v", err)
	}
	if len(rec.runs) != 0 || len(rec.failures) != 1 || rec.failures[0] != "decode.lost" {
		t.Errorf("observer saw runs=%d failures=%v", len(rec.runs), rec.failures)
	}
}

func TestRunResourceExhausted(t *testing.T) {
	shape := scenarioShape
	// Room for the matrix, the accumulator and a codeword but not a workspace.
	limit := int64(shape.MatrixBytes() + 4 + shape.CodewordBytes(ldpc.ModeDecode) + 1024)
	s := openSession(t, compute.NewCPUBackend(compute.WithMemoryLimit(limit)), Options{})

	_, err := s.Run(context.Background(), ldpc.RunParams{BPIterations: 1})
	if !errors.Is(err, ldpc.ErrResourceExhausted) {
		t.Fatalf("expected ErrResourceExhausted, got %v", err)
	}
	if !errors.Is(err, ldpc.ErrAllocation) {
		t.Errorf("expected the allocation cause to be kept, got %v", err)
	}
	if s.InFlight() != 0 {
		t.Errorf("partial checkout leaked: %d", s.InFlight())
	}
}

func TestRunWithoutMatrix(t *testing.T) {
	s, err := NewSession(compute.NewCPUBackend(), Options{Shape: scenarioShape})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	rec := &recorder{}
	s.AddObserver(rec)
	_, err = s.Run(context.Background(), ldpc.RunParams{})
	if !errors.Is(err, ldpc.ErrMatrixNotGenerated) {
		t.Fatalf("expected ErrMatrixNotGenerated, got %v", err)
	}
	if len(rec.failures) != 1 || rec.failures[0] != StageAcquire {
		t.Errorf("observer saw %v", rec.failures)
	}
}

func TestObserverSeesResults(t *testing.T) {
	s := openSession(t, compute.NewCPUBackend(), Options{})
	rec := &recorder{}
	s.AddObserver(rec)

	for i := 0; i < 3; i++ {
		if _, err := s.Run(context.Background(), ldpc.RunParams{BPIterations: 1, Seed: uint64(i)}); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	if len(rec.runs) != 3 {
		t.Fatalf("expected 3 results, got %d", len(rec.runs))
	}
	if rec.runs[2].Params.Seed != 2 {
		t.Errorf("expected seed 2, got %d", rec.runs[2].Params.Seed)
	}
}

func TestBufferPool(t *testing.T) {
	backend := compute.NewCPUBackend()
	pool := NewBufferPool(backend, "cw", 64, compute.UsageStorage, 2)

	a, err := pool.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, err := pool.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := pool.Get(); !errors.Is(err, ldpc.ErrResourceExhausted) {
		t.Fatalf("expected ErrResourceExhausted, got %v", err)
	}

	pool.Put(a)
	c, err := pool.Get()
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if c != a {
		t.Error("expected the returned buffer to be reused")
	}
	if backend.Stats().Buffers != 2 {
		t.Errorf("expected 2 allocations, got %d", backend.Stats().Buffers)
	}

	pool.Put(b)
	pool.Close()
	pool.Put(c)
	if backend.Stats().Buffers != 0 {
		t.Errorf("close leaked %d buffers", backend.Stats().Buffers)
	}
	if _, err := pool.Get(); !errors.Is(err, ldpc.ErrResourceExhausted) {
		t.Errorf("expected closed pool to refuse, got %v", err)
	}
}
