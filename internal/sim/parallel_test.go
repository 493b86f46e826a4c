package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/san-kum/ldpcsim/internal/compute"
	"github.com/san-kum/ldpcsim/internal/ldpc"
)

func TestEnsembleMatchesSequentialRuns(t *testing.T) {
	ctx := context.Background()
	s := openSession(t, compute.NewCPUBackend(), Options{PoolCapacity: 4})
	params := ldpc.RunParams{BPIterations: 5, InjectedErrors: 12}

	results, err := NewEnsemble(s, 8, 100).Run(ctx, params)
	if err != nil {
		t.Fatalf("ensemble: %v", err)
	}
	if len(results) != 8 {
		t.Fatalf("expected 8 results, got %d", len(results))
	}
	var sum uint32
	for i, r := range results {
		if r.Params.Seed != 100+uint64(i) {
			t.Errorf("result %d has seed %d", i, r.Params.Seed)
		}
		p := params
		p.Seed = r.Params.Seed
		single, err := s.Run(ctx, p)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if single.BitErrorCount != r.BitErrorCount {
			t.Errorf("seed %d: ensemble counted %d, single run %d", p.Seed, r.BitErrorCount, single.BitErrorCount)
		}
		sum += r.BitErrorCount
	}

	total, _ := s.TotalErrors()
	if total != 2*sum {
		t.Errorf("accumulator: expected %d, got %d", 2*sum, total)
	}
}

func TestSweepIsMonotonic(t *testing.T) {
	s := openSession(t, compute.NewCPUBackend(), Options{})

	var calls int
	points, err := Sweep(context.Background(), s, SweepConfig{
		Injected:     []int{0, 8, 32, 96},
		Seeds:        24,
		BPIterations: 10,
	}, func(done, total int, pt SweepPoint) {
		calls++
		if total != 4 {
			t.Errorf("expected 4 points in total, got %d", total)
		}
	})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if calls != 4 || len(points) != 4 {
		t.Fatalf("expected 4 points and callbacks, got %d and %d", len(points), calls)
	}
	if points[0].Mean != 0 || points[0].Failures != 0 {
		t.Errorf("clean channel produced errors: %+v", points[0])
	}
	for i := 1; i < len(points); i++ {
		if points[i].Mean < points[i-1].Mean {
			t.Errorf("mean dropped from %.2f at %d to %.2f at %d",
				points[i-1].Mean, points[i-1].Injected, points[i].Mean, points[i].Injected)
		}
	}
	last := points[len(points)-1]
	if last.BER <= 0 || last.BER > 1 || last.FER <= 0 {
		t.Errorf("unexpected rates at %d errors: %+v", last.Injected, last)
	}
}

func TestSummarize(t *testing.T) {
	results := []*Result{{BitErrorCount: 0}, {BitErrorCount: 2}, {BitErrorCount: 4}}
	pt := Summarize(7, results, 100)
	if pt.Mean != 2 || pt.Max != 4 || pt.Failures != 2 {
		t.Errorf("unexpected summary %+v", pt)
	}
	if pt.StdDev != 2 {
		t.Errorf("expected sample std-dev 2, got %f", pt.StdDev)
	}
	if pt.BER != 0.02 {
		t.Errorf("expected BER 0.02, got %f", pt.BER)
	}

	if empty := Summarize(1, nil, 100); empty.Runs != 0 || empty.Mean != 0 {
		t.Errorf("unexpected empty summary %+v", empty)
	}
}

func TestQueue(t *testing.T) {
	s := openSession(t, compute.NewCPUBackend(), Options{PoolCapacity: 2})
	q := NewQueue(s, 2, 16)

	futures := make([]*Future, 0, 10)
	for i := 0; i < 10; i++ {
		f, err := q.Submit(ldpc.RunParams{BPIterations: 2, Seed: uint64(i)})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		futures = append(futures, f)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for i, f := range futures {
		res, err := f.Wait(ctx)
		if err != nil {
			t.Fatalf("future %d: %v", i, err)
		}
		if res.BitErrorCount != 0 || res.Params.Seed != uint64(i) {
			t.Errorf("future %d: unexpected result %+v", i, res)
		}
		select {
		case <-f.Done():
		default:
			t.Errorf("future %d: Done not closed after Wait", i)
		}
	}

	q.Close()
	q.Close()
	if _, err := q.Submit(ldpc.RunParams{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}

func TestQueueFull(t *testing.T) {
	s := openSession(t, compute.NewCPUBackend(), Options{PoolCapacity: 1})
	q := NewQueue(s, 1, 1)
	defer q.Close()

	var full bool
	for i := 0; i < 64; i++ {
		if _, err := q.Submit(ldpc.RunParams{BPIterations: 20, InjectedErrors: 40}); err != nil {
			if !errors.Is(err, ldpc.ErrResourceExhausted) {
				t.Fatalf("expected ErrResourceExhausted, got %v", err)
			}
			full = true
			break
		}
	}
	if !full {
		t.Error("queue never reported itself full")
	}
}
