package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/ldpcsim/internal/ldpc"
)

// Ensemble runs the same parameters over consecutive seeds.
type Ensemble struct {
	session   *Session
	numRuns   int
	seedStart uint64
	workers   int
}

func NewEnsemble(s *Session, numRuns int, seedStart uint64) *Ensemble {
	return &Ensemble{session: s, numRuns: numRuns, seedStart: seedStart, workers: s.opts.PoolCapacity}
}

// WithWorkers caps concurrent runs; it is clamped to the pool capacity.
func (e *Ensemble) WithWorkers(n int) *Ensemble {
	if n > 0 && n <= e.session.opts.PoolCapacity {
		e.workers = n
	}
	return e
}

func (e *Ensemble) Run(ctx context.Context, p ldpc.RunParams) ([]*Result, error) {
	results := make([]*Result, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < e.numRuns; i++ {
		idx := i
		g.Go(func() error {
			params := p
			params.Seed = e.seedStart + uint64(idx)
			res, err := e.session.Run(ctx, params)
			if err != nil {
				return err
			}
			results[idx] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type SweepConfig struct {
	Injected     []int
	Seeds        int
	SeedStart    uint64
	BPIterations int
	Workers      int
}

// SweepPoint summarizes the runs at one injected error count.
type SweepPoint struct {
	Injected int
	Runs     int
	Mean     float64
	StdDev   float64
	Max      uint32
	// Failures counts runs that left at least one bit error.
	Failures int
	BER      float64
	FER      float64
}

// Sweep runs an ensemble per injected error count. progress, when set, is
// called after every completed point.
func Sweep(ctx context.Context, s *Session, cfg SweepConfig, progress func(done, total int, pt SweepPoint)) ([]SweepPoint, error) {
	points := make([]SweepPoint, 0, len(cfg.Injected))
	for i, k := range cfg.Injected {
		results, err := NewEnsemble(s, cfg.Seeds, cfg.SeedStart).WithWorkers(cfg.Workers).Run(ctx, ldpc.RunParams{
			BPIterations:   cfg.BPIterations,
			InjectedErrors: k,
		})
		if err != nil {
			return points, err
		}
		pt := Summarize(k, results, s.CountedBits())
		points = append(points, pt)
		if progress != nil {
			progress(i+1, len(cfg.Injected), pt)
		}
	}
	return points, nil
}

func Summarize(injected int, results []*Result, countedBits int) SweepPoint {
	pt := SweepPoint{Injected: injected, Runs: len(results)}
	if len(results) == 0 {
		return pt
	}
	counts := make([]float64, len(results))
	for i, r := range results {
		counts[i] = float64(r.BitErrorCount)
		if r.BitErrorCount > pt.Max {
			pt.Max = r.BitErrorCount
		}
		if r.BitErrorCount > 0 {
			pt.Failures++
		}
	}
	if len(counts) > 1 {
		pt.Mean, pt.StdDev = stat.MeanStdDev(counts, nil)
	} else {
		pt.Mean = counts[0]
	}
	if countedBits > 0 {
		pt.BER = pt.Mean / float64(countedBits)
	}
	pt.FER = float64(pt.Failures) / float64(pt.Runs)
	return pt
}
