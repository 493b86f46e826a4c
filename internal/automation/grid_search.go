package automation

import (
	"context"
	"errors"
	"math"

	"github.com/san-kum/ldpcsim/internal/ldpc"
	"github.com/san-kum/ldpcsim/internal/sim"
)

var ErrNoConvergence = errors.New("automation: no iteration count cleared every seed")

// GridSearch evaluates every combination of integer parameters and keeps the
// one with the lowest objective. Ties keep the first combination visited.
type GridSearch struct {
	paramNames []string
	ranges     [][]int
}

func NewGridSearch(params []string, ranges [][]int) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

func (g *GridSearch) Search(
	ctx context.Context,
	evaluate func(ctx context.Context, params map[string]int) (float64, error),
) (map[string]int, float64, error) {

	best := math.Inf(1)
	var bestParams map[string]int

	err := g.searchRecursive(ctx, 0, make(map[string]int), evaluate, &best, &bestParams)
	return bestParams, best, err
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]int,
	evaluate func(context.Context, map[string]int) (float64, error),
	best *float64,
	bestParams *map[string]int,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		val, err := evaluate(ctx, current)
		if err != nil {
			return err
		}
		if val < *best {
			*best = val
			*bestParams = make(map[string]int, len(current))
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]int, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, evaluate, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}

type IterationSearch struct {
	Iterations []int
	Injected   int
	Seeds      int
	SeedStart  uint64
}

// MinIterations returns the smallest iteration count for which every seed
// decodes without residual errors.
func MinIterations(ctx context.Context, s *sim.Session, search IterationSearch) (int, error) {
	grid := NewGridSearch([]string{"bp_iterations"}, [][]int{search.Iterations})
	params, best, err := grid.Search(ctx, func(ctx context.Context, p map[string]int) (float64, error) {
		iters := p["bp_iterations"]
		results, err := sim.NewEnsemble(s, max(search.Seeds, 1), search.SeedStart).Run(ctx, ldpc.RunParams{
			BPIterations:   iters,
			InjectedErrors: search.Injected,
		})
		if err != nil {
			return 0, err
		}
		for _, r := range results {
			if r.BitErrorCount > 0 {
				return math.Inf(1), nil
			}
		}
		return float64(iters), nil
	})
	if err != nil {
		return 0, err
	}
	if math.IsInf(best, 1) {
		return 0, ErrNoConvergence
	}
	return params["bp_iterations"], nil
}
