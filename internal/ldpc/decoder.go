package ldpc

import (
	"fmt"
	"math"
	"strconv"

	"github.com/san-kum/ldpcsim/internal/compute"
)

// Rule selects the check node update. Messages are log-likelihood ratios,
// ln P(bit=0)/P(bit=1), so positive values favour zero.
type Rule uint8

const (
	// RuleSumProduct is the exact tanh rule evaluated as a sum of phi terms.
	RuleSumProduct Rule = iota
	// RuleMinSum is normalized min-sum with factor minSumScale.
	RuleMinSum
)

const (
	maxLLR      = 25.0
	minSumScale = 0.75
	// phi(x) diverges at zero; magnitudes below this are treated as it.
	minPhiInput = 1e-7
)

func (r Rule) String() string {
	switch r {
	case RuleSumProduct:
		return "sum-product"
	case RuleMinSum:
		return "min-sum"
	}
	return "rule(" + strconv.Itoa(int(r)) + ")"
}

func ParseRule(name string) (Rule, error) {
	switch name {
	case "sum-product", "":
		return RuleSumProduct, nil
	case "min-sum":
		return RuleMinSum, nil
	}
	return 0, fmt.Errorf("%w: unknown decoder rule %q", ErrConfiguration, name)
}

func (r Rule) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Rule) UnmarshalText(b []byte) error {
	v, err := ParseRule(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// phi(x) = -ln tanh(x/2); it is its own inverse on (0, inf).
func phi(x float64) float64 {
	if x < minPhiInput {
		x = minPhiInput
	}
	if x > maxLLR {
		return 2 * math.Exp(-x)
	}
	return math.Log1p(2 / math.Expm1(x))
}

func clampLLR(x float64) float32 {
	return float32(math.Max(-maxLLR, math.Min(maxLLR, x)))
}

// receivedLLR is the channel observation of variable v.
func receivedLLR(cw *compute.Buffer, v int, mag float64) float64 {
	if loadBit(cw, v) == 1 {
		return -mag
	}
	return mag
}

// DecodeKernels returns the decoder stages in execution order. Each stage
// must be separated from the next by a barrier: check lanes read what
// variable lanes wrote in the stage before and vice versa. Edge messages
// live in the workspace cell of their edge, so Q and R share a slot and
// every stage owns disjoint cells per lane.
func (pr *Program) DecodeKernels(b Bindings, p RunParams) []compute.Kernel {
	g := b.Graph
	mag := float64(ChannelLLR(pr.key.Shape, p.InjectedErrors))
	iterations := p.BPIterations
	stages := make([]compute.Kernel, 0, 2*iterations+1)

	stages = append(stages, compute.Kernel{
		Label:  "decode.init",
		Lanes:  g.Vars,
		Reads:  []*compute.Buffer{b.Codeword},
		Writes: []*compute.Buffer{b.Workspace},
		Fn: func(lo, hi int) error {
			ws := b.Workspace.Float32s()
			for v := lo; v < hi; v++ {
				l := float32(receivedLLR(b.Codeword, v, mag))
				for e := g.VarOffsets[v]; e < g.VarOffsets[v+1]; e++ {
					ws[g.Slot(int(e))] = l
				}
			}
			return nil
		},
	})

	check := pr.checkUpdate
	for i := 0; i < iterations; i++ {
		stages = append(stages, compute.Kernel{
			Label:  fmt.Sprintf("decode.check[%d]", i),
			Lanes:  g.Checks,
			Writes: []*compute.Buffer{b.Workspace},
			Fn: func(lo, hi int) error {
				ws := b.Workspace.Float32s()
				for c := lo; c < hi; c++ {
					check(g, ws, c)
				}
				return nil
			},
		})
		if i == iterations-1 {
			break
		}
		stages = append(stages, compute.Kernel{
			Label:  fmt.Sprintf("decode.variable[%d]", i),
			Lanes:  g.Vars,
			Reads:  []*compute.Buffer{b.Codeword},
			Writes: []*compute.Buffer{b.Workspace},
			Fn: func(lo, hi int) error {
				ws := b.Workspace.Float32s()
				for v := lo; v < hi; v++ {
					first, last := g.VarOffsets[v], g.VarOffsets[v+1]
					total := receivedLLR(b.Codeword, v, mag)
					for e := first; e < last; e++ {
						total += float64(ws[g.Slot(int(e))])
					}
					for e := first; e < last; e++ {
						slot := g.Slot(int(e))
						ws[slot] = clampLLR(total - float64(ws[slot]))
					}
				}
				return nil
			},
		})
	}

	stages = append(stages, compute.Kernel{
		Label:  "decode.decide",
		Lanes:  g.Vars,
		Reads:  []*compute.Buffer{b.Workspace},
		Writes: []*compute.Buffer{b.Codeword},
		Fn: func(lo, hi int) error {
			ws := b.Workspace.Float32s()
			for v := lo; v < hi; v++ {
				posterior := receivedLLR(b.Codeword, v, mag)
				if iterations > 0 {
					for e := g.VarOffsets[v]; e < g.VarOffsets[v+1]; e++ {
						posterior += float64(ws[g.Slot(int(e))])
					}
				}
				switch {
				case posterior > 0:
					storeBit(b.Codeword, v, 0)
				case posterior < 0:
					storeBit(b.Codeword, v, 1)
				}
			}
			return nil
		},
	})
	return stages
}

// sumProductCheck replaces every Q(v->c) of check c by R(c->v).
func sumProductCheck(g *Graph, ws []float32, c int) {
	lo, hi := g.CheckOffsets[c], g.CheckOffsets[c+1]
	if hi-lo == 1 {
		ws[g.Slot(int(g.CheckEdges[lo]))] = maxLLR
		return
	}
	var sum float64
	negative := false
	for k := lo; k < hi; k++ {
		q := float64(ws[g.Slot(int(g.CheckEdges[k]))])
		if q < 0 {
			negative = !negative
		}
		sum += phi(math.Abs(q))
	}
	for k := lo; k < hi; k++ {
		slot := g.Slot(int(g.CheckEdges[k]))
		q := float64(ws[slot])
		mag := phi(math.Max(sum-phi(math.Abs(q)), 0))
		neg := negative
		if q < 0 {
			neg = !neg
		}
		if neg {
			mag = -mag
		}
		ws[slot] = clampLLR(mag)
	}
}

func minSumCheck(g *Graph, ws []float32, c int) {
	lo, hi := g.CheckOffsets[c], g.CheckOffsets[c+1]
	if hi-lo == 1 {
		ws[g.Slot(int(g.CheckEdges[lo]))] = maxLLR
		return
	}
	min1, min2 := math.Inf(1), math.Inf(1)
	argmin := int32(-1)
	negative := false
	for k := lo; k < hi; k++ {
		q := float64(ws[g.Slot(int(g.CheckEdges[k]))])
		if q < 0 {
			negative = !negative
		}
		a := math.Abs(q)
		switch {
		case a < min1:
			min1, min2, argmin = a, min1, k
		case a < min2:
			min2 = a
		}
	}
	for k := lo; k < hi; k++ {
		slot := g.Slot(int(g.CheckEdges[k]))
		q := float64(ws[slot])
		mag := min1
		if k == argmin {
			mag = min2
		}
		mag *= minSumScale
		neg := negative
		if q < 0 {
			neg = !neg
		}
		if neg {
			mag = -mag
		}
		ws[slot] = clampLLR(mag)
	}
}
