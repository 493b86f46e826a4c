package ldpc

import (
	"math"
	"testing"
)

func TestConstructGraph(t *testing.T) {
	tests := []struct {
		weight     int
		seed       uint64
		fourCycles bool
	}{
		{3, 0, false},
		{3, 42, false},
		{3, 1 << 40, false},
		{4, 0, false},
		{4, 1, false},
		// Weight 4 on 64 checks runs out of cycle-free triples for some seeds.
		{4, 7, true},
	}

	m, p := scenarioShape.MessageBits, scenarioShape.ParityBits
	for _, tt := range tests {
		g := constructGraph(scenarioShape, tt.weight, tt.seed)

		if g.Vars != m+p || g.Checks != p {
			t.Fatalf("w%d seed %d: expected %dx%d graph, got %dx%d", tt.weight, tt.seed, m+p, p, g.Vars, g.Checks)
		}
		for v := 0; v < m; v++ {
			if d := g.VarDegree(v); d != tt.weight {
				t.Fatalf("w%d seed %d: message var %d has degree %d", tt.weight, tt.seed, v, d)
			}
		}
		for j := 0; j < p; j++ {
			if !g.HasEdge(m+j, j) || g.VarDegree(m+j) != 1 {
				t.Fatalf("w%d seed %d: parity var %d must only join check %d", tt.weight, tt.seed, m+j, j)
			}
		}
		if g.Edges() != m*tt.weight+p {
			t.Errorf("w%d seed %d: expected %d edges, got %d", tt.weight, tt.seed, m*tt.weight+p, g.Edges())
		}

		lo, hi := math.MaxInt, 0
		for c := 0; c < p; c++ {
			d := g.CheckDegree(c) - 1
			lo, hi = min(lo, d), max(hi, d)
		}
		if hi-lo > 2 {
			t.Errorf("w%d seed %d: check degrees spread from %d to %d", tt.weight, tt.seed, lo, hi)
		}
		if n := g.FourCycles(); !tt.fourCycles && n != 0 {
			t.Errorf("w%d seed %d: found %d length-4 cycles", tt.weight, tt.seed, n)
		}
	}
}

func TestConstructGraphDeterministic(t *testing.T) {
	a := constructGraph(scenarioShape, 3, 7)
	b := constructGraph(scenarioShape, 3, 7)
	c := constructGraph(scenarioShape, 3, 8)

	same := func(x, y *Graph) bool {
		for e := range x.EdgeCheck {
			if x.EdgeCheck[e] != y.EdgeCheck[e] {
				return false
			}
		}
		return true
	}
	if !same(a, b) {
		t.Error("same seed produced different graphs")
	}
	if same(a, c) {
		t.Error("different seeds produced identical graphs")
	}
}

func TestGraphCheckIndex(t *testing.T) {
	g := constructGraph(Shape{MessageBits: 24, ParityBits: 16, RowsAtOnce: 8}, 3, 3)
	seen := make([]bool, g.Edges())
	for c := 0; c < g.Checks; c++ {
		for k := g.CheckOffsets[c]; k < g.CheckOffsets[c+1]; k++ {
			e := g.CheckEdges[k]
			if int(g.EdgeCheck[e]) != c {
				t.Fatalf("edge %d listed under check %d but joins %d", e, c, g.EdgeCheck[e])
			}
			seen[e] = true
		}
	}
	for e, ok := range seen {
		if !ok {
			t.Errorf("edge %d missing from check index", e)
		}
	}
}

func TestSyndrome(t *testing.T) {
	s := Shape{MessageBits: 24, ParityBits: 16, RowsAtOnce: 8}
	g := constructGraph(s, 3, 11)
	cw := make([]byte, s.CodewordBytes(ModeEncodeOnly))
	if n := Syndrome(g, cw); n != 0 {
		t.Fatalf("zero codeword must satisfy every check, got %d", n)
	}

	flipBitPlain(cw, 0)
	if n := Syndrome(g, cw); n != g.VarDegree(0) {
		t.Errorf("one message error should break %d checks, got %d", g.VarDegree(0), n)
	}
	flipBitPlain(cw, s.MessageBits+3)
	flipBitPlain(cw, s.MessageBits+3)
	if n := Syndrome(g, cw); n != g.VarDegree(0) {
		t.Errorf("double flip changed syndrome to %d", n)
	}
}

func TestPhiIsItsOwnInverse(t *testing.T) {
	for _, x := range []float64{0.05, 0.5, 1, 3, 8} {
		if got := phi(phi(x)); math.Abs(got-x) > 1e-6*math.Max(1, x) {
			t.Errorf("phi(phi(%g)) = %g", x, got)
		}
	}
	if v := phi(0); math.IsInf(v, 0) || math.IsNaN(v) {
		t.Errorf("phi(0) must be finite, got %g", v)
	}
}
