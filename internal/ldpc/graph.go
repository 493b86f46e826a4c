package ldpc

import "sort"

// Graph is the Tanner graph of a parity-check matrix stored as flat arrays.
// Edges are numbered in variable order, so the edges of variable v are the
// ids [VarOffsets[v], VarOffsets[v+1]). CheckEdges lists the same ids
// grouped by check node.
type Graph struct {
	Vars         int
	Checks       int
	VarOffsets   []int32
	CheckOffsets []int32
	CheckEdges   []int32
	EdgeVar      []int32
	EdgeCheck    []int32
}

func newGraph(vars, checks int, adj [][]int32) *Graph {
	g := &Graph{
		Vars:         vars,
		Checks:       checks,
		VarOffsets:   make([]int32, vars+1),
		CheckOffsets: make([]int32, checks+1),
	}
	for v, cs := range adj {
		g.VarOffsets[v+1] = g.VarOffsets[v] + int32(len(cs))
	}
	n := int(g.VarOffsets[vars])
	g.EdgeVar = make([]int32, n)
	g.EdgeCheck = make([]int32, n)
	for v, cs := range adj {
		for k, c := range cs {
			e := int(g.VarOffsets[v]) + k
			g.EdgeVar[e] = int32(v)
			g.EdgeCheck[e] = c
			g.CheckOffsets[c+1]++
		}
	}
	for c := 0; c < checks; c++ {
		g.CheckOffsets[c+1] += g.CheckOffsets[c]
	}
	g.CheckEdges = make([]int32, n)
	fill := make([]int32, checks)
	for e := 0; e < n; e++ {
		c := g.EdgeCheck[e]
		g.CheckEdges[g.CheckOffsets[c]+fill[c]] = int32(e)
		fill[c]++
	}
	return g
}

func (g *Graph) Edges() int { return len(g.EdgeVar) }

// Slot is the workspace cell of edge e: variable*checks + check.
func (g *Graph) Slot(e int) int {
	return int(g.EdgeVar[e])*g.Checks + int(g.EdgeCheck[e])
}

func (g *Graph) VarDegree(v int) int {
	return int(g.VarOffsets[v+1] - g.VarOffsets[v])
}

func (g *Graph) CheckDegree(c int) int {
	return int(g.CheckOffsets[c+1] - g.CheckOffsets[c])
}

func (g *Graph) HasEdge(v, c int) bool {
	for e := g.VarOffsets[v]; e < g.VarOffsets[v+1]; e++ {
		if int(g.EdgeCheck[e]) == c {
			return true
		}
	}
	return false
}

// FourCycles counts pairs of variables that share two or more checks.
func (g *Graph) FourCycles() int {
	seen := make(map[[2]int32]int)
	for v := 0; v < g.Vars; v++ {
		lo, hi := g.VarOffsets[v], g.VarOffsets[v+1]
		for a := lo; a < hi; a++ {
			for b := a + 1; b < hi; b++ {
				seen[[2]int32{g.EdgeCheck[a], g.EdgeCheck[b]}]++
			}
		}
	}
	cycles := 0
	for _, n := range seen {
		cycles += n * (n - 1) / 2
	}
	return cycles
}

// GraphFromMatrix rebuilds the graph from a packed matrix image.
func GraphFromMatrix(s Shape, data []byte) *Graph {
	n, p := s.CodewordBits(), s.ParityBits
	adj := make([][]int32, n)
	for v := 0; v < n; v++ {
		for c := 0; c < p; c++ {
			if getBit(data, v*p+c) == 1 {
				adj[v] = append(adj[v], int32(c))
			}
		}
	}
	return newGraph(n, p, adj)
}

// constructGraph builds H = [A ; I]: every message variable joins weight
// checks, chosen lowest degree first with seeded tie breaks and skipping
// checks that would close a length-4 cycle; parity variable j joins check j.
func constructGraph(s Shape, weight int, seed uint64) *Graph {
	m, p := s.MessageBits, s.ParityBits
	rng := newSplitMix(seed, saltMatrix)

	degree := make([]int, p)
	paired := make([]bool, p*p)
	order := make([]int, p)
	adj := make([][]int32, m+p)

	for r := 0; r < m; r++ {
		for i := range order {
			order[i] = i
		}
		for i := p - 1; i > 0; i-- {
			j := rng.intn(i + 1)
			order[i], order[j] = order[j], order[i]
		}
		sort.SliceStable(order, func(a, b int) bool { return degree[order[a]] < degree[order[b]] })

		chosen := make([]int32, 0, weight)
		for _, c := range order {
			if len(chosen) == weight {
				break
			}
			ok := true
			for _, prev := range chosen {
				if paired[int(prev)*p+c] {
					ok = false
					break
				}
			}
			if ok {
				chosen = append(chosen, int32(c))
			}
		}
		// Dense shapes can run out of cycle-free choices.
		for _, c := range order {
			if len(chosen) == weight {
				break
			}
			if !containsCheck(chosen, int32(c)) {
				chosen = append(chosen, int32(c))
			}
		}

		for a, ca := range chosen {
			degree[ca]++
			for _, cb := range chosen[a+1:] {
				paired[int(ca)*p+int(cb)] = true
				paired[int(cb)*p+int(ca)] = true
			}
		}
		sort.Slice(chosen, func(a, b int) bool { return chosen[a] < chosen[b] })
		adj[r] = chosen
	}
	for j := 0; j < p; j++ {
		adj[m+j] = []int32{int32(j)}
	}
	return newGraph(m+p, p, adj)
}

func containsCheck(list []int32, c int32) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

// Syndrome returns the unsatisfied check count of the first m+p bits of a
// packed codeword.
func Syndrome(g *Graph, codeword []byte) int {
	unsatisfied := 0
	for c := 0; c < g.Checks; c++ {
		var parity uint8
		for k := g.CheckOffsets[c]; k < g.CheckOffsets[c+1]; k++ {
			parity ^= getBit(codeword, int(g.EdgeVar[g.CheckEdges[k]]))
		}
		unsatisfied += int(parity)
	}
	return unsatisfied
}
