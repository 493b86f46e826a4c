package ldpc

import "github.com/san-kum/ldpcsim/internal/compute"

// ErrorPositions returns the InjectedErrors distinct codeword positions the
// channel flips for p, drawn with Floyd's sampling over [0, m+p).
func ErrorPositions(s Shape, p RunParams) []int {
	n, k := s.CodewordBits(), p.InjectedErrors
	if k <= 0 {
		return nil
	}
	k = min(k, n)
	rng := newSplitMix(p.Seed, saltChannel)
	taken := make([]uint64, (n+63)/64)
	out := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		t := rng.intn(j + 1)
		if taken[t>>6]&(1<<(t&63)) != 0 {
			t = j
		}
		taken[t>>6] |= 1 << (t & 63)
		out = append(out, t)
	}
	return out
}

// ChannelKernel runs as a single lane so the draw order, and therefore the
// error pattern, never depends on the lane schedule.
func (pr *Program) ChannelKernel(b Bindings, p RunParams) compute.Kernel {
	s := pr.key.Shape
	return compute.Kernel{
		Label:  "channel",
		Lanes:  1,
		Writes: []*compute.Buffer{b.Codeword},
		Fn: func(lo, hi int) error {
			data := b.Codeword.Bytes()
			for _, pos := range ErrorPositions(s, p) {
				flipBitPlain(data, pos)
			}
			return nil
		},
	}
}
