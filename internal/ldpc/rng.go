package ldpc

import "math/bits"

// Salts keep the message, channel and matrix streams independent for one seed.
const (
	saltMessage uint64 = 0x6d657373616765
	saltChannel uint64 = 0x6368616e6e656c
	saltMatrix  uint64 = 0x6d6174726978
)

// splitMix is the splitmix64 generator. It is tiny, seedable from any
// 64-bit value and identical on every backend.
type splitMix struct {
	state uint64
}

func newSplitMix(seed, salt uint64) *splitMix {
	return &splitMix{state: seed ^ salt}
}

func (r *splitMix) next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// intn returns a value in [0, n) by multiply-shift reduction.
func (r *splitMix) intn(n int) int {
	hi, _ := bits.Mul64(r.next(), uint64(n))
	return int(hi)
}

// mix is the stateless counter form used by kernels where every lane
// derives its own value from (seed, index).
func mix(seed, salt, index uint64) uint64 {
	r := splitMix{state: seed ^ salt ^ (index * 0xd1b54a32d192ed03)}
	return r.next()
}
