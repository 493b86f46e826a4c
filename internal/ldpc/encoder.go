package ldpc

import "github.com/san-kum/ldpcsim/internal/compute"

// messageBit is bit i of the run message: the supplied one, or the seeded
// stream where every 64-bit block is one mix of (seed, block).
func messageBit(p RunParams, i int) uint8 {
	if p.Message != nil {
		return getBit(p.Message, i)
	}
	return uint8(mix(p.Seed, saltMessage, uint64(i>>6))>>(i&63)) & 1
}

// Message materializes the run message as MessageBytes bytes.
func Message(s Shape, p RunParams) []byte {
	out := make([]byte, s.MessageBytes())
	for i := 0; i < s.MessageBits; i++ {
		setBitPlain(out, i, messageBit(p, i))
	}
	return out
}

// EncodeKernel writes [message | parity] and, in decode mode, the pristine
// message copy. Lanes [0, m) own one message bit each; the remaining lanes
// own one group of RowsAtOnce parity columns and accumulate the XOR of the
// matrix row segments of every set message bit.
func (pr *Program) EncodeKernel(b Bindings, p RunParams) compute.Kernel {
	s := pr.key.Shape
	m, n, r := s.MessageBits, s.CodewordBits(), s.RowsAtOnce
	decode := pr.key.Mode == ModeDecode
	return compute.Kernel{
		Label:  "encode",
		Lanes:  m + pr.parityGroups,
		Reads:  []*compute.Buffer{b.Matrix},
		Writes: []*compute.Buffer{b.Codeword},
		Fn: func(lo, hi int) error {
			matrix := b.Matrix.Bytes()
			for lane := lo; lane < hi; lane++ {
				if lane < m {
					bit := messageBit(p, lane)
					storeBit(b.Codeword, lane, bit)
					if decode {
						storeBit(b.Codeword, n+lane, bit)
					}
					continue
				}
				col := (lane - m) * r
				width := min(r, s.ParityBits-col)
				var parity uint64
				for row := 0; row < m; row++ {
					if messageBit(p, row) == 1 {
						parity ^= extractBits(matrix, row*s.ParityBits+col, width)
					}
				}
				for k := 0; k < width; k++ {
					storeBit(b.Codeword, m+col+k, uint8(parity>>k)&1)
				}
			}
			return nil
		},
	}
}
