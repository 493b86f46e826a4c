package ldpc

import (
	"fmt"
	"strconv"

	"github.com/san-kum/ldpcsim/internal/compute"
)

// Policy selects which bits the comparator counts.
type Policy uint8

const (
	// PolicyMessage counts decoded message bits that differ from the
	// pristine copy.
	PolicyMessage Policy = iota
	// PolicyCodeword also counts decoded parity bits that differ from the
	// parity of the pristine message.
	PolicyCodeword
)

func (p Policy) String() string {
	switch p {
	case PolicyMessage:
		return "message"
	case PolicyCodeword:
		return "codeword"
	}
	return "policy(" + strconv.Itoa(int(p)) + ")"
}

func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "message", "":
		return PolicyMessage, nil
	case "codeword":
		return PolicyCodeword, nil
	}
	return 0, fmt.Errorf("%w: unknown compare policy %q", ErrConfiguration, name)
}

func (p Policy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// CompareKernel adds the Hamming distance of the decoded and pristine bits to
// the per-run counter. Lanes cover 64-bit chunks, message chunks first.
func (pr *Program) CompareKernel(b Bindings) compute.Kernel {
	s := pr.key.Shape
	m, n, par := s.MessageBits, s.CodewordBits(), s.ParityBits
	lanes := pr.messageChunks
	if pr.key.Policy == PolicyCodeword {
		lanes += pr.parityChunks
	}
	return compute.Kernel{
		Label:  "compare",
		Lanes:  lanes,
		Reads:  []*compute.Buffer{b.Codeword, b.Matrix},
		Writes: []*compute.Buffer{b.RunErrors},
		Fn: func(lo, hi int) error {
			cw := b.Codeword.Bytes()
			matrix := b.Matrix.Bytes()
			for lane := lo; lane < hi; lane++ {
				var diff int
				if lane < pr.messageChunks {
					start := lane * 64
					width := min(64, m-start)
					diff = popcount(extractBits(cw, start, width) ^ extractBits(cw, n+start, width))
				} else {
					col := (lane - pr.messageChunks) * 64
					width := min(64, par-col)
					var parity uint64
					for row := 0; row < m; row++ {
						if getBit(cw, n+row) == 1 {
							parity ^= extractBits(matrix, row*par+col, width)
						}
					}
					diff = popcount(parity ^ extractBits(cw, m+col, width))
				}
				if diff > 0 {
					b.RunErrors.AtomicAddUint32(0, uint32(diff))
				}
			}
			return nil
		},
	}
}

// FoldKernel adds the per-run count to the persistent accumulator.
func FoldKernel(b Bindings) compute.Kernel {
	return compute.Kernel{
		Label:  "fold",
		Lanes:  1,
		Reads:  []*compute.Buffer{b.RunErrors},
		Writes: []*compute.Buffer{b.Accumulator},
		Fn: func(lo, hi int) error {
			if v := b.RunErrors.LoadUint32(0); v > 0 {
				b.Accumulator.AtomicAddUint32(0, v)
			}
			return nil
		},
	}
}
