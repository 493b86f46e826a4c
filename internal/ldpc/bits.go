package ldpc

import (
	"encoding/binary"
	"math/bits"

	"github.com/san-kum/ldpcsim/internal/compute"
)

// Bit i of a packed region lives in byte i/8 at bit i%8. Within a uint32
// word that is bit i%32 of word i/32, since buffers are little endian.

func getBit(data []byte, i int) uint8 {
	return (data[i>>3] >> (i & 7)) & 1
}

// Bit reports bit i of a packed host copy, such as MatrixStore.Map returns.
func Bit(data []byte, i int) bool { return getBit(data, i) == 1 }

func setBitPlain(data []byte, i int, v uint8) {
	if v != 0 {
		data[i>>3] |= 1 << (i & 7)
	} else {
		data[i>>3] &^= 1 << (i & 7)
	}
}

func flipBitPlain(data []byte, i int) {
	data[i>>3] ^= 1 << (i & 7)
}

// Lanes of one dispatch may own different bits of the same word, so kernels
// touch packed codeword bits through these atomic helpers.

func loadBit(b *compute.Buffer, i int) uint8 {
	w := b.LoadUint32((i >> 5) << 2)
	return uint8(w>>(i&31)) & 1
}

func storeBit(b *compute.Buffer, i int, v uint8) {
	off := (i >> 5) << 2
	mask := uint32(1) << (i & 31)
	if v != 0 {
		b.AtomicOrUint32(off, mask)
	} else {
		b.AtomicAndUint32(off, ^mask)
	}
}

// extractBits returns n<=64 bits starting at bit offset start.
func extractBits(data []byte, start, n int) uint64 {
	if start&7 == 0 && n == 64 {
		return binary.LittleEndian.Uint64(data[start>>3:])
	}
	var v uint64
	for k := 0; k < n; {
		i := start + k
		sh := i & 7
		take := 8 - sh
		if take > n-k {
			take = n - k
		}
		chunk := uint64(data[i>>3]>>sh) & (1<<take - 1)
		v |= chunk << k
		k += take
	}
	return v
}

func popcount(v uint64) int { return bits.OnesCount64(v) }
