package compute

import (
	"sync/atomic"
	"unsafe"
)

type Usage uint8

const (
	UsageStorage Usage = 1 << iota
	UsageHostVisible
	UsageAtomic
)

// Buffer is a device resident allocation. Kernels reach its contents through
// Bytes, Float32s and the atomic accessors; the host only through Map.
type Buffer struct {
	id    uint64
	label string
	usage Usage
	mem   []uint64
	data  []byte
	freed atomic.Bool
}

func newBuffer(id uint64, label string, size int, usage Usage) *Buffer {
	b := &Buffer{id: id, label: label, usage: usage}
	if size == 0 {
		return b
	}
	b.mem = make([]uint64, (size+7)/8)
	b.data = unsafe.Slice((*byte)(unsafe.Pointer(&b.mem[0])), size)
	return b
}

func (b *Buffer) ID() uint64     { return b.id }
func (b *Buffer) Label() string  { return b.label }
func (b *Buffer) Size() int      { return len(b.data) }
func (b *Buffer) Usage() Usage   { return b.usage }
func (b *Buffer) Released() bool { return b.freed.Load() }

// Map returns a host view of the buffer. Reading it while a batch that
// writes the buffer is in flight observes undefined content.
func (b *Buffer) Map() ([]byte, error) {
	if b.freed.Load() {
		return nil, ErrFreed
	}
	if b.usage&UsageHostVisible == 0 {
		return nil, ErrNotMapped
	}
	return b.data, nil
}

// Bytes is the device side view used by kernels.
func (b *Buffer) Bytes() []byte { return b.data }

// Float32s reinterprets the buffer as float32 values. The backing store is
// 8-byte aligned so the view is always valid.
func (b *Buffer) Float32s() []float32 {
	if len(b.data) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b.mem[0])), len(b.data)/4)
}

func (b *Buffer) word(off int) *uint32 {
	if off%4 != 0 || off < 0 || off+4 > len(b.mem)*8 {
		panic("compute: misaligned or out of range atomic access")
	}
	return (*uint32)(unsafe.Add(unsafe.Pointer(&b.mem[0]), off))
}

func (b *Buffer) AtomicAddUint32(off int, delta uint32) uint32 {
	return atomic.AddUint32(b.word(off), delta)
}

func (b *Buffer) LoadUint32(off int) uint32 {
	return atomic.LoadUint32(b.word(off))
}

func (b *Buffer) StoreUint32(off int, v uint32) {
	atomic.StoreUint32(b.word(off), v)
}

func (b *Buffer) AtomicOrUint32(off int, mask uint32) uint32 {
	return atomic.OrUint32(b.word(off), mask)
}

func (b *Buffer) AtomicAndUint32(off int, mask uint32) uint32 {
	return atomic.AndUint32(b.word(off), mask)
}

func (b *Buffer) fill(value byte) {
	if value == 0 {
		clear(b.mem)
		return
	}
	for i := range b.data {
		b.data[i] = value
	}
}
