package compute

import (
	"fmt"
	"time"
)

// Kernel is one data-parallel dispatch. Fn is called with disjoint lane
// ranges [lo, hi) that together cover [0, Lanes); ranges run concurrently.
type Kernel struct {
	Label  string
	Lanes  int
	Fn     func(lo, hi int) error
	Reads  []*Buffer
	Writes []*Buffer
}

type commandKind uint8

const (
	cmdFill commandKind = iota
	cmdDispatch
	cmdBarrier
)

type command struct {
	kind   commandKind
	kernel Kernel
	buf    *Buffer
	value  byte
}

func (c command) label() string {
	switch c.kind {
	case cmdFill:
		return "fill:" + c.buf.label
	case cmdDispatch:
		return c.kernel.Label
	}
	return "barrier"
}

func (c command) writes() []*Buffer {
	if c.kind == cmdFill {
		return []*Buffer{c.buf}
	}
	return c.kernel.Writes
}

// Batch records commands for a single submission. Commands between two
// barriers carry no ordering guarantee relative to each other.
type Batch struct {
	label string
	cmds  []command
}

func NewBatch(label string) *Batch {
	return &Batch{label: label}
}

func (b *Batch) Label() string { return b.label }
func (b *Batch) Len() int      { return len(b.cmds) }

func (b *Batch) Fill(buf *Buffer, value byte) *Batch {
	b.cmds = append(b.cmds, command{kind: cmdFill, buf: buf, value: value})
	return b
}

func (b *Batch) Dispatch(k Kernel) *Batch {
	b.cmds = append(b.cmds, command{kind: cmdDispatch, kernel: k})
	return b
}

// Barrier makes every write recorded before it visible to every command
// recorded after it.
func (b *Batch) Barrier() *Batch {
	if n := len(b.cmds); n == 0 || b.cmds[n-1].kind == cmdBarrier {
		return b
	}
	b.cmds = append(b.cmds, command{kind: cmdBarrier})
	return b
}

// Stages lists command labels in recording order, barriers included.
func (b *Batch) Stages() []string {
	out := make([]string, len(b.cmds))
	for i, c := range b.cmds {
		out[i] = c.label()
	}
	return out
}

func (b *Batch) phases() [][]command {
	var phases [][]command
	var cur []command
	for _, c := range b.cmds {
		if c.kind == cmdBarrier {
			if len(cur) > 0 {
				phases = append(phases, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, c)
	}
	if len(cur) > 0 {
		phases = append(phases, cur)
	}
	return phases
}

// validate rejects read-after-write and write-after-write pairs that share a phase.
func (b *Batch) validate() error {
	for _, phase := range b.phases() {
		for i := range phase {
			for j := range phase {
				if i == j {
					continue
				}
				for _, w := range phase[i].writes() {
					if j > i && touches(phase[j].writes(), w) {
						return fmt.Errorf("%w: %s and %s both write %s", ErrHazard, phase[i].label(), phase[j].label(), w.label)
					}
					if phase[j].kind == cmdDispatch && touches(phase[j].kernel.Reads, w) {
						return fmt.Errorf("%w: %s reads %s written by %s", ErrHazard, phase[j].label(), w.label, phase[i].label())
					}
				}
			}
		}
	}
	return nil
}

func touches(list []*Buffer, b *Buffer) bool {
	for _, x := range list {
		if x == b {
			return true
		}
	}
	return false
}

// Fence signals completion of a submitted batch.
type Fence struct {
	done    chan struct{}
	err     error
	elapsed time.Duration
}

func newFence() *Fence {
	return &Fence{done: make(chan struct{})}
}

func (f *Fence) signal(err error, elapsed time.Duration) {
	f.err = err
	f.elapsed = elapsed
	close(f.done)
}

// Done is closed once the device finished the batch.
func (f *Fence) Done() <-chan struct{} { return f.done }

// Wait blocks until the batch completes and returns its execution error.
func (f *Fence) Wait() error {
	<-f.done
	return f.err
}

// Elapsed is the device execution time; zero until Done is closed.
func (f *Fence) Elapsed() time.Duration {
	select {
	case <-f.done:
		return f.elapsed
	default:
		return 0
	}
}
