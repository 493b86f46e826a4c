package metrics

import (
	"sync"

	"github.com/san-kum/ldpcsim/internal/sim"
)

// BER tracks the running bit and frame error rates of the runs it observes.
type BER struct {
	countedBits int

	mu       sync.Mutex
	runs     int
	frames   int
	bitErrs  uint64
	failures map[string]int
}

func NewBER(countedBits int) *BER {
	return &BER{countedBits: countedBits, failures: make(map[string]int)}
}

func (b *BER) OnRun(r *sim.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runs++
	b.bitErrs += uint64(r.BitErrorCount)
	if r.BitErrorCount > 0 {
		b.frames++
	}
}

func (b *BER) OnFailure(stage string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[stage]++
}

// Value is the bit error rate over every observed run.
func (b *BER) Value() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runs == 0 || b.countedBits == 0 {
		return 0
	}
	return float64(b.bitErrs) / float64(b.runs*b.countedBits)
}

func (b *BER) FER() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runs == 0 {
		return 0
	}
	return float64(b.frames) / float64(b.runs)
}

func (b *BER) Runs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runs
}

// Failures returns failed runs per stage.
func (b *BER) Failures() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.failures))
	for k, v := range b.failures {
		out[k] = v
	}
	return out
}

func (b *BER) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runs, b.frames, b.bitErrs = 0, 0, 0
	b.failures = make(map[string]int)
}
