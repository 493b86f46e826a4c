package ldpc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/san-kum/ldpcsim/internal/compute"
)

// ProgramKey identifies one specialized kernel set.
type ProgramKey struct {
	Shape  Shape
	Rule   Rule
	Policy Policy
	Mode   Mode
}

func (k ProgramKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Shape, k.Rule, k.Policy, k.Mode)
}

// Program is the kernel set for one ProgramKey. Building it validates the
// shape and fixes every size the kernels derive from it.
type Program struct {
	key           ProgramKey
	parityGroups  int
	messageChunks int
	parityChunks  int
	checkUpdate   func(g *Graph, ws []float32, c int)
}

func buildProgram(key ProgramKey) (*Program, error) {
	if err := key.Shape.ValidateFor(key.Mode); err != nil {
		return nil, err
	}
	s := key.Shape
	pr := &Program{
		key:           key,
		parityGroups:  (s.ParityBits + s.RowsAtOnce - 1) / s.RowsAtOnce,
		messageChunks: (s.MessageBits + 63) / 64,
		parityChunks:  (s.ParityBits + 63) / 64,
	}
	switch key.Rule {
	case RuleSumProduct:
		pr.checkUpdate = sumProductCheck
	case RuleMinSum:
		pr.checkUpdate = minSumCheck
	default:
		return nil, fmt.Errorf("%w: unknown decoder rule %d", ErrConfiguration, key.Rule)
	}
	if key.Policy != PolicyMessage && key.Policy != PolicyCodeword {
		return nil, fmt.Errorf("%w: unknown compare policy %d", ErrConfiguration, key.Policy)
	}
	return pr, nil
}

func (pr *Program) Key() ProgramKey { return pr.key }

// Bindings are the buffers one run dispatches against.
type Bindings struct {
	Matrix      *compute.Buffer
	Graph       *Graph
	Codeword    *compute.Buffer
	Workspace   *compute.Buffer
	RunErrors   *compute.Buffer
	Accumulator *compute.Buffer
}

// ProgramCache builds each program once and hands out the same instance
// afterwards.
type ProgramCache struct {
	mu       sync.Mutex
	programs map[ProgramKey]*Program
	builds   atomic.Int64
}

func NewProgramCache() *ProgramCache {
	return &ProgramCache{programs: make(map[ProgramKey]*Program)}
}

func (c *ProgramCache) Get(key ProgramKey) (*Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pr, ok := c.programs[key]; ok {
		return pr, nil
	}
	pr, err := buildProgram(key)
	if err != nil {
		return nil, err
	}
	c.builds.Add(1)
	c.programs[key] = pr
	return pr, nil
}

// Builds counts programs built since the cache was created.
func (c *ProgramCache) Builds() int64 { return c.builds.Load() }

func (c *ProgramCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.programs)
}
