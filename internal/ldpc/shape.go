package ldpc

import (
	"fmt"
	"math"
)

// Mode selects the codeword layout.
type Mode uint8

const (
	// ModeDecode lays out [message | parity | pristine message copy].
	ModeDecode Mode = iota
	// ModeEncodeOnly lays out [message | parity].
	ModeEncodeOnly
)

func (m Mode) String() string {
	if m == ModeEncodeOnly {
		return "encode-only"
	}
	return "decode"
}

// Shape is the compile-time part of a configuration. Changing it requires
// a new kernel program.
type Shape struct {
	MessageBits int `yaml:"message_bits" json:"message_bits"`
	ParityBits  int `yaml:"parity_bits" json:"parity_bits"`
	RowsAtOnce  int `yaml:"rows_at_once" json:"rows_at_once"`
}

func (s Shape) CodewordBits() int { return s.MessageBits + s.ParityBits }

func (s Shape) Rate() float64 {
	if s.CodewordBits() == 0 {
		return 0
	}
	return float64(s.MessageBits) / float64(s.CodewordBits())
}

func (s Shape) String() string {
	return fmt.Sprintf("m%d-p%d-r%d", s.MessageBits, s.ParityBits, s.RowsAtOnce)
}

// Validate checks the shape for the decode layout.
func (s Shape) Validate() error { return s.ValidateFor(ModeDecode) }

func (s Shape) ValidateFor(mode Mode) error {
	switch {
	case s.MessageBits <= 0:
		return &ConfigError{Field: "message_bits", Value: s.MessageBits, Reason: "must be positive"}
	case s.ParityBits <= 0:
		return &ConfigError{Field: "parity_bits", Value: s.ParityBits, Reason: "must be positive"}
	}
	switch s.RowsAtOnce {
	case 8, 16, 32, 64:
	default:
		return &ConfigError{Field: "rows_at_once", Value: s.RowsAtOnce, Reason: "must be one of 8, 16, 32, 64"}
	}
	if (s.CodewordBits()*s.ParityBits)%s.RowsAtOnce != 0 {
		return &ConfigError{Field: "rows_at_once", Value: s.RowsAtOnce,
			Reason: fmt.Sprintf("(message_bits+parity_bits)*parity_bits=%d is not a multiple", s.CodewordBits()*s.ParityBits)}
	}
	if mode == ModeDecode && (2*s.MessageBits+s.ParityBits)%8 != 0 {
		return &ConfigError{Field: "message_bits", Value: s.MessageBits,
			Reason: fmt.Sprintf("2*message_bits+parity_bits=%d is not a whole number of bytes", 2*s.MessageBits+s.ParityBits)}
	}
	return nil
}

// MatrixBytes is ((m+p)*p/rows_at_once) words of rows_at_once/8 bytes.
func (s Shape) MatrixBytes() int {
	return (s.CodewordBits() * s.ParityBits / s.RowsAtOnce) * (s.RowsAtOnce / 8)
}

func (s Shape) CodewordBytes(mode Mode) int {
	if mode == ModeEncodeOnly {
		return (s.CodewordBits() + 7) / 8
	}
	return (2*s.MessageBits + s.ParityBits) / 8
}

// WorkspaceBytes holds one float32 message per (variable, check) cell.
func (s Shape) WorkspaceBytes() int {
	return s.CodewordBits() * s.ParityBits * 4
}

func (s Shape) MessageBytes() int { return (s.MessageBits + 7) / 8 }

// RunParams is the per-dispatch parameter block.
type RunParams struct {
	BPIterations   int
	InjectedErrors int
	Seed           uint64
	// Message overrides the seeded message when non-nil; it must hold
	// MessageBytes bytes, bit i at byte i/8, bit i%8.
	Message []byte
}

func (p RunParams) Validate(s Shape) error {
	if p.BPIterations < 0 {
		return &ConfigError{Field: "bp_iterations", Value: p.BPIterations, Reason: "must not be negative"}
	}
	if p.InjectedErrors < 0 || p.InjectedErrors > s.CodewordBits() {
		return &ConfigError{Field: "injected_error_count", Value: p.InjectedErrors,
			Reason: fmt.Sprintf("must be within [0, %d]", s.CodewordBits())}
	}
	if p.Message != nil && len(p.Message) != s.MessageBytes() {
		return &ConfigError{Field: "message", Value: len(p.Message),
			Reason: fmt.Sprintf("must be %d bytes", s.MessageBytes())}
	}
	return nil
}

const (
	minCrossover = 1e-3
	maxCrossover = 0.45
)

// ChannelLLR is the reliability magnitude assigned to every received bit,
// ln((1-p)/p) for the crossover estimate p = injected/(m+p).
func ChannelLLR(s Shape, injected int) float32 {
	p := float64(injected) / float64(s.CodewordBits())
	p = math.Max(minCrossover, math.Min(maxCrossover, p))
	return float32(math.Log((1 - p) / p))
}
