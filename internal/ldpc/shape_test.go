package ldpc

import (
	"errors"
	"math"
	"testing"
)

var scenarioShape = Shape{MessageBits: 224, ParityBits: 64, RowsAtOnce: 64}

func TestShapeSizes(t *testing.T) {
	tests := []struct {
		name      string
		shape     Shape
		matrix    int
		encode    int
		decode    int
		workspace int
	}{
		{"scenario", scenarioShape, 2304, 36, 64, 288 * 64 * 4},
		{"small", Shape{MessageBits: 24, ParityBits: 16, RowsAtOnce: 8}, 80, 5, 8, 40 * 16 * 4},
		{"odd codeword", Shape{MessageBits: 20, ParityBits: 8, RowsAtOnce: 32}, 28, 4, 6, 28 * 8 * 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.shape.Validate(); err != nil {
				t.Fatalf("validate: %v", err)
			}
			if got := tt.shape.MatrixBytes(); got != tt.matrix {
				t.Errorf("matrix bytes: expected %d, got %d", tt.matrix, got)
			}
			if got := tt.shape.CodewordBytes(ModeEncodeOnly); got != tt.encode {
				t.Errorf("encode-only codeword: expected %d, got %d", tt.encode, got)
			}
			if got := tt.shape.CodewordBytes(ModeDecode); got != tt.decode {
				t.Errorf("decode codeword: expected %d, got %d", tt.decode, got)
			}
			if got := tt.shape.WorkspaceBytes(); got != tt.workspace {
				t.Errorf("workspace: expected %d, got %d", tt.workspace, got)
			}
		})
	}
}

func TestShapeValidate(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		mode  Mode
		field string
	}{
		{"zero message", Shape{0, 64, 64}, ModeDecode, "message_bits"},
		{"negative parity", Shape{224, -8, 64}, ModeDecode, "parity_bits"},
		{"rows not a word", Shape{224, 64, 12}, ModeDecode, "rows_at_once"},
		{"partial row group", Shape{3, 5, 64}, ModeEncodeOnly, "rows_at_once"},
		{"decode not byte sized", Shape{12, 4, 8}, ModeDecode, "message_bits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.shape.ValidateFor(tt.mode)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("expected field %s, got %v", tt.field, err)
			}
		})
	}

	if err := (Shape{12, 4, 8}).ValidateFor(ModeEncodeOnly); err != nil {
		t.Errorf("encode-only layout has no pristine copy to size: %v", err)
	}
}

func TestRunParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params RunParams
		ok     bool
	}{
		{"defaults", RunParams{}, true},
		{"all bits flipped", RunParams{InjectedErrors: 288}, true},
		{"too many errors", RunParams{InjectedErrors: 289}, false},
		{"negative iterations", RunParams{BPIterations: -1}, false},
		{"short message", RunParams{Message: make([]byte, 27)}, false},
		{"full message", RunParams{Message: make([]byte, 28)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate(scenarioShape)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestChannelLLR(t *testing.T) {
	clean := ChannelLLR(scenarioShape, 0)
	want := math.Log((1 - minCrossover) / minCrossover)
	if math.Abs(float64(clean)-want) > 1e-4 {
		t.Errorf("expected %.4f for a clean channel, got %.4f", want, clean)
	}

	prev := clean
	for _, k := range []int{1, 5, 20, 60} {
		l := ChannelLLR(scenarioShape, k)
		if l > prev {
			t.Errorf("llr should not grow with errors: %d -> %.4f", k, l)
		}
		prev = l
	}
	if l := ChannelLLR(scenarioShape, 288); l <= 0 {
		t.Errorf("llr must stay positive, got %.4f", l)
	}
}
