package config

import "sort"

// Presets are complete configurations; GetPreset hands out copies.
var Presets = map[string]*Config{
	"scenario-a": {
		Code:    CodeConfig{MessageBits: 224, ParityBits: 64, RowsAtOnce: 64, ColumnWeight: 4, MatrixSeed: 1},
		Decoder: "sum-product", Compare: "message",
		Run:   RunConfig{BPIterations: 1, InjectedErrors: 0, Seed: 1},
		Sweep: SweepConfig{Injected: []int{0}, Seeds: 16},
	},
	"scenario-b": {
		Code:    CodeConfig{MessageBits: 224, ParityBits: 64, RowsAtOnce: 64, ColumnWeight: 4, MatrixSeed: 1},
		Decoder: "sum-product", Compare: "message",
		Run:   RunConfig{BPIterations: 5, InjectedErrors: 5, Seed: 2},
		Sweep: SweepConfig{Injected: []int{5}, Seeds: 32},
	},
	"short": {
		Code:    CodeConfig{MessageBits: 24, ParityBits: 16, RowsAtOnce: 8, ColumnWeight: 3, MatrixSeed: 1},
		Decoder: "sum-product", Compare: "codeword",
		Run:   RunConfig{BPIterations: 10, InjectedErrors: 1, Seed: 1},
		Sweep: SweepConfig{Injected: []int{0, 1, 2, 3, 4}, Seeds: 64},
	},
	"long": {
		Code:    CodeConfig{MessageBits: 1536, ParityBits: 512, RowsAtOnce: 64, ColumnWeight: 4, MatrixSeed: 1},
		Decoder: "sum-product", Compare: "message",
		Run:   RunConfig{BPIterations: 30, InjectedErrors: 20, Seed: 1},
		Sweep: SweepConfig{Injected: []int{0, 10, 20, 40, 60, 80}, Seeds: 16},
	},
	"stress": {
		Code:    CodeConfig{MessageBits: 224, ParityBits: 64, RowsAtOnce: 64, ColumnWeight: 4, MatrixSeed: 1},
		Decoder: "min-sum", Compare: "codeword",
		Run:   RunConfig{BPIterations: 50, InjectedErrors: 288, Seed: 1},
		Sweep: SweepConfig{Injected: []int{0, 16, 48, 96, 144, 288}, Seeds: 64},
	},
}

// GetPreset returns a copy of the named preset with device, pool and output
// settings taken from DefaultConfig.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Code = p.Code
	cfg.Decoder = p.Decoder
	cfg.Compare = p.Compare
	cfg.Run = p.Run
	cfg.Sweep.Injected = append([]int(nil), p.Sweep.Injected...)
	cfg.Sweep.Seeds = p.Sweep.Seeds
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
