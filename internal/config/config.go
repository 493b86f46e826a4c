package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/ldpcsim/internal/ldpc"
)

const (
	DefaultMessageBits  = 224
	DefaultParityBits   = 64
	DefaultRowsAtOnce   = 64
	DefaultMatrixSeed   = 1
	DefaultIterations   = 20
	DefaultSeeds        = 32
	DefaultPoolCapacity = 4
	DefaultQueueDepth   = 64
	// DefaultColumnWeight of zero lets the matrix store pick its weight
	// for the shape.
	DefaultColumnWeight = 0
)

type Config struct {
	Code    CodeConfig   `yaml:"code"`
	Decoder string       `yaml:"decoder"`
	Compare string       `yaml:"compare"`
	Run     RunConfig    `yaml:"run"`
	Device  DeviceConfig `yaml:"device"`
	Pool    PoolConfig   `yaml:"pool"`
	Sweep   SweepConfig  `yaml:"sweep"`
	Output  string       `yaml:"output"`
}

type CodeConfig struct {
	MessageBits  int    `yaml:"message_bits"`
	ParityBits   int    `yaml:"parity_bits"`
	RowsAtOnce   int    `yaml:"rows_at_once"`
	ColumnWeight int    `yaml:"column_weight"`
	MatrixSeed   uint64 `yaml:"matrix_seed"`
}

type RunConfig struct {
	BPIterations   int    `yaml:"bp_iterations"`
	InjectedErrors int    `yaml:"injected_errors"`
	Seed           uint64 `yaml:"seed"`
}

type DeviceConfig struct {
	Backend     string `yaml:"backend"`
	Workers     int    `yaml:"workers"`
	MemoryLimit int64  `yaml:"memory_limit"`
	Validate    bool   `yaml:"validate"`
}

type PoolConfig struct {
	Capacity   int `yaml:"capacity"`
	QueueDepth int `yaml:"queue_depth"`
}

type SweepConfig struct {
	Injected  []int  `yaml:"injected"`
	Seeds     int    `yaml:"seeds"`
	SeedStart uint64 `yaml:"seed_start"`
	Workers   int    `yaml:"workers"`
}

func DefaultConfig() *Config {
	return &Config{
		Code: CodeConfig{
			MessageBits:  DefaultMessageBits,
			ParityBits:   DefaultParityBits,
			RowsAtOnce:   DefaultRowsAtOnce,
			ColumnWeight: DefaultColumnWeight,
			MatrixSeed:   DefaultMatrixSeed,
		},
		Decoder: ldpc.RuleSumProduct.String(),
		Compare: ldpc.PolicyMessage.String(),
		Run: RunConfig{
			BPIterations: DefaultIterations,
		},
		Device: DeviceConfig{
			Backend:  "auto",
			Validate: true,
		},
		Pool: PoolConfig{
			Capacity:   DefaultPoolCapacity,
			QueueDepth: DefaultQueueDepth,
		},
		Sweep: SweepConfig{
			Injected: []int{0, 2, 4, 8, 16, 32},
			Seeds:    DefaultSeeds,
		},
		Output: "runs",
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Shape() ldpc.Shape {
	return ldpc.Shape{
		MessageBits: c.Code.MessageBits,
		ParityBits:  c.Code.ParityBits,
		RowsAtOnce:  c.Code.RowsAtOnce,
	}
}

func (c *Config) RunParams() ldpc.RunParams {
	return ldpc.RunParams{
		BPIterations:   c.Run.BPIterations,
		InjectedErrors: c.Run.InjectedErrors,
		Seed:           c.Run.Seed,
	}
}

// ColumnWeight resolves a zero column_weight to the weight the matrix store
// will use for the shape.
func (c *Config) ColumnWeight() int {
	if c.Code.ColumnWeight == 0 {
		return ldpc.AutoColumnWeight(c.Shape())
	}
	return c.Code.ColumnWeight
}

func (c *Config) Rule() (ldpc.Rule, error)     { return ldpc.ParseRule(c.Decoder) }
func (c *Config) Policy() (ldpc.Policy, error) { return ldpc.ParsePolicy(c.Compare) }

// Validate catches everything that would otherwise only fail once a kernel
// program is built.
func (c *Config) Validate() error {
	shape := c.Shape()
	if err := shape.Validate(); err != nil {
		return err
	}
	if err := c.RunParams().Validate(shape); err != nil {
		return err
	}
	if _, err := c.Rule(); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	for _, k := range c.Sweep.Injected {
		if k < 0 || k > shape.CodewordBits() {
			return &ldpc.ConfigError{Field: "sweep.injected", Value: k,
				Reason: fmt.Sprintf("must be within [0, %d]", shape.CodewordBits())}
		}
	}
	if c.Code.ColumnWeight < 0 {
		return &ldpc.ConfigError{Field: "code.column_weight", Value: c.Code.ColumnWeight, Reason: "must not be negative"}
	}
	if c.Sweep.Seeds < 0 {
		return &ldpc.ConfigError{Field: "sweep.seeds", Value: c.Sweep.Seeds, Reason: "must not be negative"}
	}
	return nil
}
