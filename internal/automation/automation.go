package automation

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/ldpcsim/internal/config"
	"github.com/san-kum/ldpcsim/internal/experiment"
	"github.com/san-kum/ldpcsim/internal/sim"
)

// Scenario defines a scripted sequence of measurements
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset (or the defaults) and overrides what it
// sets. Runs > 1 measures an ensemble of consecutive seeds.
type ScenarioStep struct {
	Preset         string  `yaml:"preset"`
	Decoder        string  `yaml:"decoder"`
	Compare        string  `yaml:"compare"`
	BPIterations   *int    `yaml:"bp_iterations"`
	InjectedErrors *int    `yaml:"injected_errors"`
	Seed           *uint64 `yaml:"seed"`
	Runs           int     `yaml:"runs"`
	SaveAs         string  `yaml:"save_as"`
}

type StepResult struct {
	Name   string
	Config *config.Config
	Point  sim.SweepPoint
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%s: scenario has no steps", path)
	}

	return &scenario, nil
}

func (st ScenarioStep) config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if st.Preset != "" {
		cfg = config.GetPreset(st.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", st.Preset)
		}
	}
	if st.Decoder != "" {
		cfg.Decoder = st.Decoder
	}
	if st.Compare != "" {
		cfg.Compare = st.Compare
	}
	if st.BPIterations != nil {
		cfg.Run.BPIterations = *st.BPIterations
	}
	if st.InjectedErrors != nil {
		cfg.Run.InjectedErrors = *st.InjectedErrors
	}
	if st.Seed != nil {
		cfg.Run.Seed = *st.Seed
	}
	return cfg, cfg.Validate()
}

// RunScenario executes all steps in a scenario, reporting progress to w.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, w io.Writer) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := step.config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		name := step.SaveAs
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		fmt.Fprintf(w, "Running step %d/%d: %s (%s, %s, k=%d, iters=%d)\n",
			i+1, len(scenario.Steps), name, cfg.Shape(), cfg.Decoder, cfg.Run.InjectedErrors, cfg.Run.BPIterations)

		exp := experiment.New(cfg)
		if err := exp.Setup(ctx, registry); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		runs := max(step.Runs, 1)
		outcomes, err := sim.NewEnsemble(exp.GetSession(), runs, cfg.Run.Seed).Run(ctx, cfg.RunParams())
		exp.Close()
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		results = append(results, StepResult{
			Name:   name,
			Config: cfg,
			Point:  sim.Summarize(cfg.Run.InjectedErrors, outcomes, countedBits(cfg)),
		})
	}

	return results, nil
}

func countedBits(cfg *config.Config) int {
	if cfg.Compare == "codeword" {
		return cfg.Shape().CodewordBits()
	}
	return cfg.Shape().MessageBits
}
