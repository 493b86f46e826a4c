package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/ldpcsim/internal/compute"
	"github.com/san-kum/ldpcsim/internal/config"
	"github.com/san-kum/ldpcsim/internal/sim"
)

// Experiment binds one configuration to a ready session.
type Experiment struct {
	cfg     *config.Config
	backend compute.Backend
	session *sim.Session
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{cfg: cfg}
}

// Setup opens the backend, builds the session and publishes the matrix.
func (e *Experiment) Setup(ctx context.Context, registry *Registry) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	rule, err := registry.GetRule(e.cfg.Decoder)
	if err != nil {
		return err
	}
	policy, err := registry.GetPolicy(e.cfg.Compare)
	if err != nil {
		return err
	}
	backend, err := registry.GetBackend(e.cfg.Device)
	if err != nil {
		return err
	}

	session, err := sim.NewSession(backend, sim.Options{
		Shape:             e.cfg.Shape(),
		Rule:              rule,
		Policy:            policy,
		ColumnWeight:      e.cfg.Code.ColumnWeight,
		MatrixSeed:        e.cfg.Code.MatrixSeed,
		HostVisibleMatrix: true,
		PoolCapacity:      e.cfg.Pool.Capacity,
	})
	if err != nil {
		backend.Cleanup()
		return err
	}
	if err := session.Generate(ctx); err != nil {
		session.Close()
		backend.Cleanup()
		return err
	}
	e.backend = backend
	e.session = session
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.session == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.session.Run(ctx, e.cfg.RunParams())
}

func (e *Experiment) Sweep(ctx context.Context, progress func(done, total int, pt sim.SweepPoint)) ([]sim.SweepPoint, error) {
	if e.session == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return sim.Sweep(ctx, e.session, sim.SweepConfig{
		Injected:     e.cfg.Sweep.Injected,
		Seeds:        e.cfg.Sweep.Seeds,
		SeedStart:    e.cfg.Sweep.SeedStart,
		BPIterations: e.cfg.Run.BPIterations,
		Workers:      e.cfg.Sweep.Workers,
	}, progress)
}

func (e *Experiment) Config() *config.Config { return e.cfg }

// GetSession returns the underlying session for adding observers
func (e *Experiment) GetSession() *sim.Session {
	return e.session
}

func (e *Experiment) Close() {
	if e.session != nil {
		e.session.Close()
		e.session = nil
	}
	if e.backend != nil {
		e.backend.Cleanup()
		e.backend = nil
	}
}
