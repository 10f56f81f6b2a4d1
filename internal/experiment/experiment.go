// Package experiment resolves a config file into an optimal-control program.
package experiment

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/san-kum/dynopt/internal/config"
	"github.com/san-kum/dynopt/internal/constraint"
	"github.com/san-kum/dynopt/internal/fatigue"
	"github.com/san-kum/dynopt/internal/mapping"
	"github.com/san-kum/dynopt/internal/nlp"
	"github.com/san-kum/dynopt/internal/ocp"
)

type Experiment struct {
	cfg      *config.Config
	registry *Registry
	logger   zerolog.Logger
	observer constraint.Observer
	program  *ocp.Program
}

type Option func(*Experiment)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

func WithObserver(o constraint.Observer) Option {
	return func(e *Experiment) { e.observer = o }
}

func New(cfg *config.Config, registry *Registry, opts ...Option) *Experiment {
	e := &Experiment{cfg: cfg, registry: registry, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Setup resolves every phase of the config into a program.
func (e *Experiment) Setup() error {
	phases := make([]ocp.PhaseConfig, len(e.cfg.Phases))
	for i, pc := range e.cfg.Phases {
		p, err := e.phase(pc)
		if err != nil {
			return errors.Wrapf(err, "phase %d", i)
		}
		phases[i] = p
	}
	opts := []ocp.Option{ocp.WithCyclic(e.cfg.Cyclic), ocp.WithLogger(e.logger)}
	if e.observer != nil {
		opts = append(opts, ocp.WithObserver(e.observer))
	}
	e.program = ocp.New(phases, opts...)
	return nil
}

// Run builds the program set up by Setup.
func (e *Experiment) Run(ctx context.Context) (*nlp.Problem, error) {
	if e.program == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.program.Build()
}

// Program returns the program created by Setup.
func (e *Experiment) Program() *ocp.Program {
	return e.program
}

func (e *Experiment) phase(pc config.PhaseConfig) (ocp.PhaseConfig, error) {
	model, err := e.registry.GetModel(pc.Model, pc.ModelParams)
	if err != nil {
		return ocp.PhaseConfig{}, err
	}
	integ, err := e.registry.GetIntegrator(pc.Integrator)
	if err != nil {
		return ocp.PhaseConfig{}, err
	}
	out := ocp.PhaseConfig{
		Model:      model,
		NShooting:  pc.NShooting,
		FinalTime:  pc.FinalTime,
		Integrator: integ,
		Steps:      pc.Steps,
		XBounds:    pc.XBounds.Bounds(),
		XStart:     pc.XStart.BoundsPtr(),
		XEnd:       pc.XEnd.BoundsPtr(),
		UBounds:    pc.UBounds.Bounds(),
		XInit:      pc.XInit,
		UInit:      pc.UInit,
	}
	if out.QMapping, err = bimapping(pc.QMapping); err != nil {
		return ocp.PhaseConfig{}, errors.Wrap(err, "q_mapping")
	}
	if out.TauMapping, err = bimapping(pc.TauMapping); err != nil {
		return ocp.PhaseConfig{}, errors.Wrap(err, "tau_mapping")
	}
	if out.Fatigue, err = e.fatigue(pc.Fatigue); err != nil {
		return ocp.PhaseConfig{}, err
	}
	for _, cc := range pc.Constraints {
		d, err := cc.Descriptor()
		if err != nil {
			return ocp.PhaseConfig{}, err
		}
		out.Constraints = append(out.Constraints, d)
	}
	for _, oc := range pc.Objectives {
		o, err := oc.Objective()
		if err != nil {
			return ocp.PhaseConfig{}, err
		}
		out.Objectives = append(out.Objectives, o)
	}
	return out, nil
}

func (e *Experiment) fatigue(entries []config.FatigueConfig) (*fatigue.Registry, error) {
	reg := fatigue.NewRegistry()
	for i, f := range entries {
		if !f.Split() {
			m, err := e.registry.GetFatigue(f.Model, f.Params)
			if err != nil {
				return nil, errors.Wrapf(err, "fatigue %d", i)
			}
			if err := reg.Add(m, f.Index(), f.StateOnly); err != nil {
				return nil, errors.Wrapf(err, "fatigue %d", i)
			}
			continue
		}
		minus, err := e.registry.GetFatigue(f.Model, f.Minus)
		if err != nil {
			return nil, errors.Wrapf(err, "fatigue %d minus", i)
		}
		plus, err := e.registry.GetFatigue(f.Model, f.Plus)
		if err != nil {
			return nil, errors.Wrapf(err, "fatigue %d plus", i)
		}
		agg, err := fatigue.NewTauSplit(minus, plus, f.StateOnly, f.SplitControls)
		if err != nil {
			return nil, errors.Wrapf(err, "fatigue %d", i)
		}
		if err := reg.AddAggregator(agg, f.Index()); err != nil {
			return nil, errors.Wrapf(err, "fatigue %d", i)
		}
	}
	return reg, nil
}

// bimapping returns nil for an absent mapping so the program uses identity.
func bimapping(mc *config.MappingConfig) (*mapping.BiMapping, error) {
	if mc == nil {
		return nil, nil
	}
	return mapping.New(mapping.NewMapping(mc.Reduce), mapping.NewMapping(mc.Expand, mc.Oppose...))
}
