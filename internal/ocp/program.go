package ocp

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/san-kum/dynopt/internal/biomech"
	"github.com/san-kum/dynopt/internal/constraint"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/fatigue"
	"github.com/san-kum/dynopt/internal/integrators"
	"github.com/san-kum/dynopt/internal/mapping"
	"github.com/san-kum/dynopt/internal/nlp"
)

// PhaseConfig declares one phase. Zero values fall back to identity
// mappings, RK4 with one step per interval, unbounded base variables and a
// zero initial guess.
type PhaseConfig struct {
	Model      biomech.Model
	QMapping   *mapping.BiMapping
	TauMapping *mapping.BiMapping
	NShooting  int
	FinalTime  float64

	Integrator integrators.Integrator
	Steps      int

	// Fatigue holds the phase's auxiliary dynamics; nil means none.
	Fatigue *fatigue.Registry

	Constraints []*constraint.Descriptor
	Objectives  []Objective

	// XBounds apply to the base [q, qdot] at every node, XStart and XEnd
	// replace them at the first and last node.
	XBounds dynamo.Bounds
	XStart  *dynamo.Bounds
	XEnd    *dynamo.Bounds
	// UBounds apply to the reduced tau control. Split fatigue controls use
	// the fatigue defaults instead.
	UBounds dynamo.Bounds

	XInit []float64
	UInit []float64
}

// Program assembles phases into an nlp.Problem. Build it once.
type Program struct {
	configs  []PhaseConfig
	cyclic   bool
	logger   zerolog.Logger
	observer constraint.Observer

	phases []*nlp.Phase
	built  bool
}

type Option func(*Program)

// WithCyclic closes the motion from the last phase back to the first.
func WithCyclic(cyclic bool) Option {
	return func(p *Program) { p.cyclic = cyclic }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Program) { p.logger = l }
}

func WithObserver(o constraint.Observer) Option {
	return func(p *Program) { p.observer = o }
}

func New(configs []PhaseConfig, opts ...Option) *Program {
	p := &Program{configs: configs, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Phases returns the phases created by Build.
func (p *Program) Phases() []*nlp.Phase { return p.phases }

// Build transcribes the program.
func (p *Program) Build() (*nlp.Problem, error) {
	if p.built {
		return nil, errors.Wrap(dynamo.ErrDescriptorConsumed, "program already built")
	}
	p.built = true
	if len(p.configs) == 0 {
		return nil, errors.Wrap(dynamo.ErrInvalidParameter, "program has no phase")
	}
	log := p.logger.With().Str("component", "ocp").Logger()

	prob := &nlp.Problem{F: expr.Const(0)}
	var objective []expr.Expr
	for i := range p.configs {
		cfg := &p.configs[i]
		phase, err := p.buildPhase(i, cfg)
		if err != nil {
			return nil, err
		}
		p.phases = append(p.phases, phase)

		if err := decisionVector(prob, phase, cfg); err != nil {
			return nil, err
		}
		for _, o := range cfg.Objectives {
			term, err := o.term(phase)
			if err != nil {
				return nil, err
			}
			objective = append(objective, term)
		}
		log.Debug().
			Int("phase", i).
			Str("model", phase.Model.Name()).
			Int("nx", phase.NX()).
			Int("nu", phase.NU()).
			Int("n_shooting", phase.NShooting).
			Msg("phase transcribed")
	}
	prob.F = expr.Sum(objective...)

	acc := nlp.NewAccumulator()
	opts := []constraint.Option{constraint.WithLogger(p.logger)}
	if p.observer != nil {
		opts = append(opts, constraint.WithObserver(p.observer))
	}
	engine := constraint.NewEngine(acc, opts...)
	for i, phase := range p.phases {
		if err := engine.AddConstraints(phase, p.configs[i].Constraints); err != nil {
			return nil, err
		}
	}
	if err := engine.Continuity(p.phases, p.cyclic); err != nil {
		return nil, err
	}

	prob.G = acc.Residuals()
	b := acc.Bounds()
	prob.Lbg, prob.Ubg = b.Min, b.Max

	log.Info().
		Int("phases", len(p.phases)).
		Int("variables", prob.NumVars()).
		Int("constraints", prob.NumConstraints()).
		Bool("cyclic", p.cyclic).
		Msg("program built")
	return prob, nil
}

func (p *Program) buildPhase(i int, cfg *PhaseConfig) (*nlp.Phase, error) {
	subject := fmt.Sprintf("phase %d", i)
	if cfg.Model == nil {
		return nil, dynamo.Errorf(subject, nil, dynamo.ErrInvalidParameter, "model is required")
	}
	if cfg.QMapping == nil {
		cfg.QMapping = mapping.Identity(cfg.Model.NbQ())
	}
	if cfg.TauMapping == nil {
		cfg.TauMapping = mapping.Identity(cfg.Model.NbTau())
	}
	if cfg.Integrator == nil {
		cfg.Integrator = integrators.NewRK4()
	}
	if cfg.Steps == 0 {
		cfg.Steps = 1
	}
	if cfg.Fatigue == nil {
		cfg.Fatigue = fatigue.NewRegistry()
	}
	reg := cfg.Fatigue
	if err := reg.Validate(); err != nil {
		return nil, dynamo.Errorf(subject, nil, err, "fatigue")
	}

	nq := cfg.QMapping.Reduce.Len()
	ntau := cfg.TauMapping.Reduce.Len()
	if l, ok := reg.Get(fatigue.FamilyTau); ok && l.Len() != ntau {
		return nil, dynamo.Errorf(subject, l.Len(), dynamo.ErrDimensionMismatch,
			"%d tau fatigue slots for %d controlled torques", l.Len(), ntau)
	}

	states, err := nlp.StateLayout(nq, reg.StateBlocks()...)
	if err != nil {
		return nil, err
	}
	var blocks []nlp.Block
	if !reg.SplitsControls(fatigue.FamilyTau) {
		blocks = append(blocks, nlp.Block{Name: nlp.BlockTau, Size: ntau})
	}
	controls, err := nlp.NewLayout(append(blocks, reg.ControlBlocks()...)...)
	if err != nil {
		return nil, err
	}

	phase, err := nlp.NewPhase(i, nlp.PhaseSpec{
		Model:      cfg.Model,
		QMapping:   cfg.QMapping,
		TauMapping: cfg.TauMapping,
		NShooting:  cfg.NShooting,
		FinalTime:  cfg.FinalTime,
		States:     states,
		Controls:   controls,
	})
	if err != nil {
		return nil, err
	}
	if err := torqueDriven(phase, reg); err != nil {
		return nil, dynamo.Errorf(subject, nil, err, "dynamics")
	}
	phase.Shooting, err = integrators.Shooting(fmt.Sprintf("p%d_shooting", i), cfg.Integrator,
		phase.Dynamics, phase.NX(), phase.NU(), phase.Dt(), cfg.Steps)
	if err != nil {
		return nil, err
	}
	return phase, nil
}

// torqueDriven sets the phase's torque and dynamics Functions: qdot, then
// qddot from the model under the fatigue-limited torque, then the fatigue
// derivatives.
func torqueDriven(phase *nlp.Phase, reg *fatigue.Registry) error {
	x, u := phase.SymX, phase.SymU
	states, err := phase.StateVariables(x)
	if err != nil {
		return err
	}
	controls, err := phase.ControlVariables(u)
	if err != nil {
		return err
	}
	commanded, err := reg.CommandedControls(fatigue.FamilyTau, controls)
	if err != nil {
		return err
	}
	effective, err := reg.EffectiveControls(fatigue.FamilyTau, commanded, states)
	if err != nil {
		return err
	}
	tau, err := phase.TauMapping.Expand.Map(effective)
	if err != nil {
		return err
	}
	q, err := phase.ExpandQ(x)
	if err != nil {
		return err
	}
	qdot, err := phase.ExpandQdot(x)
	if err != nil {
		return err
	}
	qddot, err := phase.QMapping.Reduce.Map(phase.Model.ForwardDynamics(q, qdot, tau))
	if err != nil {
		return err
	}

	nq := phase.NQ()
	dxdt := expr.Zeros(phase.NX())
	copy(dxdt[:nq], x[nq:2*nq])
	copy(dxdt[nq:2*nq], qddot)
	dxdt, err = reg.Dynamics(dxdt, phase, states, controls)
	if err != nil {
		return err
	}

	in := []expr.Vector{x, u}
	if phase.Torque, err = expr.NewFunction(fmt.Sprintf("p%d_torque", phase.Index), in, tau); err != nil {
		return err
	}
	phase.Dynamics, err = expr.NewFunction(fmt.Sprintf("p%d_dynamics", phase.Index), in, dxdt)
	return err
}

// decisionVector appends the phase's node states then node controls, with
// their bounds and initial guess.
func decisionVector(prob *nlp.Problem, phase *nlp.Phase, cfg *PhaseConfig) error {
	reg := cfg.Fatigue
	fx, err := reg.StateDefaults()
	if err != nil {
		return err
	}
	fu, err := reg.ControlDefaults()
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("phase %d", phase.Index)
	nq := phase.NQ()
	ntau := phase.TauMapping.Reduce.Len()

	xb, err := baseBounds(subject+" x_bounds", cfg.XBounds, 2*nq)
	if err != nil {
		return err
	}
	var xStart, xEnd dynamo.Bounds
	if xStart, err = override(subject+" x_start", cfg.XStart, xb); err != nil {
		return err
	}
	if xEnd, err = override(subject+" x_end", cfg.XEnd, xb); err != nil {
		return err
	}
	xInit, err := guess(subject+" x_init", cfg.XInit, 2*nq)
	if err != nil {
		return err
	}
	ub, err := baseBounds(subject+" u_bounds", cfg.UBounds, ntau)
	if err != nil {
		return err
	}
	uInit, err := guess(subject+" u_init", cfg.UInit, ntau)
	if err != nil {
		return err
	}

	for k, xk := range phase.X {
		base := xb
		switch k {
		case 0:
			base = xStart
		case phase.NShooting:
			base = xEnd
		}
		if err := appendNode(prob, xk, phase.States, base, xInit, fx); err != nil {
			return err
		}
	}
	for _, uk := range phase.U {
		if err := appendNode(prob, uk, phase.Controls, ub, uInit, fu); err != nil {
			return err
		}
	}
	return nil
}

// appendNode appends one node vector. The base blocks (q and qdot, or tau)
// take base and init, every other block the fatigue defaults.
func appendNode(prob *nlp.Problem, v expr.Vector, layout *nlp.Layout, base dynamo.Bounds, init []float64, defaults fatigue.Defaults) error {
	vars, err := v.Vars()
	if err != nil {
		return err
	}
	var lo, hi, x0 []float64
	baseDone := false
	for _, b := range layout.Blocks() {
		switch b.Name {
		case nlp.BlockQ, nlp.BlockQdot, nlp.BlockTau:
			if !baseDone {
				lo = append(lo, base.Min...)
				hi = append(hi, base.Max...)
				x0 = append(x0, init...)
				baseDone = true
			}
			continue
		}
		fb, ok := defaults.Bounds[b.Name]
		if !ok {
			return errors.Wrapf(dynamo.ErrInvalidParameter, "no default bounds for block %q", b.Name)
		}
		lo = append(lo, fb.Min...)
		hi = append(hi, fb.Max...)
		x0 = append(x0, defaults.Guess[b.Name]...)
	}
	if len(lo) != len(vars) || len(x0) != len(vars) {
		return errors.Wrapf(dynamo.ErrDimensionMismatch, "node of %d variables has %d bounds and %d guesses", len(vars), len(lo), len(x0))
	}
	prob.Vars = append(prob.Vars, vars...)
	prob.Lbx = append(prob.Lbx, lo...)
	prob.Ubx = append(prob.Ubx, hi...)
	prob.X0 = append(prob.X0, x0...)
	return nil
}

func baseBounds(subject string, b dynamo.Bounds, n int) (dynamo.Bounds, error) {
	if b.Min == nil && b.Max == nil {
		return dynamo.Unbounded(n), nil
	}
	if b.Len() != n || !b.Valid() {
		return dynamo.Bounds{}, dynamo.Errorf(subject, b.Len(), dynamo.ErrDimensionMismatch, "need %d ordered bound pairs", n)
	}
	return b, nil
}

func override(subject string, b *dynamo.Bounds, fallback dynamo.Bounds) (dynamo.Bounds, error) {
	if b == nil {
		return fallback, nil
	}
	return baseBounds(subject, *b, fallback.Len())
}

func guess(subject string, v []float64, n int) ([]float64, error) {
	if v == nil {
		return make([]float64, n), nil
	}
	if len(v) != n {
		return nil, dynamo.Errorf(subject, len(v), dynamo.ErrDimensionMismatch, "need %d values", n)
	}
	for _, x := range v {
		if math.IsNaN(x) {
			return nil, dynamo.Errorf(subject, x, dynamo.ErrInvalidParameter, "initial guess is NaN")
		}
	}
	return v, nil
}
