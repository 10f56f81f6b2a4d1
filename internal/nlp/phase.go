package nlp

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/san-kum/dynopt/internal/biomech"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/mapping"
)

// Base state and control block names.
const (
	BlockQ    = "q"
	BlockQdot = "qdot"
	BlockTau  = "tau"
)

// Phase is the discretized context of one optimization phase.
type Phase struct {
	Index      int
	Model      biomech.Model
	QMapping   *mapping.BiMapping
	TauMapping *mapping.BiMapping
	NShooting  int
	FinalTime  float64

	States   *Layout
	Controls *Layout

	// SymX and SymU are single-node symbols used to build Functions.
	SymX expr.Vector
	SymU expr.Vector

	// X has NShooting+1 node states, U has NShooting node controls.
	X []expr.Vector
	U []expr.Vector

	// Dynamics maps (x, u) to dx/dt; Shooting maps (x0, u) to the state at
	// the end of one shooting interval.
	Dynamics *expr.Function
	Shooting *expr.Function

	// Torque maps (x, u) to the full joint torque fed to the model. When
	// nil the tau control block is expanded with TauMapping.
	Torque *expr.Function
}

// PhaseSpec declares a phase before its symbols exist.
type PhaseSpec struct {
	Model      biomech.Model
	QMapping   *mapping.BiMapping
	TauMapping *mapping.BiMapping
	NShooting  int
	FinalTime  float64
	States     *Layout
	Controls   *Layout
}

// NewPhase validates spec and creates the node symbols of phase index.
func NewPhase(index int, spec PhaseSpec) (*Phase, error) {
	subject := fmt.Sprintf("phase %d", index)
	if spec.Model == nil {
		return nil, dynamo.Errorf(subject, nil, dynamo.ErrInvalidParameter, "model is required")
	}
	if spec.NShooting < 1 {
		return nil, dynamo.Errorf(subject, spec.NShooting, dynamo.ErrInvalidParameter, "n_shooting must be positive")
	}
	if spec.FinalTime <= 0 {
		return nil, dynamo.Errorf(subject, spec.FinalTime, dynamo.ErrInvalidParameter, "final_time must be positive")
	}
	if spec.QMapping == nil {
		spec.QMapping = mapping.Identity(spec.Model.NbQ())
	}
	if spec.TauMapping == nil {
		spec.TauMapping = mapping.Identity(spec.Model.NbTau())
	}
	if spec.QMapping.Expand.Len() != spec.Model.NbQ() {
		return nil, dynamo.Errorf(subject, spec.QMapping.Expand.Len(), dynamo.ErrDimensionMismatch,
			"q mapping expands to %d dofs, model has %d", spec.QMapping.Expand.Len(), spec.Model.NbQ())
	}
	if spec.TauMapping.Expand.Len() != spec.Model.NbTau() {
		return nil, dynamo.Errorf(subject, spec.TauMapping.Expand.Len(), dynamo.ErrDimensionMismatch,
			"tau mapping expands to %d dofs, model has %d", spec.TauMapping.Expand.Len(), spec.Model.NbTau())
	}
	if spec.States == nil || spec.Controls == nil {
		return nil, dynamo.Errorf(subject, nil, dynamo.ErrInvalidParameter, "state and control layouts are required")
	}

	p := &Phase{
		Index:      index,
		Model:      spec.Model,
		QMapping:   spec.QMapping,
		TauMapping: spec.TauMapping,
		NShooting:  spec.NShooting,
		FinalTime:  spec.FinalTime,
		States:     spec.States,
		Controls:   spec.Controls,
		SymX:       expr.Syms(fmt.Sprintf("p%d_x", index), spec.States.Size()),
		SymU:       expr.Syms(fmt.Sprintf("p%d_u", index), spec.Controls.Size()),
		X:          make([]expr.Vector, spec.NShooting+1),
		U:          make([]expr.Vector, spec.NShooting),
	}
	for k := range p.X {
		p.X[k] = expr.Syms(fmt.Sprintf("p%d_X%d", index, k), p.NX())
	}
	for k := range p.U {
		p.U[k] = expr.Syms(fmt.Sprintf("p%d_U%d", index, k), p.NU())
	}
	return p, nil
}

// StateLayout builds the base [q, qdot] layout for the reduced q mapping.
func StateLayout(nq int, extra ...Block) (*Layout, error) {
	return NewLayout(append([]Block{{Name: BlockQ, Size: nq}, {Name: BlockQdot, Size: nq}}, extra...)...)
}

func (p *Phase) NX() int { return p.States.Size() }
func (p *Phase) NU() int { return p.Controls.Size() }

// NQ is the reduced number of generalized coordinates.
func (p *Phase) NQ() int { return p.QMapping.Reduce.Len() }

func (p *Phase) Dt() float64 { return p.FinalTime / float64(p.NShooting) }

// ExpandQ maps the reduced q part of a state to the model's full q.
func (p *Phase) ExpandQ(x expr.Vector) (expr.Vector, error) {
	nq := p.NQ()
	if len(x) < nq {
		return nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "state of size %d has no q block of size %d", len(x), nq)
	}
	return p.QMapping.Expand.Map(x[:nq])
}

// ExpandQdot maps the reduced qdot part of a state to the full qdot.
func (p *Phase) ExpandQdot(x expr.Vector) (expr.Vector, error) {
	nq := p.NQ()
	if len(x) < 2*nq {
		return nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "state of size %d has no qdot block", len(x))
	}
	return p.QMapping.Expand.Map(x[nq : 2*nq])
}

// StateVariables views a state vector of this phase by block.
func (p *Phase) StateVariables(x expr.Vector) (Variables, error) {
	return p.States.Split(x)
}

// ControlVariables views a control vector of this phase by block.
func (p *Phase) ControlVariables(u expr.Vector) (Variables, error) {
	return p.Controls.Split(u)
}

// ControlTau expands the tau control block of u with the tau mapping.
func (p *Phase) ControlTau(u expr.Vector) (expr.Vector, error) {
	vars, err := p.ControlVariables(u)
	if err != nil {
		return nil, err
	}
	tau, err := vars.Get(BlockTau)
	if err != nil {
		return nil, err
	}
	return p.TauMapping.Expand.Map(tau)
}

// ExpandTau is the full torque applied at state x under control u.
func (p *Phase) ExpandTau(x, u expr.Vector) (expr.Vector, error) {
	if p.Torque != nil {
		return p.Torque.Call(x, u)
	}
	return p.ControlTau(u)
}
