package fatigue

import (
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
)

// Effort tracks the perceived effort of sustaining a load. Above Threshold
// effort rises toward one, below it decays to zero.
type Effort struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	Factor    float64 `yaml:"factor" mapstructure:"factor"`
	Scaling   float64 `yaml:"scaling" mapstructure:"scaling"`
}

func NewEffort(threshold, factor, scaling float64) *Effort {
	return &Effort{Threshold: threshold, Factor: factor, Scaling: scaling}
}

func (e *Effort) Type() string { return "effort" }

// Validate requires Threshold in [0, 1), a non-negative Factor and a
// non-zero Scaling.
func (e *Effort) Validate() error {
	if err := finite(e.Type(), "threshold", e.Threshold); err != nil {
		return err
	}
	if e.Threshold < 0 || e.Threshold >= 1 {
		return dynamo.Errorf(e.Type()+".threshold", e.Threshold, dynamo.ErrInvalidParameter, "threshold must be in [0, 1)")
	}
	if err := nonNegative(e.Type(), "factor", e.Factor); err != nil {
		return err
	}
	return nonZero(e.Type(), "scaling", e.Scaling)
}

func (e *Effort) Suffix(kind dynamo.VariableKind) []string {
	if kind == dynamo.Controls {
		return nil
	}
	return []string{"effort"}
}

func (e *Effort) Color() []string                { return []string{"tab:brown"} }
func (e *Effort) DefaultInitialGuess() []float64 { return []float64{0} }
func (e *Effort) DynamicsSuffix() string         { return "effort" }
func (e *Effort) MultiType() MultiType           { return InterfaceOf(FamilyTau) }

func (e *Effort) DefaultBounds(kind dynamo.VariableKind) dynamo.Bounds {
	if kind == dynamo.Controls {
		s := abs(e.Scaling)
		return dynamo.Bounds{Min: []float64{-s}, Max: []float64{s}}
	}
	return dynamo.Bounds{Min: []float64{0}, Max: []float64{1}}
}

func (e *Effort) Dynamics(dxdt expr.Vector, phase *nlp.Phase, ch Channel, index int, states, controls nlp.Variables) (expr.Vector, error) {
	eff, err := element(states, ch.StateKey("effort"), index)
	if err != nil {
		return nil, err
	}
	load, err := targetLoad(ch, index, controls, e.Scaling)
	if err != nil {
		return nil, err
	}
	load = expr.Abs(load)

	delta := expr.Scale(expr.Sub(load, expr.Const(e.Threshold)), 1/(1-e.Threshold))
	rise := expr.Mul(expr.Scale(delta, e.Factor), expr.Sub(expr.Const(1), eff))
	decay := expr.Scale(eff, -e.Factor)
	dot := expr.IfElse(expr.Gt(load, expr.Const(e.Threshold)), rise, decay)

	return setDerivative(dxdt, phase, ch, index, e.Suffix(dynamo.States), []expr.Expr{dot})
}
