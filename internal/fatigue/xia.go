package fatigue

import (
	"math"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
)

// Xia is the three-compartment fatigue model: active (ma), resting (mr)
// and fatigued (mf) motor units. The compartments sum to one.
type Xia struct {
	LD      float64 `yaml:"ld" mapstructure:"ld"`
	LR      float64 `yaml:"lr" mapstructure:"lr"`
	F       float64 `yaml:"f" mapstructure:"f"`
	R       float64 `yaml:"r" mapstructure:"r"`
	Scaling float64 `yaml:"scaling" mapstructure:"scaling"`

	multiType MultiType
}

// NewXia returns a Xia model registered through the tau interface.
func NewXia(ld, lr, f, r, scaling float64) *Xia {
	return &Xia{LD: ld, LR: lr, F: f, R: r, Scaling: scaling}
}

// WithMultiType overrides the aggregator a bare model is wrapped into.
func (x *Xia) WithMultiType(mt MultiType) *Xia {
	x.multiType = mt
	return x
}

func (x *Xia) Type() string { return "xia" }

// Validate rejects negative rates and a zero scaling, which would make the
// target load infinite.
func (x *Xia) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"ld", x.LD}, {"lr", x.LR}, {"f", x.F}, {"r", x.R}} {
		if err := nonNegative(x.Type(), f.name, f.v); err != nil {
			return err
		}
	}
	return nonZero(x.Type(), "scaling", x.Scaling)
}

func (x *Xia) Suffix(kind dynamo.VariableKind) []string {
	if kind == dynamo.Controls {
		return nil
	}
	return []string{"ma", "mr", "mf"}
}

func (x *Xia) Color() []string { return []string{"tab:green", "tab:orange", "tab:red"} }

func (x *Xia) DefaultInitialGuess() []float64 { return []float64{0, 1, 0} }

func (x *Xia) DefaultBounds(kind dynamo.VariableKind) dynamo.Bounds {
	if kind == dynamo.Controls {
		return dynamo.Bounds{Min: []float64{math.Min(0, x.Scaling)}, Max: []float64{math.Max(0, x.Scaling)}}
	}
	return dynamo.Bounds{Min: []float64{0, 0, 0}, Max: []float64{1, 1, 1}}
}

func (x *Xia) DynamicsSuffix() string { return "ma" }

func (x *Xia) MultiType() MultiType {
	if x.multiType != nil {
		return x.multiType
	}
	return InterfaceOf(FamilyTau)
}

func (x *Xia) Dynamics(dxdt expr.Vector, phase *nlp.Phase, ch Channel, index int, states, controls nlp.Variables) (expr.Vector, error) {
	suffixes := x.Suffix(dynamo.States)
	m := make([]expr.Expr, len(suffixes))
	for i, s := range suffixes {
		e, err := element(states, ch.StateKey(s), index)
		if err != nil {
			return nil, err
		}
		m[i] = e
	}
	ma, mr, mf := m[0], m[1], m[2]

	load, err := targetLoad(ch, index, controls, x.Scaling)
	if err != nil {
		return nil, err
	}
	gap := expr.Sub(load, ma)
	c := expr.IfElse(expr.Gt(load, ma),
		expr.IfElse(expr.Gt(mr, gap), expr.Scale(gap, x.LD), expr.Scale(mr, x.LD)),
		expr.Scale(gap, x.LR),
	)
	maDot := expr.Sub(c, expr.Scale(ma, x.F))
	mrDot := expr.Add(expr.Neg(c), expr.Scale(mf, x.R))
	mfDot := expr.Sub(expr.Scale(ma, x.F), expr.Scale(mf, x.R))

	return setDerivative(dxdt, phase, ch, index, suffixes, []expr.Expr{maDot, mrDot, mfDot})
}

// EffectiveLoad is ma·Scaling for minus and plus channels. Magnitude-driven
// channels cannot restore the sign and leave the load alone.
func (x *Xia) EffectiveLoad(ch Channel, index int, states nlp.Variables) (expr.Expr, bool, error) {
	if ch.Name != ChannelMinus && ch.Name != ChannelPlus {
		return nil, false, nil
	}
	ma, err := element(states, ch.StateKey("ma"), index)
	if err != nil {
		return nil, false, err
	}
	return expr.Scale(ma, x.Scaling), true, nil
}
