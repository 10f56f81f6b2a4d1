package fatigue

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
)

// FamilyTau is the family of fatigue models acting on joint torques.
const FamilyTau = "tau"

// Channel tells a model where its states and controls live.
type Channel struct {
	Family string
	Name   string
	// Split is set when the channel has its own control block.
	Split bool
	// Default channels do not appear in variable names.
	Default bool
}

// StateKey is the state block name for one of the model's suffixes.
func (c Channel) StateKey(suffix string) string {
	if c.Default {
		return c.Family + "_" + suffix
	}
	return c.Family + "_" + c.Name + "_" + suffix
}

// ControlKey is the control block that drives the channel.
func (c Channel) ControlKey() string {
	if c.Split {
		return c.Family + "_" + c.Name
	}
	return c.Family
}

// Model is a single auxiliary-dynamics contributor.
type Model interface {
	// Type names the model, e.g. "xia".
	Type() string
	// Suffix lists the internal variables of the given kind.
	Suffix(kind dynamo.VariableKind) []string
	// Color is the plotting color of each state suffix.
	Color() []string
	DefaultInitialGuess() []float64
	DefaultBounds(kind dynamo.VariableKind) dynamo.Bounds
	// DynamicsSuffix is the state that carries the model's effect.
	DynamicsSuffix() string
	// Dynamics writes the derivatives of element index of channel ch into
	// a copy of dxdt and returns it.
	Dynamics(dxdt expr.Vector, phase *nlp.Phase, ch Channel, index int, states, controls nlp.Variables) (expr.Vector, error)
	// MultiType wraps the bare model into its aggregator variant.
	MultiType() MultiType
}

// Limiter is implemented by models whose states bound the deliverable load.
type Limiter interface {
	// EffectiveLoad is the load delivered by element index of ch.
	EffectiveLoad(ch Channel, index int, states nlp.Variables) (expr.Expr, bool, error)
}

// Validator is implemented by models whose parameters can be checked
// before any dynamics are built.
type Validator interface {
	Validate() error
}

// validate checks m when it is a Validator.
func validate(m Model) error {
	if v, ok := m.(Validator); ok {
		return v.Validate()
	}
	return nil
}

func finite(model, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return dynamo.Errorf(model+"."+field, v, dynamo.ErrInvalidParameter, "%s must be finite", field)
	}
	return nil
}

func nonNegative(model, field string, v float64) error {
	if err := finite(model, field, v); err != nil {
		return err
	}
	if v < 0 {
		return dynamo.Errorf(model+"."+field, v, dynamo.ErrInvalidParameter, "%s must be non-negative", field)
	}
	return nil
}

func nonZero(model, field string, v float64) error {
	if err := finite(model, field, v); err != nil {
		return err
	}
	if v == 0 {
		return dynamo.Errorf(model+"."+field, v, dynamo.ErrInvalidParameter, "%s must be non-zero", field)
	}
	return nil
}

// MultiType builds the aggregator a bare model is registered through.
type MultiType func(model Model, stateOnly bool) (*Aggregator, error)

// InterfaceOf returns the MultiType wrapping a model in a single-channel
// aggregator of family.
func InterfaceOf(family string) MultiType {
	return func(model Model, stateOnly bool) (*Aggregator, error) {
		return NewInterface(family, model, stateOnly)
	}
}

// TauSplitType marks models that only exist as one half of a minus/plus
// pair; wrapping a bare model with it fails.
func TauSplitType(model Model, _ bool) (*Aggregator, error) {
	return nil, errors.Wrapf(dynamo.ErrIncompatibleModel,
		"%s model needs a minus and a plus counterpart, use NewTauSplit", model.Type())
}

// setDerivative writes values for element index of the channel's state blocks.
func setDerivative(dxdt expr.Vector, phase *nlp.Phase, ch Channel, index int, suffixes []string, values []expr.Expr) (expr.Vector, error) {
	if len(dxdt) != phase.NX() {
		return nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "dxdt has %d rows, phase %d has %d states", len(dxdt), phase.Index, phase.NX())
	}
	out := dxdt.Clone()
	for i, suffix := range suffixes {
		off, err := phase.States.Offset(ch.StateKey(suffix), index)
		if err != nil {
			return nil, err
		}
		out[off] = values[i]
	}
	return out, nil
}

func element(vars nlp.Variables, key string, index int) (expr.Expr, error) {
	v, err := vars.Get(key)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(v) {
		return nil, errors.Wrapf(dynamo.ErrIndexOutOfRange, "%s has %d elements, got index %d", key, len(v), index)
	}
	return v[index], nil
}

// targetLoad is the normalized load driving element index of ch. Minus and
// plus channels read their sign of the control; other channels its magnitude.
func targetLoad(ch Channel, index int, controls nlp.Variables, scaling float64) (expr.Expr, error) {
	u, err := element(controls, ch.ControlKey(), index)
	if err != nil {
		return nil, err
	}
	if !ch.Split {
		switch ch.Name {
		case ChannelMinus:
			u = expr.Min(u, expr.Const(0))
		case ChannelPlus:
			u = expr.Max(u, expr.Const(0))
		default:
			return expr.Scale(expr.Abs(u), 1/abs(scaling)), nil
		}
	}
	return expr.Scale(u, 1/scaling), nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
