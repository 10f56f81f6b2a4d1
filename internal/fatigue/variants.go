package fatigue

import (
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
)

// Channel names of the built-in variants.
const (
	ChannelFatigue = "fatigue"
	ChannelMinus   = "minus"
	ChannelPlus    = "plus"
)

type interfaceVariant struct{ family string }

func (v interfaceVariant) Family() string        { return v.family }
func (v interfaceVariant) Suffix() []string      { return []string{ChannelFatigue} }
func (v interfaceVariant) PlotFactor() []float64 { return []float64{1} }

func (v interfaceVariant) DynamicsPerSuffix(a *Aggregator, dxdt expr.Vector, channel string, phase *nlp.Phase, index int, states, controls nlp.Variables) (expr.Vector, error) {
	return forward(a, dxdt, channel, phase, index, states, controls)
}

// NewInterface wraps a single model under the "fatigue" channel of family.
// Its state blocks are named family_suffix.
func NewInterface(family string, model Model, stateOnly bool) (*Aggregator, error) {
	return newAggregator(interfaceVariant{family: family}, []Model{model}, stateOnly, false)
}

type tauSplitVariant struct{}

func (tauSplitVariant) Family() string        { return FamilyTau }
func (tauSplitVariant) Suffix() []string      { return []string{ChannelMinus, ChannelPlus} }
func (tauSplitVariant) PlotFactor() []float64 { return []float64{-1, 1} }

func (v tauSplitVariant) DynamicsPerSuffix(a *Aggregator, dxdt expr.Vector, channel string, phase *nlp.Phase, index int, states, controls nlp.Variables) (expr.Vector, error) {
	return forward(a, dxdt, channel, phase, index, states, controls)
}

// NewTauSplit fatigues the negative and positive parts of a torque
// separately. With splitControls the parts get their own control blocks
// tau_minus and tau_plus; otherwise both read the signed tau control.
func NewTauSplit(minus, plus Model, stateOnly, splitControls bool) (*Aggregator, error) {
	return newAggregator(tauSplitVariant{}, []Model{minus, plus}, stateOnly, splitControls)
}

type stackVariant struct{ family string }

func (v stackVariant) Family() string        { return v.family }
func (v stackVariant) Suffix() []string      { return nil }
func (v stackVariant) PlotFactor() []float64 { return nil }

func (v stackVariant) DynamicsPerSuffix(a *Aggregator, dxdt expr.Vector, channel string, phase *nlp.Phase, index int, states, controls nlp.Variables) (expr.Vector, error) {
	return forward(a, dxdt, channel, phase, index, states, controls)
}

// NewStack layers several models on the same control under positional
// channels "0", "1", ... More can be appended with Aggregator.Add.
func NewStack(family string, stateOnly bool, models ...Model) (*Aggregator, error) {
	return newAggregator(stackVariant{family: family}, models, stateOnly, false)
}
