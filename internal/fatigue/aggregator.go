package fatigue

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
)

// Variant is the behavior that differs between aggregator kinds.
type Variant interface {
	// Family groups aggregators acting on the same kind of control.
	Family() string
	// Suffix names the channels, in order. Nil means unnamed channels.
	Suffix() []string
	// PlotFactor is the sign applied to each channel when plotting.
	PlotFactor() []float64
	// DynamicsPerSuffix folds the dynamics of one channel into dxdt.
	DynamicsPerSuffix(a *Aggregator, dxdt expr.Vector, channel string, phase *nlp.Phase, index int, states, controls nlp.Variables) (expr.Vector, error)
}

// Aggregator composes models under ordered named channels.
type Aggregator struct {
	variant       Variant
	channels      []string
	models        map[string]Model
	stateOnly     bool
	splitControls bool
}

func newAggregator(v Variant, models []Model, stateOnly, splitControls bool) (*Aggregator, error) {
	a := &Aggregator{
		variant:       v,
		models:        make(map[string]Model, len(models)),
		stateOnly:     stateOnly,
		splitControls: splitControls,
	}
	names := v.Suffix()
	if names == nil {
		for _, m := range models {
			if err := a.Add(m); err != nil {
				return nil, err
			}
		}
		return a, nil
	}
	if len(models) != len(names) {
		return nil, errors.Wrapf(dynamo.ErrIncompatibleModel,
			"%s aggregator has channels %v, got %d models", v.Family(), names, len(models))
	}
	for i, name := range names {
		if models[i] == nil {
			return nil, errors.Wrapf(dynamo.ErrIncompatibleModel, "channel %q has no model", name)
		}
		a.channels = append(a.channels, name)
		a.models[name] = models[i]
	}
	return a, nil
}

// Add appends a model under the next positional channel. Only aggregators
// with unnamed channels accept it.
func (a *Aggregator) Add(m Model) error {
	if a.variant.Suffix() != nil {
		return errors.Wrapf(dynamo.ErrIncompatibleModel, "%s aggregator has fixed channels %v", a.Family(), a.channels)
	}
	if m == nil {
		return errors.Wrap(dynamo.ErrIncompatibleModel, "nil model")
	}
	name := strconv.Itoa(len(a.channels))
	a.channels = append(a.channels, name)
	a.models[name] = m
	return nil
}

func (a *Aggregator) Family() string { return a.variant.Family() }

// Suffix returns the channel names in order.
func (a *Aggregator) Suffix() []string { return append([]string(nil), a.channels...) }

func (a *Aggregator) Shape() int            { return len(a.channels) }
func (a *Aggregator) StateOnly() bool       { return a.stateOnly }
func (a *Aggregator) SplitControls() bool   { return a.splitControls }
func (a *Aggregator) PlotFactor() []float64 { return a.variant.PlotFactor() }

// ChannelName maps a channel index to its name.
func (a *Aggregator) ChannelName(i int) (string, error) {
	if i < 0 || i >= len(a.channels) {
		return "", errors.Wrapf(dynamo.ErrChannelIndex, "%s aggregator has %d channels, got %d", a.Family(), len(a.channels), i)
	}
	return a.channels[i], nil
}

// Model returns the model of channel i.
func (a *Aggregator) Model(i int) (Model, error) {
	name, err := a.ChannelName(i)
	if err != nil {
		return nil, err
	}
	return a.models[name], nil
}

// Channel describes where the named channel's variables live.
func (a *Aggregator) Channel(name string) Channel {
	return Channel{
		Family:  a.Family(),
		Name:    name,
		Split:   a.splitControls,
		Default: len(a.channels) == 1 && name == ChannelFatigue,
	}
}

// Color returns the plotting colors of channel i's states.
func (a *Aggregator) Color(i int) ([]string, error) {
	m, err := a.Model(i)
	if err != nil {
		return nil, err
	}
	return m.Color(), nil
}

// DefaultBounds returns the default bounds of channel i.
func (a *Aggregator) DefaultBounds(i int, kind dynamo.VariableKind) (dynamo.Bounds, error) {
	m, err := a.Model(i)
	if err != nil {
		return dynamo.Bounds{}, err
	}
	return m.DefaultBounds(kind), nil
}

// DefaultInitialGuess returns the default initial guess of channel i.
func (a *Aggregator) DefaultInitialGuess(i int, kind dynamo.VariableKind) ([]float64, error) {
	m, err := a.Model(i)
	if err != nil {
		return nil, err
	}
	if kind == dynamo.Controls {
		return []float64{0}, nil
	}
	return m.DefaultInitialGuess(), nil
}

// Dynamics folds every channel in order.
func (a *Aggregator) Dynamics(dxdt expr.Vector, phase *nlp.Phase, index int, states, controls nlp.Variables) (expr.Vector, error) {
	var err error
	for _, ch := range a.channels {
		dxdt, err = a.variant.DynamicsPerSuffix(a, dxdt, ch, phase, index, states, controls)
		if err != nil {
			return nil, errors.Wrapf(err, "%s channel %s", a.Family(), ch)
		}
	}
	return dxdt, nil
}

// EffectiveLoad sums the loads the channels can deliver for element index.
// ok is false when no channel limits the load.
func (a *Aggregator) EffectiveLoad(index int, states nlp.Variables) (expr.Expr, bool, error) {
	var terms []expr.Expr
	for _, name := range a.channels {
		lim, isLimiter := a.models[name].(Limiter)
		if !isLimiter {
			continue
		}
		load, ok, err := lim.EffectiveLoad(a.Channel(name), index, states)
		if err != nil {
			return nil, false, err
		}
		if ok {
			terms = append(terms, load)
		}
	}
	if len(terms) == 0 {
		return nil, false, nil
	}
	return expr.Sum(terms...), true, nil
}

// forward is the DynamicsPerSuffix shared by variants that hand each
// channel to its model unchanged.
func forward(a *Aggregator, dxdt expr.Vector, channel string, phase *nlp.Phase, index int, states, controls nlp.Variables) (expr.Vector, error) {
	m, ok := a.models[channel]
	if !ok {
		return nil, errors.Wrapf(dynamo.ErrChannelIndex, "no channel %q", channel)
	}
	return m.Dynamics(dxdt, phase, a.Channel(channel), index, states, controls)
}
