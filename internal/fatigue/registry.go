package fatigue

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
)

// UniqueList holds at most one aggregator per slot of a family. Slot i
// fatigues element i of the family's control.
type UniqueList struct {
	family   string
	channels []string
	slots    []*Aggregator
}

func newUniqueList(family string) *UniqueList {
	return &UniqueList{family: family}
}

// Add puts agg in slot index, or in the next slot when index is negative.
func (l *UniqueList) Add(agg *Aggregator, index int) error {
	if agg.Family() != l.family {
		return errors.Wrapf(dynamo.ErrIncompatibleModel, "%s aggregator in %s list", agg.Family(), l.family)
	}
	if l.channels == nil {
		l.channels = agg.Suffix()
	} else if err := l.compatible(agg); err != nil {
		return err
	}
	if index < 0 {
		index = len(l.slots)
	}
	if index < len(l.slots) && l.slots[index] != nil {
		return errors.Wrapf(dynamo.ErrDuplicateRegistration, "%s slot %d", l.family, index)
	}
	for len(l.slots) <= index {
		l.slots = append(l.slots, nil)
	}
	l.slots[index] = agg
	return nil
}

// compatible checks that agg lays out its states like the registered ones.
func (l *UniqueList) compatible(agg *Aggregator) error {
	if !slices.Equal(l.channels, agg.Suffix()) {
		return errors.Wrapf(dynamo.ErrIncompatibleModel, "%s channels %v, list has %v", l.family, agg.Suffix(), l.channels)
	}
	ref := l.first()
	if ref.SplitControls() != agg.SplitControls() {
		return errors.Wrapf(dynamo.ErrIncompatibleModel, "%s mixes split and signed controls", l.family)
	}
	for i := range l.channels {
		a, _ := ref.Model(i)
		b, _ := agg.Model(i)
		if a.Type() != b.Type() {
			return errors.Wrapf(dynamo.ErrIncompatibleModel, "%s channel %s holds %s, got %s", l.family, l.channels[i], a.Type(), b.Type())
		}
	}
	return nil
}

func (l *UniqueList) first() *Aggregator {
	for _, a := range l.slots {
		if a != nil {
			return a
		}
	}
	return nil
}

func (l *UniqueList) Len() int { return len(l.slots) }

// At returns the aggregator of slot i, nil for an empty slot.
func (l *UniqueList) At(i int) *Aggregator {
	if i < 0 || i >= len(l.slots) {
		return nil
	}
	return l.slots[i]
}

func (l *UniqueList) Channels() []string { return append([]string(nil), l.channels...) }

func (l *UniqueList) validate() error {
	for i, a := range l.slots {
		if a == nil {
			return errors.Wrapf(dynamo.ErrInvalidParameter, "%s slot %d is empty", l.family, i)
		}
	}
	return nil
}

// Registry holds the auxiliary dynamics of one phase, by family.
type Registry struct {
	order []string
	lists map[string]*UniqueList
}

func NewRegistry() *Registry {
	return &Registry{lists: make(map[string]*UniqueList)}
}

// Add wraps model with its MultiType and registers it at slot index.
func (r *Registry) Add(model Model, index int, stateOnly bool) error {
	if model == nil {
		return errors.Wrap(dynamo.ErrIncompatibleModel, "nil model")
	}
	if err := validate(model); err != nil {
		return err
	}
	mt := model.MultiType()
	if mt == nil {
		return errors.Wrapf(dynamo.ErrIncompatibleModel, "%s model has no aggregator", model.Type())
	}
	agg, err := mt(model, stateOnly)
	if err != nil {
		return err
	}
	return r.AddAggregator(agg, index)
}

// AddAggregator registers agg at slot index of its family. Every model of
// agg is validated first.
func (r *Registry) AddAggregator(agg *Aggregator, index int) error {
	if agg == nil {
		return errors.Wrap(dynamo.ErrIncompatibleModel, "nil aggregator")
	}
	for i := 0; i < agg.Shape(); i++ {
		m, err := agg.Model(i)
		if err != nil {
			return err
		}
		if err := validate(m); err != nil {
			return errors.Wrapf(err, "%s channel %s", agg.Family(), agg.channels[i])
		}
	}
	family := agg.Family()
	l, ok := r.lists[family]
	if !ok {
		l = newUniqueList(family)
	}
	if err := l.Add(agg, index); err != nil {
		return err
	}
	if !ok {
		r.lists[family] = l
		r.order = append(r.order, family)
	}
	return nil
}

// Families returns the families in first-declaration order.
func (r *Registry) Families() []string { return append([]string(nil), r.order...) }

func (r *Registry) Get(family string) (*UniqueList, bool) {
	l, ok := r.lists[family]
	return l, ok
}

func (r *Registry) Empty() bool { return len(r.order) == 0 }

// Validate rejects families with empty slots.
func (r *Registry) Validate() error {
	for _, f := range r.order {
		if err := r.lists[f].validate(); err != nil {
			return err
		}
	}
	return nil
}

// Dynamics folds every registered aggregator into dxdt, families in
// declaration order and slots in order.
func (r *Registry) Dynamics(dxdt expr.Vector, phase *nlp.Phase, states, controls nlp.Variables) (expr.Vector, error) {
	var err error
	for _, f := range r.order {
		dxdt, err = r.DynamicsFor(f, dxdt, phase, states, controls)
		if err != nil {
			return nil, err
		}
	}
	return dxdt, nil
}

// DynamicsFor folds one family. Unknown families leave dxdt unchanged.
func (r *Registry) DynamicsFor(family string, dxdt expr.Vector, phase *nlp.Phase, states, controls nlp.Variables) (expr.Vector, error) {
	l, ok := r.lists[family]
	if !ok {
		return dxdt, nil
	}
	var err error
	for i, agg := range l.slots {
		if agg == nil {
			continue
		}
		dxdt, err = agg.Dynamics(dxdt, phase, i, states, controls)
		if err != nil {
			return nil, errors.Wrapf(err, "%s slot %d", family, i)
		}
	}
	return dxdt, nil
}

// StateBlocks lists the fatigue state blocks, one element per slot.
func (r *Registry) StateBlocks() []nlp.Block {
	var out []nlp.Block
	for _, f := range r.order {
		l := r.lists[f]
		ref := l.first()
		for i, name := range l.channels {
			m, _ := ref.Model(i)
			ch := ref.Channel(name)
			for _, s := range m.Suffix(dynamo.States) {
				out = append(out, nlp.Block{Name: ch.StateKey(s), Size: l.Len()})
			}
		}
	}
	return out
}

// ControlBlocks lists the control blocks of families with split controls.
func (r *Registry) ControlBlocks() []nlp.Block {
	var out []nlp.Block
	for _, f := range r.order {
		l := r.lists[f]
		ref := l.first()
		if !ref.SplitControls() {
			continue
		}
		for _, name := range l.channels {
			out = append(out, nlp.Block{Name: ref.Channel(name).ControlKey(), Size: l.Len()})
		}
	}
	return out
}

// SplitsControls reports whether family replaces its control block by
// per-channel blocks.
func (r *Registry) SplitsControls(family string) bool {
	l, ok := r.lists[family]
	return ok && l.first() != nil && l.first().SplitControls()
}

// Defaults holds per-block default bounds and initial guesses.
type Defaults struct {
	Bounds map[string]dynamo.Bounds
	Guess  map[string][]float64
}

// StateDefaults resolves every fatigue state block's bounds and guess
// slot by slot through the aggregators' channel order.
func (r *Registry) StateDefaults() (Defaults, error) {
	return r.defaults(dynamo.States)
}

// ControlDefaults is StateDefaults for split control blocks.
func (r *Registry) ControlDefaults() (Defaults, error) {
	return r.defaults(dynamo.Controls)
}

func (r *Registry) defaults(kind dynamo.VariableKind) (Defaults, error) {
	d := Defaults{Bounds: make(map[string]dynamo.Bounds), Guess: make(map[string][]float64)}
	for _, f := range r.order {
		l := r.lists[f]
		if err := l.validate(); err != nil {
			return Defaults{}, err
		}
		if kind == dynamo.Controls && !l.first().SplitControls() {
			continue
		}
		for slot, agg := range l.slots {
			for i, name := range l.channels {
				b, err := agg.DefaultBounds(i, kind)
				if err != nil {
					return Defaults{}, err
				}
				g, err := agg.DefaultInitialGuess(i, kind)
				if err != nil {
					return Defaults{}, err
				}
				ch := agg.Channel(name)
				keys := []string{ch.ControlKey()}
				if kind == dynamo.States {
					m, _ := agg.Model(i)
					keys = nil
					for _, s := range m.Suffix(dynamo.States) {
						keys = append(keys, ch.StateKey(s))
					}
				}
				for j, key := range keys {
					fill(d, key, l.Len(), slot, b.Min[j], b.Max[j], g[j])
				}
			}
		}
	}
	return d, nil
}

func fill(d Defaults, key string, n, slot int, lo, hi, guess float64) {
	b, ok := d.Bounds[key]
	if !ok {
		b = dynamo.Bounds{Min: make([]float64, n), Max: make([]float64, n)}
		d.Bounds[key] = b
		d.Guess[key] = make([]float64, n)
	}
	b.Min[slot], b.Max[slot] = lo, hi
	d.Guess[key][slot] = guess
}

// CommandedControls returns the signed control of family: the family block
// itself, or the sum of its split channel blocks.
func (r *Registry) CommandedControls(family string, controls nlp.Variables) (expr.Vector, error) {
	if !r.SplitsControls(family) {
		return controls.Get(family)
	}
	l := r.lists[family]
	var sum expr.Vector
	for _, name := range l.channels {
		part, err := controls.Get(l.first().Channel(name).ControlKey())
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = part
			continue
		}
		sum = sum.Add(part)
	}
	return sum, nil
}

// EffectiveControls replaces element i of commanded by the load the
// fatigue states of slot i allow, for every aggregator that is not
// state-only and limits its load.
func (r *Registry) EffectiveControls(family string, commanded expr.Vector, states nlp.Variables) (expr.Vector, error) {
	l, ok := r.lists[family]
	if !ok {
		return commanded, nil
	}
	if l.Len() > len(commanded) {
		return nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "%s has %d slots for %d controls", family, l.Len(), len(commanded))
	}
	out := commanded.Clone()
	for i, agg := range l.slots {
		if agg == nil || agg.StateOnly() {
			continue
		}
		load, ok, err := agg.EffectiveLoad(i, states)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = load
		}
	}
	return out, nil
}
