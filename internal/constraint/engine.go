package constraint

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
)

// Observer is told about every block the engine pushes.
type Observer interface {
	ObservePush(kind string, rows int)
	ObserveSize(n int)
}

// Engine dispatches constraint descriptors and continuity passes into one
// accumulator. It is not safe for concurrent use.
type Engine struct {
	acc      *nlp.Accumulator
	logger   zerolog.Logger
	observer Observer
}

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l.With().Str("component", "constraint").Logger() }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func NewEngine(acc *nlp.Accumulator, opts ...Option) *Engine {
	e := &Engine{acc: acc, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Accumulator() *nlp.Accumulator { return e.acc }

// AddConstraints dispatches every descriptor of phase in order. It stops
// at the first failure; blocks pushed by earlier descriptors stay.
func (e *Engine) AddConstraints(phase *nlp.Phase, descriptors []*Descriptor) error {
	for _, d := range descriptors {
		if err := e.add(phase, d); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) add(phase *nlp.Phase, d *Descriptor) error {
	if d == nil {
		return dynamo.Errorf(fmt.Sprintf("phase %d", phase.Index), nil, dynamo.ErrInvalidParameter, "nil constraint descriptor")
	}
	subject := fmt.Sprintf("phase %d %s", phase.Index, d)
	if d.consumed {
		return dynamo.Errorf(subject, nil, dynamo.ErrDescriptorConsumed, "descriptors are single use")
	}
	fn := d.Function
	params := d.take()

	if d.Type < 0 || d.Type > Custom {
		return dynamo.Errorf(subject, params, dynamo.ErrUnknownConstraint, "see constraint.Types")
	}
	sel, err := d.Node.resolve(phase)
	if err != nil {
		return err
	}
	if d.Type.NeedsControl() && sel.terminal {
		return dynamo.Errorf(subject, nil, dynamo.ErrNoControlAtLastNode, "%s reads the control", d.Type)
	}

	if d.Type == Custom {
		return e.custom(subject, phase, sel, fn, params)
	}

	var b block
	switch d.Type {
	case MarkersToMatch:
		b, err = markersToMatch(subject, phase, sel, params)
	case AlignWithCustomRT:
		b, err = alignWithCustomRT(subject, phase, sel, params)
	case ProjectionOnPlane:
		b, err = projectionOnPlane(subject, phase, sel, params)
	case TrackState:
		b, err = trackState(subject, phase, sel, params)
	case ProportionalState:
		b, err = proportionalState(subject, phase, sel, params)
	case ProportionalControl:
		b, err = proportionalControl(subject, phase, sel, params)
	case ContactForceGreaterThan:
		b, err = contactForce(subject, phase, sel, params, true)
	case ContactForceLesserThan:
		b, err = contactForce(subject, phase, sel, params, false)
	case NonSlipping:
		b, err = nonSlipping(subject, phase, sel, params)
	}
	if err != nil {
		return err
	}
	if err := e.acc.PushVector(b.g, b.lo, b.hi); err != nil {
		return err
	}
	e.pushed(phase, d.Type.String(), len(b.g))
	return nil
}

func (e *Engine) custom(subject string, phase *nlp.Phase, sel selection, fn CustomFunc, params map[string]any) error {
	if fn == nil {
		return dynamo.Errorf(subject, nil, dynamo.ErrInvalidParameter, "custom constraint needs a function")
	}
	before := e.acc.Len()
	if err := fn(e.acc, phase, sel.x, sel.u, params); err != nil {
		return dynamo.Errorf(subject, nil, err, "custom constraint")
	}
	e.pushed(phase, Custom.String(), e.acc.Len()-before)
	return nil
}

func (e *Engine) pushed(phase *nlp.Phase, kind string, rows int) {
	e.logger.Debug().
		Int("phase", phase.Index).
		Str("kind", kind).
		Int("rows", rows).
		Int("total", e.acc.Len()).
		Msg("constraint block pushed")
	if e.observer != nil {
		e.observer.ObservePush(kind, rows)
		e.observer.ObserveSize(e.acc.Len())
	}
}

// block is a residual block built in full before it is pushed.
type block struct {
	g      expr.Vector
	lo, hi []float64
}

func (b *block) add(r expr.Expr, lo, hi float64) {
	b.g = append(b.g, r)
	b.lo = append(b.lo, lo)
	b.hi = append(b.hi, hi)
}

func (b *block) eq(rs ...expr.Expr) {
	for _, r := range rs {
		b.add(r, 0, 0)
	}
}
