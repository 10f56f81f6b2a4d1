package constraint

import (
	"fmt"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
)

// Continuity pushes, in order: the shooting continuity of every phase, the
// junction between consecutive phases, and when cyclic is set the loop from
// the last phase back to the first on every state but the first.
func (e *Engine) Continuity(phases []*nlp.Phase, cyclic bool) error {
	for _, p := range phases {
		if err := e.shooting(p); err != nil {
			return err
		}
	}

	for i := 0; i+1 < len(phases); i++ {
		a, b := phases[i], phases[i+1]
		if a.NX() != b.NX() {
			return dynamo.Errorf(fmt.Sprintf("phases %d and %d", a.Index, b.Index), a.NX(), dynamo.ErrDimensionMismatch,
				"phase continuity needs equal state sizes, got %d and %d", a.NX(), b.NX())
		}
		e.acc.PushEquality(last(a).Sub(b.X[0]))
		e.pushed(a, "phase_continuity", a.NX())
	}

	if cyclic && len(phases) > 0 {
		first, end := phases[0], phases[len(phases)-1]
		if first.NX() != end.NX() {
			return dynamo.Errorf(fmt.Sprintf("phases %d and %d", end.Index, first.Index), end.NX(), dynamo.ErrDimensionMismatch,
				"cyclic constraint needs equal state sizes, got %d and %d", end.NX(), first.NX())
		}
		e.acc.PushEquality(last(end)[1:].Sub(first.X[0][1:]))
		e.pushed(end, "cyclic", end.NX()-1)
	}
	return nil
}

// shooting requires the integrated end of every interval to match the next
// node.
func (e *Engine) shooting(p *nlp.Phase) error {
	if p.Shooting == nil {
		return dynamo.Errorf(fmt.Sprintf("phase %d", p.Index), nil, dynamo.ErrInvalidParameter, "phase has no shooting function")
	}
	var g expr.Vector
	for k := 0; k < p.NShooting; k++ {
		end, err := p.Shooting.Call(p.X[k], p.U[k])
		if err != nil {
			return err
		}
		g = append(g, end.Sub(p.X[k+1])...)
	}
	e.acc.PushEquality(g)
	e.pushed(p, "shooting", len(g))
	return nil
}

func last(p *nlp.Phase) expr.Vector { return p.X[len(p.X)-1] }
