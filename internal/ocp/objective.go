package ocp

import (
	"fmt"
	"strings"

	"github.com/san-kum/dynopt/internal/biomech"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
)

// ObjectiveKind selects a Lagrange term.
type ObjectiveKind int

const (
	MinimizeControl ObjectiveKind = iota
	MinimizeState
	TrackState
)

var objectiveNames = [...]string{
	MinimizeControl: "minimize_control",
	MinimizeState:   "minimize_state",
	TrackState:      "track_state",
}

func (k ObjectiveKind) String() string {
	if k < 0 || int(k) >= len(objectiveNames) {
		return fmt.Sprintf("ObjectiveKind(%d)", int(k))
	}
	return objectiveNames[k]
}

func ParseObjectiveKind(s string) (ObjectiveKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range objectiveNames {
		if n == name {
			return ObjectiveKind(i), nil
		}
	}
	return 0, dynamo.Errorf("objective", s, dynamo.ErrInvalidParameter, "expected one of %s", strings.Join(objectiveNames[:], ", "))
}

// Objective is a weighted sum of squares integrated over the shooting
// nodes with the phase time step.
type Objective struct {
	Kind   ObjectiveKind
	Weight float64
	// Index selects components; empty means all.
	Index []int
	// Data is the TrackState reference, [ns+1][len(Index)].
	Data [][]float64
}

func (o Objective) term(p *nlp.Phase) (expr.Expr, error) {
	subject := fmt.Sprintf("phase %d %s", p.Index, o.Kind)
	size := p.NX()
	if o.Kind == MinimizeControl {
		size = p.NU()
	}
	idx := o.Index
	if len(idx) == 0 {
		idx = make([]int, size)
		for i := range idx {
			idx[i] = i
		}
	}
	for _, i := range idx {
		if err := biomech.CheckIndex("component", i, size); err != nil {
			return nil, err
		}
	}
	if o.Kind == TrackState {
		if len(o.Data) != p.NShooting+1 {
			return nil, dynamo.Errorf(subject, len(o.Data), dynamo.ErrShapeMismatch, "data has %d rows, expected %d", len(o.Data), p.NShooting+1)
		}
		for r, row := range o.Data {
			if len(row) != len(idx) {
				return nil, dynamo.Errorf(subject, len(row), dynamo.ErrShapeMismatch, "data row %d has %d columns, expected %d", r, len(row), len(idx))
			}
		}
	}

	var terms []expr.Expr
	for k := 0; k < p.NShooting; k++ {
		var v expr.Vector
		switch o.Kind {
		case MinimizeControl:
			v = p.U[k].Pick(idx)
		case MinimizeState:
			v = p.X[k].Pick(idx)
		case TrackState:
			v = p.X[k].Pick(idx).Sub(expr.Consts(o.Data[k]))
		default:
			return nil, dynamo.Errorf(subject, nil, dynamo.ErrInvalidParameter, "unknown objective")
		}
		for _, e := range v {
			terms = append(terms, expr.Square(e))
		}
	}
	return expr.Scale(expr.Sum(terms...), o.Weight*p.Dt()), nil
}
