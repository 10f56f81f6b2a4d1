package nlp

import (
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
)

// Accumulator owns the constraint vector g and its bounds.
type Accumulator struct {
	g   expr.Vector
	min []float64
	max []float64
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Push appends one residual with its bounds.
func (a *Accumulator) Push(residual expr.Expr, lower, upper float64) {
	a.g = append(a.g, residual)
	a.min = append(a.min, lower)
	a.max = append(a.max, upper)
}

// PushVector appends a residual block. Sizes are checked first; on error
// nothing is appended.
func (a *Accumulator) PushVector(residual expr.Vector, lower, upper []float64) error {
	if len(lower) != len(residual) || len(upper) != len(residual) {
		return dynamo.Errorf("constraint block", len(residual), dynamo.ErrDimensionMismatch,
			"residual has %d rows, bounds have %d and %d", len(residual), len(lower), len(upper))
	}
	for i, r := range residual {
		a.Push(r, lower[i], upper[i])
	}
	return nil
}

// PushEquality appends residual == 0 for every row.
func (a *Accumulator) PushEquality(residual expr.Vector) {
	for _, r := range residual {
		a.Push(r, 0, 0)
	}
}

func (a *Accumulator) Len() int { return len(a.g) }

// Residuals returns a copy of g.
func (a *Accumulator) Residuals() expr.Vector {
	return a.g.Clone()
}

// Bounds returns a copy of the bound vectors.
func (a *Accumulator) Bounds() dynamo.Bounds {
	return dynamo.Bounds{
		Min: append([]float64(nil), a.min...),
		Max: append([]float64(nil), a.max...),
	}
}
