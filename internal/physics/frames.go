package physics

import (
	"fmt"

	"github.com/san-kum/dynopt/internal/biomech"
	"github.com/san-kum/dynopt/internal/expr"
)

// Configurable exposes named scalar parameters.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// Frames holds the custom reference frames of a model.
type Frames struct {
	RTs []biomech.Transform
}

// AddFrame registers a fixed frame rotated by angle about z.
func (f *Frames) AddFrame(angle float64, origin [3]float64) int {
	f.RTs = append(f.RTs, biomech.Fixed(angle, origin))
	return len(f.RTs) - 1
}

func (f *Frames) NbRTs() int { return len(f.RTs) }

func (f *Frames) RT(_ expr.Vector, idx int) biomech.Transform {
	return f.RTs[idx]
}

func planarPoint(x, y expr.Expr) expr.Vector {
	return expr.Vector{x, y, expr.Const(0)}
}

func unknownParam(name string) error {
	return fmt.Errorf("unknown param: %s", name)
}
