package integrators

import (
	"github.com/pkg/errors"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
)

// Integrator advances a state by one step of the dynamics Function.
// dyn takes (x, u) and returns dx/dt.
type Integrator interface {
	Name() string
	Step(dyn *expr.Function, x, u expr.Vector, dt float64) (expr.Vector, error)
}

// Shooting builds the Function mapping (x0, u) to the state at the end of
// one interval of length dt, taken in steps substeps.
func Shooting(name string, integ Integrator, dyn *expr.Function, nx, nu int, dt float64, steps int) (*expr.Function, error) {
	if steps < 1 {
		return nil, errors.Wrapf(dynamo.ErrInvalidParameter, "%s: %d integration steps", name, steps)
	}
	if dyn.NumInputs() != 2 || dyn.InputSize(0) != nx || dyn.InputSize(1) != nu || dyn.OutputSize() != nx {
		return nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "%s: dynamics %s is not (x[%d], u[%d]) -> dx[%d]", name, dyn.Name(), nx, nu, nx)
	}
	x0 := expr.Syms(name+"_x0", nx)
	u := expr.Syms(name+"_u", nu)

	h := dt / float64(steps)
	x := x0
	for i := 0; i < steps; i++ {
		next, err := integ.Step(dyn, x, u, h)
		if err != nil {
			return nil, errors.Wrapf(err, "%s step %d", name, i)
		}
		x = next
	}
	return expr.NewFunction(name, []expr.Vector{x0, u}, x)
}

// axpy returns x + a·k.
func axpy(x expr.Vector, a float64, k expr.Vector) expr.Vector {
	out := make(expr.Vector, len(x))
	for i := range x {
		out[i] = expr.Add(x[i], expr.Scale(k[i], a))
	}
	return out
}
