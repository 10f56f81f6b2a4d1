package integrators

import "github.com/san-kum/dynopt/internal/expr"

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(dyn *expr.Function, x, u expr.Vector, dt float64) (expr.Vector, error) {
	dx, err := dyn.Call(x, u)
	if err != nil {
		return nil, err
	}
	return axpy(x, dt, dx), nil
}
