package integrators

import "github.com/san-kum/dynopt/internal/expr"

type RK4 struct{}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) Step(dyn *expr.Function, x, u expr.Vector, dt float64) (expr.Vector, error) {
	k1, err := dyn.Call(x, u)
	if err != nil {
		return nil, err
	}
	k2, err := dyn.Call(axpy(x, dt*0.5, k1), u)
	if err != nil {
		return nil, err
	}
	k3, err := dyn.Call(axpy(x, dt*0.5, k2), u)
	if err != nil {
		return nil, err
	}
	k4, err := dyn.Call(axpy(x, dt, k3), u)
	if err != nil {
		return nil, err
	}

	dt6 := dt / 6.0
	result := make(expr.Vector, len(x))
	for i := range x {
		incr := expr.Sum(k1[i], expr.Scale(k2[i], 2), expr.Scale(k3[i], 2), k4[i])
		result[i] = expr.Add(x[i], expr.Scale(incr, dt6))
	}
	return result, nil
}
