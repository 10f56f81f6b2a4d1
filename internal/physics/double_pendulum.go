package physics

import (
	"github.com/san-kum/dynopt/internal/biomech"
	"github.com/san-kum/dynopt/internal/expr"
)

const (
	DefaultMass    = 1.0
	DefaultLength  = 1.0
	DefaultGravity = 9.81
)

// DoublePendulum uses absolute link angles. Tau[0] acts at the pivot,
// Tau[1] between the links.
type DoublePendulum struct {
	Frames
	M1, M2  float64
	L1, L2  float64
	Gravity float64
}

func NewDoublePendulum() *DoublePendulum {
	return &DoublePendulum{
		M1: DefaultMass, M2: DefaultMass,
		L1: DefaultLength, L2: DefaultLength,
		Gravity: DefaultGravity,
	}
}

func (d *DoublePendulum) Name() string { return "double_pendulum" }

func (d *DoublePendulum) NbQ() int        { return 2 }
func (d *DoublePendulum) NbQdot() int     { return 2 }
func (d *DoublePendulum) NbTau() int      { return 2 }
func (d *DoublePendulum) NbMarkers() int  { return 3 }
func (d *DoublePendulum) NbSegments() int { return 2 }
func (d *DoublePendulum) NbContacts() int { return 2 }

// Marker 0 is the pivot, 1 the elbow, 2 the tip.
func (d *DoublePendulum) Marker(q expr.Vector, idx int) expr.Vector {
	switch idx {
	case 0:
		return expr.Zeros(3)
	case 1:
		return d.GlobalJCS(q, 1).Trans
	}
	jcs := d.GlobalJCS(q, 1)
	return jcs.Rot.MulVec(planarPoint(expr.Const(0), expr.Const(-d.L2))).Add(jcs.Trans)
}

func (d *DoublePendulum) GlobalJCS(q expr.Vector, idx int) biomech.Transform {
	if idx == 0 {
		return biomech.Transform{Rot: expr.RotZ(q[0]), Trans: expr.Zeros(3)}
	}
	elbow := expr.RotZ(q[0]).MulVec(planarPoint(expr.Const(0), expr.Const(-d.L1)))
	return biomech.Transform{Rot: expr.RotZ(q[1]), Trans: elbow}
}

// ForwardDynamics solves the 2x2 mass matrix system by Cramer's rule.
func (d *DoublePendulum) ForwardDynamics(q, qdot, tau expr.Vector) expr.Vector {
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity
	delta := expr.Sub(q[0], q[1])
	sinD, cosD := expr.Sin(delta), expr.Cos(delta)

	a := expr.Const((m1 + m2) * l1 * l1)
	b := expr.Scale(cosD, m2*l1*l2)
	c := expr.Const(m2 * l2 * l2)

	q1 := expr.Sub(tau[0], tau[1])
	q2 := tau[1]
	r1 := expr.Sum(
		expr.Scale(expr.Mul(expr.Square(qdot[1]), sinD), -m2*l1*l2),
		expr.Scale(expr.Sin(q[0]), -(m1+m2)*g*l1),
		q1,
	)
	r2 := expr.Sum(
		expr.Scale(expr.Mul(expr.Square(qdot[0]), sinD), m2*l1*l2),
		expr.Scale(expr.Sin(q[1]), -m2*g*l2),
		q2,
	)

	det := expr.Sub(expr.Mul(a, c), expr.Square(b))
	alpha1 := expr.Div(expr.Sub(expr.Mul(r1, c), expr.Mul(b, r2)), det)
	alpha2 := expr.Div(expr.Sub(expr.Mul(a, r2), expr.Mul(b, r1)), det)
	return expr.Vector{alpha1, alpha2}
}

// ContactForces is the pivot reaction sum(m·a) - (m1+m2)·g.
func (d *DoublePendulum) ContactForces(q, qdot, tau expr.Vector) expr.Vector {
	alpha := d.ForwardDynamics(q, qdot, tau)
	a1x, a1y := d.linkAcceleration(q[0], qdot[0], alpha[0], d.L1)
	l2x, l2y := d.linkAcceleration(q[1], qdot[1], alpha[1], d.L2)
	a2x, a2y := expr.Add(a1x, l2x), expr.Add(a1y, l2y)

	return expr.Vector{
		expr.Add(expr.Scale(a1x, d.M1), expr.Scale(a2x, d.M2)),
		expr.Sum(expr.Scale(a1y, d.M1), expr.Scale(a2y, d.M2), expr.Const((d.M1+d.M2)*d.Gravity)),
	}
}

func (d *DoublePendulum) linkAcceleration(theta, omega, alpha expr.Expr, l float64) (expr.Expr, expr.Expr) {
	s, c := expr.Sin(theta), expr.Cos(theta)
	w2 := expr.Square(omega)
	ax := expr.Scale(expr.Sub(expr.Mul(alpha, c), expr.Mul(w2, s)), l)
	ay := expr.Scale(expr.Add(expr.Mul(alpha, s), expr.Mul(w2, c)), l)
	return ax, ay
}

func (d *DoublePendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"m1":      d.M1,
		"m2":      d.M2,
		"l1":      d.L1,
		"l2":      d.L2,
		"gravity": d.Gravity,
	}
}

func (d *DoublePendulum) SetParam(name string, value float64) error {
	switch name {
	case "m1":
		d.M1 = value
	case "m2":
		d.M2 = value
	case "l1":
		d.L1 = value
	case "l2":
		d.L2 = value
	case "gravity":
		d.Gravity = value
	default:
		return unknownParam(name)
	}
	return nil
}
