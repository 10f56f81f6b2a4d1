package physics

import (
	"github.com/san-kum/dynopt/internal/biomech"
	"github.com/san-kum/dynopt/internal/expr"
)

// Pendulum is a point mass on a massless rod; theta=0 hangs down.
type Pendulum struct {
	Frames
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.1,
		Gravity: 9.81,
	}
}

func (p *Pendulum) Name() string { return "pendulum" }

func (p *Pendulum) NbQ() int        { return 1 }
func (p *Pendulum) NbQdot() int     { return 1 }
func (p *Pendulum) NbTau() int      { return 1 }
func (p *Pendulum) NbMarkers() int  { return 2 }
func (p *Pendulum) NbSegments() int { return 1 }
func (p *Pendulum) NbContacts() int { return 2 }

// Marker 0 is the pivot, marker 1 the bob.
func (p *Pendulum) Marker(q expr.Vector, idx int) expr.Vector {
	if idx == 0 {
		return expr.Zeros(3)
	}
	return p.GlobalJCS(q, 0).Rot.MulVec(planarPoint(expr.Const(0), expr.Const(-p.Length)))
}

func (p *Pendulum) GlobalJCS(q expr.Vector, _ int) biomech.Transform {
	return biomech.Transform{Rot: expr.RotZ(q[0]), Trans: expr.Zeros(3)}
}

func (p *Pendulum) ForwardDynamics(q, qdot, tau expr.Vector) expr.Vector {
	theta, omega := q[0], qdot[0]
	inertia := p.Mass * p.Length * p.Length

	num := expr.Sum(
		tau[0],
		expr.Scale(omega, -p.Damping),
		expr.Scale(expr.Sin(theta), -p.Mass*p.Gravity*p.Length),
	)
	return expr.Vector{expr.Scale(num, 1/inertia)}
}

// ContactForces is the pivot reaction m·a - m·g.
func (p *Pendulum) ContactForces(q, qdot, tau expr.Vector) expr.Vector {
	theta, omega := q[0], qdot[0]
	alpha := p.ForwardDynamics(q, qdot, tau)[0]
	s, c := expr.Sin(theta), expr.Cos(theta)
	w2 := expr.Square(omega)

	ax := expr.Scale(expr.Sub(expr.Mul(alpha, c), expr.Mul(w2, s)), p.Length)
	ay := expr.Scale(expr.Add(expr.Mul(alpha, s), expr.Mul(w2, c)), p.Length)
	return expr.Vector{
		expr.Scale(ax, p.Mass),
		expr.Add(expr.Scale(ay, p.Mass), expr.Const(p.Mass*p.Gravity)),
	}
}

func (p *Pendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    p.Mass,
		"length":  p.Length,
		"damping": p.Damping,
		"gravity": p.Gravity,
	}
}

func (p *Pendulum) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		p.Mass = value
	case "length":
		p.Length = value
	case "damping":
		p.Damping = value
	case "gravity":
		p.Gravity = value
	default:
		return unknownParam(name)
	}
	return nil
}
