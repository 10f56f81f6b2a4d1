package physics

import (
	"github.com/san-kum/dynopt/internal/biomech"
	"github.com/san-kum/dynopt/internal/expr"
)

// CartPole is a driven cart with a free pole; theta=0 is upright and
// PoleLength is the half-length of the pole.
type CartPole struct {
	Frames
	CartMass   float64
	PoleMass   float64
	PoleLength float64
	Gravity    float64
}

func NewCartPole() *CartPole {
	return &CartPole{
		CartMass:   1.0,
		PoleMass:   0.1,
		PoleLength: 1.0,
		Gravity:    9.81,
	}
}

func (c *CartPole) Name() string { return "cartpole" }

func (c *CartPole) NbQ() int        { return 2 }
func (c *CartPole) NbQdot() int     { return 2 }
func (c *CartPole) NbTau() int      { return 1 }
func (c *CartPole) NbMarkers() int  { return 2 }
func (c *CartPole) NbSegments() int { return 2 }
func (c *CartPole) NbContacts() int { return 2 }

// Marker 0 is the cart, marker 1 the pole tip.
func (c *CartPole) Marker(q expr.Vector, idx int) expr.Vector {
	if idx == 0 {
		return planarPoint(q[0], expr.Const(0))
	}
	jcs := c.GlobalJCS(q, 1)
	return jcs.Rot.MulVec(planarPoint(expr.Const(0), expr.Const(2*c.PoleLength))).Add(jcs.Trans)
}

func (c *CartPole) GlobalJCS(q expr.Vector, idx int) biomech.Transform {
	trans := planarPoint(q[0], expr.Const(0))
	if idx == 0 {
		return biomech.Transform{Rot: expr.Identity3(), Trans: trans}
	}
	return biomech.Transform{Rot: expr.RotZ(expr.Neg(q[1])), Trans: trans}
}

func (c *CartPole) accelerations(q, qdot, tau expr.Vector) (xacc, thetaacc expr.Expr) {
	theta, omega := q[1], qdot[1]
	mc, mp, l, g := c.CartMass, c.PoleMass, c.PoleLength, c.Gravity
	sint, cost := expr.Sin(theta), expr.Cos(theta)

	temp := expr.Scale(expr.Add(tau[0], expr.Scale(expr.Mul(expr.Square(omega), sint), mp*l)), 1/(mc+mp))
	den := expr.Scale(expr.Sub(expr.Const(4.0/3.0), expr.Scale(expr.Square(cost), mp/(mc+mp))), l)
	thetaacc = expr.Div(expr.Sub(expr.Scale(sint, g), expr.Mul(cost, temp)), den)
	xacc = expr.Sub(temp, expr.Scale(expr.Mul(thetaacc, cost), mp*l/(mc+mp)))
	return xacc, thetaacc
}

func (c *CartPole) ForwardDynamics(q, qdot, tau expr.Vector) expr.Vector {
	xacc, thetaacc := c.accelerations(q, qdot, tau)
	return expr.Vector{xacc, thetaacc}
}

// ContactForces is the ground reaction on the cart: traction, then normal.
func (c *CartPole) ContactForces(q, qdot, tau expr.Vector) expr.Vector {
	theta, omega := q[1], qdot[1]
	_, thetaacc := c.accelerations(q, qdot, tau)
	poleLift := expr.Add(expr.Mul(thetaacc, expr.Sin(theta)), expr.Mul(expr.Square(omega), expr.Cos(theta)))
	normal := expr.Sub(expr.Const((c.CartMass+c.PoleMass)*c.Gravity), expr.Scale(poleLift, c.PoleMass*c.PoleLength))
	return expr.Vector{tau[0], normal}
}

func (c *CartPole) GetParams() map[string]float64 {
	return map[string]float64{
		"cart_mass":   c.CartMass,
		"pole_mass":   c.PoleMass,
		"pole_length": c.PoleLength,
		"gravity":     c.Gravity,
	}
}

func (c *CartPole) SetParam(name string, value float64) error {
	switch name {
	case "cart_mass":
		c.CartMass = value
	case "pole_mass":
		c.PoleMass = value
	case "pole_length":
		c.PoleLength = value
	case "gravity":
		c.Gravity = value
	default:
		return unknownParam(name)
	}
	return nil
}
