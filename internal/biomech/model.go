// Package biomech defines the articulated rigid-body model the transcription
// engine queries. Implementations build symbolic expressions of the
// generalized coordinates; they never evaluate numerically.
package biomech

import (
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
)

// Transform is a rigid transform: p_global = Rot·p_local + Trans.
type Transform struct {
	Rot   expr.Mat3
	Trans expr.Vector
}

// Fixed returns a constant transform rotated by angle about z.
func Fixed(angle float64, trans [3]float64) Transform {
	return Transform{Rot: expr.RotZ(expr.Const(angle)), Trans: expr.Consts(trans[:])}
}

// ToLocal expresses a global point in the frame of t.
func (t Transform) ToLocal(p expr.Vector) expr.Vector {
	return t.Rot.Transpose().MulVec(p.Sub(t.Trans))
}

// Model is the rigid-body collaborator.
type Model interface {
	Name() string

	NbQ() int
	NbQdot() int
	NbTau() int
	NbMarkers() int
	NbSegments() int
	NbRTs() int
	NbContacts() int

	// Marker is the global position of marker idx.
	Marker(q expr.Vector, idx int) expr.Vector
	// GlobalJCS is the local-to-global transform of segment idx.
	GlobalJCS(q expr.Vector, idx int) Transform
	// RT is the transform of the custom reference frame idx.
	RT(q expr.Vector, idx int) Transform
	// ForwardDynamics returns qddot for the full q, qdot and tau.
	ForwardDynamics(q, qdot, tau expr.Vector) expr.Vector
	// ContactForces returns the contact force components implied by the
	// forward dynamics at (q, qdot, tau).
	ContactForces(q, qdot, tau expr.Vector) expr.Vector
}

// CheckIndex validates idx against a model count.
func CheckIndex(kind string, idx, count int) error {
	if idx < 0 || idx >= count {
		return dynamo.Errorf(kind, idx, dynamo.ErrIndexOutOfRange,
			"%s index %d must be in [0, %d)", kind, idx, count)
	}
	return nil
}
