package constraint

import (
	"fmt"
	"math"

	"github.com/san-kum/dynopt/internal/biomech"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
)

func markersToMatch(subject string, p *nlp.Phase, sel selection, params map[string]any) (block, error) {
	var prm markersParams
	if err := decode(subject, params, &prm, "first_marker", "second_marker"); err != nil {
		return block{}, err
	}
	m := p.Model
	for _, idx := range []int{prm.FirstMarker, prm.SecondMarker} {
		if err := biomech.CheckIndex("marker", idx, m.NbMarkers()); err != nil {
			return block{}, err
		}
	}

	var b block
	for _, x := range sel.x {
		q, err := p.ExpandQ(x)
		if err != nil {
			return block{}, err
		}
		b.eq(m.Marker(q, prm.FirstMarker).Sub(m.Marker(q, prm.SecondMarker))...)
	}
	return b, nil
}

func alignWithCustomRT(subject string, p *nlp.Phase, sel selection, params map[string]any) (block, error) {
	var prm alignParams
	if err := decode(subject, params, &prm, "segment", "rt"); err != nil {
		return block{}, err
	}
	m := p.Model
	if err := biomech.CheckIndex("segment", prm.Segment, m.NbSegments()); err != nil {
		return block{}, err
	}
	if err := biomech.CheckIndex("rt", prm.RT, m.NbRTs()); err != nil {
		return block{}, err
	}

	var b block
	for _, x := range sel.x {
		q, err := p.ExpandQ(x)
		if err != nil {
			return block{}, err
		}
		seg := m.GlobalJCS(q, prm.Segment).Rot
		rt := m.RT(q, prm.RT).Rot
		b.eq(seg.Transpose().Mul(rt).EulerZYX()...)
	}
	return b, nil
}

func projectionOnPlane(subject string, p *nlp.Phase, sel selection, params map[string]any) (block, error) {
	var prm projectionParams
	if err := decode(subject, params, &prm, "marker", "segment", "axes"); err != nil {
		return block{}, err
	}
	m := p.Model
	if err := biomech.CheckIndex("marker", prm.Marker, m.NbMarkers()); err != nil {
		return block{}, err
	}
	if err := biomech.CheckIndex("segment", prm.Segment, m.NbSegments()); err != nil {
		return block{}, err
	}
	if len(prm.Axes) == 0 {
		return block{}, dynamo.Errorf(subject, nil, dynamo.ErrInvalidParameter, "no axes to project on")
	}
	for _, a := range prm.Axes {
		if err := biomech.CheckIndex("axis", a, 3); err != nil {
			return block{}, err
		}
	}

	var b block
	for _, x := range sel.x {
		q, err := p.ExpandQ(x)
		if err != nil {
			return block{}, err
		}
		local := m.GlobalJCS(q, prm.Segment).ToLocal(m.Marker(q, prm.Marker))
		for _, a := range prm.Axes {
			b.eq(local[a])
		}
	}
	return b, nil
}

func trackState(subject string, p *nlp.Phase, sel selection, params map[string]any) (block, error) {
	var prm trackParams
	if err := decode(subject, params, &prm, "data_to_track"); err != nil {
		return block{}, err
	}
	nx := p.NX()
	idx := prm.StatesIdx
	if len(idx) == 0 {
		idx = span(0, nx)
	}
	for _, i := range idx {
		if err := biomech.CheckIndex("state", i, nx); err != nil {
			return block{}, err
		}
	}
	data := prm.DataToTrack
	if len(data) != p.NShooting+1 {
		return block{}, dynamo.Errorf(subject, len(data), dynamo.ErrShapeMismatch,
			"data_to_track has %d rows, expected %d", len(data), p.NShooting+1)
	}
	for r, row := range data {
		if len(row) != len(idx) {
			return block{}, dynamo.Errorf(subject, len(row), dynamo.ErrShapeMismatch,
				"data_to_track row %d has %d columns, expected %d", r, len(row), len(idx))
		}
	}

	var b block
	for j, k := range sel.nodes {
		x := sel.x[j]
		for c, s := range idx {
			b.eq(expr.Sub(x[s], expr.Const(data[k][c])))
		}
	}
	return b, nil
}

func proportional(subject string, params map[string]any, size int) (proportionalParams, float64, error) {
	var prm proportionalParams
	if err := decode(subject, params, &prm, "first_dof", "second_dof", "coef"); err != nil {
		return prm, 0, err
	}
	for _, d := range []int{prm.FirstDof, prm.SecondDof} {
		if err := biomech.CheckIndex("dof", d, size); err != nil {
			return prm, 0, err
		}
	}
	coef, ok := coefficient(prm.Coef)
	if !ok {
		return prm, 0, dynamo.Errorf(subject, prm.Coef, dynamo.ErrInvalidCoefficient, "got %T", prm.Coef)
	}
	return prm, coef, nil
}

func proportionalState(subject string, p *nlp.Phase, sel selection, params map[string]any) (block, error) {
	prm, coef, err := proportional(subject, params, p.QMapping.Expand.Len())
	if err != nil {
		return block{}, err
	}
	var b block
	for _, x := range sel.x {
		q, err := p.ExpandQ(x)
		if err != nil {
			return block{}, err
		}
		b.eq(expr.Sub(q[prm.FirstDof], expr.Scale(q[prm.SecondDof], coef)))
	}
	return b, nil
}

func proportionalControl(subject string, p *nlp.Phase, sel selection, params map[string]any) (block, error) {
	prm, coef, err := proportional(subject, params, p.TauMapping.Expand.Len())
	if err != nil {
		return block{}, err
	}
	if !p.Controls.Has(nlp.BlockTau) {
		return block{}, dynamo.Errorf(subject, nil, dynamo.ErrInvalidParameter, "phase %d has no %s control", p.Index, nlp.BlockTau)
	}
	var b block
	for _, u := range sel.u {
		tau, err := p.ControlTau(u)
		if err != nil {
			return block{}, err
		}
		b.eq(expr.Sub(tau[prm.FirstDof], expr.Scale(tau[prm.SecondDof], coef)))
	}
	return b, nil
}

// contactFunction maps the single-node (x, u) of p to the contact forces.
func contactFunction(p *nlp.Phase) (*expr.Function, error) {
	q, err := p.ExpandQ(p.SymX)
	if err != nil {
		return nil, err
	}
	qdot, err := p.ExpandQdot(p.SymX)
	if err != nil {
		return nil, err
	}
	tau, err := p.ExpandTau(p.SymX, p.SymU)
	if err != nil {
		return nil, err
	}
	cs := p.Model.ContactForces(q, qdot, tau)
	return expr.NewFunction(fmt.Sprintf("p%d_contact_forces", p.Index), []expr.Vector{p.SymX, p.SymU}, cs)
}

func contactForce(subject string, p *nlp.Phase, sel selection, params map[string]any, greater bool) (block, error) {
	var prm contactParams
	if err := decode(subject, params, &prm, "idx", "boundary"); err != nil {
		return block{}, err
	}
	if err := biomech.CheckIndex("contact", prm.Idx, p.Model.NbContacts()); err != nil {
		return block{}, err
	}
	lo, hi := math.Inf(-1), prm.Boundary
	if greater {
		lo, hi = prm.Boundary, math.Inf(1)
	}
	fn, err := contactFunction(p)
	if err != nil {
		return block{}, err
	}

	var b block
	for i, u := range sel.u {
		cs, err := fn.Call(sel.x[i], u)
		if err != nil {
			return block{}, err
		}
		b.add(cs[prm.Idx], lo, hi)
	}
	return b, nil
}

// nonSlipping keeps the tangential force T inside the friction cone of the
// normal force N: μN+T >= 0 and μN-T >= 0.
func nonSlipping(subject string, p *nlp.Phase, sel selection, params map[string]any) (block, error) {
	var prm nonSlippingParams
	if err := decode(subject, params, &prm, "normal_component_idx", "tangential_component_idx", "static_friction_coefficient"); err != nil {
		return block{}, err
	}
	if len(prm.Normal) == 0 || len(prm.Tangential) == 0 {
		return block{}, dynamo.Errorf(subject, nil, dynamo.ErrInvalidParameter, "normal and tangential components are required")
	}
	for _, i := range append(append([]int(nil), prm.Normal...), prm.Tangential...) {
		if err := biomech.CheckIndex("contact", i, p.Model.NbContacts()); err != nil {
			return block{}, err
		}
	}
	if prm.Mu < 0 || math.IsNaN(prm.Mu) {
		return block{}, dynamo.Errorf(subject, prm.Mu, dynamo.ErrInvalidParameter, "static_friction_coefficient must be non-negative")
	}
	fn, err := contactFunction(p)
	if err != nil {
		return block{}, err
	}

	var b block
	for i, u := range sel.u {
		cs, err := fn.Call(sel.x[i], u)
		if err != nil {
			return block{}, err
		}
		n := expr.Sum(cs.Pick(prm.Normal)...)
		t := expr.Sum(cs.Pick(prm.Tangential)...)
		mun := expr.Scale(n, prm.Mu)
		b.add(expr.Add(mun, t), 0, math.Inf(1))
		b.add(expr.Sub(mun, t), 0, math.Inf(1))
	}
	return b, nil
}
