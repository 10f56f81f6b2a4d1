package constraint

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/san-kum/dynopt/internal/biomech"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/integrators"
	"github.com/san-kum/dynopt/internal/mapping"
	"github.com/san-kum/dynopt/internal/nlp"
)

// newPhase builds a torque-driven phase of model with RK4 shooting.
func newPhase(t *testing.T, index int, model biomech.Model, ns int) *nlp.Phase {
	t.Helper()
	return newMappedPhase(t, index, model, ns, nil)
}

func newMappedPhase(t *testing.T, index int, model biomech.Model, ns int, qMap *mapping.BiMapping) *nlp.Phase {
	t.Helper()
	if qMap == nil {
		qMap = mapping.Identity(model.NbQ())
	}
	states, err := nlp.StateLayout(qMap.Reduce.Len())
	require.NoError(t, err)
	controls, err := nlp.NewLayout(nlp.Block{Name: nlp.BlockTau, Size: model.NbTau()})
	require.NoError(t, err)
	p, err := nlp.NewPhase(index, nlp.PhaseSpec{
		Model:     model,
		QMapping:  qMap,
		NShooting: ns,
		FinalTime: 0.5,
		States:    states,
		Controls:  controls,
	})
	require.NoError(t, err)

	q, err := p.ExpandQ(p.SymX)
	require.NoError(t, err)
	qdot, err := p.ExpandQdot(p.SymX)
	require.NoError(t, err)
	tau, err := p.ControlTau(p.SymU)
	require.NoError(t, err)
	qddot, err := qMap.Reduce.Map(model.ForwardDynamics(q, qdot, tau))
	require.NoError(t, err)

	nq := p.NQ()
	p.Dynamics, err = expr.NewFunction(fmt.Sprintf("p%d_dynamics", index),
		[]expr.Vector{p.SymX, p.SymU}, expr.Concat(p.SymX[nq:2*nq], qddot))
	require.NoError(t, err)
	p.Shooting, err = integrators.Shooting(fmt.Sprintf("p%d_shooting", index), integrators.NewRK4(),
		p.Dynamics, p.NX(), p.NU(), p.Dt(), 2)
	require.NoError(t, err)
	return p
}

// bindNode sets the symbols of node vector v to vals.
func bindNode(t *testing.T, env expr.Env, v expr.Vector, vals ...float64) {
	t.Helper()
	vars, err := v.Vars()
	require.NoError(t, err)
	require.Len(t, vals, len(vars))
	for i, s := range vars {
		env[s.Name()] = vals[i]
	}
}

// bindAll sets every node of p to x and every control to u.
func bindAll(t *testing.T, env expr.Env, p *nlp.Phase, x, u []float64) {
	t.Helper()
	for _, v := range p.X {
		bindNode(t, env, v, x...)
	}
	for _, v := range p.U {
		bindNode(t, env, v, u...)
	}
}

func evalTail(t *testing.T, acc *nlp.Accumulator, n int, env expr.Env) []float64 {
	t.Helper()
	g := acc.Residuals()
	require.GreaterOrEqual(t, len(g), n)
	vals, err := g[len(g)-n:].Eval(env)
	require.NoError(t, err)
	return vals
}

func requireLockstep(t *testing.T, acc *nlp.Accumulator) {
	t.Helper()
	b := acc.Bounds()
	require.Equal(t, acc.Len(), len(b.Min))
	require.Equal(t, acc.Len(), len(b.Max))
}
