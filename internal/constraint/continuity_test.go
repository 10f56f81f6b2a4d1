package constraint

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
	"github.com/san-kum/dynopt/internal/physics"
)

func TestShootingContinuityVanishesOnIntegratedTrajectory(t *testing.T) {
	p := newPhase(t, 0, physics.NewPendulum(), 4)
	acc := nlp.NewAccumulator()
	require.NoError(t, NewEngine(acc).Continuity([]*nlp.Phase{p}, false))
	require.Equal(t, 4*p.NX(), acc.Len())

	env := expr.Env{}
	x := []float64{0.5, 0}
	u := []float64{0.3}
	for k := 0; k < p.NShooting; k++ {
		bindNode(t, env, p.X[k], x...)
		bindNode(t, env, p.U[k], u...)
		next, err := p.Shooting.Call(expr.Consts(x), expr.Consts(u))
		require.NoError(t, err)
		x, err = next.Eval(nil)
		require.NoError(t, err)
	}
	bindNode(t, env, p.X[p.NShooting], x...)

	g, err := acc.Residuals().Eval(env)
	require.NoError(t, err)
	for i, v := range g {
		assert.InDelta(t, 0, v, 1e-12, "row %d", i)
	}
	b := acc.Bounds()
	assert.Equal(t, make([]float64, acc.Len()), b.Min)
	assert.Equal(t, make([]float64, acc.Len()), b.Max)
}

func TestPhaseContinuityLinksLastToFirst(t *testing.T) {
	a := newPhase(t, 0, physics.NewPendulum(), 2)
	b := newPhase(t, 1, physics.NewPendulum(), 3)
	acc := nlp.NewAccumulator()
	require.NoError(t, NewEngine(acc).Continuity([]*nlp.Phase{a, b}, false))
	require.Equal(t, 2*2+3*2+2, acc.Len())

	env := expr.Env{}
	bindNode(t, env, a.X[2], 1, 2)
	bindNode(t, env, b.X[0], 1, 5)
	assert.InDeltaSlice(t, []float64{0, -3}, evalTail(t, acc, 2, env), 1e-12)
}

func TestMismatchedPhaseDimensionsPushNothingForThePair(t *testing.T) {
	a := newPhase(t, 0, physics.NewPendulum(), 2)
	b := newPhase(t, 1, physics.NewDoublePendulum(), 2)
	acc := nlp.NewAccumulator()

	err := NewEngine(acc).Continuity([]*nlp.Phase{a, b}, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))
	assert.Equal(t, 2*a.NX()+2*b.NX(), acc.Len(), "only the shooting blocks are pushed")
	requireLockstep(t, acc)
}

func TestCyclicContinuitySkipsFirstComponent(t *testing.T) {
	p := newPhase(t, 0, physics.NewDoublePendulum(), 2)
	acc := nlp.NewAccumulator()
	require.NoError(t, NewEngine(acc).Continuity([]*nlp.Phase{p}, true))
	require.Equal(t, 2*4+3, acc.Len())

	env := expr.Env{}
	bindNode(t, env, p.X[0], 0, 0, 1, 1)
	bindNode(t, env, p.X[2], 7, 0, 1, 1)
	assert.Equal(t, []float64{0, 0, 0}, evalTail(t, acc, 3, env))

	b := acc.Bounds()
	assert.Equal(t, []float64{0, 0, 0}, b.Min[len(b.Min)-3:])
	assert.Equal(t, []float64{0, 0, 0}, b.Max[len(b.Max)-3:])
}

func TestContinuityNeedsShootingFunction(t *testing.T) {
	p := newPhase(t, 0, physics.NewPendulum(), 2)
	p.Shooting = nil
	err := NewEngine(nlp.NewAccumulator()).Continuity([]*nlp.Phase{p}, false)
	assert.True(t, errors.Is(err, dynamo.ErrInvalidParameter))
}
