package nlp

import (
	"fmt"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/physics"
)

func assertLockstep(t *testing.T, a *Accumulator) {
	t.Helper()
	b := a.Bounds()
	assert.Equal(t, a.Len(), len(a.Residuals()))
	assert.Equal(t, a.Len(), len(b.Min))
	assert.Equal(t, a.Len(), len(b.Max))
}

func TestAccumulatorKeepsBoundsInLockstep(t *testing.T) {
	a := NewAccumulator()
	x := expr.NewVar("x")

	a.Push(x, 0, math.Inf(1))
	assertLockstep(t, a)

	a.PushEquality(expr.Vector{x, expr.Neg(x)})
	assertLockstep(t, a)

	require.NoError(t, a.PushVector(expr.Vector{x}, []float64{-1}, []float64{1}))
	assertLockstep(t, a)

	assert.Equal(t, 4, a.Len())
	assert.Equal(t, []float64{0, 0, 0, -1}, a.Bounds().Min)
}

func TestAccumulatorPushVectorIsAtomic(t *testing.T) {
	a := NewAccumulator()
	err := a.PushVector(expr.Syms("r", 3), []float64{0, 0, 0}, []float64{0, 0})

	require.Error(t, err)
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))
	assert.Equal(t, 0, a.Len())
	assertLockstep(t, a)
}

func TestAccumulatorPreservesOrder(t *testing.T) {
	a := NewAccumulator()
	first, second := expr.NewVar("a"), expr.NewVar("b")
	a.Push(first, 1, 1)
	a.Push(second, 2, 2)

	g := a.Residuals()
	assert.Equal(t, expr.Expr(first), g[0])
	assert.Equal(t, expr.Expr(second), g[1])
	assert.Equal(t, []float64{1, 2}, a.Bounds().Min)
}

func TestLayoutSplit(t *testing.T) {
	l, err := StateLayout(2, Block{Name: "tau_ma", Size: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, l.Size())

	v := expr.Syms("x", 5)
	vars, err := l.Split(v)
	require.NoError(t, err)

	qdot, err := vars.Get(BlockQdot)
	require.NoError(t, err)
	assert.Equal(t, v[2:4], qdot)

	off, err := l.Offset("tau_ma", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, off)

	_, err = l.Offset("tau_ma", 1)
	assert.True(t, errors.Is(err, dynamo.ErrIndexOutOfRange))

	_, err = vars.Get("missing")
	assert.Error(t, err)

	_, err = l.Split(expr.Syms("y", 3))
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))
}

func TestLayoutRejectsDuplicateBlocks(t *testing.T) {
	_, err := NewLayout(Block{Name: "q", Size: 1}, Block{Name: "q", Size: 2})
	assert.Error(t, err)
}

func newPendulumPhase(t *testing.T, ns int) *Phase {
	t.Helper()
	states, err := StateLayout(1)
	require.NoError(t, err)
	controls, err := NewLayout(Block{Name: BlockTau, Size: 1})
	require.NoError(t, err)

	p, err := NewPhase(0, PhaseSpec{
		Model:     physics.NewPendulum(),
		NShooting: ns,
		FinalTime: 1,
		States:    states,
		Controls:  controls,
	})
	require.NoError(t, err)
	return p
}

func TestNewPhaseCreatesNodeSymbols(t *testing.T) {
	p := newPendulumPhase(t, 4)

	assert.Len(t, p.X, 5)
	assert.Len(t, p.U, 4)
	assert.Equal(t, 2, p.NX())
	assert.Equal(t, 1, p.NU())
	assert.InDelta(t, 0.25, p.Dt(), 1e-12)
	assert.Equal(t, "p0_X4_1", p.X[4][1].String())
}

func TestNewPhaseValidation(t *testing.T) {
	states, _ := StateLayout(1)
	controls, _ := NewLayout(Block{Name: BlockTau, Size: 1})

	_, err := NewPhase(0, PhaseSpec{Model: physics.NewPendulum(), NShooting: 0, FinalTime: 1, States: states, Controls: controls})
	assert.True(t, errors.Is(err, dynamo.ErrInvalidParameter))

	_, err = NewPhase(0, PhaseSpec{NShooting: 1, FinalTime: 1, States: states, Controls: controls})
	assert.True(t, errors.Is(err, dynamo.ErrInvalidParameter))
}

func TestProblemEvaluate(t *testing.T) {
	x, y := expr.NewVar("x"), expr.NewVar("y")
	p := &Problem{
		Vars: []*expr.Var{x, y},
		G:    expr.Vector{expr.Sub(x, y), expr.Add(x, y)},
		Lbg:  []float64{0, -1},
		Ubg:  []float64{0, 1},
		F:    expr.Square(x),
	}

	f, g, err := p.Evaluate([]float64{2, 1})
	require.NoError(t, err)
	assert.Equal(t, 4.0, f)
	assert.Equal(t, []float64{1, 3}, g)
	assert.Equal(t, []float64{1, 2}, p.Violation(g))
	assert.Equal(t, 2.0, p.MaxViolation(g))

	_, _, err = p.Evaluate([]float64{1})
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))
}

func TestEvaluateConstraintsMatchesSerial(t *testing.T) {
	n := 500
	vars := make([]*expr.Var, n)
	g := make(expr.Vector, n)
	point := make([]float64, n)
	for i := range vars {
		vars[i] = expr.NewVar(fmt.Sprintf("v%d", i))
		g[i] = expr.Sin(vars[i])
		point[i] = float64(i) * 0.01
	}
	p := &Problem{Vars: vars, G: g, F: expr.Const(0)}

	_, serial, err := p.Evaluate(point)
	require.NoError(t, err)
	parallel, err := p.EvaluateConstraints(point, 4)
	require.NoError(t, err)
	assert.Equal(t, serial, parallel)
}

func TestParallelForCoversRange(t *testing.T) {
	hits := make([]int, 1000)
	ParallelFor(len(hits), 10, 4, func(start, end int) {
		for i := start; i < end; i++ {
			hits[i]++
		}
	})
	for i, h := range hits {
		if h != 1 {
			t.Fatalf("index %d visited %d times", i, h)
		}
	}
}
