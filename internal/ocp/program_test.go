package ocp

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dynopt/internal/constraint"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/fatigue"
	"github.com/san-kum/dynopt/internal/nlp"
	"github.com/san-kum/dynopt/internal/physics"
)

// simulate rolls phase forward from x0 under constant u and returns the
// values of every decision variable of the phase.
func simulate(t *testing.T, phase *nlp.Phase, x0, u []float64) map[string]float64 {
	t.Helper()
	vals := map[string]float64{}
	set := func(v expr.Vector, x []float64) {
		vars, err := v.Vars()
		require.NoError(t, err)
		require.Len(t, x, len(vars))
		for i, s := range vars {
			vals[s.Name()] = x[i]
		}
	}
	x := x0
	for k := 0; k < phase.NShooting; k++ {
		set(phase.X[k], x)
		set(phase.U[k], u)
		next, err := phase.Shooting.Call(expr.Consts(x), expr.Consts(u))
		require.NoError(t, err)
		x, err = next.Eval(nil)
		require.NoError(t, err)
	}
	set(phase.X[phase.NShooting], x)
	return vals
}

func point(prob *nlp.Problem, vals map[string]float64) []float64 {
	v := make([]float64, prob.NumVars())
	for i, s := range prob.Vars {
		v[i] = vals[s.Name()]
	}
	return v
}

func TestBuildSinglePhase(t *testing.T) {
	prog := New([]PhaseConfig{{
		Model:      physics.NewPendulum(),
		NShooting:  5,
		FinalTime:  1,
		Objectives: []Objective{{Kind: MinimizeControl, Weight: 2}},
	}})
	prob, err := prog.Build()
	require.NoError(t, err)

	assert.Equal(t, 6*2+5*1, prob.NumVars())
	assert.Equal(t, 5*2, prob.NumConstraints())
	assert.Len(t, prob.Lbx, prob.NumVars())
	assert.Len(t, prob.Ubx, prob.NumVars())
	assert.Equal(t, make([]float64, prob.NumVars()), prob.X0)
	assert.Equal(t, math.Inf(-1), prob.Lbx[0])

	phase := prog.Phases()[0]
	vals := simulate(t, phase, []float64{0.4, 0}, []float64{0.5})
	f, g, err := prob.Evaluate(point(prob, vals))
	require.NoError(t, err)
	for i, v := range g {
		assert.InDelta(t, 0, v, 1e-12, "row %d", i)
	}
	assert.InDelta(t, 2*0.2*5*0.25, f, 1e-12)
	assert.InDelta(t, 0, prob.MaxViolation(g), 1e-12)
}

func TestProgramBuildsOnce(t *testing.T) {
	prog := New([]PhaseConfig{{Model: physics.NewPendulum(), NShooting: 2, FinalTime: 1}})
	_, err := prog.Build()
	require.NoError(t, err)
	_, err = prog.Build()
	assert.Error(t, err)
}

func TestFatigueStatesGetDefaultBounds(t *testing.T) {
	reg := fatigue.NewRegistry()
	require.NoError(t, reg.Add(fatigue.NewXia(10, 10, 0.01, 0.002, 5), -1, true))
	prog := New([]PhaseConfig{{
		Model:     physics.NewPendulum(),
		NShooting: 3,
		FinalTime: 1,
		Fatigue:   reg,
		XBounds:   dynamo.Bounds{Min: []float64{-1, -10}, Max: []float64{1, 10}},
		XStart:    &dynamo.Bounds{Min: []float64{0, 0}, Max: []float64{0, 0}},
		UBounds:   dynamo.Bounds{Min: []float64{-5}, Max: []float64{5}},
	}})
	prob, err := prog.Build()
	require.NoError(t, err)

	phase := prog.Phases()[0]
	require.Equal(t, 5, phase.NX())
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, prob.Lbx[:5])
	assert.Equal(t, []float64{0, 0, 1, 1, 1}, prob.Ubx[:5])
	assert.Equal(t, []float64{-1, -10, 0, 0, 0}, prob.Lbx[5:10])
	assert.Equal(t, []float64{0, 0, 0, 1, 0}, prob.X0[5:10])

	controls := 4 * 5
	assert.Equal(t, []float64{-5, -5, -5}, prob.Lbx[controls:])
	assert.Equal(t, 3*5, prob.NumConstraints())
}

func TestSplitFatigueControls(t *testing.T) {
	agg, err := fatigue.NewTauSplit(
		fatigue.NewXia(10, 10, 0.01, 0.002, -3),
		fatigue.NewXia(10, 10, 0.01, 0.002, 4),
		false, true)
	require.NoError(t, err)
	reg := fatigue.NewRegistry()
	require.NoError(t, reg.AddAggregator(agg, 0))

	prog := New([]PhaseConfig{{Model: physics.NewPendulum(), NShooting: 2, FinalTime: 1, Fatigue: reg}})
	prob, err := prog.Build()
	require.NoError(t, err)

	phase := prog.Phases()[0]
	assert.Equal(t, []nlp.Block{{Name: "tau_minus", Size: 1}, {Name: "tau_plus", Size: 1}}, phase.Controls.Blocks())
	assert.Equal(t, 8, phase.NX())

	u := 3 * 8
	assert.Equal(t, []float64{-3, 0, -3, 0}, prob.Lbx[u:])
	assert.Equal(t, []float64{0, 4, 0, 4}, prob.Ubx[u:])

	x := expr.Consts([]float64{0, 0, 0.5, 0.5, 0, 0.25, 0.75, 0})
	tau, err := phase.Torque.Call(x, expr.Consts([]float64{-2, 2}))
	require.NoError(t, err)
	got, err := tau.Eval(nil)
	require.NoError(t, err)
	assert.InDelta(t, -3*0.5+4*0.25, got[0], 1e-12, "torque comes from the active units")

	vals := simulate(t, phase, []float64{0, 0, 0, 1, 0, 0, 1, 0}, []float64{-1, 1})
	_, g, err := prob.Evaluate(point(prob, vals))
	require.NoError(t, err)
	assert.InDelta(t, 0, prob.MaxViolation(g), 1e-12)
}

func TestStateOnlyFatigueKeepsCommandedTorque(t *testing.T) {
	reg := fatigue.NewRegistry()
	agg, err := fatigue.NewTauSplit(fatigue.NewXia(1, 1, 1, 1, -3), fatigue.NewXia(1, 1, 1, 1, 4), true, false)
	require.NoError(t, err)
	require.NoError(t, reg.AddAggregator(agg, 0))

	prog := New([]PhaseConfig{{Model: physics.NewPendulum(), NShooting: 2, FinalTime: 1, Fatigue: reg}})
	_, err = prog.Build()
	require.NoError(t, err)

	phase := prog.Phases()[0]
	tau, err := phase.Torque.Call(expr.Consts(make([]float64, phase.NX())), expr.Consts([]float64{1.5}))
	require.NoError(t, err)
	got, err := tau.Eval(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, got)
}

func TestFatigueSlotsMustCoverTorques(t *testing.T) {
	reg := fatigue.NewRegistry()
	require.NoError(t, reg.Add(fatigue.NewXia(1, 1, 1, 1, 1), -1, false))
	prog := New([]PhaseConfig{{Model: physics.NewDoublePendulum(), NShooting: 2, FinalTime: 1, Fatigue: reg}})
	_, err := prog.Build()
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))
}

func TestMultiPhaseCyclic(t *testing.T) {
	cfg := func() PhaseConfig {
		return PhaseConfig{Model: physics.NewPendulum(), NShooting: 3, FinalTime: 0.5}
	}
	prog := New([]PhaseConfig{cfg(), cfg()}, WithCyclic(true))
	prob, err := prog.Build()
	require.NoError(t, err)

	assert.Equal(t, 2*(4*2+3), prob.NumVars())
	assert.Equal(t, 2*3*2+2+1, prob.NumConstraints())

	// phase 1 starts where phase 0 ends
	first := simulate(t, prog.Phases()[0], []float64{0.1, 0}, []float64{0})
	last, err := prog.Phases()[0].X[3].Vars()
	require.NoError(t, err)
	end := []float64{first[last[0].Name()], first[last[1].Name()]}
	second := simulate(t, prog.Phases()[1], end, []float64{0})
	for k, v := range second {
		first[k] = v
	}
	_, g, err := prob.Evaluate(point(prob, first))
	require.NoError(t, err)
	assert.InDeltaSlice(t, make([]float64, len(g)-1), g[:len(g)-1], 1e-12)
}

func TestConstraintsFlowThroughTheEngine(t *testing.T) {
	prog := New([]PhaseConfig{{
		Model:       physics.NewPendulum(),
		NShooting:   2,
		FinalTime:   1,
		Constraints: []*constraint.Descriptor{constraint.NewContactForce(constraint.All, true, 1, 0)},
	}})
	prob, err := prog.Build()
	require.NoError(t, err)
	assert.Equal(t, 2+2*2, prob.NumConstraints())
	assert.Equal(t, []float64{0, 0}, prob.Lbg[:2])
	assert.Equal(t, math.Inf(1), prob.Ubg[0])

	prog = New([]PhaseConfig{{
		Model:       physics.NewPendulum(),
		NShooting:   2,
		FinalTime:   1,
		Constraints: []*constraint.Descriptor{constraint.NewProportionalControl(constraint.End, 0, 0, 1)},
	}})
	_, err = prog.Build()
	assert.True(t, errors.Is(err, dynamo.ErrNoControlAtLastNode))
}

func TestObjectives(t *testing.T) {
	data := [][]float64{{1, 0}, {1, 0}, {1, 0}}
	prog := New([]PhaseConfig{{
		Model:     physics.NewPendulum(),
		NShooting: 2,
		FinalTime: 1,
		Objectives: []Objective{
			{Kind: MinimizeState, Weight: 1, Index: []int{1}},
			{Kind: TrackState, Weight: 10, Data: data},
		},
	}})
	prob, err := prog.Build()
	require.NoError(t, err)

	v := make([]float64, prob.NumVars())
	f, _, err := prob.Evaluate(v)
	require.NoError(t, err)
	// the state is zero: tracking misses by one on q at both shooting nodes
	assert.InDelta(t, 10*0.5*2, f, 1e-12)

	bad := New([]PhaseConfig{{
		Model:      physics.NewPendulum(),
		NShooting:  2,
		FinalTime:  1,
		Objectives: []Objective{{Kind: TrackState, Weight: 1, Data: data[:2]}},
	}})
	_, err = bad.Build()
	assert.True(t, errors.Is(err, dynamo.ErrShapeMismatch))

	kind, err := ParseObjectiveKind("Track_State")
	require.NoError(t, err)
	assert.Equal(t, TrackState, kind)
}

func TestBoundsAreValidated(t *testing.T) {
	prog := New([]PhaseConfig{{
		Model:     physics.NewPendulum(),
		NShooting: 2,
		FinalTime: 1,
		XBounds:   dynamo.Bounds{Min: []float64{0}, Max: []float64{1}},
	}})
	_, err := prog.Build()
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))

	prog = New([]PhaseConfig{{
		Model:     physics.NewPendulum(),
		NShooting: 2,
		FinalTime: 1,
		UInit:     []float64{1, 2},
	}})
	_, err = prog.Build()
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))
}
