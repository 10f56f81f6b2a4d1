package optim

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dynopt/internal/config"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/experiment"
)

func builder(base *config.Config) func(map[string]float64) (*experiment.Experiment, error) {
	reg := experiment.NewRegistry()
	return func(params map[string]float64) (*experiment.Experiment, error) {
		cfg, err := Override(base, params)
		if err != nil {
			return nil, err
		}
		return experiment.New(cfg, reg), nil
	}
}

func TestGridSearchVisitsEveryPoint(t *testing.T) {
	gs := NewGridSearch([]string{"n_shooting", "final_time"}, [][]float64{{4, 2, 8}, {0.5, 1}})
	best, points, err := gs.Search(context.Background(), builder(config.GetPreset("pendulum", "swing_up")), "variables")
	require.NoError(t, err)

	require.Len(t, points, 6)
	assert.Equal(t, map[string]float64{"n_shooting": 4, "final_time": 0.5}, points[0].Params)
	assert.Equal(t, 2.0, best.Params["n_shooting"])
	assert.Equal(t, float64(3*2+2), best.Value)
}

func TestGridSearchKeepsFailedPoints(t *testing.T) {
	gs := NewGridSearch([]string{"n_shooting"}, [][]float64{{1.5, 3}})
	best, points, err := gs.Search(context.Background(), builder(config.DefaultConfig()), "constraints")
	require.NoError(t, err)

	require.Len(t, points, 2)
	assert.True(t, errors.Is(points[0].Err, dynamo.ErrInvalidParameter))
	assert.Equal(t, 3.0, best.Params["n_shooting"])
	assert.Equal(t, 6.0, best.Value)
}

func TestGridSearchUnknownMetric(t *testing.T) {
	gs := NewGridSearch([]string{"steps"}, [][]float64{{1}})
	_, _, err := gs.Search(context.Background(), builder(config.DefaultConfig()), "runtime")
	assert.True(t, errors.Is(err, dynamo.ErrInvalidParameter))
}

func TestGridSearchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gs := NewGridSearch([]string{"steps"}, [][]float64{{1, 2}})
	_, _, err := gs.Search(ctx, builder(config.DefaultConfig()), "variables")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOverrideCopiesAndApplies(t *testing.T) {
	base := config.GetPreset("double_pendulum", "cyclic")
	cfg, err := Override(base, map[string]float64{"model.l1": 2, "steps": 3})
	require.NoError(t, err)

	for _, p := range cfg.Phases {
		assert.Equal(t, 3, p.Steps)
		assert.Equal(t, 2.0, p.ModelParams["l1"])
	}
	assert.Nil(t, base.Phases[0].ModelParams, "base config is left alone")
	assert.Equal(t, 1, base.Phases[0].Steps)

	_, err = Override(base, map[string]float64{"mass": 1})
	assert.True(t, errors.Is(err, dynamo.ErrInvalidParameter))
}
