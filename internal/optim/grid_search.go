// Package optim sweeps program parameters over a grid and ranks the
// resulting problems.
package optim

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/experiment"
	"github.com/san-kum/dynopt/internal/nlp"
)

// Metric scores a built problem; lower is better.
type Metric func(prob *nlp.Problem) (float64, error)

// Metrics are the scores a sweep can rank by.
var Metrics = map[string]Metric{
	"max_violation": func(p *nlp.Problem) (float64, error) {
		_, g, err := p.Evaluate(p.X0)
		if err != nil {
			return 0, err
		}
		return p.MaxViolation(g), nil
	},
	"objective": func(p *nlp.Problem) (float64, error) {
		f, _, err := p.Evaluate(p.X0)
		return f, err
	},
	"constraints": func(p *nlp.Problem) (float64, error) { return float64(p.NumConstraints()), nil },
	"variables":   func(p *nlp.Problem) (float64, error) { return float64(p.NumVars()), nil },
}

// Point is one evaluated grid point. Err is set when the program failed
// to build.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search builds one experiment per grid point and scores it with the named
// metric. It returns the best point and every point visited, in grid order.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (Point, []Point, error) {
	metric, ok := Metrics[metricName]
	if !ok {
		return Point{}, nil, dynamo.Errorf("metric", metricName, dynamo.ErrInvalidParameter, "expected one of %v", MetricNames())
	}
	if len(g.paramNames) != len(g.ranges) {
		return Point{}, nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "%d parameters for %d ranges", len(g.paramNames), len(g.ranges))
	}

	var points []Point
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, metric, &points); err != nil {
		return Point{}, points, err
	}

	best := Point{Value: math.Inf(1)}
	found := false
	for _, p := range points {
		if p.Err == nil && (!found || p.Value < best.Value) {
			best, found = p, true
		}
	}
	if !found {
		return Point{}, points, errors.New("no grid point built")
	}
	return best, points, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	metric Metric,
	points *[]Point,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		*points = append(*points, evaluate(ctx, current, buildExperiment, metric))
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, buildExperiment, metric, points); err != nil {
			return err
		}
	}
	return nil
}

func evaluate(ctx context.Context, params map[string]float64, build func(map[string]float64) (*experiment.Experiment, error), metric Metric) Point {
	p := Point{Params: params}
	exp, err := build(params)
	if err == nil {
		err = exp.Setup()
	}
	var prob *nlp.Problem
	if err == nil {
		prob, err = exp.Run(ctx)
	}
	if err == nil {
		p.Value, err = metric(prob)
	}
	p.Err = err
	return p
}

func MetricNames() []string {
	names := make([]string, 0, len(Metrics))
	for name := range Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
