package nlp

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
)

// Problem is the finished NLP: decision vector with bounds and initial
// guess, constraint residuals with bounds, and a scalar objective.
type Problem struct {
	Vars []*expr.Var
	Lbx  []float64
	Ubx  []float64
	X0   []float64

	G   expr.Vector
	Lbg []float64
	Ubg []float64

	F expr.Expr
}

func (p *Problem) NumVars() int        { return len(p.Vars) }
func (p *Problem) NumConstraints() int { return len(p.G) }

// Env binds v to the decision variables.
func (p *Problem) Env(v []float64) (expr.Env, error) {
	if len(v) != len(p.Vars) {
		return nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "point has %d values for %d variables", len(v), len(p.Vars))
	}
	env := make(expr.Env, len(v))
	for i, sym := range p.Vars {
		env[sym.Name()] = v[i]
	}
	return env, nil
}

// Evaluate returns the objective and residuals at v.
func (p *Problem) Evaluate(v []float64) (float64, []float64, error) {
	env, err := p.Env(v)
	if err != nil {
		return 0, nil, err
	}
	f, err := expr.Eval(p.F, env)
	if err != nil {
		return 0, nil, errors.Wrap(err, "objective")
	}
	g, err := p.G.Eval(env)
	if err != nil {
		return 0, nil, errors.Wrap(err, "constraints")
	}
	return f, g, nil
}

// EvaluateConstraints evaluates g in chunks across workers. The env is only
// read, each chunk keeps its own cache.
func (p *Problem) EvaluateConstraints(v []float64, workers int) ([]float64, error) {
	env, err := p.Env(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(p.G))
	errs := make([]error, len(p.G))
	ParallelFor(len(p.G), 64, workers, func(start, end int) {
		vals, err := p.G[start:end].Eval(env)
		if err != nil {
			errs[start] = err
			return
		}
		copy(out[start:end], vals)
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Violation is the distance of each residual to its bound interval.
func (p *Problem) Violation(g []float64) []float64 {
	out := make([]float64, len(g))
	for i, val := range g {
		switch {
		case val < p.Lbg[i]:
			out[i] = p.Lbg[i] - val
		case val > p.Ubg[i]:
			out[i] = val - p.Ubg[i]
		}
	}
	return out
}

// MaxViolation is the largest entry of Violation(g).
func (p *Problem) MaxViolation(g []float64) float64 {
	worst := 0.0
	for _, v := range p.Violation(g) {
		worst = math.Max(worst, v)
	}
	return worst
}
