package experiment

import (
	"sort"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/san-kum/dynopt/internal/biomech"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/fatigue"
	"github.com/san-kum/dynopt/internal/integrators"
	"github.com/san-kum/dynopt/internal/physics"
)

// Registry resolves the names used in config files.
type Registry struct {
	models      map[string]func() biomech.Model
	integrators map[string]func() integrators.Integrator
	fatigue     map[string]func() fatigue.Model
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]func() biomech.Model),
		integrators: make(map[string]func() integrators.Integrator),
		fatigue:     make(map[string]func() fatigue.Model),
	}

	r.models["pendulum"] = func() biomech.Model { return physics.NewPendulum() }
	r.models["double_pendulum"] = func() biomech.Model { return physics.NewDoublePendulum() }
	r.models["cartpole"] = func() biomech.Model { return physics.NewCartPole() }

	r.integrators["euler"] = func() integrators.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() integrators.Integrator { return integrators.NewRK4() }

	r.fatigue["xia"] = func() fatigue.Model { return &fatigue.Xia{} }
	r.fatigue["effort"] = func() fatigue.Model { return &fatigue.Effort{} }

	return r
}

// GetModel builds the named model and applies params to it.
func (r *Registry) GetModel(name string, params map[string]float64) (biomech.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, dynamo.Errorf("model", name, dynamo.ErrInvalidParameter, "unknown model")
	}
	m := fn()
	if len(params) == 0 {
		return m, nil
	}
	c, ok := m.(physics.Configurable)
	if !ok {
		return nil, dynamo.Errorf("model", name, dynamo.ErrInvalidParameter, "model takes no parameters")
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.SetParam(k, params[k]); err != nil {
			return nil, errors.Wrapf(err, "model %s", name)
		}
	}
	return m, nil
}

func (r *Registry) GetIntegrator(name string) (integrators.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, dynamo.Errorf("integrator", name, dynamo.ErrInvalidParameter, "unknown integrator")
	}
	return fn(), nil
}

// GetFatigue builds the named fatigue model with its parameters decoded
// from params. Unknown keys are rejected.
func (r *Registry) GetFatigue(name string, params map[string]any) (fatigue.Model, error) {
	fn, ok := r.fatigue[name]
	if !ok {
		return nil, dynamo.Errorf("fatigue model", name, dynamo.ErrIncompatibleModel, "unknown model")
	}
	m := fn()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{ErrorUnused: true, Result: m})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(params); err != nil {
		return nil, dynamo.Errorf("fatigue model", name, dynamo.ErrInvalidParameter, "%v", err)
	}
	if v, ok := m.(fatigue.Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, errors.Wrapf(err, "fatigue model %s", name)
		}
	}
	return m, nil
}

func (r *Registry) ListModels() []string        { return sorted(r.models) }
func (r *Registry) ListIntegrators() []string   { return sorted(r.integrators) }
func (r *Registry) ListFatigueModels() []string { return sorted(r.fatigue) }

func sorted[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
