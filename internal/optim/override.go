package optim

import (
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/dynopt/internal/config"
	"github.com/san-kum/dynopt/internal/dynamo"
)

// Override returns a copy of base with params applied to every phase.
// Keys are n_shooting, final_time, steps or model.<param>.
func Override(base *config.Config, params map[string]float64) (*config.Config, error) {
	data, err := yaml.Marshal(base)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return nil, err
	}
	for key, v := range params {
		for i := range cfg.Phases {
			p := &cfg.Phases[i]
			switch {
			case key == "n_shooting":
				if v != math.Trunc(v) {
					return nil, dynamo.Errorf(key, v, dynamo.ErrInvalidParameter, "must be an integer")
				}
				p.NShooting = int(v)
			case key == "steps":
				if v != math.Trunc(v) {
					return nil, dynamo.Errorf(key, v, dynamo.ErrInvalidParameter, "must be an integer")
				}
				p.Steps = int(v)
			case key == "final_time":
				p.FinalTime = v
			case strings.HasPrefix(key, "model."):
				if p.ModelParams == nil {
					p.ModelParams = make(map[string]float64)
				}
				p.ModelParams[strings.TrimPrefix(key, "model.")] = v
			default:
				return nil, dynamo.Errorf("sweep parameter", key, dynamo.ErrInvalidParameter, "expected n_shooting, final_time, steps or model.<param>")
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
