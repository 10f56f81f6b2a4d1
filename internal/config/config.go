// Package config reads optimal-control programs from YAML.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/dynopt/internal/constraint"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/ocp"
)

const (
	DefaultModel      = "pendulum"
	DefaultIntegrator = "rk4"
	DefaultNShooting  = 30
	DefaultFinalTime  = 1.0
	DefaultSteps      = 1
	DefaultLogLevel   = "info"
)

type Config struct {
	Name     string        `yaml:"name,omitempty"`
	LogLevel string        `yaml:"log_level"`
	Cyclic   bool          `yaml:"cyclic"`
	Phases   []PhaseConfig `yaml:"phases"`
}

type PhaseConfig struct {
	Model       string             `yaml:"model"`
	ModelParams map[string]float64 `yaml:"model_params,omitempty"`
	NShooting   int                `yaml:"n_shooting"`
	FinalTime   float64            `yaml:"final_time"`
	Integrator  string             `yaml:"integrator"`
	Steps       int                `yaml:"steps"`

	QMapping   *MappingConfig `yaml:"q_mapping,omitempty"`
	TauMapping *MappingConfig `yaml:"tau_mapping,omitempty"`

	Fatigue     []FatigueConfig    `yaml:"fatigue,omitempty"`
	Constraints []ConstraintConfig `yaml:"constraints,omitempty"`
	Objectives  []ObjectiveConfig  `yaml:"objectives,omitempty"`

	XBounds *BoundsConfig `yaml:"x_bounds,omitempty"`
	XStart  *BoundsConfig `yaml:"x_start,omitempty"`
	XEnd    *BoundsConfig `yaml:"x_end,omitempty"`
	UBounds *BoundsConfig `yaml:"u_bounds,omitempty"`
	XInit   []float64     `yaml:"x_init,omitempty"`
	UInit   []float64     `yaml:"u_init,omitempty"`
}

// MappingConfig lists, for the reduced and full directions, the source index
// of every element. -1 leaves an element at zero.
type MappingConfig struct {
	Reduce []int `yaml:"reduce"`
	Expand []int `yaml:"expand"`
	Oppose []int `yaml:"oppose,omitempty"`
}

// FatigueConfig registers one tau slot. A single model uses Params, a split
// slot uses Minus and Plus.
type FatigueConfig struct {
	Model         string         `yaml:"model"`
	Slot          *int           `yaml:"slot,omitempty"`
	StateOnly     bool           `yaml:"state_only"`
	SplitControls bool           `yaml:"split_controls,omitempty"`
	Params        map[string]any `yaml:"params,omitempty"`
	Minus         map[string]any `yaml:"minus,omitempty"`
	Plus          map[string]any `yaml:"plus,omitempty"`
}

// Split reports whether the entry declares a minus/plus pair.
func (f FatigueConfig) Split() bool { return f.Minus != nil || f.Plus != nil }

// Index is the slot to register into, -1 to append.
func (f FatigueConfig) Index() int {
	if f.Slot == nil {
		return -1
	}
	return *f.Slot
}

type ConstraintConfig struct {
	Type   string         `yaml:"type"`
	Node   string         `yaml:"node"`
	Params map[string]any `yaml:"params,omitempty"`
}

type ObjectiveConfig struct {
	Kind   string      `yaml:"kind"`
	Weight float64     `yaml:"weight"`
	Index  []int       `yaml:"index,omitempty"`
	Data   [][]float64 `yaml:"data,omitempty"`
}

type BoundsConfig struct {
	Min []float64 `yaml:"min"`
	Max []float64 `yaml:"max"`
}

func (b *BoundsConfig) Bounds() dynamo.Bounds {
	if b == nil {
		return dynamo.Bounds{}
	}
	return dynamo.Bounds{Min: b.Min, Max: b.Max}
}

func (b *BoundsConfig) BoundsPtr() *dynamo.Bounds {
	if b == nil {
		return nil
	}
	out := b.Bounds()
	return &out
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Phases:   []PhaseConfig{DefaultPhase()},
	}
}

func DefaultPhase() PhaseConfig {
	return PhaseConfig{
		Model:      DefaultModel,
		NShooting:  DefaultNShooting,
		FinalTime:  DefaultFinalTime,
		Integrator: DefaultIntegrator,
		Steps:      DefaultSteps,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes data over the defaults and fills unset phase fields.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{LogLevel: DefaultLogLevel}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if len(cfg.Phases) == 0 {
		cfg.Phases = []PhaseConfig{DefaultPhase()}
	}
	for i := range cfg.Phases {
		cfg.Phases[i].fill()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (p *PhaseConfig) fill() {
	d := DefaultPhase()
	if p.Model == "" {
		p.Model = d.Model
	}
	if p.NShooting == 0 {
		p.NShooting = d.NShooting
	}
	if p.FinalTime == 0 {
		p.FinalTime = d.FinalTime
	}
	if p.Integrator == "" {
		p.Integrator = d.Integrator
	}
	if p.Steps == 0 {
		p.Steps = d.Steps
	}
}

// Validate checks what can be checked without a model: names of constraint
// types, nodes and objective kinds, and the shape of fatigue entries.
func (c *Config) Validate() error {
	for i, p := range c.Phases {
		if p.NShooting < 1 || p.FinalTime <= 0 {
			return dynamo.Errorf("phase", i, dynamo.ErrInvalidParameter, "n_shooting and final_time must be positive")
		}
		for _, cc := range p.Constraints {
			if _, err := cc.Descriptor(); err != nil {
				return errors.Wrapf(err, "phase %d", i)
			}
		}
		for _, oc := range p.Objectives {
			if _, err := oc.Objective(); err != nil {
				return errors.Wrapf(err, "phase %d", i)
			}
		}
		for j, f := range p.Fatigue {
			if f.Split() && (f.Minus == nil || f.Plus == nil || f.Params != nil) {
				return dynamo.Errorf("fatigue", j, dynamo.ErrInvalidParameter, "phase %d: a split entry needs minus and plus only", i)
			}
			if !f.Split() && f.SplitControls {
				return dynamo.Errorf("fatigue", j, dynamo.ErrInvalidParameter, "phase %d: split_controls needs minus and plus", i)
			}
		}
	}
	return nil
}

// Descriptor turns the entry into a constraint descriptor. Custom
// constraints carry a function and cannot come from a file.
func (c ConstraintConfig) Descriptor() (*constraint.Descriptor, error) {
	t, err := constraint.ParseType(c.Type)
	if err != nil {
		return nil, err
	}
	if t == constraint.Custom {
		return nil, dynamo.Errorf("constraint", c.Type, dynamo.ErrInvalidParameter, "custom constraints are declared in code")
	}
	node := c.Node
	if strings.TrimSpace(node) == "" {
		node = "all"
	}
	n, err := constraint.ParseNode(node)
	if err != nil {
		return nil, err
	}
	params := make(map[string]any, len(c.Params))
	for k, v := range c.Params {
		params[k] = v
	}
	return &constraint.Descriptor{Type: t, Node: n, Params: params}, nil
}

func (o ObjectiveConfig) Objective() (ocp.Objective, error) {
	kind, err := ocp.ParseObjectiveKind(o.Kind)
	if err != nil {
		return ocp.Objective{}, err
	}
	w := o.Weight
	if w == 0 {
		w = 1
	}
	return ocp.Objective{Kind: kind, Weight: w, Index: o.Index, Data: o.Data}, nil
}
