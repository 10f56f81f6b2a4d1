package config

import "sort"

func slot(i int) *int { return &i }

func xia(scaling float64) map[string]any {
	return map[string]any{"ld": 10.0, "lr": 10.0, "f": 0.01, "r": 0.002, "scaling": scaling}
}

// hold is a one-column reference of n rows, all equal to v.
func hold(n int, v float64) []any {
	rows := make([]any, n)
	for i := range rows {
		rows[i] = []any{v}
	}
	return rows
}

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"swing_up": {
			LogLevel: DefaultLogLevel,
			Phases: []PhaseConfig{{
				Model: "pendulum", NShooting: 30, FinalTime: 1.0, Integrator: "rk4", Steps: 1,
				XBounds:    &BoundsConfig{Min: []float64{-1, -31.4}, Max: []float64{3.2, 31.4}},
				XStart:     &BoundsConfig{Min: []float64{0, 0}, Max: []float64{0, 0}},
				XEnd:       &BoundsConfig{Min: []float64{3.14, 0}, Max: []float64{3.14, 0}},
				UBounds:    &BoundsConfig{Min: []float64{-20}, Max: []float64{20}},
				Objectives: []ObjectiveConfig{{Kind: "minimize_control", Weight: 1}},
			}},
		},
		"fatigue": {
			LogLevel: DefaultLogLevel,
			Phases: []PhaseConfig{{
				Model: "pendulum", NShooting: 30, FinalTime: 1.0, Integrator: "rk4", Steps: 2,
				Fatigue: []FatigueConfig{{
					Model: "xia", Slot: slot(0), SplitControls: true,
					Minus: xia(-20), Plus: xia(20),
				}},
				XStart:     &BoundsConfig{Min: []float64{0, 0}, Max: []float64{0, 0}},
				XEnd:       &BoundsConfig{Min: []float64{3.14, 0}, Max: []float64{3.14, 0}},
				Objectives: []ObjectiveConfig{{Kind: "minimize_control", Weight: 1}},
			}},
		},
		"contact": {
			LogLevel: DefaultLogLevel,
			Phases: []PhaseConfig{{
				Model: "pendulum", NShooting: 20, FinalTime: 1.0, Integrator: "rk4", Steps: 1,
				Constraints: []ConstraintConfig{
					{Type: "contact_force_greater_than", Node: "all_shooting", Params: map[string]any{"idx": 1, "boundary": 0.0}},
					{Type: "non_slipping", Node: "all_shooting", Params: map[string]any{
						"normal_component_idx": 1, "tangential_component_idx": 0, "static_friction_coefficient": 0.5,
					}},
				},
				Objectives: []ObjectiveConfig{{Kind: "minimize_control", Weight: 1}},
			}},
		},
	},
	"double_pendulum": {
		"cyclic": {
			LogLevel: DefaultLogLevel,
			Cyclic:   true,
			Phases: []PhaseConfig{
				{
					Model: "double_pendulum", NShooting: 20, FinalTime: 0.5, Integrator: "rk4", Steps: 1,
					Constraints: []ConstraintConfig{
						{Type: "proportional_state", Node: "start", Params: map[string]any{"first_dof": 0, "second_dof": 1, "coef": -1}},
					},
					Objectives: []ObjectiveConfig{{Kind: "minimize_control", Weight: 1}},
				},
				{
					Model: "double_pendulum", NShooting: 20, FinalTime: 0.5, Integrator: "rk4", Steps: 1,
					Objectives: []ObjectiveConfig{{Kind: "minimize_control", Weight: 1}},
				},
			},
		},
		"effort": {
			LogLevel: DefaultLogLevel,
			Phases: []PhaseConfig{{
				Model: "double_pendulum", NShooting: 20, FinalTime: 1.0, Integrator: "rk4", Steps: 1,
				Fatigue: []FatigueConfig{
					{Model: "effort", StateOnly: true, Params: map[string]any{"threshold": 0.2, "factor": 1.0, "scaling": 10.0}},
					{Model: "effort", StateOnly: true, Params: map[string]any{"threshold": 0.2, "factor": 1.0, "scaling": 10.0}},
				},
				Objectives: []ObjectiveConfig{
					{Kind: "minimize_control", Weight: 1},
					{Kind: "minimize_state", Weight: 10, Index: []int{4, 5}},
				},
			}},
		},
	},
	"cartpole": {
		"track": {
			LogLevel: DefaultLogLevel,
			Phases: []PhaseConfig{{
				Model: "cartpole", NShooting: 25, FinalTime: 2.0, Integrator: "euler", Steps: 4,
				XStart: &BoundsConfig{Min: []float64{0, 0.2, 0, 0}, Max: []float64{0, 0.2, 0, 0}},
				Constraints: []ConstraintConfig{
					{Type: "track_state", Node: "end", Params: map[string]any{"states_idx": []any{1}, "data_to_track": hold(26, 0)}},
				},
				Objectives: []ObjectiveConfig{{Kind: "minimize_control", Weight: 1}},
			}},
		},
	},
}

func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
