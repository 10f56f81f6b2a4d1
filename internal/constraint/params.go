package constraint

import (
	"reflect"
	"slices"

	"github.com/mitchellh/mapstructure"

	"github.com/san-kum/dynopt/internal/dynamo"
)

type markersParams struct {
	FirstMarker  int `mapstructure:"first_marker"`
	SecondMarker int `mapstructure:"second_marker"`
}

type alignParams struct {
	Segment int `mapstructure:"segment"`
	RT      int `mapstructure:"rt"`
}

type projectionParams struct {
	Marker  int   `mapstructure:"marker"`
	Segment int   `mapstructure:"segment"`
	Axes    []int `mapstructure:"axes"`
}

type trackParams struct {
	DataToTrack [][]float64 `mapstructure:"data_to_track"`
	StatesIdx   []int       `mapstructure:"states_idx"`
}

type proportionalParams struct {
	FirstDof  int `mapstructure:"first_dof"`
	SecondDof int `mapstructure:"second_dof"`
	Coef      any `mapstructure:"coef"`
}

type contactParams struct {
	Idx      int     `mapstructure:"idx"`
	Boundary float64 `mapstructure:"boundary"`
}

type nonSlippingParams struct {
	Normal     []int   `mapstructure:"normal_component_idx"`
	Tangential []int   `mapstructure:"tangential_component_idx"`
	Mu         float64 `mapstructure:"static_friction_coefficient"`
}

// decode fills out from params. Unknown keys and missing required keys are
// errors.
func decode(subject string, params map[string]any, out any, required ...string) error {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  scalarToSlice,
		ErrorUnused: true,
		Metadata:    &md,
		Result:      out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return dynamo.Errorf(subject, nil, dynamo.ErrInvalidParameter, "%v", err)
	}
	for _, key := range required {
		if !slices.Contains(md.Keys, key) {
			return dynamo.Errorf(subject, nil, dynamo.ErrInvalidParameter, "missing parameter %q", key)
		}
	}
	return nil
}

// scalarToSlice lets a single index stand for a one-element list.
func scalarToSlice(from, to reflect.Type, data any) (any, error) {
	if to.Kind() == reflect.Slice && from.Kind() != reflect.Slice && from.Kind() != reflect.Array {
		return []any{data}, nil
	}
	return data, nil
}

// coefficient accepts Go's integer and floating point kinds only.
func coefficient(v any) (float64, bool) {
	switch c := v.(type) {
	case int:
		return float64(c), true
	case int8:
		return float64(c), true
	case int16:
		return float64(c), true
	case int32:
		return float64(c), true
	case int64:
		return float64(c), true
	case uint:
		return float64(c), true
	case uint8:
		return float64(c), true
	case uint16:
		return float64(c), true
	case uint32:
		return float64(c), true
	case uint64:
		return float64(c), true
	case float32:
		return float64(c), true
	case float64:
		return c, true
	}
	return 0, false
}
