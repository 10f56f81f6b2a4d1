package dynamo

import "math"

// VariableKind distinguishes decision variables.
type VariableKind int

const (
	States VariableKind = iota
	Controls
)

func (k VariableKind) String() string {
	if k == Controls {
		return "controls"
	}
	return "states"
}

// Bounds pairs lower and upper limits element-wise.
type Bounds struct {
	Min []float64
	Max []float64
}

// Unbounded returns n elements in (-inf, +inf).
func Unbounded(n int) Bounds {
	b := Bounds{Min: make([]float64, n), Max: make([]float64, n)}
	for i := 0; i < n; i++ {
		b.Min[i] = math.Inf(-1)
		b.Max[i] = math.Inf(1)
	}
	return b
}

// Fixed returns n elements bounded to exactly v.
func Fixed(n int, v float64) Bounds {
	b := Bounds{Min: make([]float64, n), Max: make([]float64, n)}
	for i := 0; i < n; i++ {
		b.Min[i] = v
		b.Max[i] = v
	}
	return b
}

func (b Bounds) Len() int { return len(b.Min) }

// Valid reports matching lengths and Min <= Max everywhere.
func (b Bounds) Valid() bool {
	if len(b.Min) != len(b.Max) {
		return false
	}
	for i := range b.Min {
		if math.IsNaN(b.Min[i]) || math.IsNaN(b.Max[i]) || b.Min[i] > b.Max[i] {
			return false
		}
	}
	return true
}
