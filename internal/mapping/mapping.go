// Package mapping converts between a reduced set of degrees of freedom and
// the full set a model expects.
package mapping

import (
	"github.com/pkg/errors"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
)

// Zero marks an output element that has no source and is set to zero.
const Zero = -1

// Mapping picks, for every output element, an input index (or Zero).
// Indices listed in Oppose are negated after picking.
type Mapping struct {
	Index  []int
	Oppose []int
}

func NewMapping(index []int, oppose ...int) Mapping {
	return Mapping{Index: index, Oppose: oppose}
}

// Len is the size of the mapped vector.
func (m Mapping) Len() int { return len(m.Index) }

// Map applies the mapping to v.
func (m Mapping) Map(v expr.Vector) (expr.Vector, error) {
	out := make(expr.Vector, len(m.Index))
	for i, src := range m.Index {
		switch {
		case src == Zero:
			out[i] = expr.Const(0)
		case src < 0 || src >= len(v):
			return nil, errors.Wrapf(dynamo.ErrIndexOutOfRange, "mapping index %d for vector of size %d", src, len(v))
		default:
			out[i] = v[src]
		}
	}
	for _, i := range m.Oppose {
		if i < 0 || i >= len(out) {
			return nil, errors.Wrapf(dynamo.ErrIndexOutOfRange, "oppose index %d for mapping of size %d", i, len(out))
		}
		out[i] = expr.Neg(out[i])
	}
	return out, nil
}

// MapValues applies the mapping to numeric values.
func (m Mapping) MapValues(v []float64) ([]float64, error) {
	mapped, err := m.Map(expr.Consts(v))
	if err != nil {
		return nil, err
	}
	return mapped.Eval(nil)
}

// BiMapping pairs the full->reduced and reduced->full directions.
type BiMapping struct {
	Reduce Mapping
	Expand Mapping
}

// Identity maps n degrees of freedom onto themselves.
func Identity(n int) *BiMapping {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return &BiMapping{Reduce: NewMapping(idx), Expand: NewMapping(append([]int(nil), idx...))}
}

// New validates that every reduced index round-trips through expand.
func New(reduce, expand Mapping) (*BiMapping, error) {
	for r, full := range reduce.Index {
		if full < 0 || full >= expand.Len() {
			return nil, errors.Wrapf(dynamo.ErrIndexOutOfRange, "reduce index %d not in full set of size %d", full, expand.Len())
		}
		if expand.Index[full] != r {
			return nil, errors.Wrapf(dynamo.ErrDimensionMismatch, "full dof %d expands from %d, reduce maps it to %d",
				full, expand.Index[full], r)
		}
	}
	return &BiMapping{Reduce: reduce, Expand: expand}, nil
}
