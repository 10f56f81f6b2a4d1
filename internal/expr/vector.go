package expr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Vector is an ordered column of scalar expressions.
type Vector []Expr

// Syms creates n fresh symbols named prefix_0 .. prefix_{n-1}.
func Syms(prefix string, n int) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = NewVar(fmt.Sprintf("%s_%d", prefix, i))
	}
	return v
}

// Consts lifts a numeric slice into a vector.
func Consts(vals []float64) Vector {
	v := make(Vector, len(vals))
	for i, x := range vals {
		v[i] = Const(x)
	}
	return v
}

// Zeros returns a vector of n zero constants.
func Zeros(n int) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = Const(0)
	}
	return v
}

// Concat stacks vectors vertically.
func Concat(vs ...Vector) Vector {
	n := 0
	for _, v := range vs {
		n += len(v)
	}
	out := make(Vector, 0, n)
	for _, v := range vs {
		out = append(out, v...)
	}
	return out
}

func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) mustMatch(other Vector) {
	if len(v) != len(other) {
		panic(fmt.Sprintf("expr: vector size mismatch %d != %d", len(v), len(other)))
	}
}

func (v Vector) Add(other Vector) Vector {
	v.mustMatch(other)
	out := make(Vector, len(v))
	for i := range v {
		out[i] = Add(v[i], other[i])
	}
	return out
}

func (v Vector) Sub(other Vector) Vector {
	v.mustMatch(other)
	out := make(Vector, len(v))
	for i := range v {
		out[i] = Sub(v[i], other[i])
	}
	return out
}

func (v Vector) Scale(e Expr) Vector {
	out := make(Vector, len(v))
	for i := range v {
		out[i] = Mul(e, v[i])
	}
	return out
}

// Pick returns the elements at the given indices, in order.
func (v Vector) Pick(idx []int) Vector {
	out := make(Vector, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

// Vars returns the vector as symbols, failing if any entry is not a *Var.
func (v Vector) Vars() ([]*Var, error) {
	out := make([]*Var, len(v))
	for i, e := range v {
		sym, ok := e.(*Var)
		if !ok {
			return nil, errors.Wrapf(ErrNotSymbol, "element %d is %s", i, e)
		}
		out[i] = sym
	}
	return out, nil
}

// Eval evaluates every element with a shared cache.
func (v Vector) Eval(env Env) ([]float64, error) {
	c := newEvalCtx(env)
	out := make([]float64, len(v))
	for i, e := range v {
		val, err := c.value(e)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

func (v Vector) String() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
