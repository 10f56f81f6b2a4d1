package expr

import "github.com/pkg/errors"

type substCtx struct {
	bind  map[string]Expr
	cache map[Expr]Expr
}

func (s *substCtx) apply(e Expr) Expr {
	return e.subst(s)
}

func (s *substCtx) memo(key Expr, build func() Expr) Expr {
	if r, ok := s.cache[key]; ok {
		return r
	}
	r := build()
	s.cache[key] = r
	return r
}

// Substitute replaces the named symbols in every element of v.
func Substitute(v Vector, bind map[string]Expr) Vector {
	s := &substCtx{bind: bind, cache: make(map[Expr]Expr)}
	out := make(Vector, len(v))
	for i, e := range v {
		out[i] = s.apply(e)
	}
	return out
}

// Function is a reusable mapping from symbolic inputs to an output vector.
type Function struct {
	name    string
	inputs  [][]*Var
	outputs Vector
}

// NewFunction captures outputs as a function of the symbols in inputs.
func NewFunction(name string, inputs []Vector, outputs Vector) (*Function, error) {
	f := &Function{name: name, inputs: make([][]*Var, len(inputs)), outputs: outputs.Clone()}
	seen := make(map[string]struct{})
	for i, in := range inputs {
		vars, err := in.Vars()
		if err != nil {
			return nil, errors.Wrapf(err, "function %s input %d", name, i)
		}
		for _, v := range vars {
			if _, dup := seen[v.Name()]; dup {
				return nil, errors.Errorf("function %s: symbol %q appears twice in inputs", name, v.Name())
			}
			seen[v.Name()] = struct{}{}
		}
		f.inputs[i] = vars
	}
	return f, nil
}

func (f *Function) Name() string        { return f.name }
func (f *Function) NumInputs() int      { return len(f.inputs) }
func (f *Function) InputSize(i int) int { return len(f.inputs[i]) }
func (f *Function) OutputSize() int     { return len(f.outputs) }

// Call applies the function to args, one vector per declared input.
func (f *Function) Call(args ...Vector) (Vector, error) {
	if len(args) != len(f.inputs) {
		return nil, errors.Wrapf(ErrArity, "function %s expects %d inputs, got %d", f.name, len(f.inputs), len(args))
	}
	bind := make(map[string]Expr)
	for i, arg := range args {
		if len(arg) != len(f.inputs[i]) {
			return nil, errors.Wrapf(ErrArity, "function %s input %d expects size %d, got %d",
				f.name, i, len(f.inputs[i]), len(arg))
		}
		for j, v := range f.inputs[i] {
			bind[v.Name()] = arg[j]
		}
	}
	return Substitute(f.outputs, bind), nil
}
