package expr

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

var (
	// ErrUnbound indicates a variable without a value in the evaluation env.
	ErrUnbound = errors.New("expr: unbound variable")

	// ErrArity indicates a function called with the wrong number or size of arguments.
	ErrArity = errors.New("expr: argument count or size mismatch")

	// ErrNotSymbol indicates a vector element used as a symbol that is not a *Var.
	ErrNotSymbol = errors.New("expr: not a symbol")
)

// Env binds variable names to numeric values.
type Env map[string]float64

type Expr interface {
	String() string
	eval(c *evalCtx) (float64, error)
	subst(s *substCtx) Expr
}

type evalCtx struct {
	env   Env
	cache map[Expr]float64
}

func newEvalCtx(env Env) *evalCtx {
	return &evalCtx{env: env, cache: make(map[Expr]float64)}
}

func (c *evalCtx) value(e Expr) (float64, error) {
	if v, ok := c.cache[e]; ok {
		return v, nil
	}
	v, err := e.eval(c)
	if err != nil {
		return 0, err
	}
	c.cache[e] = v
	return v, nil
}

// Eval computes the numeric value of e under env.
func Eval(e Expr, env Env) (float64, error) {
	return newEvalCtx(env).value(e)
}

// Const is a numeric literal.
type Const float64

func (c Const) String() string {
	return strconv.FormatFloat(float64(c), 'g', -1, 64)
}

func (c Const) eval(*evalCtx) (float64, error) { return float64(c), nil }
func (c Const) subst(*substCtx) Expr           { return c }

// Var is a named scalar symbol.
type Var struct {
	name string
}

// NewVar returns a fresh symbol. Two symbols sharing a name read the same
// env entry.
func NewVar(name string) *Var {
	return &Var{name: name}
}

func (v *Var) Name() string   { return v.name }
func (v *Var) String() string { return v.name }

func (v *Var) eval(c *evalCtx) (float64, error) {
	val, ok := c.env[v.name]
	if !ok {
		return 0, errors.Wrapf(ErrUnbound, "%q", v.name)
	}
	return val, nil
}

func (v *Var) subst(s *substCtx) Expr {
	if r, ok := s.bind[v.name]; ok {
		return r
	}
	return v
}

type unaryOp int

const (
	opNeg unaryOp = iota
	opSin
	opCos
	opAsin
	opAbs
	opSqrt
)

var unaryNames = [...]string{"-", "sin", "cos", "asin", "fabs", "sqrt"}

type unary struct {
	op unaryOp
	x  Expr
}

func (u *unary) String() string {
	if u.op == opNeg {
		return "(-" + u.x.String() + ")"
	}
	return unaryNames[u.op] + "(" + u.x.String() + ")"
}

func (u *unary) eval(c *evalCtx) (float64, error) {
	x, err := c.value(u.x)
	if err != nil {
		return 0, err
	}
	return applyUnary(u.op, x), nil
}

func (u *unary) subst(s *substCtx) Expr {
	return s.memo(u, func() Expr { return newUnary(u.op, s.apply(u.x)) })
}

func applyUnary(op unaryOp, x float64) float64 {
	switch op {
	case opNeg:
		return -x
	case opSin:
		return math.Sin(x)
	case opCos:
		return math.Cos(x)
	case opAsin:
		return math.Asin(x)
	case opAbs:
		return math.Abs(x)
	case opSqrt:
		return math.Sqrt(x)
	}
	panic(fmt.Sprintf("expr: unknown unary op %d", op))
}

type binaryOp int

const (
	opAdd binaryOp = iota
	opSub
	opMul
	opDiv
	opAtan2
	opMax
	opMin
	opLt
	opGt
)

var binaryNames = [...]string{"+", "-", "*", "/", "atan2", "fmax", "fmin", "<", ">"}

type binary struct {
	op   binaryOp
	a, b Expr
}

func (b *binary) String() string {
	switch b.op {
	case opAtan2, opMax, opMin:
		return binaryNames[b.op] + "(" + b.a.String() + ", " + b.b.String() + ")"
	}
	return "(" + b.a.String() + binaryNames[b.op] + b.b.String() + ")"
}

func (b *binary) eval(c *evalCtx) (float64, error) {
	x, err := c.value(b.a)
	if err != nil {
		return 0, err
	}
	y, err := c.value(b.b)
	if err != nil {
		return 0, err
	}
	return applyBinary(b.op, x, y), nil
}

func (b *binary) subst(s *substCtx) Expr {
	return s.memo(b, func() Expr { return newBinary(b.op, s.apply(b.a), s.apply(b.b)) })
}

func applyBinary(op binaryOp, x, y float64) float64 {
	switch op {
	case opAdd:
		return x + y
	case opSub:
		return x - y
	case opMul:
		return x * y
	case opDiv:
		return x / y
	case opAtan2:
		return math.Atan2(x, y)
	case opMax:
		return math.Max(x, y)
	case opMin:
		return math.Min(x, y)
	case opLt:
		return boolValue(x < y)
	case opGt:
		return boolValue(x > y)
	}
	panic(fmt.Sprintf("expr: unknown binary op %d", op))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type ifElse struct {
	cond, then, other Expr
}

func (n *ifElse) String() string {
	return "if_else(" + n.cond.String() + ", " + n.then.String() + ", " + n.other.String() + ")"
}

// Only the selected branch is evaluated.
func (n *ifElse) eval(c *evalCtx) (float64, error) {
	cond, err := c.value(n.cond)
	if err != nil {
		return 0, err
	}
	if cond != 0 {
		return c.value(n.then)
	}
	return c.value(n.other)
}

func (n *ifElse) subst(s *substCtx) Expr {
	return s.memo(n, func() Expr {
		return IfElse(s.apply(n.cond), s.apply(n.then), s.apply(n.other))
	})
}
