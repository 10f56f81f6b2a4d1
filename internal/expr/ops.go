package expr

func isConst(e Expr, v float64) bool {
	c, ok := e.(Const)
	return ok && float64(c) == v
}

func newUnary(op unaryOp, x Expr) Expr {
	if c, ok := x.(Const); ok {
		return Const(applyUnary(op, float64(c)))
	}
	if op == opNeg {
		if inner, ok := x.(*unary); ok && inner.op == opNeg {
			return inner.x
		}
	}
	return &unary{op: op, x: x}
}

func newBinary(op binaryOp, a, b Expr) Expr {
	ca, aConst := a.(Const)
	cb, bConst := b.(Const)
	if aConst && bConst {
		return Const(applyBinary(op, float64(ca), float64(cb)))
	}
	switch op {
	case opAdd:
		if isConst(a, 0) {
			return b
		}
		if isConst(b, 0) {
			return a
		}
	case opSub:
		if isConst(b, 0) {
			return a
		}
		if isConst(a, 0) {
			return newUnary(opNeg, b)
		}
	case opMul:
		if isConst(a, 0) || isConst(b, 0) {
			return Const(0)
		}
		if isConst(a, 1) {
			return b
		}
		if isConst(b, 1) {
			return a
		}
		if isConst(a, -1) {
			return newUnary(opNeg, b)
		}
		if isConst(b, -1) {
			return newUnary(opNeg, a)
		}
	case opDiv:
		if isConst(b, 1) {
			return a
		}
		if isConst(a, 0) {
			return Const(0)
		}
	}
	return &binary{op: op, a: a, b: b}
}

func Add(a, b Expr) Expr   { return newBinary(opAdd, a, b) }
func Sub(a, b Expr) Expr   { return newBinary(opSub, a, b) }
func Mul(a, b Expr) Expr   { return newBinary(opMul, a, b) }
func Div(a, b Expr) Expr   { return newBinary(opDiv, a, b) }
func Atan2(y, x Expr) Expr { return newBinary(opAtan2, y, x) }
func Max(a, b Expr) Expr   { return newBinary(opMax, a, b) }
func Min(a, b Expr) Expr   { return newBinary(opMin, a, b) }

// Lt evaluates to 1 when a < b, 0 otherwise.
func Lt(a, b Expr) Expr { return newBinary(opLt, a, b) }

// Gt evaluates to 1 when a > b, 0 otherwise.
func Gt(a, b Expr) Expr { return newBinary(opGt, a, b) }

func Neg(x Expr) Expr  { return newUnary(opNeg, x) }
func Sin(x Expr) Expr  { return newUnary(opSin, x) }
func Cos(x Expr) Expr  { return newUnary(opCos, x) }
func Asin(x Expr) Expr { return newUnary(opAsin, x) }
func Abs(x Expr) Expr  { return newUnary(opAbs, x) }
func Sqrt(x Expr) Expr { return newUnary(opSqrt, x) }

// Scale multiplies e by a numeric factor.
func Scale(e Expr, k float64) Expr { return Mul(Const(k), e) }

// Square returns e*e.
func Square(e Expr) Expr { return Mul(e, e) }

// IfElse selects then when cond is non-zero, other otherwise.
func IfElse(cond, then, other Expr) Expr {
	if c, ok := cond.(Const); ok {
		if c != 0 {
			return then
		}
		return other
	}
	return &ifElse{cond: cond, then: then, other: other}
}

// Sum adds all terms, returning zero for an empty list.
func Sum(terms ...Expr) Expr {
	var acc Expr = Const(0)
	for _, t := range terms {
		acc = Add(acc, t)
	}
	return acc
}
