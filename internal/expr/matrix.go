package expr

// Mat3 is a 3x3 matrix of expressions, row-major.
type Mat3 [3][3]Expr

func Identity3() Mat3 {
	var m Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == j {
				m[i][j] = Const(1)
			} else {
				m[i][j] = Const(0)
			}
		}
	}
	return m
}

// RotZ is the rotation of angle theta about the z axis.
func RotZ(theta Expr) Mat3 {
	c, s := Cos(theta), Sin(theta)
	return Mat3{
		{c, Neg(s), Const(0)},
		{s, c, Const(0)},
		{Const(0), Const(0), Const(1)},
	}
}

// RotY is the rotation of angle theta about the y axis.
func RotY(theta Expr) Mat3 {
	c, s := Cos(theta), Sin(theta)
	return Mat3{
		{c, Const(0), s},
		{Const(0), Const(1), Const(0)},
		{Neg(s), Const(0), c},
	}
}

// RotX is the rotation of angle theta about the x axis.
func RotX(theta Expr) Mat3 {
	c, s := Cos(theta), Sin(theta)
	return Mat3{
		{Const(1), Const(0), Const(0)},
		{Const(0), c, Neg(s)},
		{Const(0), s, c},
	}
}

func (m Mat3) Transpose() Mat3 {
	var t Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

func (m Mat3) Mul(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = Sum(Mul(m[i][0], o[0][j]), Mul(m[i][1], o[1][j]), Mul(m[i][2], o[2][j]))
		}
	}
	return r
}

// MulVec multiplies m by a 3-vector.
func (m Mat3) MulVec(v Vector) Vector {
	if len(v) != 3 {
		panic("expr: MulVec needs a 3-vector")
	}
	out := make(Vector, 3)
	for i := 0; i < 3; i++ {
		out[i] = Sum(Mul(m[i][0], v[0]), Mul(m[i][1], v[1]), Mul(m[i][2], v[2]))
	}
	return out
}

// EulerZYX decomposes m = Rz(a)·Ry(b)·Rx(c) into [a, b, c].
func (m Mat3) EulerZYX() Vector {
	return Vector{
		Atan2(m[1][0], m[0][0]),
		Asin(Neg(m[2][0])),
		Atan2(m[2][1], m[2][2]),
	}
}
