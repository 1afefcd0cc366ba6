package fusion

// Mat4 is a fixed 4x4 matrix, used for the constant-velocity track
// covariance and transition/process-noise matrices. Spec design note 9
// calls for exactly this: small fixed-size arrays, no general matrix
// library.
type Mat4 [4][4]float64

// Vec4 is the 4-state track vector (x, y, vx, vy).
type Vec4 [4]float64

func (a Mat4) Mul(b Mat4) Mat4 {
	var out Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			sum := 0.0
			for k := 0; k < 4; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

func (a Mat4) Add(b Mat4) Mat4 {
	var out Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

func (a Mat4) Transpose() Mat4 {
	var out Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[j][i] = a[i][j]
		}
	}
	return out
}

func (a Mat4) MulVec(v Vec4) Vec4 {
	var out Vec4
	for i := 0; i < 4; i++ {
		sum := 0.0
		for j := 0; j < 4; j++ {
			sum += a[i][j] * v[j]
		}
		out[i] = sum
	}
	return out
}

func identity4() Mat4 {
	var m Mat4
	for i := 0; i < 4; i++ {
		m[i][i] = 1
	}
	return m
}

// Mat2 is a fixed 2x2 matrix for the measurement-space covariance and its
// inverse.
type Mat2 [2][2]float64

func (a Mat2) Add(b Mat2) Mat2 {
	return Mat2{
		{a[0][0] + b[0][0], a[0][1] + b[0][1]},
		{a[1][0] + b[1][0], a[1][1] + b[1][1]},
	}
}

// Inverse returns the inverse of a 2x2 matrix. The Kalman innovation
// covariance HP'Hᵀ+R is always symmetric positive semi-definite with a
// strictly positive diagonal (R's diagonal is a measurement variance), so
// the determinant is never exactly zero in practice.
func (a Mat2) Inverse() Mat2 {
	det := a[0][0]*a[1][1] - a[0][1]*a[1][0]
	if det == 0 {
		det = 1e-12
	}
	inv := 1.0 / det
	return Mat2{
		{a[1][1] * inv, -a[0][1] * inv},
		{-a[1][0] * inv, a[0][0] * inv},
	}
}

// Mat4x2 and Mat2x4 represent the non-square products that appear in the
// Kalman gain computation (P'Hᵀ is 4x2, H is 2x4).
type Mat4x2 [4][2]float64
type Mat2x4 [2][4]float64

func mulMat4Mat4x2(a Mat4, b Mat4x2) Mat4x2 {
	var out Mat4x2
	for i := 0; i < 4; i++ {
		for j := 0; j < 2; j++ {
			sum := 0.0
			for k := 0; k < 4; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

func mulMat2x4Mat4x2(a Mat2x4, b Mat4x2) Mat2 {
	var out Mat2
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			sum := 0.0
			for k := 0; k < 4; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

func mulMat4x2Mat2(a Mat4x2, b Mat2) Mat4x2 {
	var out Mat4x2
	for i := 0; i < 4; i++ {
		for j := 0; j < 2; j++ {
			sum := 0.0
			for k := 0; k < 2; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

func mulMat4x2Vec2(a Mat4x2, v [2]float64) Vec4 {
	var out Vec4
	for i := 0; i < 4; i++ {
		out[i] = a[i][0]*v[0] + a[i][1]*v[1]
	}
	return out
}

func mulMat4x2Mat2x4(a Mat4x2, b Mat2x4) Mat4 {
	var out Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			sum := 0.0
			for k := 0; k < 2; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// H is the fixed measurement model: observe position only.
var H = Mat2x4{
	{1, 0, 0, 0},
	{0, 1, 0, 0},
}

func transposeH() Mat4x2 {
	return Mat4x2{
		{1, 0},
		{0, 1},
		{0, 0},
		{0, 0},
	}
}
