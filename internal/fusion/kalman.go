package fusion

import "math"

// processNoiseQ is the discretized constant-velocity process noise
// matrix, with q fixed at 0.5.
const processNoiseQCoefficient = 0.5

func transitionF(dt float64) Mat4 {
	return Mat4{
		{1, 0, dt, 0},
		{0, 1, 0, dt},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

func processNoiseQ(dt float64) Mat4 {
	q := processNoiseQCoefficient
	dt2 := dt * dt
	dt3 := dt2 * dt
	dt4 := dt3 * dt
	var m Mat4
	m[0][0] = q * dt4 / 4
	m[1][1] = q * dt4 / 4
	m[0][2] = q * dt3 / 2
	m[2][0] = q * dt3 / 2
	m[1][3] = q * dt3 / 2
	m[3][1] = q * dt3 / 2
	m[2][2] = q * dt2
	m[3][3] = q * dt2
	return m
}

// kalmanPredict advances state and covariance by dt under the
// constant-velocity model.
func kalmanPredict(state Vec4, cov Mat4, dt float64) (Vec4, Mat4) {
	f := transitionF(dt)
	newState := f.MulVec(state)
	newCov := f.Mul(cov).Mul(f.Transpose()).Add(processNoiseQ(dt))
	return newState, newCov
}

// kalmanUpdate applies a position measurement z=(x,y) with diagonal
// measurement noise R=diag(sigmaX^2, sigmaY^2).3's
// standard Kalman gain formulation.
func kalmanUpdate(state Vec4, cov Mat4, z [2]float64, sigmaX, sigmaY float64) (Vec4, Mat4) {
	ht := transposeH()
	pht := mulMat4Mat4x2(cov, ht)
	r := Mat2{{sigmaX * sigmaX, 0}, {0, sigmaY * sigmaY}}
	innovationCov := mulMat2x4Mat4x2(H, pht).Add(r)
	kalmanGain := mulMat4x2Mat2(pht, innovationCov.Inverse())

	hs := [2]float64{state[0], state[1]}
	innovation := [2]float64{z[0] - hs[0], z[1] - hs[1]}

	delta := mulMat4x2Vec2(kalmanGain, innovation)
	var newState Vec4
	for i := 0; i < 4; i++ {
		newState[i] = state[i] + delta[i]
	}

	kh := mulMat4x2Mat2x4(kalmanGain, H)
	ikh := identity4().Add(negate(kh))
	newCov := ikh.Mul(cov)

	return newState, newCov
}

func negate(m Mat4) Mat4 {
	var out Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i][j] = -m[i][j]
		}
	}
	return out
}

// positionUncertainty extracts (sigma_x, sigma_y) = (sqrt(P00), sqrt(P11)).
func positionUncertainty(cov Mat4) (float64, float64) {
	return math.Sqrt(math.Max(cov[0][0], 0)), math.Sqrt(math.Max(cov[1][1], 0))
}
