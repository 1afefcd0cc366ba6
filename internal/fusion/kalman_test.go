package fusion

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestKalmanPredictConstantVelocity(t *testing.T) {
	state := Vec4{0, 0, 1, 2} // moving at (1, 2) m/s
	cov := Mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}

	newState, newCov := kalmanPredict(state, cov, 2.0)

	if !almostEqual(newState[0], 2) || !almostEqual(newState[1], 4) {
		t.Errorf("predicted position = (%v, %v), want (2, 4)", newState[0], newState[1])
	}
	if !almostEqual(newState[2], 1) || !almostEqual(newState[3], 2) {
		t.Errorf("predicted velocity = (%v, %v), want (1, 2) (unchanged)", newState[2], newState[3])
	}
	// Process noise only grows the covariance.
	if newCov[0][0] < cov[0][0] {
		t.Errorf("predicted position variance shrank: %v < %v", newCov[0][0], cov[0][0])
	}
}

func TestKalmanPredictZeroDtIsIdentity(t *testing.T) {
	state := Vec4{3, 4, 1, -1}
	cov := Mat4{{2, 0, 0, 0}, {0, 2, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}

	newState, newCov := kalmanPredict(state, cov, 0)

	if newState != state {
		t.Errorf("kalmanPredict(dt=0) state = %v, want unchanged %v", newState, state)
	}
	if newCov != cov {
		t.Errorf("kalmanPredict(dt=0) cov = %v, want unchanged %v (zero process noise)", newCov, cov)
	}
}

func TestKalmanUpdateMovesTowardMeasurement(t *testing.T) {
	state := Vec4{0, 0, 0, 0}
	cov := Mat4{{4, 0, 0, 0}, {0, 4, 0, 0}, {0, 0, 4, 0}, {0, 0, 0, 4}}

	newState, newCov := kalmanUpdate(state, cov, [2]float64{10, 10}, 1, 1)

	if newState[0] <= 0 || newState[0] >= 10 {
		t.Errorf("updated x = %v, want strictly between prior (0) and measurement (10)", newState[0])
	}
	if newState[1] <= 0 || newState[1] >= 10 {
		t.Errorf("updated y = %v, want strictly between prior (0) and measurement (10)", newState[1])
	}
	// A measurement update always shrinks the observed-state uncertainty.
	if newCov[0][0] >= cov[0][0] {
		t.Errorf("position variance did not shrink after update: %v >= %v", newCov[0][0], cov[0][0])
	}
}

func TestKalmanUpdateTrustsConfidentMeasurementMore(t *testing.T) {
	state := Vec4{0, 0, 0, 0}
	cov := Mat4{{4, 0, 0, 0}, {0, 4, 0, 0}, {0, 0, 4, 0}, {0, 0, 0, 4}}

	tightState, _ := kalmanUpdate(state, cov, [2]float64{10, 10}, 0.1, 0.1)
	looseState, _ := kalmanUpdate(state, cov, [2]float64{10, 10}, 5, 5)

	if tightState[0] <= looseState[0] {
		t.Errorf("a tighter measurement sigma should pull the estimate closer to 10: tight=%v loose=%v", tightState[0], looseState[0])
	}
}

func TestPositionUncertainty(t *testing.T) {
	cov := Mat4{{4, 0, 0, 0}, {0, 9, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
	sx, sy := positionUncertainty(cov)
	if !almostEqual(sx, 2) || !almostEqual(sy, 3) {
		t.Errorf("positionUncertainty() = (%v, %v), want (2, 3)", sx, sy)
	}
}
