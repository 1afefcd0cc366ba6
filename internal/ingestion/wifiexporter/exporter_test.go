package wifiexporter

import (
	"testing"
	"time"
)

func newAdapterForDrift(initialOffset, tolerance, maxOffset time.Duration, alpha float64) *Adapter {
	return New(Config{
		InitialOffset:  initialOffset,
		DriftTolerance: tolerance,
		MaxOffset:      maxOffset,
		SmoothingAlpha: alpha,
	})
}

func TestNormalizeTimestampWithinToleranceLeavesOffsetUnchanged(t *testing.T) {
	a := newAdapterForDrift(0, 2*time.Second, 10*time.Second, 0.5)
	raw := time.Now()
	rawSeconds := float64(raw.UnixNano()) / 1e9
	fetchTime := raw.Add(500 * time.Millisecond)

	a.normalizeTimestamp(rawSeconds, fetchTime)

	if a.Offset() != 0 {
		t.Errorf("Offset() = %v, want 0 when drift stays within tolerance", a.Offset())
	}
}

func TestNormalizeTimestampBeyondToleranceSmoothsOffset(t *testing.T) {
	a := newAdapterForDrift(0, time.Second, 30*time.Second, 0.5)
	raw := time.Now()
	rawSeconds := float64(raw.UnixNano()) / 1e9
	drift := 10 * time.Second
	fetchTime := raw.Add(drift)

	a.normalizeTimestamp(rawSeconds, fetchTime)

	wantOffset := time.Duration(0.5 * float64(drift))
	gotOffset := a.Offset()
	delta := gotOffset - wantOffset
	if delta < -time.Millisecond || delta > time.Millisecond {
		t.Errorf("Offset() = %v, want ~%v (alpha=0.5 smoothing of %v drift)", gotOffset, wantOffset, drift)
	}
}

func TestNormalizeTimestampCandidateBeyondMaxOffsetIsRejected(t *testing.T) {
	a := newAdapterForDrift(0, time.Second, 2*time.Second, 1.0)
	raw := time.Now()
	rawSeconds := float64(raw.UnixNano()) / 1e9
	fetchTime := raw.Add(time.Hour)

	a.normalizeTimestamp(rawSeconds, fetchTime)

	if a.Offset() != 0 {
		t.Errorf("Offset() = %v, want 0 when the candidate offset exceeds MaxOffset", a.Offset())
	}
}

func TestNormalizeTimestampAppliesExistingOffsetToCorrection(t *testing.T) {
	offset := 3 * time.Second
	a := newAdapterForDrift(offset, time.Minute, time.Minute, 0.5)
	raw := time.Now()
	rawSeconds := float64(raw.UnixNano()) / 1e9
	fetchTime := raw.Add(offset)

	corrected := a.normalizeTimestamp(rawSeconds, fetchTime)

	wantUnix := raw.Add(offset).Unix()
	if corrected.Unix() != wantUnix {
		t.Errorf("normalizeTimestamp() = %v, want raw+offset = %v", corrected, raw.Add(offset))
	}
	if a.Offset() != offset {
		t.Errorf("Offset() = %v, want unchanged %v when drift is within tolerance", a.Offset(), offset)
	}
}

func TestNormalizeTimestampRepeatedFixedSkewConverges(t *testing.T) {
	a := newAdapterForDrift(0, 10*time.Millisecond, 30*time.Second, 0.5)
	raw := time.Now()
	rawSeconds := float64(raw.UnixNano()) / 1e9
	skew := 8 * time.Second

	for i := 0; i < 20; i++ {
		fetchTime := raw.Add(skew)
		a.normalizeTimestamp(rawSeconds, fetchTime)
	}

	gotOffset := a.Offset()
	delta := gotOffset - skew
	if delta < -50*time.Millisecond || delta > 50*time.Millisecond {
		t.Errorf("Offset() after repeated exposure to a fixed %v skew = %v, want convergence close to %v", skew, gotOffset, skew)
	}
}
