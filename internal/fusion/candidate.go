package fusion

import (
	"math"
	"time"

	"github.com/asgard/aegis/internal/calibration"
	"github.com/asgard/aegis/internal/model"
)

// candidate is an unassociated, confidence-weighted position estimate
// built from one or more modality hints on a single tick.
type candidate struct {
	timestamp   time.Time
	position    model.Point2D
	uncertainty model.Point2D
	confidence  float64
}

// hint is one modality's contribution to a candidate before blending.
type hint struct {
	position    model.Point2D
	uncertainty model.Point2D
	confidence  float64
}

const confidenceFloor = 1e-3

// blend performs the confidence-weighted average specified in spec
// section 4.4.1: weight wi = confidencei (denominator floored at 1e-3),
// fused confidence = min(1, mean of constituent confidences).
func blend(hints []hint, ts time.Time) (candidate, bool) {
	if len(hints) == 0 {
		return candidate{}, false
	}
	weightSum := 0.0
	for _, h := range hints {
		weightSum += h.confidence
	}
	if weightSum < confidenceFloor {
		weightSum = confidenceFloor
	}

	var px, py, ux, uy, confSum float64
	for _, h := range hints {
		w := h.confidence
		px += w * h.position.X
		py += w * h.position.Y
		ux += w * h.uncertainty.X
		uy += w * h.uncertainty.Y
		confSum += h.confidence
	}

	fusedConfidence := confSum / float64(len(hints))
	if fusedConfidence > 1 {
		fusedConfidence = 1
	}

	return candidate{
		timestamp:   ts,
		position:    model.Point2D{X: px / weightSum, Y: py / weightSum},
		uncertainty: model.Point2D{X: ux / weightSum, Y: uy / weightSum},
		confidence:  fusedConfidence,
	}, true
}

// wifiHint computes the AP-weighted centroid hint from calibrated
// access-point positions.
func wifiHint(measurements []model.WiFiMeasurement, reg *calibration.Registry) (hint, bool) {
	if len(measurements) == 0 {
		return hint{}, false
	}
	var wx, wy, weightSum, confSum float64
	n := 0
	for _, m := range measurements {
		ap, ok := reg.AccessPoint(m.AccessPointID)
		if !ok {
			continue
		}
		w := math.Max(1.0, 100.0+m.RSSIDBm)
		wx += w * ap.Position.X
		wy += w * ap.Position.Y
		weightSum += w
		confSum += 0.2 + 0.8*clampUnit((m.RSSIDBm+100)/60)
		n++
	}
	if n == 0 || weightSum == 0 {
		return hint{}, false
	}
	return hint{
		position:    model.Point2D{X: wx / weightSum, Y: wy / weightSum},
		uncertainty: model.Point2D{X: 1.5, Y: 1.5},
		confidence:  confSum / float64(n),
	}, true
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// visionHints computes one hint per detection: homography-projected foot
// point when available, else normalized-image-coordinate or raw-world
// fallback.
func visionHints(detections []model.Detection, reg *calibration.Registry, space calibration.SpaceConfig) []hint {
	out := make([]hint, 0, len(detections))
	for _, d := range detections {
		cx := (d.BBox.XMin + d.BBox.XMax) / 2
		footY := d.BBox.YMax

		pos, ok := projectDetection(cx, footY, d.CameraID, reg, space)
		if !ok {
			continue
		}
		out = append(out, hint{
			position:    pos,
			uncertainty: model.Point2D{X: 0.8, Y: 0.8},
			confidence:  d.Confidence,
		})
	}
	return out
}

func projectDetection(cx, footY float64, cameraID string, reg *calibration.Registry, space calibration.SpaceConfig) (model.Point2D, bool) {
	cal, ok := reg.Camera(cameraID)
	if ok && cal.Homography != nil {
		if p, ok := applyHomography(*cal.Homography, cx, footY); ok {
			return p, true
		}
	}
	if cx >= 0 && cx <= 1 && footY >= 0 && footY <= 1 {
		return model.Point2D{X: space.OriginX + cx*space.WidthM, Y: space.OriginY + footY*space.HeightM}, true
	}
	return model.Point2D{X: cx, Y: footY}, true
}

// applyHomography transforms an image-plane point by a 3x3 projective
// transform; a near-zero homogeneous denominator
// is treated as a projection failure.
func applyHomography(h calibration.Homography3x3, x, y float64) (model.Point2D, bool) {
	wx := h[0][0]*x + h[0][1]*y + h[0][2]
	wy := h[1][0]*x + h[1][1]*y + h[1][2]
	w := h[2][0]*x + h[2][1]*y + h[2][2]
	if math.Abs(w) < 1e-6 {
		return model.Point2D{}, false
	}
	return model.Point2D{X: wx / w, Y: wy / w}, true
}

// mmwaveHint selects the highest-confidence measurement and converts
// range/angle to a world position via the sensor's calibrated pose.
func mmwaveHint(measurements []model.MmWaveMeasurement, reg *calibration.Registry) (hint, bool) {
	if len(measurements) == 0 {
		return hint{}, false
	}
	best := measurements[0]
	for _, m := range measurements[1:] {
		if m.Confidence > best.Confidence {
			best = m
		}
	}

	cal, ok := reg.MmWave(best.SensorID)
	if !ok {
		return hint{position: model.Point2D{}, uncertainty: model.Point2D{X: 3.0, Y: 3.0}, confidence: best.Confidence}, false
	}

	if best.RangeM != nil && best.AngleRad != nil {
		rangeAdj := *best.RangeM + cal.RangeBiasM
		theta := *best.AngleRad + cal.AngleBiasRad + cal.RotationRad
		pos := model.Point2D{
			X: cal.Position.X + rangeAdj*math.Cos(theta),
			Y: cal.Position.Y + rangeAdj*math.Sin(theta),
		}
		return hint{
			position:    pos,
			uncertainty: model.Point2D{X: cal.PositionUncertaintyM, Y: cal.PositionUncertaintyM},
			confidence:  best.Confidence,
		}, true
	}

	return hint{
		position:    cal.Position,
		uncertainty: model.Point2D{X: cal.PositionUncertaintyM * 1.5, Y: cal.PositionUncertaintyM * 1.5},
		confidence:  best.Confidence,
	}, true
}

// buildCandidates applies the candidate-set rule: one candidate per
// vision detection (fused with the Wi-Fi/mmWave hints) when vision is
// present, else a single fused candidate from
// Wi-Fi/mmWave, else none.
func buildCandidates(input model.FusionInput, reg *calibration.Registry, space calibration.SpaceConfig, referenceTime time.Time) []candidate {
	wHint, haveWiFi := wifiHint(input.WiFi, reg)
	mHint, haveMmWave := mmwaveHint(input.MmWave, reg)

	if len(input.Vision) > 0 {
		vHints := visionHints(input.Vision, reg, space)
		candidates := make([]candidate, 0, len(vHints))
		for _, vh := range vHints {
			hints := []hint{vh}
			if haveWiFi {
				hints = append(hints, wHint)
			}
			if haveMmWave {
				hints = append(hints, mHint)
			}
			if c, ok := blend(hints, referenceTime); ok {
				candidates = append(candidates, c)
			}
		}
		return candidates
	}

	var hints []hint
	if haveWiFi {
		hints = append(hints, wHint)
	}
	if haveMmWave {
		hints = append(hints, mHint)
	}
	if c, ok := blend(hints, referenceTime); ok {
		return []candidate{c}
	}
	return nil
}
