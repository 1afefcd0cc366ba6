package syncbuf

import (
	"time"

	"github.com/asgard/aegis/internal/model"
)

// Strategy selects how a group's records are reduced to one aligned
// record per source key.
type Strategy string

const (
	StrategyNearest     Strategy = "nearest"
	StrategyInterpolate Strategy = "interpolate"
)

func alignWiFi(group []model.WiFiMeasurement, referenceTime time.Time, windowSeconds float64, strategy Strategy) (model.WiFiMeasurement, bool) {
	getTime := func(m model.WiFiMeasurement) time.Time { return m.Timestamp }
	if strategy == StrategyInterpolate {
		before, after, hb, ha := bracket(group, referenceTime, getTime)
		if hb && ha && !before.Timestamp.Equal(after.Timestamp) &&
			withinWindow(before.Timestamp, referenceTime, windowSeconds) &&
			withinWindow(after.Timestamp, referenceTime, windowSeconds) {
			frac := lerpFraction(before.Timestamp, after.Timestamp, referenceTime)
			out := before
			out.Timestamp = referenceTime
			out.RSSIDBm = lerp(before.RSSIDBm, after.RSSIDBm, frac)
			out.Metadata = nil
			if len(before.CSI) == len(after.CSI) && len(before.CSI) > 0 {
				csi := make([]float64, len(before.CSI))
				for i := range csi {
					csi[i] = lerp(before.CSI[i], after.CSI[i], frac)
				}
				out.CSI = csi
			} else {
				out.CSI = nil
			}
			return out, true
		}
	}
	return nearestSelect(group, referenceTime, windowSeconds, getTime)
}

func alignVision(group []model.Detection, referenceTime time.Time, windowSeconds float64, strategy Strategy) (model.Detection, bool) {
	getTime := func(d model.Detection) time.Time { return d.Timestamp }
	if strategy == StrategyInterpolate {
		before, after, hb, ha := bracket(group, referenceTime, getTime)
		if hb && ha && !before.Timestamp.Equal(after.Timestamp) &&
			withinWindow(before.Timestamp, referenceTime, windowSeconds) &&
			withinWindow(after.Timestamp, referenceTime, windowSeconds) {
			frac := lerpFraction(before.Timestamp, after.Timestamp, referenceTime)
			out := before
			out.Timestamp = referenceTime
			out.BBox = model.BBox{
				XMin: lerp(before.BBox.XMin, after.BBox.XMin, frac),
				YMin: lerp(before.BBox.YMin, after.BBox.YMin, frac),
				XMax: lerp(before.BBox.XMax, after.BBox.XMax, frac),
				YMax: lerp(before.BBox.YMax, after.BBox.YMax, frac),
			}
			out.Confidence = lerp(before.Confidence, after.Confidence, frac)
			if len(before.Keypoints) == len(after.Keypoints) && len(before.Keypoints) > 0 {
				kps := make([]model.Point2D, len(before.Keypoints))
				for i := range kps {
					kps[i] = model.Point2D{
						X: lerp(before.Keypoints[i].X, after.Keypoints[i].X, frac),
						Y: lerp(before.Keypoints[i].Y, after.Keypoints[i].Y, frac),
					}
				}
				out.Keypoints = kps
			} else {
				out.Keypoints = nil
			}
			return out, true
		}
	}
	return nearestSelect(group, referenceTime, windowSeconds, getTime)
}

func alignMmWave(group []model.MmWaveMeasurement, referenceTime time.Time, windowSeconds float64, strategy Strategy) (model.MmWaveMeasurement, bool) {
	getTime := func(m model.MmWaveMeasurement) time.Time { return m.Timestamp }
	if strategy == StrategyInterpolate {
		before, after, hb, ha := bracket(group, referenceTime, getTime)
		if hb && ha && !before.Timestamp.Equal(after.Timestamp) &&
			withinWindow(before.Timestamp, referenceTime, windowSeconds) &&
			withinWindow(after.Timestamp, referenceTime, windowSeconds) {
			frac := lerpFraction(before.Timestamp, after.Timestamp, referenceTime)
			out := before
			out.Timestamp = referenceTime
			out.Confidence = lerp(before.Confidence, after.Confidence, frac)
			out.Metadata = nil
			if before.RangeM != nil && after.RangeM != nil {
				v := lerp(*before.RangeM, *after.RangeM, frac)
				out.RangeM = &v
			}
			if before.AngleRad != nil && after.AngleRad != nil {
				v := lerp(*before.AngleRad, *after.AngleRad, frac)
				out.AngleRad = &v
			}
			return out, true
		}
	}
	return nearestSelect(group, referenceTime, windowSeconds, getTime)
}

func alignBLE(group []model.BLEMeasurement, referenceTime time.Time, windowSeconds float64, strategy Strategy) (model.BLEMeasurement, bool) {
	getTime := func(m model.BLEMeasurement) time.Time { return m.Timestamp }
	if strategy == StrategyInterpolate {
		before, after, hb, ha := bracket(group, referenceTime, getTime)
		if hb && ha && !before.Timestamp.Equal(after.Timestamp) &&
			withinWindow(before.Timestamp, referenceTime, windowSeconds) &&
			withinWindow(after.Timestamp, referenceTime, windowSeconds) {
			frac := lerpFraction(before.Timestamp, after.Timestamp, referenceTime)
			out := before
			out.Timestamp = referenceTime
			out.RSSIDBm = lerp(before.RSSIDBm, after.RSSIDBm, frac)
			return out, true
		}
	}
	return nearestSelect(group, referenceTime, windowSeconds, getTime)
}

func withinWindow(t, referenceTime time.Time, windowSeconds float64) bool {
	gap := referenceTime.Sub(t)
	if gap < 0 {
		gap = -gap
	}
	return gap <= secondsDuration(windowSeconds)
}
