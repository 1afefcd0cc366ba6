package ingestion

import (
	"github.com/asgard/aegis/internal/calibration"
	"github.com/asgard/aegis/internal/model"
)

// VisionParser normalizes raw camera detection payloads, rejecting unknown
// cameras and malformed bounding boxes.
type VisionParser struct {
	reg     *calibration.Registry
	tracker *SourceTracker
}

func NewVisionParser(reg *calibration.Registry) *VisionParser {
	return &VisionParser{reg: reg, tracker: NewSourceTracker()}
}

func (p *VisionParser) Parse(records []Raw) ([]model.Detection, error) {
	out := make([]model.Detection, 0, len(records))
	for _, r := range records {
		d, err := p.parseOne(r)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (p *VisionParser) parseOne(r Raw) (model.Detection, error) {
	camID, ok := r.str("camera_id")
	if !ok || camID == "" {
		return model.Detection{}, model.NewIngestionError("vision", "", "camera_id", zeroTime, "missing camera_id")
	}
	if _, err := p.reg.RequireCamera(camID); err != nil {
		return model.Detection{}, err
	}
	ts, ok := r.timestamp("timestamp")
	if !ok {
		return model.Detection{}, model.NewIngestionError("vision", camID, "timestamp", zeroTime, "missing or invalid timestamp")
	}
	if reason := p.tracker.Check(camID, ts); reason != "" {
		return model.Detection{}, model.NewIngestionError("vision", camID, "timestamp", ts, reason)
	}

	bboxRaw, ok := r["bbox"].([]any)
	if !ok || len(bboxRaw) != 4 {
		return model.Detection{}, model.NewIngestionError("vision", camID, "bbox", ts, "missing or malformed bbox")
	}
	vals := make([]float64, 4)
	for i, v := range bboxRaw {
		f, ok := v.(float64)
		if !ok || !finite(f) {
			return model.Detection{}, model.NewIngestionError("vision", camID, "bbox", ts, "non-finite bbox component")
		}
		vals[i] = f
	}
	bbox := model.BBox{XMin: vals[0], YMin: vals[1], XMax: vals[2], YMax: vals[3]}
	if bbox.XMin > bbox.XMax || bbox.YMin > bbox.YMax {
		return model.Detection{}, model.NewIngestionError("vision", camID, "bbox", ts, "x_min>x_max or y_min>y_max")
	}

	conf, ok := r.float("confidence")
	if !ok || conf < 0 || conf > 1 {
		return model.Detection{}, model.NewIngestionError("vision", camID, "confidence", ts, "confidence out of [0,1]")
	}

	d := model.Detection{Timestamp: ts, CameraID: camID, BBox: bbox, Confidence: conf}

	if kpRaw, ok := r["keypoints"].([]any); ok {
		kps := make([]model.Point2D, 0, len(kpRaw))
		for _, kv := range kpRaw {
			pair, ok := kv.([]any)
			if !ok || len(pair) != 2 {
				return model.Detection{}, model.NewIngestionError("vision", camID, "keypoints", ts, "malformed keypoint")
			}
			x, xok := pair[0].(float64)
			y, yok := pair[1].(float64)
			if !xok || !yok || !finite(x) || !finite(y) {
				return model.Detection{}, model.NewIngestionError("vision", camID, "keypoints", ts, "non-finite keypoint")
			}
			kps = append(kps, model.Point2D{X: x, Y: y})
		}
		d.Keypoints = kps
	}

	return d, nil
}
