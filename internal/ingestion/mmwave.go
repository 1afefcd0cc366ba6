package ingestion

import (
	"math"

	"github.com/asgard/aegis/internal/model"
)

// MmWaveParser normalizes raw radar event payloads. A sensor id with no
// calibration entry is not a parser error: mmWave is one of the
// modalities with no calibration requirement.
type MmWaveParser struct {
	tracker *SourceTracker
}

func NewMmWaveParser() *MmWaveParser {
	return &MmWaveParser{tracker: NewSourceTracker()}
}

func (p *MmWaveParser) Parse(records []Raw) ([]model.MmWaveMeasurement, error) {
	out := make([]model.MmWaveMeasurement, 0, len(records))
	for _, r := range records {
		m, err := p.parseOne(r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (p *MmWaveParser) parseOne(r Raw) (model.MmWaveMeasurement, error) {
	sensorID, ok := r.str("sensor_id")
	if !ok || sensorID == "" {
		return model.MmWaveMeasurement{}, model.NewIngestionError("mmwave", "", "sensor_id", zeroTime, "missing sensor_id")
	}
	ts, ok := r.timestamp("timestamp")
	if !ok {
		return model.MmWaveMeasurement{}, model.NewIngestionError("mmwave", sensorID, "timestamp", zeroTime, "missing or invalid timestamp")
	}
	if reason := p.tracker.Check(sensorID, ts); reason != "" {
		return model.MmWaveMeasurement{}, model.NewIngestionError("mmwave", sensorID, "timestamp", ts, reason)
	}
	conf, ok := r.float("confidence")
	if !ok || conf < 0 || conf > 1 {
		return model.MmWaveMeasurement{}, model.NewIngestionError("mmwave", sensorID, "confidence", ts, "confidence out of [0,1]")
	}
	eventStr, ok := r.str("event_type")
	if !ok || (eventStr != string(model.MmWavePresence) && eventStr != string(model.MmWaveMotion)) {
		return model.MmWaveMeasurement{}, model.NewIngestionError("mmwave", sensorID, "event_type", ts, "must be presence or motion")
	}

	m := model.MmWaveMeasurement{
		Timestamp:  ts,
		SensorID:   sensorID,
		Confidence: conf,
		EventType:  model.MmWaveEventType(eventStr),
		Metadata:   r.metadata("metadata"),
	}

	if rangeM, ok := r.float("range_m"); ok {
		if !finite(rangeM) || rangeM < 0 {
			return model.MmWaveMeasurement{}, model.NewIngestionError("mmwave", sensorID, "range_m", ts, "range_m must be finite and non-negative")
		}
		m.RangeM = &rangeM
	}

	if angle, ok := optionalAngle(r); ok {
		if !finite(angle) || angle < -math.Pi || angle > math.Pi {
			return model.MmWaveMeasurement{}, model.NewIngestionError("mmwave", sensorID, "angle_rad", ts, "angle out of [-pi,pi]")
		}
		m.AngleRad = &angle
	}

	return m, nil
}

// optionalAngle mirrors preference for angle_radians, with
// a conversion from angle_degrees when the former is absent.
func optionalAngle(r Raw) (float64, bool) {
	if rad, ok := r.float("angle_radians"); ok {
		return rad, true
	}
	if deg, ok := r.float("angle_degrees"); ok {
		return deg * math.Pi / 180.0, true
	}
	return 0, false
}
