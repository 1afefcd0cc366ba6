package ingestion

import (
	"time"

	"github.com/asgard/aegis/internal/calibration"
	"github.com/asgard/aegis/internal/model"
)

var zeroTime = time.Time{}

// WiFiParser normalizes raw Wi-Fi scan payloads into WiFiMeasurement
// records, rejecting unknown access points and out-of-order timestamps.
type WiFiParser struct {
	reg     *calibration.Registry
	tracker *SourceTracker
}

func NewWiFiParser(reg *calibration.Registry) *WiFiParser {
	return &WiFiParser{reg: reg, tracker: NewSourceTracker()}
}

// Parse validates one batch of raw records, stopping at the first
// violation (matching fail-fast-per-batch contract).
func (p *WiFiParser) Parse(records []Raw) ([]model.WiFiMeasurement, error) {
	out := make([]model.WiFiMeasurement, 0, len(records))
	for _, r := range records {
		m, err := p.parseOne(r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (p *WiFiParser) parseOne(r Raw) (model.WiFiMeasurement, error) {
	apID, ok := r.str("access_point_id")
	if !ok || apID == "" {
		return model.WiFiMeasurement{}, model.NewIngestionError("wifi", "", "access_point_id", zeroTime, "missing access_point_id")
	}
	if _, err := p.reg.RequireAccessPoint(apID); err != nil {
		return model.WiFiMeasurement{}, err
	}
	ts, ok := r.timestamp("timestamp")
	if !ok {
		return model.WiFiMeasurement{}, model.NewIngestionError("wifi", apID, "timestamp", zeroTime, "missing or invalid timestamp")
	}
	if reason := p.tracker.Check(apID, ts); reason != "" {
		return model.WiFiMeasurement{}, model.NewIngestionError("wifi", apID, "timestamp", ts, reason)
	}
	rssi, ok := r.float("rssi")
	if !ok || !finite(rssi) {
		return model.WiFiMeasurement{}, model.NewIngestionError("wifi", apID, "rssi", ts, "missing or non-finite rssi")
	}

	m := model.WiFiMeasurement{
		Timestamp:     ts,
		AccessPointID: apID,
		RSSIDBm:       rssi,
		Metadata:      r.metadata("metadata"),
	}

	if csiVals, ok := r["csi"].([]any); ok {
		csi := make([]float64, 0, len(csiVals))
		for _, v := range csiVals {
			f, ok := v.(float64)
			if !ok || !finite(f) {
				return model.WiFiMeasurement{}, model.NewIngestionError("wifi", apID, "csi", ts, "non-finite csi sample")
			}
			csi = append(csi, f)
		}
		m.CSI = csi
	}

	if ch, ok := r.int("channel"); ok {
		m.Channel = &ch
	}

	if bandStr, ok := r.str("band"); ok && bandStr != "" {
		m.Band = model.Band(bandStr)
	} else {
		m.Band = deriveBand(m.Channel, m.Metadata)
	}

	return m, nil
}

// deriveBand derives the band: from channel when present, else from
// metadata.frequency_mhz.
func deriveBand(channel *int, metadata map[string]any) model.Band {
	if channel != nil {
		switch {
		case *channel >= 1 && *channel <= 14:
			return model.Band24GHz
		case *channel >= 32 && *channel <= 177:
			return model.Band5GHz
		}
	}
	if metadata != nil {
		if f, ok := metadata["frequency_mhz"].(float64); ok {
			switch {
			case f >= 2400 && f <= 2500:
				return model.Band24GHz
			case f >= 5000 && f < 5925:
				return model.Band5GHz
			case f >= 5925 && f <= 7125:
				return model.Band6GHz
			}
		}
	}
	return ""
}
