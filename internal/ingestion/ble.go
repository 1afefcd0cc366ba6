package ingestion

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/asgard/aegis/internal/model"
)

// BLEParser normalizes raw BLE advertisement payloads. BLE has no
// calibration requirement at ingestion time
type BLEParser struct {
	tracker    *SourceTracker
	hashEnabled bool
}

func NewBLEParser(hashEnabled bool) *BLEParser {
	return &BLEParser{tracker: NewSourceTracker(), hashEnabled: hashEnabled}
}

func (p *BLEParser) Parse(records []Raw) ([]model.BLEMeasurement, error) {
	out := make([]model.BLEMeasurement, 0, len(records))
	for _, r := range records {
		m, err := p.parseOne(r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (p *BLEParser) parseOne(r Raw) (model.BLEMeasurement, error) {
	deviceID, hasDevice := r.str("device_id")
	hashed, hasHashed := r.str("hashed_identifier")
	if !hasDevice && !hasHashed {
		return model.BLEMeasurement{}, model.NewIngestionError("ble", "", "device_id", zeroTime, "at least one of device_id or hashed_identifier is required")
	}

	sourceKey := deviceID
	if sourceKey == "" {
		sourceKey = hashed
	}

	ts, ok := r.timestamp("timestamp")
	if !ok {
		return model.BLEMeasurement{}, model.NewIngestionError("ble", sourceKey, "timestamp", zeroTime, "missing or invalid timestamp")
	}
	if reason := p.tracker.Check(sourceKey, ts); reason != "" {
		return model.BLEMeasurement{}, model.NewIngestionError("ble", sourceKey, "timestamp", ts, reason)
	}
	rssi, ok := r.float("rssi")
	if !ok || !finite(rssi) {
		return model.BLEMeasurement{}, model.NewIngestionError("ble", sourceKey, "rssi", ts, "missing or non-finite rssi")
	}

	m := model.BLEMeasurement{
		Timestamp: ts,
		RSSIDBm:   rssi,
		DeviceID:  deviceID,
		HashedIdentifier: hashed,
	}

	if !hasHashed && hasDevice && p.hashEnabled {
		m.HashedIdentifier = HashIdentifier(deviceID)
	}

	if ch, ok := r.int("channel"); ok {
		if ch != 37 && ch != 38 && ch != 39 {
			return model.BLEMeasurement{}, model.NewIngestionError("ble", sourceKey, "channel", ts, "channel must be 37, 38, or 39")
		}
		m.Channel = &ch
	}

	if payload, ok := r["advertisement"].([]byte); ok {
		mfg, svc, err := DecodeADStructures(payload)
		if err != nil {
			return model.BLEMeasurement{}, model.NewIngestionError("ble", sourceKey, "advertisement", ts, err.Error())
		}
		m.ManufacturerData = mfg
		m.ServiceData = svc
	}

	return m, nil
}

// HashIdentifier produces the SHA-256 hex digest used to pseudonymize a
// raw device identifier when hashing is enabled.
func HashIdentifier(deviceID string) string {
	sum := sha256.Sum256([]byte(deviceID))
	return hex.EncodeToString(sum[:])
}
