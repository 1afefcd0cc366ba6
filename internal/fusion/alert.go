package fusion

import "github.com/asgard/aegis/internal/model"

// modalityPresence is the boolean tuple the alert tier is a total
// function of.
type modalityPresence struct {
	mmwave      bool
	vision      bool
	wifiAnomaly bool
	ble         bool
}

// classifyAlertTier maps modality presence to a severity tier.
func classifyAlertTier(p modalityPresence) model.AlertTier {
	switch {
	case p.mmwave && p.vision:
		return model.AlertRed
	case p.mmwave && p.wifiAnomaly:
		return model.AlertOrange
	case p.mmwave:
		return model.AlertYellow
	case p.wifiAnomaly:
		return model.AlertOrange
	case p.ble:
		return model.AlertBlue
	default:
		return model.AlertNone
	}
}

// wifiAnomaly reports whether any Wi-Fi record on the tick flags an
// anomaly via metadata.anomaly, metadata.is_anomaly, or an
// anomaly_score >= 0.7.
func wifiAnomaly(records []model.WiFiMeasurement) bool {
	for _, m := range records {
		if m.Metadata == nil {
			continue
		}
		if b, ok := m.Metadata["anomaly"].(bool); ok && b {
			return true
		}
		if b, ok := m.Metadata["is_anomaly"].(bool); ok && b {
			return true
		}
		if score, ok := m.Metadata["anomaly_score"].(float64); ok && score >= 0.7 {
			return true
		}
	}
	return false
}

func presenceFromInput(input model.FusionInput) modalityPresence {
	return modalityPresence{
		mmwave:      len(input.MmWave) > 0,
		vision:      len(input.Vision) > 0,
		wifiAnomaly: wifiAnomaly(input.WiFi),
		ble:         len(input.BLE) > 0,
	}
}
