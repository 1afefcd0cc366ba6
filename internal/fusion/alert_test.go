package fusion

import (
	"testing"
	"time"

	"github.com/asgard/aegis/internal/model"
)

func TestClassifyAlertTier(t *testing.T) {
	tests := []struct {
		name string
		p    modalityPresence
		want model.AlertTier
	}{
		{"nothing present", modalityPresence{}, model.AlertNone},
		{"ble only", modalityPresence{ble: true}, model.AlertBlue},
		{"wifi anomaly only", modalityPresence{wifiAnomaly: true}, model.AlertOrange},
		{"mmwave only", modalityPresence{mmwave: true}, model.AlertYellow},
		{"mmwave and wifi anomaly", modalityPresence{mmwave: true, wifiAnomaly: true}, model.AlertOrange},
		{"mmwave and vision", modalityPresence{mmwave: true, vision: true}, model.AlertRed},
		{"mmwave, vision, and wifi anomaly", modalityPresence{mmwave: true, vision: true, wifiAnomaly: true}, model.AlertRed},
		{"vision alone (no mmwave) falls through to none", modalityPresence{vision: true}, model.AlertNone},
		{"ble and wifi anomaly prefers orange", modalityPresence{ble: true, wifiAnomaly: true}, model.AlertOrange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyAlertTier(tt.p); got != tt.want {
				t.Errorf("classifyAlertTier(%+v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestWifiAnomaly(t *testing.T) {
	tests := []struct {
		name    string
		records []model.WiFiMeasurement
		want    bool
	}{
		{"no records", nil, false},
		{"no metadata", []model.WiFiMeasurement{{}}, false},
		{"anomaly bool true", []model.WiFiMeasurement{{Metadata: map[string]any{"anomaly": true}}}, true},
		{"anomaly bool false", []model.WiFiMeasurement{{Metadata: map[string]any{"anomaly": false}}}, false},
		{"is_anomaly true", []model.WiFiMeasurement{{Metadata: map[string]any{"is_anomaly": true}}}, true},
		{"anomaly_score at threshold", []model.WiFiMeasurement{{Metadata: map[string]any{"anomaly_score": 0.7}}}, true},
		{"anomaly_score below threshold", []model.WiFiMeasurement{{Metadata: map[string]any{"anomaly_score": 0.69}}}, false},
		{"one of several flags", []model.WiFiMeasurement{{}, {Metadata: map[string]any{"is_anomaly": true}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wifiAnomaly(tt.records); got != tt.want {
				t.Errorf("wifiAnomaly() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPresenceFromInput(t *testing.T) {
	now := time.Now()
	input := model.FusionInput{
		MmWave: []model.MmWaveMeasurement{{Timestamp: now, SensorID: "mm-1"}},
		BLE:    []model.BLEMeasurement{{Timestamp: now, DeviceID: "ble-1"}},
	}
	p := presenceFromInput(input)
	if !p.mmwave || !p.ble || p.vision || p.wifiAnomaly {
		t.Errorf("presenceFromInput() = %+v, unexpected", p)
	}
}
