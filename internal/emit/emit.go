// Package emit renders fusion ticks as NDJSON: one line per tick in full
// mode (tracks + emitters + sensor_health + band_summary), or one line
// per TrackState in legacy mode.
package emit

import (
	"encoding/json"
	"io"
	"time"

	"github.com/asgard/aegis/internal/model"
)

// Emitter writes NDJSON lines for a stream of fusion ticks.
type Emitter struct {
	w      io.Writer
	legacy bool
	enc    *json.Encoder
}

// New builds an Emitter writing to w. When legacy is true, Emit writes
// one TrackState object per line instead of the full per-tick envelope.
func New(w io.Writer, legacy bool) *Emitter {
	return &Emitter{w: w, legacy: legacy, enc: json.NewEncoder(w)}
}

// trackWire is the emitted JSON shape for one track.
type trackWire struct {
	TrackID     string    `json:"track_id"`
	Timestamp   float64   `json:"timestamp"`
	Position    [2]float64 `json:"position"`
	Velocity    *[2]float64 `json:"velocity"`
	Uncertainty [2]float64 `json:"uncertainty"`
	Confidence  float64   `json:"confidence"`
	AlertTier   string    `json:"alert_tier"`
}

// emitterWire is one corroborating-device summary line in the "emitters"
// array.
type emitterWire struct {
	DeviceID string  `json:"device_id,omitempty"`
	EmitterID string `json:"emitter_id,omitempty"`
	RSSI     float64 `json:"rssi"`
	LastSeen float64 `json:"last_seen"`
}

// sensorHealthWire is one modality's health summary line.
type sensorHealthWire struct {
	Label    string   `json:"label"`
	Status   string   `json:"status"`
	LastSeen *float64 `json:"last_seen"`
}

// tickWire is the full per-tick envelope.
type tickWire struct {
	Tracks       []trackWire        `json:"tracks"`
	Emitters     []emitterWire      `json:"emitters"`
	SensorHealth []sensorHealthWire `json:"sensor_health"`
	BandSummary  map[string]int     `json:"band_summary"`
}

func toTrackWire(t model.TrackState) trackWire {
	w := trackWire{
		TrackID:     t.TrackID,
		Timestamp:   unixSeconds(t.Timestamp),
		Position:    [2]float64{t.Position.X, t.Position.Y},
		Uncertainty: [2]float64{t.Uncertainty.X, t.Uncertainty.Y},
		Confidence:  t.Confidence,
		AlertTier:   string(t.AlertTier),
	}
	if t.Velocity != nil {
		v := [2]float64{t.Velocity.X, t.Velocity.Y}
		w.Velocity = &v
	}
	return w
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// EmitLegacy writes one TrackState object per line, the legacy
// one-record-per-line wire mode.
func (e *Emitter) EmitLegacy(tracks []model.TrackState) error {
	for _, t := range tracks {
		if err := e.enc.Encode(toTrackWire(t)); err != nil {
			return err
		}
	}
	return nil
}

// TickSummary carries the non-track context (corroborating emitters and
// modality health) a full-mode tick needs beyond the fused tracks
// themselves.
type TickSummary struct {
	Emitters     []emitterWire
	SensorHealth []sensorHealthWire
	BandSummary  map[string]int
}

// NewTickSummary derives emitter and sensor-health summaries from a
// tick's fusion input and batch status.
func NewTickSummary(input model.FusionInput, status model.BatchStatus) TickSummary {
	summary := TickSummary{BandSummary: map[string]int{"2.4ghz": 0, "5ghz": 0, "6ghz": 0}}

	for _, m := range input.WiFi {
		switch m.Band {
		case model.Band24GHz:
			summary.BandSummary["2.4ghz"]++
		case model.Band5GHz:
			summary.BandSummary["5ghz"]++
		case model.Band6GHz:
			summary.BandSummary["6ghz"]++
		}
	}

	for _, m := range input.BLE {
		id := m.DeviceID
		if id == "" {
			id = m.HashedIdentifier
		}
		summary.Emitters = append(summary.Emitters, emitterWire{
			DeviceID: id,
			RSSI:     m.RSSIDBm,
			LastSeen: unixSeconds(m.Timestamp),
		})
	}
	for _, m := range input.MmWave {
		summary.Emitters = append(summary.Emitters, emitterWire{
			EmitterID: m.SensorID,
			RSSI:      0,
			LastSeen:  unixSeconds(m.Timestamp),
		})
	}

	summary.SensorHealth = []sensorHealthWire{
		healthEntry("wifi", len(input.WiFi) > 0, status.WiFiStale, input.WiFi, func(i int) time.Time { return input.WiFi[i].Timestamp }),
		healthEntry("vision", len(input.Vision) > 0, status.VisionStale, input.Vision, func(i int) time.Time { return input.Vision[i].Timestamp }),
		healthEntry("mmwave", len(input.MmWave) > 0, status.MmWaveStale, input.MmWave, func(i int) time.Time { return input.MmWave[i].Timestamp }),
		healthEntry("ble", len(input.BLE) > 0, status.BLEStale, input.BLE, func(i int) time.Time { return input.BLE[i].Timestamp }),
	}

	return summary
}

func healthEntry[T any](label string, present, stale bool, records []T, getTime func(int) time.Time) sensorHealthWire {
	entry := sensorHealthWire{Label: label, Status: "offline"}
	if present && !stale {
		entry.Status = "online"
	}
	if len(records) > 0 {
		latest := getTime(0)
		for i := 1; i < len(records); i++ {
			if t := getTime(i); t.After(latest) {
				latest = t
			}
		}
		v := unixSeconds(latest)
		entry.LastSeen = &v
	}
	return entry
}

// Emit writes the full per-tick envelope: tracks plus the supplied
// summary context.
func (e *Emitter) Emit(tracks []model.TrackState, summary TickSummary) error {
	if e.legacy {
		return e.EmitLegacy(tracks)
	}
	wire := tickWire{
		Tracks:       make([]trackWire, 0, len(tracks)),
		Emitters:     summary.Emitters,
		SensorHealth: summary.SensorHealth,
		BandSummary:  summary.BandSummary,
	}
	for _, t := range tracks {
		wire.Tracks = append(wire.Tracks, toTrackWire(t))
	}
	if wire.Emitters == nil {
		wire.Emitters = []emitterWire{}
	}
	return e.enc.Encode(wire)
}
