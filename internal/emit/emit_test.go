package emit

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/asgard/aegis/internal/model"
)

func TestEmitLegacyWritesOneLinePerTrack(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf, true)
	tracks := []model.TrackState{
		{TrackID: "t-1", Timestamp: time.Now(), AlertTier: model.AlertBlue},
		{TrackID: "t-2", Timestamp: time.Now(), AlertTier: model.AlertNone},
	}
	if err := e.Emit(tracks, TickSummary{}); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	if lines != 2 {
		t.Errorf("legacy Emit() wrote %d lines, want 2", lines)
	}
}

func TestEmitFullModeWritesOneEnvelopePerTick(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf, false)
	tracks := []model.TrackState{{TrackID: "t-1", Timestamp: time.Now(), AlertTier: model.AlertRed}}

	if err := e.Emit(tracks, NewTickSummary(model.FusionInput{}, model.BatchStatus{})); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	var wire tickWire
	if err := json.Unmarshal(buf.Bytes(), &wire); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if len(wire.Tracks) != 1 || wire.Tracks[0].TrackID != "t-1" {
		t.Errorf("envelope tracks = %+v, want one track t-1", wire.Tracks)
	}
	if wire.Emitters == nil {
		t.Error("envelope emitters = nil, want an empty slice (never omitted)")
	}
}

func TestNewTickSummaryCountsBands(t *testing.T) {
	input := model.FusionInput{
		WiFi: []model.WiFiMeasurement{
			{AccessPointID: "ap-1", Band: model.Band24GHz},
			{AccessPointID: "ap-2", Band: model.Band5GHz},
			{AccessPointID: "ap-3", Band: model.Band5GHz},
		},
	}
	summary := NewTickSummary(input, model.BatchStatus{})
	if summary.BandSummary["2.4ghz"] != 1 {
		t.Errorf("BandSummary[2.4ghz] = %d, want 1", summary.BandSummary["2.4ghz"])
	}
	if summary.BandSummary["5ghz"] != 2 {
		t.Errorf("BandSummary[5ghz] = %d, want 2", summary.BandSummary["5ghz"])
	}
}

func TestNewTickSummaryBuildsEmittersFromBLEAndMmWave(t *testing.T) {
	input := model.FusionInput{
		BLE:    []model.BLEMeasurement{{DeviceID: "dev-1", RSSIDBm: -50, Timestamp: time.Now()}},
		MmWave: []model.MmWaveMeasurement{{SensorID: "mm-1", Timestamp: time.Now()}},
	}
	summary := NewTickSummary(input, model.BatchStatus{})
	if len(summary.Emitters) != 2 {
		t.Fatalf("Emitters len = %d, want 2", len(summary.Emitters))
	}
}

func TestNewTickSummaryBLEFallsBackToHashedIdentifier(t *testing.T) {
	input := model.FusionInput{
		BLE: []model.BLEMeasurement{{HashedIdentifier: "hash-1", Timestamp: time.Now()}},
	}
	summary := NewTickSummary(input, model.BatchStatus{})
	if len(summary.Emitters) != 1 || summary.Emitters[0].DeviceID != "hash-1" {
		t.Errorf("Emitters = %+v, want one emitter with device_id=hash-1", summary.Emitters)
	}
}

func TestNewTickSummarySensorHealthMarksOfflineWhenAbsent(t *testing.T) {
	summary := NewTickSummary(model.FusionInput{}, model.BatchStatus{})
	for _, h := range summary.SensorHealth {
		if h.Status != "offline" {
			t.Errorf("modality %q status = %q, want offline with no records", h.Label, h.Status)
		}
		if h.LastSeen != nil {
			t.Errorf("modality %q LastSeen = %v, want nil with no records", h.Label, *h.LastSeen)
		}
	}
}

func TestNewTickSummarySensorHealthOnlineWhenPresentAndFresh(t *testing.T) {
	input := model.FusionInput{WiFi: []model.WiFiMeasurement{{AccessPointID: "ap-1", Timestamp: time.Now()}}}
	summary := NewTickSummary(input, model.BatchStatus{WiFiStale: false})
	for _, h := range summary.SensorHealth {
		if h.Label == "wifi" {
			if h.Status != "online" {
				t.Errorf("wifi status = %q, want online", h.Status)
			}
			if h.LastSeen == nil {
				t.Error("wifi LastSeen = nil, want a timestamp")
			}
		}
	}
}

func TestNewTickSummarySensorHealthOfflineWhenStale(t *testing.T) {
	input := model.FusionInput{WiFi: []model.WiFiMeasurement{{AccessPointID: "ap-1", Timestamp: time.Now()}}}
	summary := NewTickSummary(input, model.BatchStatus{WiFiStale: true})
	for _, h := range summary.SensorHealth {
		if h.Label == "wifi" && h.Status != "offline" {
			t.Errorf("wifi status = %q, want offline when marked stale", h.Status)
		}
	}
}
