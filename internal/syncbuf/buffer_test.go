package syncbuf

import (
	"testing"
	"time"

	"github.com/asgard/aegis/internal/model"
)

func testConfig(strategy Strategy) Config {
	return Config{WindowSeconds: 1.0, MaxLatencySeconds: 2.0, Strategy: strategy}
}

func TestBufferEmitEmptyReturnsFalse(t *testing.T) {
	b := New(testConfig(StrategyNearest))
	_, ok := b.Emit(time.Now())
	if ok {
		t.Error("Emit() on empty buffer returned ok=true, want false")
	}
}

func TestBufferEmitNearestSelectsClosestRecord(t *testing.T) {
	b := New(testConfig(StrategyNearest))
	ref := time.Now()
	b.AddWiFi([]model.WiFiMeasurement{
		{AccessPointID: "ap-1", Timestamp: ref.Add(-400 * time.Millisecond), RSSIDBm: -60},
		{AccessPointID: "ap-1", Timestamp: ref.Add(-50 * time.Millisecond), RSSIDBm: -40},
	})

	batch, ok := b.Emit(ref)
	if !ok {
		t.Fatal("Emit() returned ok=false")
	}
	if len(batch.Input.WiFi) != 1 {
		t.Fatalf("Emit() returned %d wifi records, want 1", len(batch.Input.WiFi))
	}
	if batch.Input.WiFi[0].RSSIDBm != -40 {
		t.Errorf("Emit() picked RSSI %v, want -40 (the closer-in-time record)", batch.Input.WiFi[0].RSSIDBm)
	}
}

func TestBufferEmitDropsStaleBeyondMaxLatency(t *testing.T) {
	b := New(testConfig(StrategyNearest))
	ref := time.Now()
	b.AddWiFi([]model.WiFiMeasurement{
		{AccessPointID: "ap-1", Timestamp: ref.Add(-5 * time.Second), RSSIDBm: -60},
	})

	_, ok := b.Emit(ref)
	if ok {
		t.Error("Emit() with only a stale record returned ok=true, want false (dropped before alignment)")
	}
}

func TestBufferEmitReportsDroppedCount(t *testing.T) {
	b := New(testConfig(StrategyNearest))
	ref := time.Now()
	// Add trims each modality to the window behind its own latest record,
	// so the fresh record that keeps the batch non-empty comes from another
	// modality; otherwise the stale Wi-Fi record would be trimmed on add
	// and never reach Emit's max-latency drop.
	b.AddWiFi([]model.WiFiMeasurement{
		{AccessPointID: "ap-1", Timestamp: ref.Add(-5 * time.Second), RSSIDBm: -60},
	})
	b.AddVision([]model.Detection{{CameraID: "cam-1", Timestamp: ref, Confidence: 0.9}})

	batch, ok := b.Emit(ref)
	if !ok {
		t.Fatal("Emit() returned ok=false")
	}
	if batch.Status.DroppedWiFi != 1 {
		t.Errorf("Status.DroppedWiFi = %d, want 1", batch.Status.DroppedWiFi)
	}
}

func TestBufferEmitInterpolateBlendsBracket(t *testing.T) {
	b := New(testConfig(StrategyInterpolate))
	ref := time.Now()
	b.AddWiFi([]model.WiFiMeasurement{
		{AccessPointID: "ap-1", Timestamp: ref.Add(-500 * time.Millisecond), RSSIDBm: -60},
		{AccessPointID: "ap-1", Timestamp: ref.Add(500 * time.Millisecond), RSSIDBm: -40},
	})

	batch, ok := b.Emit(ref)
	if !ok {
		t.Fatal("Emit() returned ok=false")
	}
	if len(batch.Input.WiFi) != 1 {
		t.Fatalf("Emit() returned %d wifi records, want 1", len(batch.Input.WiFi))
	}
	got := batch.Input.WiFi[0].RSSIDBm
	if got < -60 || got > -40 {
		t.Errorf("interpolated RSSI = %v, want between -60 and -40", got)
	}
}

func TestBufferMarksStaleModalityInStatus(t *testing.T) {
	b := New(testConfig(StrategyNearest))
	ref := time.Now()
	b.AddWiFi([]model.WiFiMeasurement{{AccessPointID: "ap-1", Timestamp: ref, RSSIDBm: -40}})

	batch, ok := b.Emit(ref)
	if !ok {
		t.Fatal("Emit() returned ok=false")
	}
	if !batch.Status.VisionStale {
		t.Error("Status.VisionStale = false, want true (no vision records ever added)")
	}
	if batch.Status.WiFiStale {
		t.Error("Status.WiFiStale = true, want false (fresh record)")
	}
}

func TestBufferPruneHistoryRemovesOldRecords(t *testing.T) {
	b := New(testConfig(StrategyNearest))
	ref := time.Now()
	b.AddWiFi([]model.WiFiMeasurement{
		{AccessPointID: "ap-1", Timestamp: ref.Add(-10 * time.Second), RSSIDBm: -60},
	})

	wifi, vision, mmwave, ble := b.PruneHistory(1.0, ref)
	if wifi != 1 {
		t.Errorf("PruneHistory() removed %d wifi records, want 1", wifi)
	}
	if vision != 0 || mmwave != 0 || ble != 0 {
		t.Errorf("PruneHistory() removed unexpected records: vision=%d mmwave=%d ble=%d", vision, mmwave, ble)
	}
}

func TestBufferPruneHistoryDisabledWhenTTLNonPositive(t *testing.T) {
	b := New(testConfig(StrategyNearest))
	ref := time.Now()
	b.AddWiFi([]model.WiFiMeasurement{{AccessPointID: "ap-1", Timestamp: ref.Add(-10 * time.Second)}})

	wifi, _, _, _ := b.PruneHistory(0, ref)
	if wifi != 0 {
		t.Errorf("PruneHistory(ttl<=0) removed %d records, want 0 (disabled)", wifi)
	}
}
