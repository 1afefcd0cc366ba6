package fusion

import (
	"testing"
	"time"

	"github.com/asgard/aegis/internal/calibration"
	"github.com/asgard/aegis/internal/model"
)

func testRegistry() *calibration.Registry {
	space := calibration.SpaceConfig{WidthM: 20, HeightM: 20}
	reg := calibration.NewRegistry(space)
	reg.AddAccessPoint("ap-1", calibration.AccessPointCalibration{
		Position: model.Point2D{X: 0, Y: 0}, PositionUncertaintyM: 1.5,
	})
	reg.AddMmWave("mm-1", calibration.MmWaveCalibration{
		Position: model.Point2D{X: 0, Y: 0}, PositionUncertaintyM: 0.5,
	})
	return reg
}

func TestFuseEmptyBatchYieldsNoTracks(t *testing.T) {
	reg := testRegistry()
	store := NewStore(reg, reg.Space, nil)

	tracks, err := store.Fuse(model.FusionInput{}, true, time.Now())
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("Fuse() on empty batch returned %d tracks, want 0", len(tracks))
	}
}

func TestFuseTrackContinuity(t *testing.T) {
	reg := testRegistry()
	store := NewStore(reg, reg.Space, nil)

	base := time.Now()
	mkInput := func(rangeM float64) model.FusionInput {
		angle := 0.0
		return model.FusionInput{
			MmWave: []model.MmWaveMeasurement{{
				SensorID: "mm-1", Confidence: 0.9, EventType: model.MmWavePresence,
				RangeM: &rangeM, AngleRad: &angle,
			}},
		}
	}

	var lastID string
	for i := 0; i < ConfirmHits+1; i++ {
		ts := base.Add(time.Duration(i) * 200 * time.Millisecond)
		tracks, err := store.Fuse(mkInput(2.0), true, ts)
		if err != nil {
			t.Fatalf("Fuse() tick %d error = %v", i, err)
		}
		if len(tracks) != 1 {
			t.Fatalf("Fuse() tick %d returned %d tracks, want 1", i, len(tracks))
		}
		if lastID != "" && tracks[0].TrackID != lastID {
			t.Errorf("tick %d: track id changed from %s to %s, want continuity", i, lastID, tracks[0].TrackID)
		}
		lastID = tracks[0].TrackID
	}

	tracks := store.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("Tracks() returned %d tracks, want 1", len(tracks))
	}
}

func TestFuseAlertEscalation(t *testing.T) {
	reg := testRegistry()
	store := NewStore(reg, reg.Space, nil)

	rangeM, angle := 2.0, 0.0
	input := model.FusionInput{
		MmWave: []model.MmWaveMeasurement{{SensorID: "mm-1", Confidence: 0.9, EventType: model.MmWavePresence, RangeM: &rangeM, AngleRad: &angle}},
		Vision: []model.Detection{{CameraID: "cam-1", Confidence: 0.8, BBox: model.BBox{XMin: 0.1, XMax: 0.2, YMax: 0.3}}},
	}

	tracks, err := store.Fuse(input, true, time.Now())
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("Fuse() returned %d tracks, want 1", len(tracks))
	}
	if tracks[0].AlertTier != model.AlertRed {
		t.Errorf("AlertTier = %v, want %v (mmwave+vision)", tracks[0].AlertTier, model.AlertRed)
	}
}

func TestFuseConsentGate(t *testing.T) {
	reg := testRegistry()
	gate := &rejectingAuditSink{}
	store := NewStore(reg, reg.Space, gate)

	rangeM, angle := 2.0, 0.0
	input := model.FusionInput{
		MmWave: []model.MmWaveMeasurement{{SensorID: "mm-1", Confidence: 0.9, EventType: model.MmWavePresence, RangeM: &rangeM, AngleRad: &angle}},
	}

	_, err := store.Fuse(input, true, time.Now())
	if err == nil {
		t.Fatal("Fuse() with rejecting consent gate returned nil error, want rejection")
	}
}

type rejectingAuditSink struct{}

func (rejectingAuditSink) RequireConsent() error {
	return &model.ConsentError{ParticipantID: "p-1", Reason: "no active consent record"}
}
func (rejectingAuditSink) LogProvenance(string, time.Time, []string)  {}
func (rejectingAuditSink) LogTrackUpdate(string, time.Time, []string) {}

func TestContributingSourcesDedupedAndOrdered(t *testing.T) {
	input := model.FusionInput{
		WiFi: []model.WiFiMeasurement{{AccessPointID: "ap-1"}, {AccessPointID: "ap-1"}, {AccessPointID: "ap-2"}},
		BLE:  []model.BLEMeasurement{{DeviceID: "ble-1"}},
	}
	got := contributingSources(input)
	want := []string{"wifi:ap-1", "wifi:ap-2", "ble:ble-1"}
	if len(got) != len(want) {
		t.Fatalf("contributingSources() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("contributingSources()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLegacyRealignDropsOutOfWindow(t *testing.T) {
	base := time.Now()
	input := model.FusionInput{
		WiFi: []model.WiFiMeasurement{
			{AccessPointID: "ap-1", Timestamp: base},
			{AccessPointID: "ap-2", Timestamp: base.Add(-2 * time.Second)},
		},
	}
	out, ref := legacyRealign(input)
	if !ref.Equal(base) {
		t.Errorf("legacyRealign() reference time = %v, want %v", ref, base)
	}
	if len(out.WiFi) != 1 || out.WiFi[0].AccessPointID != "ap-1" {
		t.Errorf("legacyRealign() kept %v, want only ap-1", out.WiFi)
	}
}
