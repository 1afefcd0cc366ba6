package audit

import (
	"errors"
	"testing"
	"time"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRequireConsentDisabledGateAllowsAll(t *testing.T) {
	l := New(Config{RequireConsent: false})
	if err := l.RequireConsent(); err != nil {
		t.Errorf("RequireConsent() with gate disabled = %v, want nil", err)
	}
}

func TestRequireConsentNoRecordRejects(t *testing.T) {
	l := New(Config{RequireConsent: true, ParticipantID: "p-1"})
	if err := l.RequireConsent(); err == nil {
		t.Error("RequireConsent() with no record on file = nil, want ConsentError")
	}
}

func TestRequireConsentGrantedAllows(t *testing.T) {
	l := New(Config{RequireConsent: true, ParticipantID: "p-1", SessionID: "s-1"})
	if err := l.RecordConsent(ConsentGranted, "p-1", "s-1"); err != nil {
		t.Fatalf("RecordConsent() error = %v", err)
	}
	if err := l.RequireConsent(); err != nil {
		t.Errorf("RequireConsent() after grant = %v, want nil", err)
	}
}

func TestRequireConsentRevokedRejects(t *testing.T) {
	l := New(Config{RequireConsent: true, ParticipantID: "p-1"})
	l.RecordConsent(ConsentGranted, "p-1", "")
	l.RecordConsent(ConsentRevoked, "p-1", "")

	if err := l.RequireConsent(); err == nil {
		t.Error("RequireConsent() after the latest record was revoked = nil, want ConsentError")
	}
}

func TestRequireConsentLooksAtMostRecentRecord(t *testing.T) {
	l := New(Config{RequireConsent: true, ParticipantID: "p-1"})
	l.RecordConsent(ConsentRevoked, "p-1", "")
	l.RecordConsent(ConsentGranted, "p-1", "")

	if err := l.RequireConsent(); err != nil {
		t.Errorf("RequireConsent() after a later grant supersedes an earlier revoke = %v, want nil", err)
	}
}

func TestLogProvenanceAndTrackUpdateAccumulate(t *testing.T) {
	l := New(Config{})
	ts := time.Now()
	l.LogProvenance("t-1", ts, []string{"wifi:ap-1"})
	l.LogTrackUpdate("t-1", ts, []string{"wifi:ap-1"})

	if len(l.ProvenanceLogs()) != 1 {
		t.Errorf("ProvenanceLogs() len = %d, want 1", len(l.ProvenanceLogs()))
	}
	if len(l.TrackUpdateLogs()) != 1 {
		t.Errorf("TrackUpdateLogs() len = %d, want 1", len(l.TrackUpdateLogs()))
	}
}

func TestLogProvenanceFansOutToSecondarySinks(t *testing.T) {
	sink := &fakeSink{}
	l := New(Config{Secondary: []LogSink{sink}})
	l.LogProvenance("t-1", time.Now(), []string{"mmwave:mm-1"})

	if sink.provenanceCalls != 1 {
		t.Errorf("secondary sink AppendProvenance calls = %d, want 1", sink.provenanceCalls)
	}
}

func TestLogTrackUpdateToleratesFailingSecondarySink(t *testing.T) {
	sink := &fakeSink{trackErr: errors.New("unavailable")}
	l := New(Config{Secondary: []LogSink{sink}})
	l.LogTrackUpdate("t-1", time.Now(), []string{"ble:dev-1"})

	if len(l.TrackUpdateLogs()) != 1 {
		t.Error("LogTrackUpdate() did not record locally despite a failing secondary sink")
	}
}

func TestPruneLogsRemovesOldEntries(t *testing.T) {
	now := time.Now()
	l := New(Config{Now: fixedNow(now.Add(-time.Hour))})
	l.LogProvenance("old", now.Add(-time.Hour), nil)

	sensorDeleted, _ := l.PruneLogs(time.Minute, now)
	if sensorDeleted != 1 {
		t.Errorf("PruneLogs() deleted %d sensor logs, want 1", sensorDeleted)
	}
	if len(l.ProvenanceLogs()) != 0 {
		t.Error("PruneLogs() left a stale provenance log in place")
	}
}

func TestPruneLogsDisabledWhenTTLNonPositive(t *testing.T) {
	l := New(Config{})
	l.LogProvenance("old", time.Now().Add(-time.Hour), nil)

	sensorDeleted, trackDeleted := l.PruneLogs(0, time.Now())
	if sensorDeleted != 0 || trackDeleted != 0 {
		t.Errorf("PruneLogs(ttl<=0) deleted sensor=%d track=%d, want 0/0", sensorDeleted, trackDeleted)
	}
}

type fakeSink struct {
	provenanceCalls int
	trackErr        error
}

func (f *fakeSink) AppendProvenance(r SensorProvenanceLog) error {
	f.provenanceCalls++
	return nil
}

func (f *fakeSink) AppendTrackUpdate(r TrackUpdateLog) error {
	return f.trackErr
}

func (f *fakeSink) PruneLogs(ttl time.Duration, now time.Time) (int, int) { return 0, 0 }
