package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGetMetricsReturnsSingleton(t *testing.T) {
	a := GetMetrics()
	b := GetMetrics()
	if a != b {
		t.Error("GetMetrics() returned two distinct instances, want the same singleton")
	}
}

func TestRecordTickIncrementsOutcomeCounter(t *testing.T) {
	m := GetMetrics()
	before := testutil.ToFloat64(m.TicksTotal.WithLabelValues("emitted"))
	RecordTick("emitted", 10*time.Millisecond)
	after := testutil.ToFloat64(m.TicksTotal.WithLabelValues("emitted"))
	if after != before+1 {
		t.Errorf("ticks_total{outcome=emitted} = %v, want %v", after, before+1)
	}
}

func TestRecordTrackCountsSetsGaugePerStatus(t *testing.T) {
	m := GetMetrics()
	RecordTrackCounts(map[string]int{"confirmed": 3, "lost": 1})
	if got := testutil.ToFloat64(m.TracksByStatus.WithLabelValues("confirmed")); got != 3 {
		t.Errorf("tracks{status=confirmed} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.TracksByStatus.WithLabelValues("lost")); got != 1 {
		t.Errorf("tracks{status=lost} = %v, want 1", got)
	}
}

func TestRecordDroppedStaleSkipsNonPositive(t *testing.T) {
	m := GetMetrics()
	before := testutil.ToFloat64(m.DroppedStale.WithLabelValues("vision"))
	RecordDroppedStale("vision", 0)
	after := testutil.ToFloat64(m.DroppedStale.WithLabelValues("vision"))
	if after != before {
		t.Errorf("dropped_stale_total{modality=vision} changed on a zero count: before=%v after=%v", before, after)
	}
	RecordDroppedStale("vision", 2)
	if got := testutil.ToFloat64(m.DroppedStale.WithLabelValues("vision")); got != before+2 {
		t.Errorf("dropped_stale_total{modality=vision} = %v, want %v", got, before+2)
	}
}

func TestRecordAdapterFailureIncrements(t *testing.T) {
	m := GetMetrics()
	before := testutil.ToFloat64(m.AdapterFailures.WithLabelValues("ble"))
	RecordAdapterFailure("ble")
	after := testutil.ToFloat64(m.AdapterFailures.WithLabelValues("ble"))
	if after != before+1 {
		t.Errorf("adapter_failures_total{modality=ble} = %v, want %v", after, before+1)
	}
}

func TestRecordRetentionAddsBothKinds(t *testing.T) {
	m := GetMetrics()
	beforeMeas := testutil.ToFloat64(m.RetentionDeleted.WithLabelValues("measurements"))
	beforeLogs := testutil.ToFloat64(m.RetentionDeleted.WithLabelValues("logs"))
	RecordRetention(5, 3)
	if got := testutil.ToFloat64(m.RetentionDeleted.WithLabelValues("measurements")); got != beforeMeas+5 {
		t.Errorf("retention_deleted_total{kind=measurements} = %v, want %v", got, beforeMeas+5)
	}
	if got := testutil.ToFloat64(m.RetentionDeleted.WithLabelValues("logs")); got != beforeLogs+3 {
		t.Errorf("retention_deleted_total{kind=logs} = %v, want %v", got, beforeLogs+3)
	}
}
