package runner

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/asgard/aegis/internal/calibration"
	"github.com/asgard/aegis/internal/emit"
	"github.com/asgard/aegis/internal/fusion"
	"github.com/asgard/aegis/internal/ingestion"
	"github.com/asgard/aegis/internal/model"
	"github.com/asgard/aegis/internal/orchestrator"
	"github.com/asgard/aegis/internal/syncbuf"
)

type fakeWiFiSource struct{}

func (fakeWiFiSource) Fetch(ctx context.Context) ([]ingestion.Raw, error) {
	return []ingestion.Raw{
		{"access_point_id": "ap-1", "timestamp": time.Now(), "rssi": -40.0},
	}, nil
}

func testRunner(t *testing.T, maxIterations int) (*Runner, *bytes.Buffer) {
	t.Helper()
	reg := calibration.NewRegistry(calibration.SpaceConfig{WidthM: 10, HeightM: 10})
	reg.AddAccessPoint("ap-1", calibration.AccessPointCalibration{Position: model.Point2D{X: 1, Y: 1}})

	buffer := syncbuf.New(syncbuf.Config{WindowSeconds: 1.0, MaxLatencySeconds: 5.0, Strategy: syncbuf.StrategyNearest})
	orch := orchestrator.New(buffer, reg, false)
	orch.AddWiFiSource(fakeWiFiSource{})

	store := fusion.NewStore(reg, calibration.SpaceConfig{WidthM: 10, HeightM: 10}, nil)
	var out bytes.Buffer
	emitter := emit.New(&out, false)

	r := New(Config{PollInterval: 5 * time.Millisecond, MaxIterations: maxIterations}, orch, store, emitter, nil, nil)
	return r, &out
}

func TestRunStopsAtMaxIterations(t *testing.T) {
	r, out := testRunner(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	lines := bytes.Count(out.Bytes(), []byte("\n"))
	if lines != 2 {
		t.Errorf("Run() emitted %d lines, want 2 (MaxIterations)", lines)
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	r, _ := testRunner(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestHealthBeforeFirstTick(t *testing.T) {
	r, _ := testRunner(t, 0)
	healthy, last := r.Health()
	if !healthy {
		t.Error("Health() before any tick = unhealthy, want healthy (zero lastTickAt is a grace period)")
	}
	if !last.IsZero() {
		t.Errorf("Health() lastTickAt = %v, want zero value", last)
	}
}

func TestHealthAfterTick(t *testing.T) {
	r, _ := testRunner(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	healthy, last := r.Health()
	if !healthy {
		t.Error("Health() right after a tick = unhealthy, want healthy")
	}
	if last.IsZero() {
		t.Error("Health() lastTickAt is zero after a tick ran")
	}
}
