package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthzReportsHealthy(t *testing.T) {
	lastTick := time.Now()
	health := func() (bool, time.Time) { return true, lastTick }
	r := NewRouter(NewBroadcaster(), health)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if healthy, _ := body["healthy"].(bool); !healthy {
		t.Error("healthz body healthy = false, want true")
	}
}

func TestHealthzReportsUnhealthyAs503(t *testing.T) {
	health := func() (bool, time.Time) { return false, time.Time{} }
	r := NewRouter(NewBroadcaster(), health)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /healthz status = %d, want 503", rec.Code)
	}
}

func TestHealthzDefaultsHealthyWithNilCheck(t *testing.T) {
	r := NewRouter(NewBroadcaster(), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz with nil HealthCheck status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	r := NewRouter(NewBroadcaster(), nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("GET /metrics returned an empty body")
	}
}
