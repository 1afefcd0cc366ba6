// Package wifiexporter polls an HTTP JSON endpoint for Wi-Fi measurements
// and smooths out clock drift between the exporter's clock and the local
// wall clock.
package wifiexporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/asgard/aegis/internal/ingestion"
	"github.com/asgard/aegis/internal/model"
)

// Config configures one HTTP Wi-Fi exporter adapter.
type Config struct {
	URL             string
	Timeout         time.Duration
	InitialOffset   time.Duration
	DriftTolerance  time.Duration
	MaxOffset       time.Duration
	SmoothingAlpha  float64
	DefaultMetadata map[string]any
	HTTPClient      *http.Client
	Now             func() time.Time // overridable for tests
}

// Adapter is an HTTP JSON poller implementing the fetch() contract: each
// call returns drift-corrected raw records for the Wi-Fi parser to
// validate, or an ExporterError on transport or decode failure. It does
// not retry.
type Adapter struct {
	cfg    Config
	offset time.Duration
}

func New(cfg Config) *Adapter {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Adapter{cfg: cfg, offset: cfg.InitialOffset}
}

type wireEntry struct {
	Timestamp   *float64       `json:"timestamp"`
	TimestampMS *float64       `json:"timestamp_ms"`
	AccessPointID string       `json:"access_point_id"`
	RSSI        float64        `json:"rssi"`
	Channel     *int           `json:"channel"`
	Band        string         `json:"band"`
	CSI         []float64      `json:"csi"`
	Metadata    map[string]any `json:"metadata"`
}

// Fetch retrieves, decodes, and clock-corrects one batch of raw Wi-Fi
// records suitable for ingestion.WiFiParser.Parse.
func (a *Adapter) Fetch(ctx context.Context) ([]ingestion.Raw, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.URL, nil)
	if err != nil {
		return nil, &model.ExporterError{Adapter: "wifi_exporter", Err: err}
	}
	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, &model.ExporterError{Adapter: "wifi_exporter", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &model.ExporterError{Adapter: "wifi_exporter", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.ExporterError{Adapter: "wifi_exporter", Err: err}
	}

	var entries []wireEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &model.ExporterError{Adapter: "wifi_exporter", Err: err}
	}

	fetchTime := a.cfg.Now()
	out := make([]ingestion.Raw, 0, len(entries))
	for _, e := range entries {
		rawSec, ok := entryTimestampSeconds(e)
		if !ok {
			continue
		}
		corrected := a.normalizeTimestamp(rawSec, fetchTime)

		meta := mergeMetadata(a.cfg.DefaultMetadata, e.Metadata)

		r := ingestion.Raw{
			"access_point_id": e.AccessPointID,
			"rssi":            e.RSSI,
			"timestamp":       corrected,
		}
		if e.Channel != nil {
			r["channel"] = *e.Channel
		}
		if e.Band != "" {
			r["band"] = e.Band
		}
		if e.CSI != nil {
			csi := make([]any, len(e.CSI))
			for i, v := range e.CSI {
				csi[i] = v
			}
			r["csi"] = csi
		}
		if meta != nil {
			r["metadata"] = meta
		}
		out = append(out, r)
	}
	return out, nil
}

func entryTimestampSeconds(e wireEntry) (float64, bool) {
	if e.Timestamp != nil {
		return *e.Timestamp, true
	}
	if e.TimestampMS != nil {
		return *e.TimestampMS / 1000.0, true
	}
	return 0, false
}

// normalizeTimestamp implements a three-step clock-drift smoothing
// algorithm: correct with the current offset,
// measure drift against the fetch wall clock, and update the smoothed
// offset only when drift exceeds tolerance and the candidate offset stays
// within the configured bound.
func (a *Adapter) normalizeTimestamp(rawSeconds float64, fetchTime time.Time) time.Time {
	raw := time.Unix(0, int64(rawSeconds*1e9)).UTC()
	corrected := raw.Add(a.offset)
	drift := fetchTime.Sub(corrected)

	if absDuration(drift) > a.cfg.DriftTolerance {
		candidate := a.offset + drift
		if absDuration(candidate) <= a.cfg.MaxOffset {
			alpha := a.cfg.SmoothingAlpha
			newOffsetSec := (1-alpha)*a.offset.Seconds() + alpha*candidate.Seconds()
			a.offset = time.Duration(newOffsetSec * float64(time.Second))
			corrected = raw.Add(a.offset)
		}
	}
	return corrected
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// mergeMetadata applies override order: source_metadata
// (the adapter's own default_metadata here) is overridden by the raw
// entry's own metadata field.
func mergeMetadata(defaults map[string]any, entry map[string]any) map[string]any {
	if defaults == nil && entry == nil {
		return nil
	}
	merged := make(map[string]any, len(defaults)+len(entry))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range entry {
		merged[k] = v
	}
	return merged
}

// Offset returns the current smoothed clock offset, exposed for
// diagnostics and tests.
func (a *Adapter) Offset() time.Duration { return a.offset }
