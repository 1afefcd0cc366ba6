// Package ingestion normalizes adapter payloads into validated measurement
// records, enforcing monotonic per-source timestamps and the field rules
// each modality requires.
package ingestion

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Raw is an adapter payload: a mapping from string keys to dynamic values,
// the shape every adapter (HTTP, serial, BLE, process-exec) is expected to
// produce before a parser sees it.
type Raw map[string]any

func (r Raw) str(key string) (string, bool) {
	v, ok := r[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (r Raw) float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func (r Raw) int(key string) (int, bool) {
	f, ok := r.float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func (r Raw) timestamp(key string) (time.Time, bool) {
	v, ok := r[key]
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case float64:
		return floatSecondsToTime(t), true
	case int64:
		return floatSecondsToTime(float64(t)), true
	case int:
		return floatSecondsToTime(float64(t)), true
	default:
		return time.Time{}, false
	}
}

func floatSecondsToTime(sec float64) time.Time {
	whole := math.Trunc(sec)
	frac := sec - whole
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

func (r Raw) metadata(key string) map[string]any {
	v, ok := r[key]
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}

// SourceTracker records the last accepted timestamp per logical source key
// (AP id / camera id / sensor id / device id) so a parser can enforce
// per-source monotonicity across calls.
type SourceTracker struct {
	last map[string]time.Time
}

func NewSourceTracker() *SourceTracker {
	return &SourceTracker{last: make(map[string]time.Time)}
}

// Check returns an error description if ts is strictly earlier than the
// last accepted timestamp for sourceKey; otherwise it records ts and
// returns "".
func (t *SourceTracker) Check(sourceKey string, ts time.Time) string {
	prev, ok := t.last[sourceKey]
	if ok && ts.Before(prev) {
		return fmt.Sprintf("timestamp %s precedes last accepted timestamp %s", ts.Format(time.RFC3339Nano), prev.Format(time.RFC3339Nano))
	}
	t.last[sourceKey] = ts
	return ""
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
