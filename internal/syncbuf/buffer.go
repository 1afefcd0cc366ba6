package syncbuf

import (
	"time"

	"github.com/asgard/aegis/internal/model"
)

// Config configures a Buffer's timing behavior.
type Config struct {
	WindowSeconds     float64
	MaxLatencySeconds float64
	Strategy          Strategy
}

// Buffer holds four time-ordered per-modality windows and aligns them
// into per-tick batches. It refuses to emit a
// reference time earlier than one already served, guaranteeing a
// non-decreasing sequence — unless the caller explicitly supplies an
// earlier one, which is honored as-is.
type Buffer struct {
	cfg Config

	wifi   *window[model.WiFiMeasurement]
	vision *window[model.Detection]
	mmwave *window[model.MmWaveMeasurement]
	ble    *window[model.BLEMeasurement]

	lastEmitted time.Time
	hasEmitted  bool
}

func New(cfg Config) *Buffer {
	return &Buffer{
		cfg: cfg,
		wifi: newWindow(cfg.WindowSeconds,
			func(m model.WiFiMeasurement) time.Time { return m.Timestamp },
			func(m model.WiFiMeasurement) string { return m.AccessPointID }),
		vision: newWindow(cfg.WindowSeconds,
			func(d model.Detection) time.Time { return d.Timestamp },
			func(d model.Detection) string { return d.CameraID }),
		mmwave: newWindow(cfg.WindowSeconds,
			func(m model.MmWaveMeasurement) time.Time { return m.Timestamp },
			func(m model.MmWaveMeasurement) string { return m.SensorID }),
		ble: newWindow(cfg.WindowSeconds,
			func(m model.BLEMeasurement) time.Time { return m.Timestamp },
			func(m model.BLEMeasurement) string {
				if m.DeviceID != "" {
					return m.DeviceID
				}
				return m.HashedIdentifier
			}),
	}
}

func (b *Buffer) AddWiFi(records []model.WiFiMeasurement)       { b.wifi.add(records) }
func (b *Buffer) AddVision(records []model.Detection)           { b.vision.add(records) }
func (b *Buffer) AddMmWave(records []model.MmWaveMeasurement)   { b.mmwave.add(records) }
func (b *Buffer) AddBLE(records []model.BLEMeasurement)         { b.ble.add(records) }

// Emit aligns all four modalities to a reference time (the latest
// timestamp across modalities, if referenceTime is zero) and returns the
// resulting batch, or ok=false if nothing aligned.
func (b *Buffer) Emit(referenceTime time.Time) (model.SyncBatch, bool) {
	if referenceTime.IsZero() {
		referenceTime = b.latestAcrossModalities()
		if referenceTime.IsZero() {
			return model.SyncBatch{}, false
		}
	}
	// An explicit caller-supplied reference time is honored as-is;
	// only the auto-derived fallback above is guarded against going
	// backwards, which it is by construction (it only ever grows as new
	// records arrive).
	maxLatency := secondsDuration(b.cfg.MaxLatencySeconds)
	cutoff := referenceTime.Add(-maxLatency)

	wifiIn, droppedWiFi := dropStale(b.wifi.records, cutoff, func(m model.WiFiMeasurement) time.Time { return m.Timestamp })
	visionIn, droppedVision := dropStale(b.vision.records, cutoff, func(d model.Detection) time.Time { return d.Timestamp })
	mmwaveIn, droppedMmWave := dropStale(b.mmwave.records, cutoff, func(m model.MmWaveMeasurement) time.Time { return m.Timestamp })
	bleIn, droppedBLE := dropStale(b.ble.records, cutoff, func(m model.BLEMeasurement) time.Time { return m.Timestamp })

	wifiOut := alignGroup(groupBy(wifiIn, func(m model.WiFiMeasurement) string { return m.AccessPointID }),
		referenceTime, b.cfg.WindowSeconds, b.cfg.Strategy, alignWiFi)
	visionOut := alignGroup(groupBy(visionIn, func(d model.Detection) string { return d.CameraID }),
		referenceTime, b.cfg.WindowSeconds, b.cfg.Strategy, alignVision)
	mmwaveOut := alignGroup(groupBy(mmwaveIn, func(m model.MmWaveMeasurement) string { return m.SensorID }),
		referenceTime, b.cfg.WindowSeconds, b.cfg.Strategy, alignMmWave)
	bleOut := alignGroup(groupBy(bleIn, func(m model.BLEMeasurement) string {
		if m.DeviceID != "" {
			return m.DeviceID
		}
		return m.HashedIdentifier
	}), referenceTime, b.cfg.WindowSeconds, b.cfg.Strategy, alignBLE)

	if len(wifiOut) == 0 && len(visionOut) == 0 && len(mmwaveOut) == 0 && len(bleOut) == 0 {
		return model.SyncBatch{}, false
	}

	status := model.BatchStatus{
		ReferenceTime:  referenceTime,
		DroppedWiFi:    droppedWiFi,
		DroppedVision:  droppedVision,
		DroppedMmWave:  droppedMmWave,
		DroppedBLE:     droppedBLE,
		WindowSeconds:  b.cfg.WindowSeconds,
		MaxLatencySecs: b.cfg.MaxLatencySeconds,
		Strategy:       string(b.cfg.Strategy),
	}
	status.WiFiStale = isStale(b.wifi.latestOrZero(), referenceTime, maxLatency)
	status.VisionStale = isStale(b.vision.latestOrZero(), referenceTime, maxLatency)
	status.MmWaveStale = isStale(b.mmwave.latestOrZero(), referenceTime, maxLatency)
	status.BLEStale = isStale(b.ble.latestOrZero(), referenceTime, maxLatency)

	b.lastEmitted = referenceTime
	b.hasEmitted = true

	return model.SyncBatch{
		Input: model.FusionInput{
			WiFi:   wifiOut,
			Vision: visionOut,
			MmWave: mmwaveOut,
			BLE:    bleOut,
		},
		Status: status,
	}, true
}

func (w *window[T]) latestOrZero() time.Time {
	t, ok := w.latestTimestamp()
	if !ok {
		return time.Time{}
	}
	return t
}

func isStale(latest, referenceTime time.Time, maxLatency time.Duration) bool {
	if latest.IsZero() {
		return true
	}
	return referenceTime.Sub(latest) > maxLatency
}

func (b *Buffer) latestAcrossModalities() time.Time {
	var latest time.Time
	for _, t := range []time.Time{b.wifi.latestOrZero(), b.vision.latestOrZero(), b.mmwave.latestOrZero(), b.ble.latestOrZero()} {
		if t.After(latest) {
			latest = t
		}
	}
	return latest
}

// PruneHistory removes records older than the TTL (relative to
// referenceTime, defaulting to now when zero) from all four windows and
// returns the per-modality deleted counts. A TTL <= 0 disables pruning
// for that call entirely.
func (b *Buffer) PruneHistory(ttlSeconds float64, referenceTime time.Time) (wifi, vision, mmwave, ble int) {
	if ttlSeconds <= 0 {
		return 0, 0, 0, 0
	}
	if referenceTime.IsZero() {
		referenceTime = time.Now().UTC()
	}
	cutoff := referenceTime.Add(-secondsDuration(ttlSeconds))
	return b.wifi.prune(cutoff), b.vision.prune(cutoff), b.mmwave.prune(cutoff), b.ble.prune(cutoff)
}

func dropStale[T any](records []T, cutoff time.Time, getTime func(T) time.Time) ([]T, int) {
	out := make([]T, 0, len(records))
	dropped := 0
	for _, r := range records {
		if getTime(r).Before(cutoff) {
			dropped++
			continue
		}
		out = append(out, r)
	}
	return out, dropped
}

func groupBy[T any](records []T, getKey func(T) string) map[string][]T {
	groups := make(map[string][]T)
	for _, r := range records {
		k := getKey(r)
		groups[k] = append(groups[k], r)
	}
	return groups
}

func alignGroup[T any](groups map[string][]T, referenceTime time.Time, windowSeconds float64, strategy Strategy, alignFn func([]T, time.Time, float64, Strategy) (T, bool)) []T {
	out := make([]T, 0, len(groups))
	for _, group := range groups {
		if aligned, ok := alignFn(group, referenceTime, windowSeconds, strategy); ok {
			out = append(out, aligned)
		}
	}
	return out
}
