// Package blescanner adapts BLE advertisement discoveries into raw
// ingestion records, offline (fixed payloads, for simulation and tests)
// and online (live advertisement decode).
package blescanner

import (
	"time"

	"github.com/asgard/aegis/internal/ingestion"
)

// Advertisement is one raw BLE discovery as a scanning library would
// surface it: an address plus RSSI plus the raw AD-structure payload.
type Advertisement struct {
	Address   string
	RSSI      float64
	Channel   *int
	Payload   []byte
	Timestamp time.Time
}

// OfflineConfig holds a fixed list of advertisements replayed in order,
// one per Fetch call, for simulation and deterministic tests.
type OfflineConfig struct {
	Advertisements []Advertisement
	HashIdentifiers bool
}

// OfflineAdapter replays a fixed, pre-recorded set of advertisements.
type OfflineAdapter struct {
	cfg   OfflineConfig
	index int
}

func NewOffline(cfg OfflineConfig) *OfflineAdapter {
	return &OfflineAdapter{cfg: cfg}
}

func (a *OfflineAdapter) Fetch() ([]ingestion.Raw, error) {
	if a.index >= len(a.cfg.Advertisements) {
		return nil, nil
	}
	adv := a.cfg.Advertisements[a.index]
	a.index++
	return []ingestion.Raw{toRaw(adv)}, nil
}

// Scanner is the minimal interface an online BLE scanning library must
// satisfy: a non-blocking drain of advertisements seen since the last
// call.
type Scanner interface {
	Poll() ([]Advertisement, error)
}

// OnlineConfig wraps a live Scanner implementation.
type OnlineConfig struct {
	Scanner Scanner
}

// OnlineAdapter surfaces live advertisement discoveries.
type OnlineAdapter struct {
	cfg OnlineConfig
}

func NewOnline(cfg OnlineConfig) *OnlineAdapter {
	return &OnlineAdapter{cfg: cfg}
}

func (a *OnlineAdapter) Fetch() ([]ingestion.Raw, error) {
	advs, err := a.cfg.Scanner.Poll()
	if err != nil {
		return nil, err
	}
	out := make([]ingestion.Raw, 0, len(advs))
	for _, adv := range advs {
		out = append(out, toRaw(adv))
	}
	return out, nil
}

func toRaw(adv Advertisement) ingestion.Raw {
	r := ingestion.Raw{
		"device_id": adv.Address,
		"rssi":      adv.RSSI,
		"timestamp": adv.Timestamp,
	}
	if adv.Channel != nil {
		r["channel"] = *adv.Channel
	}
	if len(adv.Payload) > 0 {
		r["advertisement"] = adv.Payload
	}
	return r
}
