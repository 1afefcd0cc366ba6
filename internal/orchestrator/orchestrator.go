// Package orchestrator polls each configured modality adapter once per
// tick, feeds results into the synchronization buffer, and emits an
// aligned batch.
package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/asgard/aegis/internal/calibration"
	"github.com/asgard/aegis/internal/ingestion"
	"github.com/asgard/aegis/internal/model"
	"github.com/asgard/aegis/internal/syncbuf"
)

// WiFiSource, VisionSource, MmWaveSource, and BLESource are the fetch()
// contracts an adapter satisfies; each adapter implements exactly one of
// these.
type WiFiSource interface {
	Fetch(ctx context.Context) ([]ingestion.Raw, error)
}

type VisionSource interface {
	Fetch(ctx context.Context) ([]ingestion.Raw, error)
}

type MmWaveSource interface {
	Fetch() ([]ingestion.Raw, error)
}

type BLESource interface {
	Fetch() ([]ingestion.Raw, error)
}

// Orchestrator wires one or more sources per modality to a shared
// synchronization buffer.
type Orchestrator struct {
	buffer *syncbuf.Buffer

	wifiSources   []WiFiSource
	visionSources []VisionSource
	mmwaveSources []MmWaveSource
	bleSources    []BLESource

	wifiParser   *ingestion.WiFiParser
	visionParser *ingestion.VisionParser
	mmwaveParser *ingestion.MmWaveParser
	bleParser    *ingestion.BLEParser
}

func New(buffer *syncbuf.Buffer, reg *calibration.Registry, hashBLE bool) *Orchestrator {
	return &Orchestrator{
		buffer:       buffer,
		wifiParser:   ingestion.NewWiFiParser(reg),
		visionParser: ingestion.NewVisionParser(reg),
		mmwaveParser: ingestion.NewMmWaveParser(),
		bleParser:    ingestion.NewBLEParser(hashBLE),
	}
}

func (o *Orchestrator) AddWiFiSource(s WiFiSource)     { o.wifiSources = append(o.wifiSources, s) }
func (o *Orchestrator) AddVisionSource(s VisionSource) { o.visionSources = append(o.visionSources, s) }
func (o *Orchestrator) AddMmWaveSource(s MmWaveSource) { o.mmwaveSources = append(o.mmwaveSources, s) }
func (o *Orchestrator) AddBLESource(s BLESource)       { o.bleSources = append(o.bleSources, s) }

// Poll runs one polling step: each source's fetch() is called; a failing
// adapter is caught, logged, and treated as an empty fetch so the tick
// proceeds with the remaining modalities. If any
// modality yielded data this tick, the buffer is asked to emit at
// reference_time=now.
func (o *Orchestrator) Poll(ctx context.Context, now time.Time) (model.SyncBatch, bool) {
	gotData := false

	for _, s := range o.wifiSources {
		raw, err := s.Fetch(ctx)
		if err != nil {
			log.Printf("[orchestrator] wifi source fetch failed, treating as empty: %v", err)
			continue
		}
		if len(raw) == 0 {
			continue
		}
		measurements, err := o.wifiParser.Parse(raw)
		if err != nil {
			log.Printf("[orchestrator] wifi ingestion failed, treating fetch as empty: %v", err)
			continue
		}
		o.buffer.AddWiFi(measurements)
		gotData = true
	}

	for _, s := range o.visionSources {
		raw, err := s.Fetch(ctx)
		if err != nil {
			log.Printf("[orchestrator] vision source fetch failed, treating as empty: %v", err)
			continue
		}
		if len(raw) == 0 {
			continue
		}
		detections, err := o.visionParser.Parse(raw)
		if err != nil {
			log.Printf("[orchestrator] vision ingestion failed, treating fetch as empty: %v", err)
			continue
		}
		o.buffer.AddVision(detections)
		gotData = true
	}

	for _, s := range o.mmwaveSources {
		raw, err := s.Fetch()
		if err != nil {
			log.Printf("[orchestrator] mmwave source fetch failed, treating as empty: %v", err)
			continue
		}
		if len(raw) == 0 {
			continue
		}
		measurements, err := o.mmwaveParser.Parse(raw)
		if err != nil {
			log.Printf("[orchestrator] mmwave ingestion failed, treating fetch as empty: %v", err)
			continue
		}
		o.buffer.AddMmWave(measurements)
		gotData = true
	}

	for _, s := range o.bleSources {
		raw, err := s.Fetch()
		if err != nil {
			log.Printf("[orchestrator] ble source fetch failed, treating as empty: %v", err)
			continue
		}
		if len(raw) == 0 {
			continue
		}
		measurements, err := o.bleParser.Parse(raw)
		if err != nil {
			log.Printf("[orchestrator] ble ingestion failed, treating fetch as empty: %v", err)
			continue
		}
		o.buffer.AddBLE(measurements)
		gotData = true
	}

	if !gotData {
		return model.SyncBatch{}, false
	}
	return o.buffer.Emit(now)
}
