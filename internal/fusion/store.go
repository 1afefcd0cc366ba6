// Package fusion implements the track-maintenance core: candidate
// construction, Hungarian association, Kalman predict/update, the
// confirm/lost/terminated lifecycle, and alert-tier classification. A
// Store owns its buffer of live tracks exclusively; callers receive
// independent TrackState snapshots.
package fusion

import (
	"fmt"
	"sync"
	"time"

	"github.com/asgard/aegis/internal/calibration"
	"github.com/asgard/aegis/internal/model"
)

// legacyAlignWindow is the re-alignment window used when Fuse is called
// with aligned=false.4's legacy path.
const legacyAlignWindow = 500 * time.Millisecond

// AuditSink is the optional provenance/consent collaborator. A nil
// AuditSink disables both the consent gate and logging.
type AuditSink interface {
	RequireConsent() error
	LogProvenance(trackID string, ts time.Time, sources []string)
	LogTrackUpdate(trackID string, ts time.Time, sources []string)
}

// Store owns the live track set for one fusion instance. It is the sole
// mutator of its tracks; emitted TrackState values are independent
// copies; callers never observe a track mid-mutation.
type Store struct {
	mu sync.RWMutex

	reg   *calibration.Registry
	space calibration.SpaceConfig
	audit AuditSink

	tracks []*track
	nextID int
}

// NewStore builds a fusion Store against the given calibration registry
// and space. audit may be nil.
func NewStore(reg *calibration.Registry, space calibration.SpaceConfig, audit AuditSink) *Store {
	return &Store{reg: reg, space: space, audit: audit}
}

// Fuse is the fusion core's entry point. When
// aligned is false, the input is re-aligned internally within a 0.5s
// window (the legacy path); otherwise referenceTime is used directly.
func (s *Store) Fuse(input model.FusionInput, aligned bool, referenceTime time.Time) ([]model.TrackState, error) {
	if !aligned {
		input, referenceTime = legacyRealign(input)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if input.Empty() {
		return []model.TrackState{}, nil
	}

	if s.audit != nil {
		if err := s.audit.RequireConsent(); err != nil {
			return nil, err
		}
	}

	candidates := buildCandidates(input, s.reg, s.space, referenceTime)
	assign := associate(s.tracks, candidates)

	tier := classifyAlertTier(presenceFromInput(input))
	sources := contributingSources(input)

	// Emission order is stable: matched first, then missed, then new,
	//
	out := make([]model.TrackState, 0, len(s.tracks)+len(candidates))

	matchedOrder := make([]int, 0, len(assign.matchedTrackToCandidate))
	for i := range s.tracks {
		if _, ok := assign.matchedTrackToCandidate[i]; ok {
			matchedOrder = append(matchedOrder, i)
		}
	}
	for _, i := range matchedOrder {
		t := s.tracks[i]
		t.applyMatch(candidates[assign.matchedTrackToCandidate[i]])
		out = append(out, t.snapshot(tier))
		s.logTrack(t.id, t.timestamp, sources)
	}

	for _, i := range assign.missedTracks {
		t := s.tracks[i]
		if t.applyMiss(referenceTime) {
			out = append(out, t.snapshot(tier))
			s.logTrack(t.id, t.timestamp, sources)
		}
	}

	s.tracks = s.surviving()

	for _, j := range assign.newCandidates {
		id := s.allocateID()
		t := newTrack(id, candidates[j])
		s.tracks = append(s.tracks, t)
		out = append(out, t.snapshot(tier))
		s.logTrack(t.id, t.timestamp, sources)
	}

	return out, nil
}

func (s *Store) logTrack(trackID string, ts time.Time, sources []string) {
	if s.audit == nil {
		return
	}
	s.audit.LogProvenance(trackID, ts, sources)
	s.audit.LogTrackUpdate(trackID, ts, sources)
}

// surviving drops any track marked terminated during this tick's miss
// pass; matched/new tracks are always kept (their status is never
// terminated at this point).
func (s *Store) surviving() []*track {
	out := s.tracks[:0:0]
	for _, t := range s.tracks {
		if t.status != model.TrackTerminated {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) allocateID() string {
	s.nextID++
	return fmt.Sprintf("track-%d", s.nextID)
}

// Tracks returns independent snapshots of all live tracks (for callers
// that want a read-only view between ticks, e.g. a dashboard poll). Every
// snapshot carries AlertNone; the per-tick alert tier is not stored.
func (s *Store) Tracks() []model.TrackState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TrackState, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t.snapshot(model.AlertNone))
	}
	return out
}

// contributingSources builds the deduplicated, insertion-ordered
// "{modality}:{id}" source list for every record in the tick's input.
func contributingSources(input model.FusionInput) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, m := range input.WiFi {
		add("wifi:" + m.AccessPointID)
	}
	for _, d := range input.Vision {
		add("vision:" + d.CameraID)
	}
	for _, m := range input.MmWave {
		add("mmwave:" + m.SensorID)
	}
	for _, m := range input.BLE {
		id := m.DeviceID
		if id == "" {
			id = m.HashedIdentifier
		}
		add("ble:" + id)
	}
	return out
}

// legacyRealign implements Fuse's aligned=false path: the reference time
// is the max timestamp across all modalities, and any record further than
// legacyAlignWindow from it is dropped.
func legacyRealign(input model.FusionInput) (model.FusionInput, time.Time) {
	var ref time.Time
	scan := func(t time.Time) {
		if t.After(ref) {
			ref = t
		}
	}
	for _, m := range input.WiFi {
		scan(m.Timestamp)
	}
	for _, d := range input.Vision {
		scan(d.Timestamp)
	}
	for _, m := range input.MmWave {
		scan(m.Timestamp)
	}
	for _, m := range input.BLE {
		scan(m.Timestamp)
	}
	if ref.IsZero() {
		return input, ref
	}

	within := func(t time.Time) bool {
		gap := ref.Sub(t)
		if gap < 0 {
			gap = -gap
		}
		return gap <= legacyAlignWindow
	}

	out := model.FusionInput{}
	for _, m := range input.WiFi {
		if within(m.Timestamp) {
			out.WiFi = append(out.WiFi, m)
		}
	}
	for _, d := range input.Vision {
		if within(d.Timestamp) {
			out.Vision = append(out.Vision, d)
		}
	}
	for _, m := range input.MmWave {
		if within(m.Timestamp) {
			out.MmWave = append(out.MmWave, m)
		}
	}
	for _, m := range input.BLE {
		if within(m.Timestamp) {
			out.BLE = append(out.BLE, m)
		}
	}
	return out, ref
}
