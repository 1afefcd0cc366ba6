// Package audit provides the consent gate and provenance/track-update
// logging sink: a side-effect collaborator the fusion core calls out to,
// never mutates itself.
package audit

import (
	"log"
	"sync"
	"time"

	"github.com/asgard/aegis/internal/model"
)

// ConsentStatus values match the same string constants.
const (
	ConsentGranted = "granted"
	ConsentRevoked = "revoked"
)

// ConsentRecord is one append-only entry in a ConsentStore.
type ConsentRecord struct {
	Status        string
	ParticipantID string
	SessionID     string
	Timestamp     time.Time
}

// ConsentStore looks up the most recent matching consent record.
// Implementations: InMemoryConsentStore (default), Postgres-backed
// PostgresStore (internal/audit/postgres.go).
type ConsentStore interface {
	GetConsent(participantID, sessionID string) (ConsentRecord, bool)
	SetConsent(record ConsentRecord) error
}

// InMemoryConsentStore is an append-only slice searched from the tail,
// matching InMemoryConsentStore.
type InMemoryConsentStore struct {
	mu      sync.RWMutex
	records []ConsentRecord
}

func NewInMemoryConsentStore() *InMemoryConsentStore {
	return &InMemoryConsentStore{}
}

func (s *InMemoryConsentStore) GetConsent(participantID, sessionID string) (ConsentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if participantID != "" && r.ParticipantID != participantID {
			continue
		}
		if sessionID != "" && r.SessionID != sessionID {
			continue
		}
		return r, true
	}
	return ConsentRecord{}, false
}

func (s *InMemoryConsentStore) SetConsent(record ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// SensorProvenanceLog and TrackUpdateLog are the two log kinds emitted
// per tracked update.
type SensorProvenanceLog struct {
	TrackID    string
	Timestamp  time.Time
	Sources    []string
	CapturedAt time.Time
}

type TrackUpdateLog struct {
	TrackID    string
	Timestamp  time.Time
	Sources    []string
	CapturedAt time.Time
}

// LogSink persists the two log kinds. The in-memory Logger below is the
// default; PostgresStore (internal/audit/postgres.go) is an alternative,
// and EventBus (internal/audit/eventbus.go) can additionally publish them.
type LogSink interface {
	AppendProvenance(SensorProvenanceLog) error
	AppendTrackUpdate(TrackUpdateLog) error
	PruneLogs(ttl time.Duration, now time.Time) (sensorDeleted, trackDeleted int)
}

// Logger is the default in-memory audit sink: a consent gate plus two
// append-only log slices, matching AuditLogger.
type Logger struct {
	mu sync.Mutex

	consentStore  ConsentStore
	requireGate   bool
	sensorLogs    []SensorProvenanceLog
	trackLogs     []TrackUpdateLog
	secondary     []LogSink
	participantID string
	sessionID     string
	now           func() time.Time
}

// Config configures a Logger.
type Config struct {
	ConsentStore ConsentStore // defaults to NewInMemoryConsentStore()
	// RequireConsent gates every Fuse call behind an active, non-revoked
	// consent record when true.
	RequireConsent bool
	// ParticipantID/SessionID scope the consent lookup; empty means
	// "match any record".
	ParticipantID string
	SessionID     string
	// Secondary sinks additionally receive every logged record (e.g. a
	// Postgres-backed LogSink, or an EventBus publisher).
	Secondary []LogSink
	Now       func() time.Time
}

func New(cfg Config) *Logger {
	store := cfg.ConsentStore
	if store == nil {
		store = NewInMemoryConsentStore()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Logger{
		consentStore:  store,
		requireGate:   cfg.RequireConsent,
		participantID: cfg.ParticipantID,
		sessionID:     cfg.SessionID,
		secondary:     cfg.Secondary,
		now:           now,
	}
}

// RequireConsent implements fusion.AuditSink: it is a no-op when the gate
// is disabled, and otherwise enforces an active, non-revoked record.
func (l *Logger) RequireConsent() error {
	if !l.requireGate {
		return nil
	}
	record, ok := l.consentStore.GetConsent(l.participantID, l.sessionID)
	if !ok {
		return &model.ConsentError{ParticipantID: l.participantID, Reason: "no active consent record"}
	}
	if record.Status == ConsentRevoked {
		return &model.ConsentError{ParticipantID: l.participantID, Reason: "consent has been revoked"}
	}
	return nil
}

// RecordConsent appends a new consent record.
func (l *Logger) RecordConsent(status, participantID, sessionID string) error {
	return l.consentStore.SetConsent(ConsentRecord{
		Status:        status,
		ParticipantID: participantID,
		SessionID:     sessionID,
		Timestamp:     l.now(),
	})
}

// LogProvenance implements fusion.AuditSink.
func (l *Logger) LogProvenance(trackID string, ts time.Time, sources []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record := SensorProvenanceLog{TrackID: trackID, Timestamp: ts, Sources: append([]string(nil), sources...), CapturedAt: l.now()}
	l.sensorLogs = append(l.sensorLogs, record)
	log.Printf("[audit] sensor_provenance track=%s sources=%v", trackID, record.Sources)
	for _, sink := range l.secondary {
		if err := sink.AppendProvenance(record); err != nil {
			log.Printf("[audit] secondary sink provenance append failed: %v", err)
		}
	}
}

// LogTrackUpdate implements fusion.AuditSink.
func (l *Logger) LogTrackUpdate(trackID string, ts time.Time, sources []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record := TrackUpdateLog{TrackID: trackID, Timestamp: ts, Sources: append([]string(nil), sources...), CapturedAt: l.now()}
	l.trackLogs = append(l.trackLogs, record)
	log.Printf("[audit] track_update track=%s sources=%v", trackID, record.Sources)
	for _, sink := range l.secondary {
		if err := sink.AppendTrackUpdate(record); err != nil {
			log.Printf("[audit] secondary sink track update append failed: %v", err)
		}
	}
}

// PruneLogs removes log entries captured strictly before now-ttl, returning
// the per-kind deleted counts. ttl<=0 disables pruning.
func (l *Logger) PruneLogs(ttl time.Duration, now time.Time) (sensorDeleted, trackDeleted int) {
	if ttl <= 0 {
		return 0, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := now.Add(-ttl)

	kept := l.sensorLogs[:0:0]
	for _, r := range l.sensorLogs {
		if r.CapturedAt.Before(cutoff) {
			sensorDeleted++
			continue
		}
		kept = append(kept, r)
	}
	l.sensorLogs = kept

	keptTrack := l.trackLogs[:0:0]
	for _, r := range l.trackLogs {
		if r.CapturedAt.Before(cutoff) {
			trackDeleted++
			continue
		}
		keptTrack = append(keptTrack, r)
	}
	l.trackLogs = keptTrack

	for _, sink := range l.secondary {
		sink.PruneLogs(ttl, now)
	}
	return sensorDeleted, trackDeleted
}

// ProvenanceLogs and TrackUpdateLogs return copies of the current
// in-memory log slices, for inspection and tests.
func (l *Logger) ProvenanceLogs() []SensorProvenanceLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]SensorProvenanceLog(nil), l.sensorLogs...)
}

func (l *Logger) TrackUpdateLogs() []TrackUpdateLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]TrackUpdateLog(nil), l.trackLogs...)
}
