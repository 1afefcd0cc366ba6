package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/google/uuid"
)

// PostgresStore is an alternate ConsentStore + LogSink backed by
// PostgreSQL, for deployments that want consent/provenance records to
// survive process restarts. Grounded on internal/platform/db.PostgresDB's
// sql.Open/Ping shape and internal/repositories/alert.go's query style.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and verifies the three tables this
// package expects already exist (consent_records, sensor_provenance_logs,
// track_update_logs); migrations are the caller's responsibility, matching
// the usual convention.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("audit: failed to ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("audit: failed to close postgres connection: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetConsent(participantID, sessionID string) (ConsentRecord, bool) {
	query := `
		SELECT status, participant_id, session_id, created_at
		FROM consent_records
		WHERE ($1 = '' OR participant_id = $1)
		  AND ($2 = '' OR session_id = $2)
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := p.db.QueryRow(query, participantID, sessionID)
	var r ConsentRecord
	var pid, sid sql.NullString
	if err := row.Scan(&r.Status, &pid, &sid, &r.Timestamp); err != nil {
		return ConsentRecord{}, false
	}
	r.ParticipantID = pid.String
	r.SessionID = sid.String
	return r, true
}

func (p *PostgresStore) SetConsent(record ConsentRecord) error {
	_, err := p.db.Exec(
		`INSERT INTO consent_records (id, status, participant_id, session_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), record.Status, record.ParticipantID, record.SessionID, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to insert consent record: %w", err)
	}
	return nil
}

func (p *PostgresStore) AppendProvenance(rec SensorProvenanceLog) error {
	_, err := p.db.Exec(
		`INSERT INTO sensor_provenance_logs (id, track_id, measurement_timestamp, sources, captured_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), rec.TrackID, rec.Timestamp, joinSources(rec.Sources), rec.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to insert sensor provenance log: %w", err)
	}
	return nil
}

func (p *PostgresStore) AppendTrackUpdate(rec TrackUpdateLog) error {
	_, err := p.db.Exec(
		`INSERT INTO track_update_logs (id, track_id, measurement_timestamp, sources, captured_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), rec.TrackID, rec.Timestamp, joinSources(rec.Sources), rec.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to insert track update log: %w", err)
	}
	return nil
}

func (p *PostgresStore) PruneLogs(ttl time.Duration, now time.Time) (sensorDeleted, trackDeleted int) {
	if ttl <= 0 {
		return 0, 0
	}
	cutoff := now.Add(-ttl)
	if res, err := p.db.Exec(`DELETE FROM sensor_provenance_logs WHERE captured_at < $1`, cutoff); err == nil {
		if n, err := res.RowsAffected(); err == nil {
			sensorDeleted = int(n)
		}
	}
	if res, err := p.db.Exec(`DELETE FROM track_update_logs WHERE captured_at < $1`, cutoff); err == nil {
		if n, err := res.RowsAffected(); err == nil {
			trackDeleted = int(n)
		}
	}
	return sensorDeleted, trackDeleted
}

func joinSources(sources []string) string {
	out := ""
	for i, s := range sources {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
