package model

import (
	"fmt"
	"time"
)

// IngestionError reports a rejected measurement at the parser boundary. It
// always names the offending field, the logical source id, and the
// timestamp involved so callers can correlate it with the raw payload.
type IngestionError struct {
	Modality  string
	SourceID  string
	Field     string
	Timestamp time.Time
	Reason    string
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion[%s]: source %q field %q at %s: %s",
		e.Modality, e.SourceID, e.Field, e.Timestamp.Format(time.RFC3339Nano), e.Reason)
}

func NewIngestionError(modality, sourceID, field string, ts time.Time, reason string) *IngestionError {
	return &IngestionError{Modality: modality, SourceID: sourceID, Field: field, Timestamp: ts, Reason: reason}
}

// CalibrationError reports a lookup failure in the calibration registry.
type CalibrationError struct {
	Modality string
	SourceID string
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("calibration: no %s entry for %q", e.Modality, e.SourceID)
}

// ConfigError reports a structural problem in loaded configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: field %q: %s", e.Field, e.Reason)
}

// ExporterError reports a transport or decode failure in an adapter.
type ExporterError struct {
	Adapter string
	Err     error
}

func (e *ExporterError) Error() string {
	return fmt.Sprintf("exporter[%s]: %v", e.Adapter, e.Err)
}

func (e *ExporterError) Unwrap() error { return e.Err }

// ConsentError reports an audit-gate rejection: no active consent record,
// or the most recent record on file is revoked.
type ConsentError struct {
	ParticipantID string
	Reason        string
}

func (e *ConsentError) Error() string {
	return fmt.Sprintf("consent: participant %q: %s", e.ParticipantID, e.Reason)
}

// RetentionError reports a non-fatal failure during a pruning pass.
type RetentionError struct {
	Stage string
	Err   error
}

func (e *RetentionError) Error() string {
	return fmt.Sprintf("retention[%s]: %v", e.Stage, e.Err)
}

func (e *RetentionError) Unwrap() error { return e.Err }
