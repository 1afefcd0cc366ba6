// Package config loads the JSON-structured top-level configuration:
// space, sensors, synchronization, retention, audit, and ingestion source
// lists. Decoding is explicit field-by-field,
// matching internal/platform/db.LoadConfig's style rather than a
// reflection-based mapping.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/asgard/aegis/internal/calibration"
	"github.com/asgard/aegis/internal/model"
	"github.com/asgard/aegis/internal/syncbuf"
)

// Space is the top-level "space" key.
type Space struct {
	WidthM   float64 `json:"width_m"`
	HeightM  float64 `json:"height_m"`
	OriginX  float64 `json:"origin_x"`
	OriginY  float64 `json:"origin_y"`
}

// AccessPointConfig is one entry of sensors.wifi_access_points.
type AccessPointConfig struct {
	ID                   string  `json:"id"`
	X                    float64 `json:"x"`
	Y                    float64 `json:"y"`
	PositionUncertaintyM float64 `json:"position_uncertainty_m"`
}

// CameraConfig is one entry of sensors.cameras.
type CameraConfig struct {
	ID            string       `json:"id"`
	FocalX        float64      `json:"focal_x"`
	FocalY        float64      `json:"focal_y"`
	PrincipalX    float64      `json:"principal_x"`
	PrincipalY    float64      `json:"principal_y"`
	Skew          float64      `json:"skew"`
	TranslationX  float64      `json:"translation_x"`
	TranslationY  float64      `json:"translation_y"`
	RotationRad   float64      `json:"rotation_rad"`
	Homography    *[3][3]float64 `json:"homography"`
	CameraHeightM *float64     `json:"camera_height_m"`
	TiltRad       *float64     `json:"tilt_rad"`
}

// MmWaveConfig is one entry of sensors.mmwave_sensors.
type MmWaveConfig struct {
	ID                   string  `json:"id"`
	X                    float64 `json:"x"`
	Y                    float64 `json:"y"`
	RotationRad          float64 `json:"rotation_rad"`
	RangeBiasM           float64 `json:"range_bias_m"`
	AngleBiasRad         float64 `json:"angle_bias_rad"`
	PositionUncertaintyM float64 `json:"position_uncertainty_m"`
}

// Sensors mirrors the "sensors" key.
type Sensors struct {
	WiFiAccessPoints []AccessPointConfig `json:"wifi_access_points"`
	Cameras          []CameraConfig      `json:"cameras"`
	MmWaveSensors    []MmWaveConfig      `json:"mmwave_sensors"`
}

// Synchronization mirrors the "synchronization" key.
type Synchronization struct {
	WindowSeconds     float64 `json:"window_seconds"`
	MaxLatencySeconds float64 `json:"max_latency_seconds"`
	Strategy          string  `json:"strategy"`
}

// Retention mirrors the "retention" key.
type Retention struct {
	Enabled                bool    `json:"enabled"`
	MeasurementTTLSeconds  float64 `json:"measurement_ttl_seconds"`
	LogTTLSeconds          float64 `json:"log_ttl_seconds"`
	CleanupIntervalSeconds float64 `json:"cleanup_interval_seconds"`
}

// ConsentRecordConfig is one entry of audit.consent_records, used to seed
// the consent store at startup.
type ConsentRecordConfig struct {
	Status        string `json:"status"`
	ParticipantID string `json:"participant_id"`
	SessionID     string `json:"session_id"`
}

// Audit mirrors the "audit" key.
type Audit struct {
	Enabled        bool                  `json:"enabled"`
	RequireConsent bool                  `json:"require_consent"`
	ConsentRecords []ConsentRecordConfig `json:"consent_records"`
	PostgresDSN    string                `json:"postgres_dsn"`
	NATSURL        string                `json:"nats_url"`
}

// SourceConfig is one adapter-agnostic ingestion source entry; the "type"
// discriminator selects which adapter-specific fields apply.
type SourceConfig struct {
	Type           string         `json:"type"`
	URL            string         `json:"url"`
	TimeoutSeconds float64        `json:"timeout_seconds"`
	InitialOffsetS float64        `json:"initial_offset_s"`
	DriftTolS      float64        `json:"drift_tolerance_s"`
	MaxOffsetS     float64        `json:"max_offset_s"`
	SmoothingAlpha float64        `json:"smoothing_alpha"`
	Port           string         `json:"port"`
	BaudRate       int            `json:"baud_rate"`
	Command        []string       `json:"command"`
	CSICommand     []string       `json:"csi_command"`
	Interface      string         `json:"interface"`
	HashIdentifiers bool          `json:"hash_identifiers"`
	Extra          map[string]any `json:"extra"`
}

// Ingestion mirrors the "ingestion" key.
type Ingestion struct {
	WiFi   []SourceConfig `json:"wifi_sources"`
	Vision []SourceConfig `json:"vision_sources"`
	MmWave []SourceConfig `json:"mmwave_sources"`
	BLE    []SourceConfig `json:"ble_sources"`
}

// Config is the top-level decoded configuration document, 
// section 6.
type Config struct {
	Space           Space           `json:"space"`
	Sensors         Sensors         `json:"sensors"`
	Synchronization Synchronization `json:"synchronization"`
	Retention       Retention       `json:"retention"`
	Audit           Audit           `json:"audit"`
	Ingestion       Ingestion       `json:"ingestion"`
}

// Load reads and decodes a configuration document from path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.ConfigError{Field: "path", Reason: err.Error()}
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads and decodes a configuration document from r, then
// validates it structurally.
func Decode(r io.Reader) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, &model.ConfigError{Field: "root", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Space.WidthM <= 0 || c.Space.HeightM <= 0 {
		return &model.ConfigError{Field: "space", Reason: "width_m and height_m must be positive"}
	}
	if c.Synchronization.WindowSeconds <= 0 {
		return &model.ConfigError{Field: "synchronization.window_seconds", Reason: "must be positive"}
	}
	if c.Synchronization.MaxLatencySeconds <= 0 {
		return &model.ConfigError{Field: "synchronization.max_latency_seconds", Reason: "must be positive"}
	}
	switch syncbuf.Strategy(c.Synchronization.Strategy) {
	case syncbuf.StrategyNearest, syncbuf.StrategyInterpolate:
	default:
		return &model.ConfigError{Field: "synchronization.strategy", Reason: "must be nearest or interpolate"}
	}
	for _, ap := range c.Sensors.WiFiAccessPoints {
		if ap.ID == "" {
			return &model.ConfigError{Field: "sensors.wifi_access_points[].id", Reason: "must not be empty"}
		}
	}
	for _, cam := range c.Sensors.Cameras {
		if cam.ID == "" {
			return &model.ConfigError{Field: "sensors.cameras[].id", Reason: "must not be empty"}
		}
	}
	for _, mm := range c.Sensors.MmWaveSensors {
		if mm.ID == "" {
			return &model.ConfigError{Field: "sensors.mmwave_sensors[].id", Reason: "must not be empty"}
		}
	}
	return nil
}

// BuildRegistry constructs the immutable calibration registry
// from the decoded sensor configuration.
func (c *Config) BuildRegistry() *calibration.Registry {
	space := calibration.SpaceConfig{
		WidthM: c.Space.WidthM, HeightM: c.Space.HeightM,
		OriginX: c.Space.OriginX, OriginY: c.Space.OriginY,
	}
	reg := calibration.NewRegistry(space)
	for _, ap := range c.Sensors.WiFiAccessPoints {
		reg.AddAccessPoint(ap.ID, calibration.AccessPointCalibration{
			Position:             model.Point2D{X: ap.X, Y: ap.Y},
			PositionUncertaintyM: ap.PositionUncertaintyM,
		})
	}
	for _, cam := range c.Sensors.Cameras {
		var homography *calibration.Homography3x3
		if cam.Homography != nil {
			h := calibration.Homography3x3(*cam.Homography)
			homography = &h
		}
		reg.AddCamera(cam.ID, calibration.CameraCalibration{
			Intrinsics: calibration.CameraIntrinsics{
				FocalX: cam.FocalX, FocalY: cam.FocalY,
				PrincipalX: cam.PrincipalX, PrincipalY: cam.PrincipalY,
				Skew: cam.Skew,
			},
			Extrinsics: calibration.CameraExtrinsics{
				Translation: model.Point2D{X: cam.TranslationX, Y: cam.TranslationY},
				RotationRad: cam.RotationRad,
			},
			Homography:    homography,
			CameraHeightM: cam.CameraHeightM,
			TiltRad:       cam.TiltRad,
		})
	}
	for _, mm := range c.Sensors.MmWaveSensors {
		reg.AddMmWave(mm.ID, calibration.MmWaveCalibration{
			Position:             model.Point2D{X: mm.X, Y: mm.Y},
			RotationRad:          mm.RotationRad,
			RangeBiasM:           mm.RangeBiasM,
			AngleBiasRad:         mm.AngleBiasRad,
			PositionUncertaintyM: mm.PositionUncertaintyM,
		})
	}
	return reg
}

// BufferConfig builds a syncbuf.Config from the decoded synchronization
// section.
func (c *Config) BufferConfig() syncbuf.Config {
	return syncbuf.Config{
		WindowSeconds:     c.Synchronization.WindowSeconds,
		MaxLatencySeconds: c.Synchronization.MaxLatencySeconds,
		Strategy:          syncbuf.Strategy(c.Synchronization.Strategy),
	}
}
