// Package model defines the typed measurement variants, track records, and
// error kinds shared across ingestion, synchronization, and fusion.
package model

import "time"

// Band is a Wi-Fi frequency band, derived during ingestion from channel or
// frequency metadata.
type Band string

const (
	Band24GHz Band = "2.4ghz"
	Band5GHz  Band = "5ghz"
	Band6GHz  Band = "6ghz"
)

// WiFiMeasurement is one RSSI/CSI observation from a calibrated access
// point.
type WiFiMeasurement struct {
	Timestamp     time.Time
	AccessPointID string
	RSSIDBm       float64
	CSI           []float64
	Channel       *int
	Band          Band
	Metadata      map[string]any
}

// BBox is an axis-aligned bounding box with x_min<=x_max and y_min<=y_max.
type BBox struct {
	XMin, YMin, XMax, YMax float64
}

// Point2D is a generic 2-D coordinate, used for keypoints and positions.
type Point2D struct {
	X, Y float64
}

// Detection is one camera observation, optionally carrying pose keypoints.
type Detection struct {
	Timestamp  time.Time
	CameraID   string
	BBox       BBox
	Confidence float64
	Keypoints  []Point2D
}

// MmWaveEventType distinguishes a presence trigger from a motion trigger.
type MmWaveEventType string

const (
	MmWavePresence MmWaveEventType = "presence"
	MmWaveMotion   MmWaveEventType = "motion"
)

// MmWaveMeasurement is one radar event, with optional range/angle.
type MmWaveMeasurement struct {
	Timestamp  time.Time
	SensorID   string
	Confidence float64
	EventType  MmWaveEventType
	RangeM     *float64
	AngleRad   *float64
	Metadata   map[string]any
}

// BLEMeasurement is one advertisement observation. At least one of
// DeviceID or HashedIdentifier must be set.
type BLEMeasurement struct {
	Timestamp         time.Time
	RSSIDBm           float64
	DeviceID          string
	HashedIdentifier  string
	Channel           *int
	ManufacturerData  map[string][]byte
	ServiceData       map[string][]byte
}

// FusionInput is the per-tick bundle of aligned measurements fed to the
// fusion core.
type FusionInput struct {
	WiFi   []WiFiMeasurement
	Vision []Detection
	MmWave []MmWaveMeasurement
	BLE    []BLEMeasurement
}

func (f FusionInput) Empty() bool {
	return len(f.WiFi) == 0 && len(f.Vision) == 0 && len(f.MmWave) == 0 && len(f.BLE) == 0
}

// BatchStatus carries per-tick alignment bookkeeping alongside a
// FusionInput.
type BatchStatus struct {
	ReferenceTime    time.Time
	WiFiStale        bool
	VisionStale      bool
	MmWaveStale      bool
	BLEStale         bool
	DroppedWiFi      int
	DroppedVision    int
	DroppedMmWave    int
	DroppedBLE       int
	WindowSeconds    float64
	MaxLatencySecs   float64
	Strategy         string
}

// SyncBatch is the output of the synchronization buffer's Emit.
type SyncBatch struct {
	Input  FusionInput
	Status BatchStatus
}

// TrackStatus is the lifecycle state of a track.
type TrackStatus string

const (
	TrackInit       TrackStatus = "init"
	TrackConfirmed  TrackStatus = "confirmed"
	TrackLost       TrackStatus = "lost"
	TrackTerminated TrackStatus = "terminated"
)

// AlertTier is the severity label attached to every track emitted on a
// tick.
type AlertTier string

const (
	AlertNone   AlertTier = "none"
	AlertBlue   AlertTier = "blue"
	AlertYellow AlertTier = "yellow"
	AlertOrange AlertTier = "orange"
	AlertRed    AlertTier = "red"
)

// TrackState is the emitted, independent snapshot of a live track.
type TrackState struct {
	TrackID    string
	Timestamp  time.Time
	Position   Point2D
	Velocity   *Point2D
	Uncertainty Point2D
	Confidence float64
	AlertTier  AlertTier
}
