// Package calibration holds the immutable, process-scoped calibration
// tables for access points, cameras, and mmWave sensors, and the space the
// fused tracks live in.
package calibration

import "github.com/asgard/aegis/internal/model"

// AccessPointCalibration fixes the world position of a Wi-Fi AP.
type AccessPointCalibration struct {
	Position         model.Point2D
	PositionUncertaintyM float64
}

// CameraIntrinsics describes a pinhole camera's internal parameters.
type CameraIntrinsics struct {
	FocalX, FocalY     float64
	PrincipalX, PrincipalY float64
	Skew               float64
}

// CameraExtrinsics describes a camera's pose relative to the world frame.
type CameraExtrinsics struct {
	Translation model.Point2D
	RotationRad float64
}

// Homography3x3 is a 3x3 projective transform mapping image-plane points
// to world-plane points on the ground.
type Homography3x3 [3][3]float64

// CameraCalibration combines intrinsics, extrinsics, and an optional
// homography used for foot-point projection.
type CameraCalibration struct {
	Intrinsics    CameraIntrinsics
	Extrinsics    CameraExtrinsics
	Homography    *Homography3x3
	CameraHeightM *float64
	TiltRad       *float64
}

// MmWaveCalibration fixes a radar's world pose and systematic biases.
type MmWaveCalibration struct {
	Position             model.Point2D
	RotationRad          float64
	RangeBiasM           float64
	AngleBiasRad         float64
	PositionUncertaintyM float64
}

// SpaceConfig describes the floor space tracks are reported in.
type SpaceConfig struct {
	WidthM, HeightM float64
	OriginX, OriginY float64
}

// Registry is the immutable, process-scoped lookup table for all
// calibration entries. It is safe to share across goroutines once built.
type Registry struct {
	Space   SpaceConfig
	ap      map[string]AccessPointCalibration
	cameras map[string]CameraCalibration
	mmwave  map[string]MmWaveCalibration
}

func NewRegistry(space SpaceConfig) *Registry {
	return &Registry{
		Space:   space,
		ap:      make(map[string]AccessPointCalibration),
		cameras: make(map[string]CameraCalibration),
		mmwave:  make(map[string]MmWaveCalibration),
	}
}

func (r *Registry) AddAccessPoint(id string, c AccessPointCalibration) {
	r.ap[id] = c
}

func (r *Registry) AddCamera(id string, c CameraCalibration) {
	r.cameras[id] = c
}

func (r *Registry) AddMmWave(id string, c MmWaveCalibration) {
	r.mmwave[id] = c
}

func (r *Registry) AccessPoint(id string) (AccessPointCalibration, bool) {
	c, ok := r.ap[id]
	return c, ok
}

func (r *Registry) Camera(id string) (CameraCalibration, bool) {
	c, ok := r.cameras[id]
	return c, ok
}

func (r *Registry) MmWave(id string) (MmWaveCalibration, bool) {
	c, ok := r.mmwave[id]
	return c, ok
}

// RequireAccessPoint looks up an AP calibration or fails with a
// CalibrationError. Unknown sensor ids are always fatal to the caller.
func (r *Registry) RequireAccessPoint(id string) (AccessPointCalibration, error) {
	c, ok := r.ap[id]
	if !ok {
		return AccessPointCalibration{}, &model.CalibrationError{Modality: "wifi", SourceID: id}
	}
	return c, nil
}

// RequireCamera looks up a camera calibration or fails with a
// CalibrationError.
func (r *Registry) RequireCamera(id string) (CameraCalibration, error) {
	c, ok := r.cameras[id]
	if !ok {
		return CameraCalibration{}, &model.CalibrationError{Modality: "vision", SourceID: id}
	}
	return c, nil
}
