package fusion

import (
	"time"

	"github.com/asgard/aegis/internal/model"
)

// Lifecycle thresholds governing confirm/lost/terminate transitions.
const (
	ConfirmHits    = 2
	LostMisses     = 2
	TerminateMisses = 4
	missConfidenceDecay = 0.85
	matchConfidenceOldWeight = 0.7
	matchConfidenceNewWeight = 0.3
)

// track is the fusion core's internal, mutable record of a live track.
// Ownership is exclusive to the fusion core; only TrackState snapshots
// leave it.
type track struct {
	id         string
	timestamp  time.Time
	state      Vec4
	cov        Mat4
	confidence float64
	status     model.TrackStatus
	hits       int
	misses     int
}

// newTrack initializes a track from an unassigned candidate: state
// (x,y,0,0), covariance diag(sigmaX^2, sigmaY^2, 4, 4).
func newTrack(id string, c candidate) *track {
	return &track{
		id:        id,
		timestamp: c.timestamp,
		state:     Vec4{c.position.X, c.position.Y, 0, 0},
		cov: Mat4{
			{c.uncertainty.X * c.uncertainty.X, 0, 0, 0},
			{0, c.uncertainty.Y * c.uncertainty.Y, 0, 0},
			{0, 0, 4, 0},
			{0, 0, 0, 4},
		},
		confidence: c.confidence,
		status:     model.TrackInit,
		hits:       1,
		misses:     0,
	}
}

// predictTo advances the track's state/covariance to ts without mutating
// confidence or lifecycle counters; used both for association distance
// computation and for the authoritative predict step.
func (t *track) predictTo(ts time.Time) (Vec4, Mat4) {
	dt := ts.Sub(t.timestamp).Seconds()
	if dt < 0 {
		dt = 0
	}
	return kalmanPredict(t.state, t.cov, dt)
}

// applyMatch runs predict+update against a matched candidate and advances
// the lifecycle counters.
func (t *track) applyMatch(c candidate) {
	predState, predCov := t.predictTo(c.timestamp)
	sigmaX, sigmaY := c.uncertainty.X, c.uncertainty.Y
	newState, newCov := kalmanUpdate(predState, predCov, [2]float64{c.position.X, c.position.Y}, sigmaX, sigmaY)

	t.state = newState
	t.cov = newCov
	t.timestamp = c.timestamp
	t.hits++
	t.misses = 0
	t.confidence = matchConfidenceOldWeight*t.confidence + matchConfidenceNewWeight*c.confidence

	if (t.status == model.TrackInit || t.status == model.TrackLost) && t.hits >= ConfirmHits {
		t.status = model.TrackConfirmed
	}
}

// applyMiss advances the track by predicting only (no measurement
// update), decays confidence, and advances miss-based lifecycle
// transitions. Returns false if the track should be dropped entirely.
func (t *track) applyMiss(ts time.Time) bool {
	newState, newCov := t.predictTo(ts)
	t.state = newState
	t.cov = newCov
	t.timestamp = ts
	t.misses++
	t.confidence *= missConfidenceDecay

	if t.misses >= TerminateMisses {
		t.status = model.TrackTerminated
		return false
	}
	if t.misses >= LostMisses {
		t.status = model.TrackLost
	}
	return true
}

func (t *track) snapshot(tier model.AlertTier) model.TrackState {
	sigmaX, sigmaY := positionUncertainty(t.cov)
	vel := model.Point2D{X: t.state[2], Y: t.state[3]}
	return model.TrackState{
		TrackID:     t.id,
		Timestamp:   t.timestamp,
		Position:    model.Point2D{X: t.state[0], Y: t.state[1]},
		Velocity:    &vel,
		Uncertainty: model.Point2D{X: sigmaX, Y: sigmaY},
		Confidence:  clamp01(t.confidence),
		AlertTier:   tier,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
