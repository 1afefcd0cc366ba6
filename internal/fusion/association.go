package fusion

import (
	"math"
	"time"
)

// GatingDistanceM is the hard distance threshold rejecting improbable
// track-measurement associations.
const GatingDistanceM = 3.0

const gatingCostMultiplier = 10.0

// assignment describes the outcome of one association pass.
type assignment struct {
	matchedTrackToCandidate map[int]int // track index -> candidate index
	missedTracks            []int
	newCandidates           []int
}

// associate builds an NxM distance cost matrix from predicted track
// positions to candidate positions, pads it to square, and runs the
// Hungarian algorithm, discarding any assignment whose true distance
// exceeds the gate.
func associate(tracks []*track, candidates []candidate) assignment {
	n := len(tracks)
	m := len(candidates)

	result := assignment{matchedTrackToCandidate: make(map[int]int)}

	if n == 0 && m == 0 {
		return result
	}

	predicted := make([][2]float64, n)
	dist := make([][]float64, n)
	for i, t := range tracks {
		ts := candidateReferenceTime(candidates)
		predState, _ := t.predictTo(ts)
		predicted[i] = [2]float64{predState[0], predState[1]}
		dist[i] = make([]float64, m)
		for j, c := range candidates {
			dx := predicted[i][0] - c.position.X
			dy := predicted[i][1] - c.position.Y
			d := math.Hypot(dx, dy)
			dist[i][j] = d
		}
	}

	size := n
	if m > size {
		size = m
	}
	maxFinite := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if dist[i][j] > GatingDistanceM {
				dist[i][j] = gatingCostMultiplier * GatingDistanceM
			}
			if dist[i][j] > maxFinite {
				maxFinite = dist[i][j]
			}
		}
	}
	sentinel := maxFinite + 1

	cost := make([][]float64, size)
	for i := 0; i < size; i++ {
		cost[i] = make([]float64, size)
		for j := 0; j < size; j++ {
			switch {
			case i < n && j < m:
				cost[i][j] = dist[i][j]
			default:
				cost[i][j] = sentinel
			}
		}
	}

	assign := hungarianSolve(cost)

	matchedCandidates := make(map[int]bool)
	matchedTracks := make(map[int]bool)
	for i := 0; i < n; i++ {
		j := assign[i]
		if j < 0 || j >= m {
			continue
		}
		// True (pre-gating) distance decides survival, 
		dx := predicted[i][0] - candidates[j].position.X
		dy := predicted[i][1] - candidates[j].position.Y
		if math.Hypot(dx, dy) > GatingDistanceM {
			continue
		}
		result.matchedTrackToCandidate[i] = j
		matchedTracks[i] = true
		matchedCandidates[j] = true
	}

	for i := 0; i < n; i++ {
		if !matchedTracks[i] {
			result.missedTracks = append(result.missedTracks, i)
		}
	}
	for j := 0; j < m; j++ {
		if !matchedCandidates[j] {
			result.newCandidates = append(result.newCandidates, j)
		}
	}
	return result
}

func candidateReferenceTime(candidates []candidate) time.Time {
	if len(candidates) == 0 {
		return time.Time{}
	}
	return candidates[0].timestamp
}
