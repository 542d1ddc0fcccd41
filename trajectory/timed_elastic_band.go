// Package trajectory implements the timed elastic band trajectory
// representation and the per-candidate band optimizer.
package trajectory

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/hcplanner/spatialmath"
)

// TimedElasticBand is a time-parameterized discrete trajectory: an ordered
// pose sequence plus a positive time difference for each segment between
// consecutive poses.
type TimedElasticBand struct {
	poses     []spatialmath.PoseSE2
	timeDiffs []float64
}

// NewTimedElasticBand returns an empty band.
func NewTimedElasticBand() *TimedElasticBand {
	return &TimedElasticBand{}
}

// InitFromPolyline seeds the band from an ordered polyline. Interior
// orientations are taken from the segment directions; the boundary
// orientations are fixed to startTheta and goalTheta. Each segment gets a
// uniform time estimate of dtRef.
func (band *TimedElasticBand) InitFromPolyline(points []r2.Point, startTheta, goalTheta, dtRef float64) error {
	if len(points) < 2 {
		return errors.New("polyline must contain at least two points")
	}
	band.poses = make([]spatialmath.PoseSE2, 0, len(points))
	band.timeDiffs = make([]float64, 0, len(points)-1)
	for i, pt := range points {
		var theta float64
		switch i {
		case 0:
			theta = startTheta
		case len(points) - 1:
			theta = goalTheta
		default:
			dir := points[i+1].Sub(pt)
			theta = math.Atan2(dir.Y, dir.X)
		}
		band.poses = append(band.poses, spatialmath.NewPoseSE2FromPoint(pt, theta))
		if i > 0 {
			band.timeDiffs = append(band.timeDiffs, dtRef)
		}
	}
	return nil
}

// Len returns the number of poses in the band.
func (band *TimedElasticBand) Len() int { return len(band.poses) }

// Pose returns the pose at index i.
func (band *TimedElasticBand) Pose(i int) spatialmath.PoseSE2 { return band.poses[i] }

// SetPose overwrites the pose at index i.
func (band *TimedElasticBand) SetPose(i int, pose spatialmath.PoseSE2) { band.poses[i] = pose }

// Poses returns the band's pose sequence. The slice is owned by the band and
// must not be modified by callers.
func (band *TimedElasticBand) Poses() []spatialmath.PoseSE2 { return band.poses }

// TimeDiff returns the time difference of segment i.
func (band *TimedElasticBand) TimeDiff(i int) float64 { return band.timeDiffs[i] }

// SetTimeDiff overwrites the time difference of segment i.
func (band *TimedElasticBand) SetTimeDiff(i int, dt float64) { band.timeDiffs[i] = dt }

// Duration returns the summed time differences.
func (band *TimedElasticBand) Duration() float64 {
	var sum float64
	for _, dt := range band.timeDiffs {
		sum += dt
	}
	return sum
}

// InsertPose inserts a pose before index i with the given preceding time
// difference.
func (band *TimedElasticBand) InsertPose(i int, pose spatialmath.PoseSE2, dt float64) {
	band.poses = append(band.poses, spatialmath.PoseSE2{})
	copy(band.poses[i+1:], band.poses[i:])
	band.poses[i] = pose
	band.timeDiffs = append(band.timeDiffs, 0)
	copy(band.timeDiffs[i:], band.timeDiffs[i-1:])
	band.timeDiffs[i-1] = dt
}

// RemovePose removes the pose at index i, merging its segments. The boundary
// poses cannot be removed.
func (band *TimedElasticBand) RemovePose(i int) {
	if i <= 0 || i >= len(band.poses)-1 {
		return
	}
	band.poses = append(band.poses[:i], band.poses[i+1:]...)
	band.timeDiffs[i-1] += band.timeDiffs[i]
	band.timeDiffs = append(band.timeDiffs[:i], band.timeDiffs[i+1:]...)
}

// ClosestPoseIndexTo returns the index of the band pose nearest to p.
func (band *TimedElasticBand) ClosestPoseIndexTo(p r2.Point) int {
	best := 0
	bestDist := math.Inf(1)
	for i, pose := range band.poses {
		if d := pose.Position.Sub(p).Norm(); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// UpdateAndPrune re-anchors the band to new boundary conditions. When a start
// is given, leading poses the robot has already passed are removed (keeping at
// least minSamples) and the first pose is overwritten; when a goal is given,
// the last pose is overwritten.
func (band *TimedElasticBand) UpdateAndPrune(start, goal *spatialmath.PoseSE2, minSamples int) {
	if len(band.poses) == 0 {
		return
	}
	if start != nil {
		nearest := 0
		bestDist := math.Inf(1)
		// Only consider a bounded prefix so a far-future loop of the band
		// cannot swallow the whole trajectory.
		limit := len(band.poses) - 1
		if limit > 10 {
			limit = 10
		}
		for i := 0; i <= limit; i++ {
			d := band.poses[i].Position.Sub(start.Position).Norm()
			if d < bestDist {
				bestDist = d
				nearest = i
			}
		}
		for i := 0; i < nearest && len(band.poses) > minSamples; i++ {
			band.poses = band.poses[1:]
			band.timeDiffs = band.timeDiffs[1:]
		}
		band.poses[0] = *start
	}
	if goal != nil {
		band.poses[len(band.poses)-1] = *goal
	}
}

// AutoResize splits segments whose time difference exceeds dtRef+dtHysteresis
// and merges segments below dtRef-dtHysteresis, staying within the sample
// bounds. Sweeps are bounded to keep the call iteration-limited.
func (band *TimedElasticBand) AutoResize(dtRef, dtHysteresis float64, minSamples, maxSamples int) {
	const maxSweeps = 100
	for sweep := 0; sweep < maxSweeps; sweep++ {
		changed := false
		for i := 0; i < len(band.timeDiffs); i++ {
			switch {
			case band.timeDiffs[i] > dtRef+dtHysteresis && len(band.poses) < maxSamples:
				mid := spatialmath.Interpolate(band.poses[i], band.poses[i+1], 0.5)
				dt := band.timeDiffs[i] / 2
				band.timeDiffs[i] = dt
				band.InsertPose(i+1, mid, dt)
				changed = true
			case band.timeDiffs[i] < dtRef-dtHysteresis && len(band.poses) > minSamples && i < len(band.timeDiffs)-1:
				band.RemovePose(i + 1)
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}
