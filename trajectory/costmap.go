package trajectory

import (
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/hcplanner/obstacle"
)

// CostmapModel scores a robot footprint at a pose. A negative cost means the
// footprint is in collision.
type CostmapModel interface {
	FootprintCost(x, y, theta float64, footprint []r2.Point, inscribedRadius, circumscribedRadius float64) float64
}

// ObstacleCostmap implements CostmapModel directly over an obstacle set. It
// is used by tests and by deployments without a grid costmap.
type ObstacleCostmap struct {
	obstacles []obstacle.Obstacle
}

// NewObstacleCostmap creates a costmap over the given obstacles.
func NewObstacleCostmap(obstacles []obstacle.Obstacle) *ObstacleCostmap {
	return &ObstacleCostmap{obstacles: obstacles}
}

// FootprintCost returns the clearance of the footprint center beyond the
// inscribed radius, capped at circumscribedRadius-inscribedRadius. It returns
// a negative value when an obstacle intersects the placed footprint outline
// or lies closer to the center than the inscribed radius.
func (cm *ObstacleCostmap) FootprintCost(
	x, y, theta float64,
	footprint []r2.Point,
	inscribedRadius, circumscribedRadius float64,
) float64 {
	center := r2.Point{X: x, Y: y}
	placed := placeFootprint(footprint, center, theta)

	clearance := math.Inf(1)
	for _, obst := range cm.obstacles {
		if d := obst.MinDistanceTo(center); d < clearance {
			clearance = d
		}
		for i := 0; i < len(placed); i++ {
			j := (i + 1) % len(placed)
			if obst.IntersectsSegment(placed[i], placed[j], 0) {
				return -1
			}
		}
	}
	if clearance < inscribedRadius {
		return -1
	}
	if clearance > circumscribedRadius {
		return circumscribedRadius - inscribedRadius
	}
	return clearance - inscribedRadius
}

// placeFootprint transforms footprint vertices from the robot frame into the
// world frame at the given pose.
func placeFootprint(footprint []r2.Point, center r2.Point, theta float64) []r2.Point {
	cos, sin := math.Cos(theta), math.Sin(theta)
	placed := make([]r2.Point, len(footprint))
	for i, v := range footprint {
		placed[i] = r2.Point{
			X: center.X + v.X*cos - v.Y*sin,
			Y: center.Y + v.X*sin + v.Y*cos,
		}
	}
	return placed
}
