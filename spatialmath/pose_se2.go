// Package spatialmath provides planar rigid-body math for the planner.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// PoseSE2 is a rigid 2D pose: a position in the plane plus an orientation.
// Theta is always normalized to (-pi, pi]. PoseSE2 is a value type; methods
// never mutate their receiver.
type PoseSE2 struct {
	Position r2.Point
	Theta    float64
}

// NewPoseSE2 creates a pose from x/y coordinates and an orientation.
func NewPoseSE2(x, y, theta float64) PoseSE2 {
	return PoseSE2{Position: r2.Point{X: x, Y: y}, Theta: NormalizeTheta(theta)}
}

// NewPoseSE2FromPoint creates a pose at the given point.
func NewPoseSE2FromPoint(p r2.Point, theta float64) PoseSE2 {
	return PoseSE2{Position: p, Theta: NormalizeTheta(theta)}
}

// Unit returns the pose's heading as a unit vector.
func (p PoseSE2) Unit() r2.Point {
	return r2.Point{X: math.Cos(p.Theta), Y: math.Sin(p.Theta)}
}

// Distance returns the Euclidean distance between the positions of two poses.
func (p PoseSE2) Distance(o PoseSE2) float64 {
	return p.Position.Sub(o.Position).Norm()
}

// Translate returns a copy of the pose shifted by the given offset.
func (p PoseSE2) Translate(offset r2.Point) PoseSE2 {
	return PoseSE2{Position: p.Position.Add(offset), Theta: p.Theta}
}

func (p PoseSE2) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", p.Position.X, p.Position.Y, p.Theta)
}

// Interpolate returns the pose a fraction `by` of the way from a to b,
// interpolating the orientation along the shorter arc.
func Interpolate(a, b PoseSE2, by float64) PoseSE2 {
	pos := a.Position.Add(b.Position.Sub(a.Position).Mul(by))
	theta := a.Theta + NormalizeTheta(b.Theta-a.Theta)*by
	return PoseSE2{Position: pos, Theta: NormalizeTheta(theta)}
}

// NormalizeTheta wraps an angle in radians to (-pi, pi].
func NormalizeTheta(theta float64) float64 {
	theta = math.Mod(theta, 2*math.Pi)
	if theta > math.Pi {
		theta -= 2 * math.Pi
	} else if theta <= -math.Pi {
		theta += 2 * math.Pi
	}
	return theta
}

// AverageTheta returns the circular mean of two angles.
func AverageTheta(a, b float64) float64 {
	x := math.Cos(a) + math.Cos(b)
	y := math.Sin(a) + math.Sin(b)
	return math.Atan2(y, x)
}

// Velocity2 is a planar velocity command: linear velocity along the heading
// and angular velocity about the vertical axis.
type Velocity2 struct {
	Linear  float64
	Angular float64
}

// IsZero reports whether both components are exactly zero.
func (v Velocity2) IsZero() bool {
	return v.Linear == 0 && v.Angular == 0
}

func (v Velocity2) String() string {
	return fmt.Sprintf("(v=%.3f, w=%.3f)", v.Linear, v.Angular)
}
