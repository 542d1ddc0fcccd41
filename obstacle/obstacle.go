// Package obstacle defines the planner's view of workspace obstacles and a
// set of simple geometric implementations.
package obstacle

import (
	"math"

	"github.com/golang/geo/r2"
)

// Obstacle is a 2D workspace obstacle. Obstacles are read-only for the
// duration of a planning cycle; callers wishing to move them must do so
// between cycles.
type Obstacle interface {
	// Centroid returns the obstacle's reference point.
	Centroid() r2.Point
	// Collides reports whether the given point is within buffer of the
	// obstacle.
	Collides(p r2.Point, buffer float64) bool
	// IntersectsSegment reports whether the segment from a to b passes within
	// buffer of the obstacle.
	IntersectsSegment(a, b r2.Point, buffer float64) bool
	// MinDistanceTo returns the minimum distance from the point to the
	// obstacle. Points inside an obstacle with extent report zero or a
	// negative value, depending on the implementation.
	MinDistanceTo(p r2.Point) float64
}

// PointObstacle is a dimensionless obstacle.
type PointObstacle struct {
	pos r2.Point
}

// NewPointObstacle creates a point obstacle at the given coordinates.
func NewPointObstacle(x, y float64) *PointObstacle {
	return &PointObstacle{pos: r2.Point{X: x, Y: y}}
}

// Centroid returns the obstacle position.
func (o *PointObstacle) Centroid() r2.Point { return o.pos }

// MinDistanceTo returns the distance from p to the obstacle.
func (o *PointObstacle) MinDistanceTo(p r2.Point) float64 { return p.Sub(o.pos).Norm() }

// Collides reports whether p is within buffer of the obstacle.
func (o *PointObstacle) Collides(p r2.Point, buffer float64) bool {
	return o.MinDistanceTo(p) <= buffer
}

// IntersectsSegment reports whether the segment passes within buffer.
func (o *PointObstacle) IntersectsSegment(a, b r2.Point, buffer float64) bool {
	return distPointToSegment(o.pos, a, b) <= buffer
}

// CircularObstacle is a disc obstacle.
type CircularObstacle struct {
	pos    r2.Point
	radius float64
}

// NewCircularObstacle creates a disc obstacle with the given center and radius.
func NewCircularObstacle(x, y, radius float64) *CircularObstacle {
	return &CircularObstacle{pos: r2.Point{X: x, Y: y}, radius: radius}
}

// Centroid returns the disc center.
func (o *CircularObstacle) Centroid() r2.Point { return o.pos }

// Radius returns the disc radius.
func (o *CircularObstacle) Radius() float64 { return o.radius }

// MinDistanceTo returns the distance from p to the disc boundary. Points
// inside the disc report a negative distance.
func (o *CircularObstacle) MinDistanceTo(p r2.Point) float64 {
	return p.Sub(o.pos).Norm() - o.radius
}

// Collides reports whether p is within buffer of the disc.
func (o *CircularObstacle) Collides(p r2.Point, buffer float64) bool {
	return o.MinDistanceTo(p) <= buffer
}

// IntersectsSegment reports whether the segment passes within buffer of the disc.
func (o *CircularObstacle) IntersectsSegment(a, b r2.Point, buffer float64) bool {
	return distPointToSegment(o.pos, a, b) <= o.radius+buffer
}

// LineObstacle is a segment obstacle, e.g. a wall.
type LineObstacle struct {
	start, end r2.Point
}

// NewLineObstacle creates a segment obstacle between the two endpoints.
func NewLineObstacle(x1, y1, x2, y2 float64) *LineObstacle {
	return &LineObstacle{start: r2.Point{X: x1, Y: y1}, end: r2.Point{X: x2, Y: y2}}
}

// Centroid returns the segment midpoint.
func (o *LineObstacle) Centroid() r2.Point {
	return o.start.Add(o.end).Mul(0.5)
}

// MinDistanceTo returns the distance from p to the segment.
func (o *LineObstacle) MinDistanceTo(p r2.Point) float64 {
	return distPointToSegment(p, o.start, o.end)
}

// Collides reports whether p is within buffer of the segment.
func (o *LineObstacle) Collides(p r2.Point, buffer float64) bool {
	return o.MinDistanceTo(p) <= buffer
}

// IntersectsSegment reports whether the query segment passes within buffer.
func (o *LineObstacle) IntersectsSegment(a, b r2.Point, buffer float64) bool {
	return distSegmentToSegment(a, b, o.start, o.end) <= buffer
}

// PolygonObstacle is a closed polygon obstacle described by its vertices in
// order. The polygon is treated as its boundary plus interior.
type PolygonObstacle struct {
	vertices []r2.Point
	centroid r2.Point
}

// NewPolygonObstacle creates a polygon obstacle. At least three vertices are
// expected; fewer degrade to point/segment behavior.
func NewPolygonObstacle(vertices []r2.Point) *PolygonObstacle {
	var sum r2.Point
	for _, v := range vertices {
		sum = sum.Add(v)
	}
	centroid := sum
	if len(vertices) > 0 {
		centroid = sum.Mul(1 / float64(len(vertices)))
	}
	return &PolygonObstacle{vertices: vertices, centroid: centroid}
}

// Centroid returns the vertex centroid.
func (o *PolygonObstacle) Centroid() r2.Point { return o.centroid }

// MinDistanceTo returns the distance from p to the polygon. Points inside
// report zero.
func (o *PolygonObstacle) MinDistanceTo(p r2.Point) float64 {
	if len(o.vertices) == 0 {
		return math.Inf(1)
	}
	if len(o.vertices) == 1 {
		return p.Sub(o.vertices[0]).Norm()
	}
	if o.contains(p) {
		return 0
	}
	min := math.Inf(1)
	for i := range o.vertices {
		j := (i + 1) % len(o.vertices)
		if d := distPointToSegment(p, o.vertices[i], o.vertices[j]); d < min {
			min = d
		}
	}
	return min
}

// Collides reports whether p is within buffer of the polygon.
func (o *PolygonObstacle) Collides(p r2.Point, buffer float64) bool {
	return o.MinDistanceTo(p) <= buffer
}

// IntersectsSegment reports whether the segment passes within buffer of the
// polygon.
func (o *PolygonObstacle) IntersectsSegment(a, b r2.Point, buffer float64) bool {
	if o.contains(a) || o.contains(b) {
		return true
	}
	for i := range o.vertices {
		j := (i + 1) % len(o.vertices)
		if distSegmentToSegment(a, b, o.vertices[i], o.vertices[j]) <= buffer {
			return true
		}
	}
	return false
}

// contains implements an even-odd ray cast.
func (o *PolygonObstacle) contains(p r2.Point) bool {
	if len(o.vertices) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(o.vertices)-1; i < len(o.vertices); j, i = i, i+1 {
		vi, vj := o.vertices[i], o.vertices[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
	}
	return inside
}

// distPointToSegment returns the distance from p to the segment ab.
func distPointToSegment(p, a, b r2.Point) float64 {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq == 0 {
		return p.Sub(a).Norm()
	}
	t := p.Sub(a).Dot(ab) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := a.Add(ab.Mul(t))
	return p.Sub(closest).Norm()
}

// distSegmentToSegment returns the distance between segments ab and cd.
func distSegmentToSegment(a, b, c, d r2.Point) float64 {
	if segmentsCross(a, b, c, d) {
		return 0
	}
	min := distPointToSegment(a, c, d)
	if v := distPointToSegment(b, c, d); v < min {
		min = v
	}
	if v := distPointToSegment(c, a, b); v < min {
		min = v
	}
	if v := distPointToSegment(d, a, b); v < min {
		min = v
	}
	return min
}

// segmentsCross reports whether segments ab and cd properly intersect.
func segmentsCross(a, b, c, d r2.Point) bool {
	d1 := b.Sub(a).Cross(c.Sub(a))
	d2 := b.Sub(a).Cross(d.Sub(a))
	d3 := d.Sub(c).Cross(a.Sub(c))
	d4 := d.Sub(c).Cross(b.Sub(c))
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	onSegment := func(p, q, r r2.Point) bool {
		return math.Min(p.X, r.X) <= q.X && q.X <= math.Max(p.X, r.X) &&
			math.Min(p.Y, r.Y) <= q.Y && q.Y <= math.Max(p.Y, r.Y)
	}
	switch {
	case d1 == 0 && onSegment(a, c, b):
		return true
	case d2 == 0 && onSegment(a, d, b):
		return true
	case d3 == 0 && onSegment(c, a, d):
		return true
	case d4 == 0 && onSegment(c, b, d):
		return true
	}
	return false
}
