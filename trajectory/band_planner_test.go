package trajectory

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/hcplanner/config"
	"go.viam.com/hcplanner/logging"
	"go.viam.com/hcplanner/obstacle"
	"go.viam.com/hcplanner/spatialmath"
)

func testBandPlanner(t *testing.T, obstacles []obstacle.Obstacle, points ...r2.Point) *BandPlanner {
	t.Helper()
	p, err := NewBandPlannerFromPolyline(
		config.Default(), obstacles, logging.NewTestLogger(t), points, 0, 0,
	)
	test.That(t, err, test.ShouldBeNil)
	return p
}

func TestOptimizeComputesCosts(t *testing.T) {
	p := testBandPlanner(t, nil,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 1}, r2.Point{X: 10, Y: 0})

	test.That(t, p.Cost(), test.ShouldBeNil)
	test.That(t, math.IsInf(p.CostSum(), 1), test.ShouldBeTrue)

	err := p.Optimize(5, 4, true)
	test.That(t, err, test.ShouldBeNil)
	cost := p.Cost()
	test.That(t, cost, test.ShouldHaveLength, 3)
	test.That(t, math.IsInf(p.CostSum(), 1), test.ShouldBeFalse)
	test.That(t, p.CostSum(), test.ShouldBeGreaterThan, 0)
}

func TestOptimizeEmptyBandFails(t *testing.T) {
	p := NewBandPlanner(config.Default(), nil, logging.NewTestLogger(t))
	err := p.Optimize(5, 4, true)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, math.IsInf(p.CostSum(), 1), test.ShouldBeTrue)
}

func TestOptimizeKeepsClearance(t *testing.T) {
	obstacles := []obstacle.Obstacle{obstacle.NewPointObstacle(5, 0)}
	p := testBandPlanner(t, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0.6}, r2.Point{X: 10, Y: 0})

	err := p.Optimize(5, 10, true)
	test.That(t, err, test.ShouldBeNil)

	// The contraction must not drag the band into the obstacle's clearance
	// zone: the closest pose stays a sensible fraction of min_obstacle_dist
	// away.
	minDist := math.Inf(1)
	for _, pose := range p.Band().Poses() {
		if d := obstacles[0].MinDistanceTo(pose.Position); d < minDist {
			minDist = d
		}
	}
	test.That(t, minDist, test.ShouldBeGreaterThan, 0.2)

	// Boundary poses are fixed.
	test.That(t, p.Band().Pose(0).Position, test.ShouldResemble, r2.Point{X: 0, Y: 0})
	test.That(t, p.Band().Pose(p.Band().Len()-1).Position, test.ShouldResemble, r2.Point{X: 10, Y: 0})
}

func TestDetectDetoursBackwards(t *testing.T) {
	forward := testBandPlanner(t, nil,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, r2.Point{X: 10, Y: 0})
	test.That(t, forward.DetectDetoursBackwards(0.0), test.ShouldBeFalse)

	doubling := testBandPlanner(t, nil,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, r2.Point{X: 3, Y: 0}, r2.Point{X: 10, Y: 0})
	test.That(t, doubling.DetectDetoursBackwards(0.0), test.ShouldBeTrue)

	// A lateral excursion is a detour only under a stricter cosine bound.
	lateral := testBandPlanner(t, nil,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 4.9}, r2.Point{X: 10, Y: 0})
	test.That(t, lateral.DetectDetoursBackwards(0.0), test.ShouldBeFalse)
	test.That(t, lateral.DetectDetoursBackwards(0.9), test.ShouldBeTrue)
}

func TestVelocityCommand(t *testing.T) {
	p := testBandPlanner(t, nil,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, r2.Point{X: 10, Y: 0})
	err := p.Optimize(5, 4, true)
	test.That(t, err, test.ShouldBeNil)

	cmd, err := p.VelocityCommand()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmd.Linear, test.ShouldBeGreaterThan, 0)
	test.That(t, cmd.Linear, test.ShouldBeLessThanOrEqualTo, config.Default().Optim.MaxVelX)
	test.That(t, math.Abs(cmd.Angular), test.ShouldBeLessThanOrEqualTo, config.Default().Optim.MaxVelTheta)
}

func TestVelocityCommandEmptyBand(t *testing.T) {
	p := NewBandPlanner(config.Default(), nil, logging.NewTestLogger(t))
	_, err := p.VelocityCommand()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFeasibleAhead(t *testing.T) {
	p := testBandPlanner(t, nil,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, r2.Point{X: 10, Y: 0})
	footprint := []r2.Point{{X: 0.1, Y: 0.1}, {X: -0.1, Y: 0.1}, {X: -0.1, Y: -0.1}, {X: 0.1, Y: -0.1}}

	free := NewObstacleCostmap(nil)
	test.That(t, p.FeasibleAhead(free, footprint, 0.1, 0.2, 2), test.ShouldBeTrue)

	blocked := NewObstacleCostmap([]obstacle.Obstacle{obstacle.NewCircularObstacle(5, 0, 0.3)})
	test.That(t, p.FeasibleAhead(blocked, footprint, 0.1, 0.2, 2), test.ShouldBeFalse)
}

func TestStartVelocityShapesLeadingTiming(t *testing.T) {
	p := testBandPlanner(t, nil,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, r2.Point{X: 10, Y: 0})
	p.SetStartVelocity(spatialmath.Velocity2{Linear: 0.1})
	err := p.Optimize(5, 4, true)
	test.That(t, err, test.ShouldBeNil)

	// The first segment is timed at the current velocity, the rest at the
	// velocity limit, so the leading segment takes proportionally longer.
	band := p.Band()
	dist0 := band.Pose(1).Distance(band.Pose(0))
	test.That(t, band.TimeDiff(0), test.ShouldAlmostEqual, dist0/0.1, 1e-9)
}
