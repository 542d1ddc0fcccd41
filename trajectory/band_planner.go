package trajectory

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/hcplanner/config"
	"go.viam.com/hcplanner/logging"
	"go.viam.com/hcplanner/obstacle"
	"go.viam.com/hcplanner/spatialmath"
)

// gradientStepSize scales a single elastic-band deformation step. The
// smoothness and obstacle weights from the optim config are divided by their
// sum before being scaled by it, so large obstacle weights do not destabilize
// the band.
const gradientStepSize = 0.1

var errBandTooShort = errors.New("band has fewer than two poses")

// BandPlanner owns one timed elastic band and deforms it under obstacle,
// smoothness, and time penalties. It is the per-candidate trajectory
// optimizer; each candidate in the pool holds exactly one.
type BandPlanner struct {
	id        string
	logger    logging.Logger
	cfg       *config.Config
	obstacles []obstacle.Obstacle

	band     *TimedElasticBand
	startVel *spatialmath.Velocity2

	// costs holds the [obstacle, smoothness, time] penalty vector from the
	// last optimize call; nil until then.
	costs  []float64
	failed bool
}

// NewBandPlanner creates a planner around an empty band. Obstacles are
// borrowed and must stay stable for the duration of a planning cycle.
func NewBandPlanner(cfg *config.Config, obstacles []obstacle.Obstacle, logger logging.Logger) *BandPlanner {
	return &BandPlanner{
		id:        uuid.NewString(),
		logger:    logger,
		cfg:       cfg,
		obstacles: obstacles,
		band:      NewTimedElasticBand(),
	}
}

// NewBandPlannerFromPolyline creates a planner whose band is seeded from the
// given polyline and boundary orientations.
func NewBandPlannerFromPolyline(
	cfg *config.Config,
	obstacles []obstacle.Obstacle,
	logger logging.Logger,
	points []r2.Point,
	startTheta, goalTheta float64,
) (*BandPlanner, error) {
	p := NewBandPlanner(cfg, obstacles, logger)
	if err := p.band.InitFromPolyline(points, startTheta, goalTheta, cfg.Optim.DtRef); err != nil {
		return nil, err
	}
	return p, nil
}

// ID returns the planner's unique id.
func (p *BandPlanner) ID() string { return p.id }

// Band returns the underlying elastic band.
func (p *BandPlanner) Band() *TimedElasticBand { return p.band }

// SetObstacles replaces the borrowed obstacle set.
func (p *BandPlanner) SetObstacles(obstacles []obstacle.Obstacle) { p.obstacles = obstacles }

// SetStartVelocity records the robot's current velocity as the band's initial
// condition.
func (p *BandPlanner) SetStartVelocity(v spatialmath.Velocity2) { p.startVel = &v }

// UpdateAndPrune re-anchors the band's boundary conditions.
func (p *BandPlanner) UpdateAndPrune(start, goal *spatialmath.PoseSE2) {
	p.band.UpdateAndPrune(start, goal, p.cfg.Optim.MinSamples)
}

// ClosestPoseIndexTo returns the band pose index nearest to p.
func (p *BandPlanner) ClosestPoseIndexTo(pt r2.Point) int {
	return p.band.ClosestPoseIndexTo(pt)
}

// Pose returns the band pose at index i.
func (p *BandPlanner) Pose(i int) spatialmath.PoseSE2 { return p.band.Pose(i) }

// Optimize runs outerIterations resize passes, each followed by
// innerIterations deformation steps. When computeCost is set, the penalty
// vector is refreshed afterwards. An error marks the planner unusable until
// the next successful call.
func (p *BandPlanner) Optimize(innerIterations, outerIterations int, computeCost bool) error {
	if p.band.Len() < 2 {
		p.failed = true
		p.logger.Debugw("cannot optimize band", "id", p.id, "poses", p.band.Len())
		return errBandTooShort
	}
	opt := &p.cfg.Optim
	for outer := 0; outer < outerIterations; outer++ {
		p.rebuildTiming()
		p.band.AutoResize(opt.DtRef, opt.DtHysteresis, opt.MinSamples, opt.MaxSamples)
		for inner := 0; inner < innerIterations; inner++ {
			p.deformStep()
		}
	}
	p.rebuildTiming()
	if computeCost {
		p.computeCosts()
	}
	p.failed = false
	return nil
}

// deformStep applies one elastic-band update to the interior poses:
// contraction toward the neighbor midpoint plus repulsion away from obstacles
// closer than the configured clearance.
func (p *BandPlanner) deformStep() {
	n := p.band.Len()
	if n < 3 {
		return
	}
	opt := &p.cfg.Optim
	minDist := p.cfg.Obstacles.MinObstacleDist
	alpha := gradientStepSize / (opt.WeightSmoothness + opt.WeightObstacle)

	moved := make([]r2.Point, n)
	moved[0] = p.band.Pose(0).Position
	moved[n-1] = p.band.Pose(n - 1).Position
	for i := 1; i < n-1; i++ {
		prev := p.band.Pose(i - 1).Position
		cur := p.band.Pose(i).Position
		next := p.band.Pose(i + 1).Position

		force := prev.Add(next).Mul(0.5).Sub(cur).Mul(opt.WeightSmoothness * alpha)
		for _, obst := range p.obstacles {
			d := obst.MinDistanceTo(cur)
			if d >= minDist {
				continue
			}
			away := cur.Sub(obst.Centroid())
			if away.Norm() < 1e-9 {
				away = r2.Point{X: 1}
			}
			away = away.Normalize()
			force = force.Add(away.Mul(opt.WeightObstacle * alpha * (minDist - d)))
		}
		moved[i] = cur.Add(force)
	}

	for i := 1; i < n-1; i++ {
		incoming := moved[i].Sub(moved[i-1])
		outgoing := moved[i+1].Sub(moved[i])
		theta := spatialmath.AverageTheta(
			math.Atan2(incoming.Y, incoming.X),
			math.Atan2(outgoing.Y, outgoing.X),
		)
		p.band.SetPose(i, spatialmath.NewPoseSE2FromPoint(moved[i], theta))
	}
}

// rebuildTiming re-derives segment time differences from segment lengths and
// the velocity limit, honoring the recorded start velocity on the first
// segment when one is set.
func (p *BandPlanner) rebuildTiming() {
	const minTimeDiff = 1e-3
	maxVel := p.cfg.Optim.MaxVelX
	for i := 0; i < p.band.Len()-1; i++ {
		dist := p.band.Pose(i + 1).Distance(p.band.Pose(i))
		vel := maxVel
		if i == 0 && p.startVel != nil && math.Abs(p.startVel.Linear) > minTimeDiff {
			vel = math.Min(maxVel, math.Abs(p.startVel.Linear))
		}
		p.band.SetTimeDiff(i, math.Max(dist/vel, minTimeDiff))
	}
}

// computeCosts fills the [obstacle, smoothness, time] penalty vector.
func (p *BandPlanner) computeCosts() {
	opt := &p.cfg.Optim
	minDist := p.cfg.Obstacles.MinObstacleDist
	n := p.band.Len()

	obstacleTerms := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		pos := p.band.Pose(i).Position
		for _, obst := range p.obstacles {
			if d := obst.MinDistanceTo(pos); d < minDist {
				pb := minDist - d
				obstacleTerms = append(obstacleTerms, opt.WeightObstacle*pb*pb)
			}
		}
	}
	smoothTerms := make([]float64, 0, n)
	for i := 1; i < n-1; i++ {
		second := p.band.Pose(i + 1).Position.
			Add(p.band.Pose(i - 1).Position).
			Sub(p.band.Pose(i).Position.Mul(2))
		smoothTerms = append(smoothTerms, opt.WeightSmoothness*second.Dot(second))
	}

	p.costs = []float64{
		floats.Sum(obstacleTerms),
		floats.Sum(smoothTerms),
		opt.WeightTime * p.band.Duration(),
	}
}

// Cost returns the penalty vector from the last optimize; nil before any
// optimization has run.
func (p *BandPlanner) Cost() []float64 {
	if p.costs == nil {
		return nil
	}
	out := make([]float64, len(p.costs))
	copy(out, p.costs)
	return out
}

// CostSum returns the summed penalty vector. A failed or never-optimized
// planner reports an infinite cost so best-selection skips it.
func (p *BandPlanner) CostSum() float64 {
	if p.failed || p.costs == nil {
		return math.Inf(1)
	}
	return floats.Sum(p.costs)
}

// DetectDetoursBackwards reports whether any band segment's direction falls
// below the cosine threshold relative to the band's start-to-goal direction.
func (p *BandPlanner) DetectDetoursBackwards(cosThreshold float64) bool {
	n := p.band.Len()
	if n < 2 {
		return false
	}
	dir := p.band.Pose(n - 1).Position.Sub(p.band.Pose(0).Position)
	if dir.Norm() < 1e-9 {
		return false
	}
	dir = dir.Normalize()
	for i := 0; i < n-1; i++ {
		seg := p.band.Pose(i + 1).Position.Sub(p.band.Pose(i).Position)
		if seg.Norm() < 1e-9 {
			continue
		}
		if seg.Normalize().Dot(dir) < cosThreshold {
			return true
		}
	}
	return false
}

// VelocityCommand derives the control action for the band's first segment.
func (p *BandPlanner) VelocityCommand() (spatialmath.Velocity2, error) {
	if p.band.Len() < 2 {
		return spatialmath.Velocity2{}, errBandTooShort
	}
	first := p.band.Pose(0)
	second := p.band.Pose(1)
	dt := p.band.TimeDiff(0)
	if dt <= 0 {
		return spatialmath.Velocity2{}, errors.New("non-positive leading time diff")
	}
	seg := second.Position.Sub(first.Position)
	linear := seg.Norm() / dt
	// Driving backwards relative to the current heading flips the sign.
	if seg.Dot(first.Unit()) < 0 {
		linear = -linear
	}
	angular := spatialmath.NormalizeTheta(second.Theta-first.Theta) / dt

	opt := &p.cfg.Optim
	linear = clamp(linear, -opt.MaxVelX, opt.MaxVelX)
	angular = clamp(angular, -opt.MaxVelTheta, opt.MaxVelTheta)
	return spatialmath.Velocity2{Linear: linear, Angular: angular}, nil
}

// FeasibleAhead checks the first lookahead+1 band poses against the costmap
// and reports whether all are collision-free.
func (p *BandPlanner) FeasibleAhead(
	costmap CostmapModel,
	footprint []r2.Point,
	inscribedRadius, circumscribedRadius float64,
	lookahead int,
) bool {
	n := p.band.Len()
	if n == 0 {
		return false
	}
	last := lookahead
	if last > n-1 {
		last = n - 1
	}
	for i := 0; i <= last; i++ {
		pose := p.band.Pose(i)
		cost := costmap.FootprintCost(
			pose.Position.X, pose.Position.Y, pose.Theta,
			footprint, inscribedRadius, circumscribedRadius,
		)
		if cost < 0 {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
