package hcplanner

import (
	"context"
	"math/rand"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"

	"go.viam.com/hcplanner/config"
	"go.viam.com/hcplanner/logging"
	"go.viam.com/hcplanner/obstacle"
	"go.viam.com/hcplanner/spatialmath"
	"go.viam.com/hcplanner/trajectory"
	"go.viam.com/hcplanner/visualization"
)

// HomotopyClassPlanner orchestrates one local-planning cycle per Plan call:
// refresh the candidate pool against the new boundary conditions, explore the
// workspace for unseen homotopy classes, optimize every candidate, and elect
// the cheapest survivor.
type HomotopyClassPlanner struct {
	logger    logging.Logger
	cfg       *config.Config
	obstacles []obstacle.Obstacle

	pool   *CandidatePool
	gs     *graphSearch
	driver *optimizerDriver
	vis    visualization.Visualizer
	clk    clock.Clock

	initialized bool
}

// Option configures a HomotopyClassPlanner.
type Option func(*HomotopyClassPlanner)

// WithVisualizer attaches a visualization sink.
func WithVisualizer(vis visualization.Visualizer) Option {
	return func(p *HomotopyClassPlanner) { p.vis = vis }
}

// WithClock overrides the planner's clock, e.g. with a mock in tests.
func WithClock(clk clock.Clock) Option {
	return func(p *HomotopyClassPlanner) { p.clk = clk }
}

// WithSeed fixes the random seed used by the probabilistic roadmap.
func WithSeed(seed int64) Option {
	return func(p *HomotopyClassPlanner) {
		//nolint:gosec
		p.gs.rnd = rand.New(rand.NewSource(seed))
	}
}

// NewHomotopyClassPlanner creates a planner over the given obstacle set. The
// obstacles are borrowed and must only be mutated between planning cycles.
func NewHomotopyClassPlanner(
	cfg *config.Config,
	obstacles []obstacle.Obstacle,
	logger logging.Logger,
	opts ...Option,
) (*HomotopyClassPlanner, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &HomotopyClassPlanner{
		logger:    logger,
		cfg:       cfg,
		obstacles: obstacles,
		pool:      NewCandidatePool(cfg, logger.Sublogger("pool")),
		driver:    newOptimizerDriver(cfg.Hcp.EnableMultithreading, logger.Sublogger("optimizer")),
		clk:       clock.New(),
	}
	//nolint:gosec
	p.gs = newGraphSearch(cfg, logger.Sublogger("graph"), rand.New(rand.NewSource(1)), p)
	for _, opt := range opts {
		opt(p)
	}
	p.initialized = true
	return p, nil
}

// SetObstacles replaces the borrowed obstacle set between cycles.
func (p *HomotopyClassPlanner) SetObstacles(obstacles []obstacle.Obstacle) {
	p.obstacles = obstacles
	for _, cand := range p.pool.Candidates() {
		cand.SetObstacles(obstacles)
	}
}

// Obstacles returns the current obstacle set.
func (p *HomotopyClassPlanner) Obstacles() []obstacle.Obstacle { return p.obstacles }

// Pool returns the planner's candidate pool.
func (p *HomotopyClassPlanner) Pool() *CandidatePool { return p.pool }

// BestCandidate returns the currently elected candidate, or nil.
func (p *HomotopyClassPlanner) BestCandidate() *trajectory.BandPlanner { return p.pool.Best() }

// Plan runs one planning cycle between the first and last pose of
// initialPlan. startVel, when given, is applied as the initial condition of
// every candidate. A start already within the goal tolerance clears the pool
// and succeeds with an empty plan.
func (p *HomotopyClassPlanner) Plan(
	ctx context.Context,
	initialPlan []spatialmath.PoseSE2,
	startVel *spatialmath.Velocity2,
) error {
	if p == nil || !p.initialized {
		return ErrUninitialized
	}
	if len(initialPlan) == 0 {
		return ErrEmptyPlan
	}
	start := initialPlan[0]
	goal := initialPlan[len(initialPlan)-1]
	cycleStart := p.clk.Now()

	if goal.Position.Sub(start.Position).Norm() < p.cfg.GoalTolerance.XYGoalTolerance {
		p.logger.Debug("start already within goal tolerance, clearing plan")
		p.pool.Clear()
		return nil
	}

	p.pool.UpdateAll(&start, &goal, startVel)
	p.pool.RenewAndAnalyze(p.obstacles, false)

	if err := p.gs.explore(ctx, start, goal); err != nil {
		return err
	}
	if p.cfg.Hcp.VisualizeHCGraph && p.vis != nil {
		p.vis.PublishGraph(p.gs.graph.dg)
	}

	if err := p.driver.OptimizeAll(
		p.pool.Candidates(),
		p.cfg.Optim.NoInnerIterations,
		p.cfg.Optim.NoOuterIterations,
	); err != nil {
		// Failed candidates report infinite cost and lose the election.
		p.logger.Warnw("optimizer failures", "error", err)
	}

	best := p.pool.SelectBest()
	p.pool.PruneDetours(0.0)

	if p.vis != nil {
		p.vis.PublishTrajectories(p.pool.Candidates())
		if best := p.pool.Best(); best != nil {
			p.vis.PublishBestPlan(best)
		}
	}
	fields := []interface{}{
		"candidates", p.pool.Size(),
		"duration", p.clk.Since(cycleStart).String(),
	}
	if best != nil {
		fields = append(fields, "best", best.ID())
	}
	p.logger.Debugw("planning cycle complete", fields...)
	return nil
}

// VelocityCommand returns the first control action of the best candidate, or
// a zero velocity when no plan exists.
func (p *HomotopyClassPlanner) VelocityCommand() spatialmath.Velocity2 {
	best := p.pool.Best()
	if best == nil {
		return spatialmath.Velocity2{}
	}
	cmd, err := best.VelocityCommand()
	if err != nil {
		p.logger.Warnw("cannot derive velocity command", "error", err)
		return spatialmath.Velocity2{}
	}
	return cmd
}

// IsTrajectoryFeasible checks the best candidate's first lookahead+1 poses
// against the costmap. Without a best candidate there is nothing feasible.
func (p *HomotopyClassPlanner) IsTrajectoryFeasible(
	costmap trajectory.CostmapModel,
	footprint []r2.Point,
	inscribedRadius, circumscribedRadius float64,
	lookahead int,
) bool {
	best := p.pool.Best()
	if best == nil {
		return false
	}
	return best.FeasibleAhead(costmap, footprint, inscribedRadius, circumscribedRadius, lookahead)
}

// addAndInitNewTeb registers the path's homotopy class and, when novel, seeds
// a new candidate from the polyline. Called by the depth-first enumeration.
func (p *HomotopyClassPlanner) addAndInitNewTeb(polyline []r2.Point, startTheta, goalTheta float64) bool {
	if len(polyline) < 2 {
		return false
	}
	h := ComputeHSignature(polyline, p.obstacles, p.cfg.Hcp.HSignaturePrescaler)
	if !p.pool.RegisterIfNovel(h, p.cfg.Hcp.HSignatureThreshold) {
		return false
	}
	cand, err := trajectory.NewBandPlannerFromPolyline(
		p.cfg, p.obstacles, p.logger.Sublogger("band"), polyline, startTheta, goalTheta,
	)
	if err != nil {
		p.logger.Errorw("cannot seed candidate from path", "error", err)
		p.pool.dropLastSignature()
		return false
	}
	p.pool.append(cand)
	p.logger.Debugw("discovered new homotopy class",
		"id", cand.ID(), "signature", h.String(), "pathLen", len(polyline))
	return true
}
