package hcplanner

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/hcplanner/config"
	"go.viam.com/hcplanner/logging"
	"go.viam.com/hcplanner/obstacle"
	"go.viam.com/hcplanner/spatialmath"
	"go.viam.com/hcplanner/trajectory"
)

func makeCandidate(t *testing.T, cfg *config.Config, obstacles []obstacle.Obstacle, points ...r2.Point) *trajectory.BandPlanner {
	t.Helper()
	cand, err := trajectory.NewBandPlannerFromPolyline(
		cfg, obstacles, logging.NewTestLogger(t), points, 0, 0,
	)
	test.That(t, err, test.ShouldBeNil)
	return cand
}

func addToPool(pool *CandidatePool, cand *trajectory.BandPlanner, obstacles []obstacle.Obstacle) {
	sig := ComputeHSignature(bandPositions(cand), obstacles, pool.cfg.Hcp.HSignaturePrescaler)
	pool.RegisterIfNovel(sig, pool.cfg.Hcp.HSignatureThreshold)
	pool.append(cand)
}

func TestRegisterIfNovel(t *testing.T) {
	cfg := config.Default()
	pool := NewCandidatePool(cfg, logging.NewTestLogger(t))

	test.That(t, pool.RegisterIfNovel(NewHSignature(1, 1), 0.1), test.ShouldBeTrue)
	test.That(t, pool.RegisterIfNovel(NewHSignature(1.05, 1.05), 0.1), test.ShouldBeFalse)
	test.That(t, pool.RegisterIfNovel(NewHSignature(2, 1), 0.1), test.ShouldBeTrue)
	test.That(t, len(pool.Signatures()), test.ShouldEqual, 2)
}

func TestRenewAndAnalyzeErasesDegenerate(t *testing.T) {
	cfg := config.Default()
	obstacles := []obstacle.Obstacle{obstacle.NewPointObstacle(5, 0.02)}
	pool := NewCandidatePool(cfg, logging.NewTestLogger(t))

	// One candidate passes within the degeneracy distance of the obstacle,
	// the other routes well clear of it.
	degenerate := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, r2.Point{X: 10, Y: 0})
	clear := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 2}, r2.Point{X: 10, Y: 0})
	addToPool(pool, degenerate, obstacles)
	addToPool(pool, clear, obstacles)

	pool.RenewAndAnalyze(obstacles, false)
	test.That(t, pool.Size(), test.ShouldEqual, 1)
	test.That(t, pool.Candidates()[0], test.ShouldEqual, clear)
}

func TestRenewAndAnalyzeDedupsByCost(t *testing.T) {
	cfg := config.Default()
	obstacles := []obstacle.Obstacle{obstacle.NewPointObstacle(5, 0)}
	pool := NewCandidatePool(cfg, logging.NewTestLogger(t))

	// Both candidates route above the obstacle: the same homotopy class.
	unoptimized := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 1}, r2.Point{X: 10, Y: 0})
	optimized := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 4, Y: 1}, r2.Point{X: 6, Y: 1}, r2.Point{X: 10, Y: 0})
	test.That(t, optimized.Optimize(cfg.Optim.NoInnerIterations, cfg.Optim.NoOuterIterations, true), test.ShouldBeNil)
	addToPool(pool, unoptimized, obstacles)
	pool.append(optimized) // duplicate class, deliberately forced in

	pool.RenewAndAnalyze(obstacles, false)

	// The never-optimized candidate reports infinite cost and loses.
	test.That(t, pool.Size(), test.ShouldEqual, 1)
	test.That(t, pool.Candidates()[0], test.ShouldEqual, optimized)
}

func TestRenewAndAnalyzeSignaturesStayDistinct(t *testing.T) {
	cfg := config.Default()
	obstacles := []obstacle.Obstacle{obstacle.NewPointObstacle(5, 0)}
	pool := NewCandidatePool(cfg, logging.NewTestLogger(t))

	above := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 1}, r2.Point{X: 10, Y: 0})
	below := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: -1}, r2.Point{X: 10, Y: 0})
	addToPool(pool, above, obstacles)
	addToPool(pool, below, obstacles)

	pool.RenewAndAnalyze(obstacles, false)
	test.That(t, pool.Size(), test.ShouldEqual, 2)
	sigs := pool.Signatures()
	for i := range sigs {
		for j := i + 1; j < len(sigs); j++ {
			test.That(t, sigs[i].EquivalentTo(sigs[j], cfg.Hcp.HSignatureThreshold), test.ShouldBeFalse)
		}
	}
}

func TestSelectBest(t *testing.T) {
	cfg := config.Default()
	obstacles := []obstacle.Obstacle{obstacle.NewPointObstacle(5, 0)}
	pool := NewCandidatePool(cfg, logging.NewTestLogger(t))

	short := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 1}, r2.Point{X: 10, Y: 0})
	long := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: -4}, r2.Point{X: 10, Y: 0})
	addToPool(pool, short, obstacles)
	addToPool(pool, long, obstacles)
	test.That(t, short.Optimize(5, 4, true), test.ShouldBeNil)
	test.That(t, long.Optimize(5, 4, true), test.ShouldBeNil)

	best := pool.SelectBest()
	test.That(t, best, test.ShouldNotBeNil)
	test.That(t, best, test.ShouldEqual, pool.Best())
	for _, cand := range pool.Candidates() {
		test.That(t, best.CostSum(), test.ShouldBeLessThanOrEqualTo, cand.CostSum())
	}
}

func TestSelectBestEmptyPool(t *testing.T) {
	cfg := config.Default()
	pool := NewCandidatePool(cfg, logging.NewTestLogger(t))
	test.That(t, pool.SelectBest(), test.ShouldBeNil)
	test.That(t, pool.Best(), test.ShouldBeNil)
}

func TestPruneDetours(t *testing.T) {
	cfg := config.Default()
	var obstacles []obstacle.Obstacle
	pool := NewCandidatePool(cfg, logging.NewTestLogger(t))

	straight := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, r2.Point{X: 10, Y: 0})
	detour := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, r2.Point{X: 3, Y: 0}, r2.Point{X: 10, Y: 0})
	addToPool(pool, straight, obstacles)
	addToPool(pool, detour, obstacles)

	pool.PruneDetours(0.0)
	test.That(t, pool.Size(), test.ShouldEqual, 1)
	test.That(t, pool.Candidates()[0], test.ShouldEqual, straight)
}

func TestPruneDetoursKeepsLastCandidate(t *testing.T) {
	cfg := config.Default()
	var obstacles []obstacle.Obstacle
	pool := NewCandidatePool(cfg, logging.NewTestLogger(t))

	detour := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, r2.Point{X: 3, Y: 0}, r2.Point{X: 10, Y: 0})
	addToPool(pool, detour, obstacles)

	// A detouring candidate survives when it is the only one left.
	pool.PruneDetours(0.0)
	test.That(t, pool.Size(), test.ShouldEqual, 1)
}

func TestPruneDetoursReelectsBest(t *testing.T) {
	cfg := config.Default()
	var obstacles []obstacle.Obstacle
	pool := NewCandidatePool(cfg, logging.NewTestLogger(t))

	straight := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, r2.Point{X: 10, Y: 0})
	detour := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, r2.Point{X: 3, Y: 0}, r2.Point{X: 10, Y: 0})
	addToPool(pool, straight, obstacles)
	addToPool(pool, detour, obstacles)
	test.That(t, detour.Optimize(5, 4, true), test.ShouldBeNil)

	// Only the detouring candidate has a finite cost, so it wins the
	// election; pruning it must hand the selection to a survivor.
	test.That(t, pool.SelectBest(), test.ShouldEqual, detour)
	test.That(t, straight.Optimize(5, 4, true), test.ShouldBeNil)
	pool.PruneDetours(0.0)
	test.That(t, pool.Size(), test.ShouldEqual, 1)
	test.That(t, pool.Best(), test.ShouldEqual, straight)
}

func TestUpdateAllReanchorsCandidates(t *testing.T) {
	cfg := config.Default()
	var obstacles []obstacle.Obstacle
	pool := NewCandidatePool(cfg, logging.NewTestLogger(t))

	cand := makeCandidate(t, cfg, obstacles,
		r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 0}, r2.Point{X: 10, Y: 0})
	addToPool(pool, cand, obstacles)

	start := spatialmath.NewPoseSE2(0.5, 0.1, 0)
	goal := spatialmath.NewPoseSE2(10.5, 0, 0)
	vel := spatialmath.Velocity2{Linear: 0.2}
	pool.UpdateAll(&start, &goal, &vel)

	band := cand.Band()
	test.That(t, band.Pose(0).Position, test.ShouldResemble, start.Position)
	test.That(t, band.Pose(band.Len()-1).Position, test.ShouldResemble, goal.Position)
}
