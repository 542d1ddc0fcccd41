package hcplanner

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/hcplanner/config"
	"go.viam.com/hcplanner/logging"
	"go.viam.com/hcplanner/obstacle"
	"go.viam.com/hcplanner/trajectory"
)

func TestOptimizeAllVisitsEveryCandidate(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		cfg := config.Default()
		var obstacles []obstacle.Obstacle
		driver := newOptimizerDriver(parallel, logging.NewTestLogger(t))

		candidates := []*trajectory.BandPlanner{
			makeCandidate(t, cfg, obstacles,
				r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 1}, r2.Point{X: 10, Y: 0}),
			makeCandidate(t, cfg, obstacles,
				r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: -1}, r2.Point{X: 10, Y: 0}),
			makeCandidate(t, cfg, obstacles,
				r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 3}, r2.Point{X: 10, Y: 0}),
		}
		err := driver.OptimizeAll(candidates, cfg.Optim.NoInnerIterations, cfg.Optim.NoOuterIterations)
		test.That(t, err, test.ShouldBeNil)
		for _, cand := range candidates {
			test.That(t, cand.Cost(), test.ShouldNotBeNil)
			test.That(t, math.IsInf(cand.CostSum(), 1), test.ShouldBeFalse)
		}
	}
}

func TestOptimizeAllSurfacesErrorsAfterJoin(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		cfg := config.Default()
		var obstacles []obstacle.Obstacle
		driver := newOptimizerDriver(parallel, logging.NewTestLogger(t))

		// An empty band cannot be optimized; its failure must not stop the
		// remaining candidates.
		broken := trajectory.NewBandPlanner(cfg, obstacles, logging.NewTestLogger(t))
		healthy := makeCandidate(t, cfg, obstacles,
			r2.Point{X: 0, Y: 0}, r2.Point{X: 5, Y: 1}, r2.Point{X: 10, Y: 0})

		err := driver.OptimizeAll(
			[]*trajectory.BandPlanner{broken, healthy},
			cfg.Optim.NoInnerIterations, cfg.Optim.NoOuterIterations,
		)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, math.IsInf(broken.CostSum(), 1), test.ShouldBeTrue)
		test.That(t, math.IsInf(healthy.CostSum(), 1), test.ShouldBeFalse)
	}
}

func TestOptimizeAllEmptyPool(t *testing.T) {
	driver := newOptimizerDriver(true, logging.NewTestLogger(t))
	test.That(t, driver.OptimizeAll(nil, 5, 4), test.ShouldBeNil)
}
