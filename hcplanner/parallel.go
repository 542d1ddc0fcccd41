package hcplanner

import (
	"sync"

	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/hcplanner/logging"
	"go.viam.com/hcplanner/trajectory"
)

// optimizerDriver fans per-candidate optimization out onto worker goroutines,
// or runs it sequentially when multithreading is disabled. The driver holds
// no per-candidate state; each optimization only mutates its own candidate,
// so the pool container is never touched while workers run.
type optimizerDriver struct {
	parallel bool
	logger   logging.Logger
}

func newOptimizerDriver(parallel bool, logger logging.Logger) *optimizerDriver {
	return &optimizerDriver{parallel: parallel, logger: logger}
}

// OptimizeAll optimizes every candidate exactly once. A failing candidate
// does not stop the others; all errors are surfaced together after the join.
func (d *optimizerDriver) OptimizeAll(candidates []*trajectory.BandPlanner, innerIterations, outerIterations int) error {
	if len(candidates) == 0 {
		return nil
	}
	if !d.parallel {
		var errs error
		for _, cand := range candidates {
			errs = multierr.Append(errs, cand.Optimize(innerIterations, outerIterations, true))
		}
		return errs
	}

	errs := make([]error, len(candidates))
	var wg sync.WaitGroup
	for i, cand := range candidates {
		i, cand := i, cand
		wg.Add(1)
		goutils.PanicCapturingGo(func() {
			defer wg.Done()
			errs[i] = cand.Optimize(innerIterations, outerIterations, true)
		})
	}
	wg.Wait()
	return multierr.Combine(errs...)
}
