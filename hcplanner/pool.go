package hcplanner

import (
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/hcplanner/config"
	"go.viam.com/hcplanner/logging"
	"go.viam.com/hcplanner/obstacle"
	"go.viam.com/hcplanner/spatialmath"
	"go.viam.com/hcplanner/trajectory"
)

// inPoolDedupThreshold is the signature equivalence threshold used when
// deduplicating candidates already in the pool. It is intentionally a fixed
// constant, distinct from the configured h_signature_threshold used for
// long-term signature matching.
const inPoolDedupThreshold = 0.1

// CandidatePool is the ordered collection of live trajectory candidates and
// their cached homotopy signatures. The pool owns its candidates; the best
// selection is an index into the pool, never a second owner.
type CandidatePool struct {
	logger logging.Logger
	cfg    *config.Config

	candidates []*trajectory.BandPlanner
	signatures []HSignature
	bestIdx    int
}

// NewCandidatePool creates an empty pool.
func NewCandidatePool(cfg *config.Config, logger logging.Logger) *CandidatePool {
	return &CandidatePool{logger: logger, cfg: cfg, bestIdx: -1}
}

// Size returns the number of candidates in the pool.
func (pool *CandidatePool) Size() int { return len(pool.candidates) }

// Full reports whether the pool has reached the configured class limit.
func (pool *CandidatePool) Full() bool {
	return len(pool.candidates) >= pool.cfg.Hcp.MaxNumberClasses
}

// Candidates returns the pool's candidates in order. The slice is owned by
// the pool and must not be modified.
func (pool *CandidatePool) Candidates() []*trajectory.BandPlanner { return pool.candidates }

// Signatures returns the pool's cached signatures in candidate order.
func (pool *CandidatePool) Signatures() []HSignature { return pool.signatures }

// Best returns the candidate elected by the last SelectBest, or nil.
func (pool *CandidatePool) Best() *trajectory.BandPlanner {
	if pool.bestIdx < 0 || pool.bestIdx >= len(pool.candidates) {
		return nil
	}
	return pool.candidates[pool.bestIdx]
}

// Clear drops all candidates and signatures.
func (pool *CandidatePool) Clear() {
	pool.candidates = pool.candidates[:0]
	pool.signatures = pool.signatures[:0]
	pool.bestIdx = -1
}

// RegisterIfNovel scans the live signature list for an equivalent entry; when
// none matches within threshold the signature is appended and true is
// returned. First match wins: equivalence is non-transitive, so the scan
// stays linear and pairwise.
func (pool *CandidatePool) RegisterIfNovel(h HSignature, threshold float64) bool {
	for _, stored := range pool.signatures {
		if h.EquivalentTo(stored, threshold) {
			return false
		}
	}
	pool.signatures = append(pool.signatures, h)
	return true
}

// append pairs a candidate with the most recently registered signature.
func (pool *CandidatePool) append(cand *trajectory.BandPlanner) {
	pool.candidates = append(pool.candidates, cand)
}

// dropLastSignature rolls back the most recent RegisterIfNovel.
func (pool *CandidatePool) dropLastSignature() {
	if len(pool.signatures) > 0 {
		pool.signatures = pool.signatures[:len(pool.signatures)-1]
	}
}

// UpdateAll re-anchors every candidate to the new boundary conditions and,
// when a velocity is given, records it as the start condition.
func (pool *CandidatePool) UpdateAll(start, goal *spatialmath.PoseSE2, vel *spatialmath.Velocity2) {
	for _, cand := range pool.candidates {
		cand.UpdateAndPrune(start, goal)
		if vel != nil {
			cand.SetStartVelocity(*vel)
		}
	}
}

// RenewAndAnalyze reclassifies the pool at the start of a cycle: the
// signature list is reset (obstacle motion may legitimately reassign
// classes), detouring and degenerate candidates are erased, duplicates are
// resolved by cost, and the survivors' signatures are re-registered.
func (pool *CandidatePool) RenewAndAnalyze(obstacles []obstacle.Obstacle, deleteDetours bool) {
	pool.signatures = pool.signatures[:0]
	pool.bestIdx = -1

	cosThresh := math.Cos(pool.cfg.Hcp.ObstacleHeadingThreshold)
	degenerateDist := pool.cfg.Hcp.DegenerateObstacleDistance
	prescaler := pool.cfg.Hcp.HSignaturePrescaler

	type scored struct {
		cand *trajectory.BandPlanner
		sig  HSignature
	}
	worklist := make([]scored, 0, len(pool.candidates))
	remaining := len(pool.candidates)
	for _, cand := range pool.candidates {
		if deleteDetours && remaining > 1 && cand.DetectDetoursBackwards(cosThresh) {
			pool.logger.Debugw("erasing detouring candidate", "id", cand.ID())
			remaining--
			continue
		}
		degenerate := false
		for _, obst := range obstacles {
			idx := cand.ClosestPoseIndexTo(obst.Centroid())
			if obst.MinDistanceTo(cand.Pose(idx).Position) < degenerateDist {
				degenerate = true
				break
			}
		}
		if degenerate {
			pool.logger.Debugw("erasing degenerate candidate", "id", cand.ID())
			remaining--
			continue
		}
		sig := ComputeHSignature(bandPositions(cand), obstacles, prescaler)
		worklist = append(worklist, scored{cand: cand, sig: sig})
	}

	// Duplicates within the cycle resolve by cost, reflecting the previous
	// iteration's optimization state; this is why the work list is built
	// before any dedup happens.
	erased := make([]bool, len(worklist))
	for i := range worklist {
		if erased[i] {
			continue
		}
		for j := i + 1; j < len(worklist); j++ {
			if erased[j] || !worklist[i].sig.EquivalentTo(worklist[j].sig, inPoolDedupThreshold) {
				continue
			}
			loser := j
			if worklist[i].cand.CostSum() > worklist[j].cand.CostSum() {
				loser = i
			}
			pool.logger.Debugw("erasing duplicate homotopy class",
				"id", worklist[loser].cand.ID())
			erased[loser] = true
			if loser == i {
				break
			}
		}
	}

	survivors := make([]*trajectory.BandPlanner, 0, len(worklist))
	for i, entry := range worklist {
		if erased[i] {
			continue
		}
		if !pool.RegisterIfNovel(entry.sig, pool.cfg.Hcp.HSignatureThreshold) {
			// Should not happen: the work list was already deduplicated.
			pool.logger.Errorw("duplicate signature on reinsert, dropping candidate",
				"id", entry.cand.ID(), "signature", entry.sig.String())
			continue
		}
		survivors = append(survivors, entry.cand)
	}
	pool.candidates = survivors
}

// SelectBest elects the candidate with the minimum summed cost. Candidates
// with infinite cost (failed or never optimized) are skipped.
func (pool *CandidatePool) SelectBest() *trajectory.BandPlanner {
	pool.bestIdx = -1
	bestCost := math.Inf(1)
	for i, cand := range pool.candidates {
		if c := cand.CostSum(); c < bestCost {
			bestCost = c
			pool.bestIdx = i
		}
	}
	return pool.Best()
}

// PruneDetours erases every candidate whose trajectory detours backwards
// beyond the cosine threshold, provided at least one other candidate remains.
// When the pruned set includes the current best, the best is re-elected among
// the survivors.
func (pool *CandidatePool) PruneDetours(cosThreshold float64) {
	best := pool.Best()

	survivorsC := pool.candidates[:0]
	survivorsS := pool.signatures[:0]
	remaining := len(pool.candidates)
	for i, cand := range pool.candidates {
		if remaining > 1 && cand.DetectDetoursBackwards(cosThreshold) {
			pool.logger.Debugw("pruning detouring candidate", "id", cand.ID())
			remaining--
			continue
		}
		survivorsC = append(survivorsC, cand)
		if i < len(pool.signatures) {
			survivorsS = append(survivorsS, pool.signatures[i])
		}
	}
	pool.candidates = survivorsC
	pool.signatures = survivorsS

	pool.bestIdx = -1
	if best == nil {
		return
	}
	for i, cand := range pool.candidates {
		if cand == best {
			pool.bestIdx = i
			return
		}
	}
	pool.SelectBest()
}

// bandPositions extracts the candidate's pose positions as a polyline.
func bandPositions(cand *trajectory.BandPlanner) []r2.Point {
	poses := cand.Band().Poses()
	points := make([]r2.Point, len(poses))
	for i, pose := range poses {
		points[i] = pose.Position
	}
	return points
}
