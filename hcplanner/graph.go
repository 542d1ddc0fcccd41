package hcplanner

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/simple"

	"go.viam.com/hcplanner/config"
	"go.viam.com/hcplanner/logging"
	"go.viam.com/hcplanner/spatialmath"
)

// explorationVertex is a workspace waypoint in the exploration graph. Vertex
// ids are assigned in insertion order: 0 is the start, the last vertex is the
// goal.
type explorationVertex struct {
	id  int64
	pos r2.Point
}

// ID implements graph.Node.
func (v *explorationVertex) ID() int64 { return v.id }

// DOTID labels the vertex for DOT export.
func (v *explorationVertex) DOTID() string { return fmt.Sprintf("v%d", v.id) }

// Attributes exports the vertex position for DOT rendering.
func (v *explorationVertex) Attributes() []encoding.Attribute {
	return []encoding.Attribute{
		{Key: "pos", Value: fmt.Sprintf("\"%.3f,%.3f\"", v.pos.X, v.pos.Y)},
	}
}

// explorationGraph is a directed waypoint graph between start and goal. It is
// rebuilt from scratch every planning cycle. The vertex slice preserves
// insertion order so enumeration is deterministic.
type explorationGraph struct {
	dg       *simple.DirectedGraph
	vertices []*explorationVertex
}

func newExplorationGraph() *explorationGraph {
	return &explorationGraph{dg: simple.NewDirectedGraph()}
}

func (g *explorationGraph) addVertex(pos r2.Point) *explorationVertex {
	v := &explorationVertex{id: int64(len(g.vertices)), pos: pos}
	g.dg.AddNode(v)
	g.vertices = append(g.vertices, v)
	return v
}

func (g *explorationGraph) addEdge(from, to *explorationVertex) {
	g.dg.SetEdge(g.dg.NewEdge(from, to))
}

func (g *explorationGraph) hasEdge(from, to *explorationVertex) bool {
	return g.dg.HasEdgeFromTo(from.id, to.id)
}

func (g *explorationGraph) startVertex() *explorationVertex { return g.vertices[0] }

func (g *explorationGraph) goalVertex() *explorationVertex {
	return g.vertices[len(g.vertices)-1]
}

func (g *explorationGraph) edgeCount() int {
	return g.dg.Edges().Len()
}

// graphSearch builds the per-cycle exploration graph and enumerates its
// simple start-to-goal paths, seeding a new candidate for every novel
// homotopy class it encounters.
type graphSearch struct {
	cfg     *config.Config
	logger  logging.Logger
	rnd     *rand.Rand
	planner *HomotopyClassPlanner
	graph   *explorationGraph
}

func newGraphSearch(cfg *config.Config, logger logging.Logger, rnd *rand.Rand, planner *HomotopyClassPlanner) *graphSearch {
	return &graphSearch{cfg: cfg, logger: logger, rnd: rnd, planner: planner}
}

// explore rebuilds the exploration graph with the configured strategy and
// runs the depth-first enumeration over it.
func (gs *graphSearch) explore(ctx context.Context, start, goal spatialmath.PoseSE2) error {
	gs.graph = newExplorationGraph()
	if gs.cfg.Hcp.SimpleExploration {
		gs.createKeypointGraph(start, goal)
	} else if err := gs.createRoadmapGraph(ctx, start, goal); err != nil {
		return err
	}
	if len(gs.graph.vertices) < 2 {
		return nil
	}
	startV := gs.graph.startVertex()
	visited := []*explorationVertex{startV}
	onStack := map[int64]bool{startV.id: true}
	gs.depthFirst(ctx, visited, onStack, start.Theta, goal.Theta)
	return nil
}

// createKeypointGraph builds the deterministic obstacle-keypoint graph: two
// vertices per relevant obstacle, offset from its centroid along the normal
// of the start-to-goal direction.
func (gs *graphSearch) createKeypointGraph(start, goal spatialmath.PoseSE2) {
	diff := goal.Position.Sub(start.Position)
	if diff.Norm() < gs.cfg.GoalTolerance.XYGoalTolerance {
		gs.logger.Debug("start already within goal tolerance, skipping graph")
		return
	}
	distToObst := gs.cfg.Obstacles.MinObstacleDist
	dHat := diff.Normalize()
	normal := dHat.Ortho().Mul(distToObst)

	gs.graph.addVertex(start.Position)

	var limited [2]*explorationVertex
	nearestDist := math.Inf(1)
	for _, obst := range gs.planner.obstacles {
		toObst := obst.Centroid().Sub(start.Position)
		// Obstacles behind or lateral to the start direction get no keypoints.
		if toObst.Dot(dHat) < 0.1*toObst.Norm() {
			continue
		}
		left := gs.graph.addVertex(obst.Centroid().Add(normal))
		right := gs.graph.addVertex(obst.Centroid().Sub(normal))
		if gs.cfg.Hcp.LimitObstacleHeading {
			if d := toObst.Norm(); d < nearestDist {
				nearestDist = d
				limited = [2]*explorationVertex{left, right}
			}
		}
	}

	gs.graph.addVertex(goal.Position)
	gs.insertEdges(start, dHat, distToObst, limited)
	gs.logger.Debugw("built keypoint graph",
		"vertices", len(gs.graph.vertices), "edges", gs.graph.edgeCount())
}

// createRoadmapGraph builds the probabilistic roadmap: collision-free samples
// drawn from a rectangle aligned with the start-to-goal direction. The
// rejection loop checks ctx so an over-cluttered scene cannot livelock the
// cycle.
func (gs *graphSearch) createRoadmapGraph(ctx context.Context, start, goal spatialmath.PoseSE2) error {
	diff := goal.Position.Sub(start.Position)
	if diff.Norm() < gs.cfg.GoalTolerance.XYGoalTolerance {
		gs.logger.Debug("start already within goal tolerance, skipping graph")
		return nil
	}
	distToObst := gs.cfg.Obstacles.MinObstacleDist
	width := gs.cfg.Hcp.RoadmapGraphAreaWidth
	dHat := diff.Normalize()
	nUnit := dHat.Ortho()
	base := start.Position.Sub(nUnit.Mul(0.5 * width))

	gs.graph.addVertex(start.Position)
	for i := 0; i < gs.cfg.Hcp.RoadmapGraphNoSamples; i++ {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			sample := base.
				Add(diff.Mul(gs.rnd.Float64())).
				Add(nUnit.Mul(gs.rnd.Float64() * width))
			if !gs.anyObstacleCollides(sample, distToObst) {
				gs.graph.addVertex(sample)
				break
			}
		}
	}
	gs.graph.addVertex(goal.Position)
	gs.insertEdges(start, dHat, distToObst, [2]*explorationVertex{})
	gs.logger.Debugw("built roadmap graph",
		"vertices", len(gs.graph.vertices), "edges", gs.graph.edgeCount())
	return nil
}

func (gs *graphSearch) anyObstacleCollides(p r2.Point, buffer float64) bool {
	for _, obst := range gs.planner.obstacles {
		if obst.Collides(p, buffer) {
			return true
		}
	}
	return false
}

// insertEdges connects every ordered vertex pair that advances toward the
// goal and clears all obstacles. When `limited` holds the nearest obstacle's
// keypoints, edges from the start to those keypoints must additionally agree
// with the start heading.
func (gs *graphSearch) insertEdges(start spatialmath.PoseSE2, dHat r2.Point, distToObst float64, limited [2]*explorationVertex) {
	cosThresh := math.Cos(gs.cfg.Hcp.ObstacleHeadingThreshold)
	goalID := gs.graph.goalVertex().id
	startID := gs.graph.startVertex().id
	startHeading := start.Unit()

	for _, vi := range gs.graph.vertices {
		if vi.id == goalID {
			continue
		}
		for _, vj := range gs.graph.vertices {
			if vj.id == vi.id {
				continue
			}
			seg := vj.pos.Sub(vi.pos)
			if seg.Norm() < 1e-9 {
				continue
			}
			dij := seg.Normalize()
			if dij.Dot(dHat) <= cosThresh {
				continue
			}
			if limited[0] != nil && vi.id == startID &&
				(vj.id == limited[0].id || vj.id == limited[1].id) &&
				startHeading.Dot(dij) <= cosThresh {
				continue
			}
			blocked := false
			for _, obst := range gs.planner.obstacles {
				if obst.IntersectsSegment(vi.pos, vj.pos, 0.5*distToObst) {
					blocked = true
					break
				}
			}
			if !blocked {
				gs.graph.addEdge(vi, vj)
			}
		}
	}
}

// depthFirst enumerates simple paths from the top of the visited stack to the
// goal vertex. Each recursion level first checks for a direct goal neighbor
// and seeds at most one candidate through this node, then descends into the
// remaining unvisited neighbors. Enumeration halts once the pool is full.
func (gs *graphSearch) depthFirst(
	ctx context.Context,
	visited []*explorationVertex,
	onStack map[int64]bool,
	startTheta, goalTheta float64,
) {
	if gs.planner.pool.Full() || ctx.Err() != nil {
		return
	}
	current := visited[len(visited)-1]
	goalID := gs.graph.goalVertex().id

	// One goal hit per parent is enough to represent a class through this
	// node; further goal-reaching neighbors would only differ by trivial
	// tail loops.
	for _, v := range gs.graph.vertices {
		if v.id == current.id || onStack[v.id] || !gs.graph.hasEdge(current, v) {
			continue
		}
		if v.id == goalID {
			polyline := make([]r2.Point, 0, len(visited)+1)
			for _, w := range visited {
				polyline = append(polyline, w.pos)
			}
			polyline = append(polyline, v.pos)
			gs.planner.addAndInitNewTeb(polyline, startTheta, goalTheta)
			break
		}
	}
	if gs.planner.pool.Full() {
		return
	}

	for _, v := range gs.graph.vertices {
		if v.id == current.id || v.id == goalID || onStack[v.id] || !gs.graph.hasEdge(current, v) {
			continue
		}
		visited = append(visited, v)
		onStack[v.id] = true
		gs.depthFirst(ctx, visited, onStack, startTheta, goalTheta)
		visited = visited[:len(visited)-1]
		delete(onStack, v.id)
		if gs.planner.pool.Full() || ctx.Err() != nil {
			return
		}
	}
}
