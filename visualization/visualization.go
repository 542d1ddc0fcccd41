// Package visualization defines the planner's optional visualization sink
// and two reference implementations.
package visualization

import (
	"io"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding/dot"

	"go.viam.com/hcplanner/logging"
	"go.viam.com/hcplanner/trajectory"
)

// Visualizer receives planner state as it becomes available during a cycle.
// Implementations must not retain the passed slices beyond the call.
type Visualizer interface {
	// PublishGraph emits the cycle's exploration graph.
	PublishGraph(g graph.Directed)
	// PublishTrajectories emits all live candidates.
	PublishTrajectories(candidates []*trajectory.BandPlanner)
	// PublishBestPlan emits the elected candidate.
	PublishBestPlan(best *trajectory.BandPlanner)
}

// LogVisualizer writes planner state as structured log lines.
type LogVisualizer struct {
	logger logging.Logger
}

// NewLogVisualizer creates a visualizer over the given logger.
func NewLogVisualizer(logger logging.Logger) *LogVisualizer {
	return &LogVisualizer{logger: logger}
}

// PublishGraph logs the graph size.
func (v *LogVisualizer) PublishGraph(g graph.Directed) {
	v.logger.Debugw("exploration graph", "vertices", g.Nodes().Len())
}

// PublishTrajectories logs each candidate's cost vector.
func (v *LogVisualizer) PublishTrajectories(candidates []*trajectory.BandPlanner) {
	for _, cand := range candidates {
		v.logger.Debugw("candidate",
			"id", cand.ID(), "poses", cand.Band().Len(), "cost", cand.Cost())
	}
}

// PublishBestPlan logs the elected candidate.
func (v *LogVisualizer) PublishBestPlan(best *trajectory.BandPlanner) {
	v.logger.Debugw("best plan", "id", best.ID(), "duration", best.Band().Duration())
}

// DOTVisualizer renders each published exploration graph in DOT form to the
// underlying writer; candidates and best plans are ignored.
type DOTVisualizer struct {
	w      io.Writer
	logger logging.Logger
}

// NewDOTVisualizer creates a DOT emitter over the given writer.
func NewDOTVisualizer(w io.Writer, logger logging.Logger) *DOTVisualizer {
	return &DOTVisualizer{w: w, logger: logger}
}

// PublishGraph marshals the graph to DOT and writes it out.
func (v *DOTVisualizer) PublishGraph(g graph.Directed) {
	data, err := dot.Marshal(g, "exploration", "", "  ")
	if err != nil {
		v.logger.Warnw("cannot marshal exploration graph", "error", errors.WithStack(err))
		return
	}
	data = append(data, '\n')
	if _, err := v.w.Write(data); err != nil {
		v.logger.Warnw("cannot write exploration graph", "error", err)
	}
}

// PublishTrajectories is a no-op.
func (v *DOTVisualizer) PublishTrajectories([]*trajectory.BandPlanner) {}

// PublishBestPlan is a no-op.
func (v *DOTVisualizer) PublishBestPlan(*trajectory.BandPlanner) {}
