// Package config holds the planner configuration, its defaults, and loaders.
package config

import (
	"encoding/json"
	"math"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/hcplanner/logging"
)

// Config is the full planner configuration, grouped the way it appears in a
// JSON config file.
type Config struct {
	Hcp           HcpConfig           `json:"hcp"`
	Obstacles     ObstacleConfig      `json:"obstacles"`
	GoalTolerance GoalToleranceConfig `json:"goal_tolerance"`
	Optim         OptimConfig         `json:"optim"`
}

// HcpConfig configures homotopy-class discovery and candidate management.
type HcpConfig struct {
	// MaxNumberClasses bounds the candidate pool size and cuts off path
	// enumeration.
	MaxNumberClasses int `json:"max_number_classes"`
	// SimpleExploration selects the deterministic keypoint graph instead of
	// the probabilistic roadmap.
	SimpleExploration bool `json:"simple_exploration"`
	// ObstacleHeadingThreshold is the angle in radians whose cosine bounds
	// forward-edge pruning and detour detection.
	ObstacleHeadingThreshold float64 `json:"obstacle_heading_threshold"`
	// RoadmapGraphNoSamples is the sample count for the probabilistic roadmap.
	RoadmapGraphNoSamples int `json:"roadmap_graph_no_samples"`
	// RoadmapGraphAreaWidth is the sampling rectangle width in meters.
	RoadmapGraphAreaWidth float64 `json:"roadmap_graph_area_width"`
	// HSignaturePrescaler scales signature magnitudes; must be in (0, 1].
	HSignaturePrescaler float64 `json:"h_signature_prescaler"`
	// HSignatureThreshold is the equivalence threshold for signature dedup.
	HSignatureThreshold float64 `json:"h_signature_threshold"`
	// EnableMultithreading optimizes candidates on parallel workers.
	EnableMultithreading bool `json:"enable_multithreading"`
	// VisualizeHCGraph emits the exploration graph to the visualization sink.
	VisualizeHCGraph bool `json:"visualize_hc_graph"`
	// DegenerateObstacleDistance is the distance below which a candidate's
	// closest pose to an obstacle marks the candidate degenerate.
	DegenerateObstacleDistance float64 `json:"degenerate_obstacle_distance"`
	// LimitObstacleHeading additionally restricts edges from the start vertex
	// to the nearest obstacle's keypoints by the start heading.
	LimitObstacleHeading bool `json:"limit_obstacle_heading"`
}

// ObstacleConfig configures obstacle handling.
type ObstacleConfig struct {
	// MinObstacleDist is the desired clearance from obstacles in meters.
	MinObstacleDist float64 `json:"min_obstacle_dist"`
}

// GoalToleranceConfig configures goal acceptance.
type GoalToleranceConfig struct {
	// XYGoalTolerance is the positional tolerance in meters; a start/goal
	// pair closer than this yields an empty plan.
	XYGoalTolerance float64 `json:"xy_goal_tolerance"`
}

// OptimConfig configures the per-candidate band optimizer.
type OptimConfig struct {
	NoInnerIterations int `json:"no_inner_iterations"`
	NoOuterIterations int `json:"no_outer_iterations"`

	WeightObstacle   float64 `json:"weight_obstacle"`
	WeightSmoothness float64 `json:"weight_smoothness"`
	WeightTime       float64 `json:"weight_time"`

	// DtRef is the reference time resolution between consecutive band poses;
	// DtHysteresis bounds the resize band around it.
	DtRef        float64 `json:"dt_ref"`
	DtHysteresis float64 `json:"dt_hysteresis"`

	MinSamples int `json:"min_samples"`
	MaxSamples int `json:"max_samples"`

	// MaxVelX and MaxVelTheta saturate the velocity command.
	MaxVelX     float64 `json:"max_vel_x"`
	MaxVelTheta float64 `json:"max_vel_theta"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Hcp: HcpConfig{
			MaxNumberClasses:           4,
			SimpleExploration:          false,
			ObstacleHeadingThreshold:   math.Pi / 4,
			RoadmapGraphNoSamples:      15,
			RoadmapGraphAreaWidth:      6.0,
			HSignaturePrescaler:        1.0,
			HSignatureThreshold:        0.1,
			EnableMultithreading:       true,
			VisualizeHCGraph:           false,
			DegenerateObstacleDistance: 0.03,
			LimitObstacleHeading:       false,
		},
		Obstacles: ObstacleConfig{
			MinObstacleDist: 0.5,
		},
		GoalTolerance: GoalToleranceConfig{
			XYGoalTolerance: 0.2,
		},
		Optim: OptimConfig{
			NoInnerIterations: 5,
			NoOuterIterations: 4,
			WeightObstacle:    50.0,
			WeightSmoothness:  1.0,
			WeightTime:        1.0,
			DtRef:             0.3,
			DtHysteresis:      0.1,
			MinSamples:        3,
			MaxSamples:        100,
			MaxVelX:           0.4,
			MaxVelTheta:       0.3,
		},
	}
}

// Validate checks the configuration for values the planner cannot run with.
func (c *Config) Validate() error {
	if c.Hcp.MaxNumberClasses < 1 {
		return errors.New("hcp.max_number_classes must be at least 1")
	}
	if c.Hcp.HSignaturePrescaler <= 0 || c.Hcp.HSignaturePrescaler > 1 {
		return errors.New("hcp.h_signature_prescaler must be in (0, 1]")
	}
	if c.Hcp.HSignatureThreshold < 0 {
		return errors.New("hcp.h_signature_threshold must be non-negative")
	}
	if c.Hcp.RoadmapGraphNoSamples < 1 {
		return errors.New("hcp.roadmap_graph_no_samples must be at least 1")
	}
	if c.Hcp.RoadmapGraphAreaWidth <= 0 {
		return errors.New("hcp.roadmap_graph_area_width must be positive")
	}
	if c.Hcp.DegenerateObstacleDistance < 0 {
		return errors.New("hcp.degenerate_obstacle_distance must be non-negative")
	}
	if c.Obstacles.MinObstacleDist < 0 {
		return errors.New("obstacles.min_obstacle_dist must be non-negative")
	}
	if c.GoalTolerance.XYGoalTolerance < 0 {
		return errors.New("goal_tolerance.xy_goal_tolerance must be non-negative")
	}
	if c.Optim.NoInnerIterations < 1 || c.Optim.NoOuterIterations < 1 {
		return errors.New("optim iteration counts must be at least 1")
	}
	if c.Optim.DtRef <= 0 {
		return errors.New("optim.dt_ref must be positive")
	}
	if c.Optim.WeightObstacle < 0 || c.Optim.WeightSmoothness < 0 || c.Optim.WeightTime < 0 {
		return errors.New("optim weights must be non-negative")
	}
	if c.Optim.WeightObstacle+c.Optim.WeightSmoothness == 0 {
		return errors.New("at least one of optim.weight_obstacle and optim.weight_smoothness must be positive")
	}
	if c.Optim.MinSamples < 3 {
		return errors.New("optim.min_samples must be at least 3")
	}
	if c.Optim.MaxSamples < c.Optim.MinSamples {
		return errors.New("optim.max_samples must be at least optim.min_samples")
	}
	return nil
}

// Read loads a configuration file, overlaying defaults.
func Read(path string, logger logging.Logger) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", path)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", path)
	}
	logger.Debugw("loaded planner config", "path", path)
	return cfg, nil
}

// FromAttributes overlays loosely-typed attribute overrides onto defaults.
// Keys follow the JSON section structure, e.g. {"hcp": {"max_number_classes": 2}}.
func FromAttributes(attrs map[string]interface{}) (*Config, error) {
	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "cannot decode planner attributes")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
