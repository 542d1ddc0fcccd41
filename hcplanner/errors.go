package hcplanner

import "github.com/pkg/errors"

var (
	// ErrUninitialized is returned when Plan is called on a planner that was
	// not built by NewHomotopyClassPlanner.
	ErrUninitialized = errors.New("planner not initialized")

	// ErrEmptyPlan is returned when Plan receives no poses to plan between.
	ErrEmptyPlan = errors.New("initial plan contains no poses")
)
