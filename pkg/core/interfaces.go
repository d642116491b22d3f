package core

import (
	"context"
)

// Environment defines the rules of a single labelled-example episode
type Environment interface {
	// Reset starts a new episode and returns its first observation
	Reset() (Observation, error)
	// Step applies an action and reports the next observation, the reward,
	// whether the episode is done, and per-step info
	Step(action Action) (Observation, float64, bool, Info, error)
}

// RewardFn assigns the overall reward of a finished trajectory
type RewardFn interface {
	Compute(trajectory *Trajectory) (*Trajectory, error)
}

// Agent produces an action for an observation
type Agent interface {
	Act(ctx context.Context, obs Observation) (Action, error)
}
