package core

import (
	"fmt"
	"time"
)

// Info keys written by environments and read by reward functions.
const (
	InfoPredictedLabel = "predicted_label"
	InfoTrueLabel      = "true_label"
	InfoIsCorrect      = "is_correct"
	InfoReward         = "reward"
)

// ActionKey is the key of the predicted label inside an Action.
const ActionKey = "action"

type Observation struct {
	Observation string `json:"observation"`
}

// Action is the mapping an agent submits to Environment.Step.
type Action map[string]any

func NewAction(label string) Action {
	return Action{ActionKey: label}
}

// Label returns the action value coerced to a string. A missing or nil value
// yields "".
func (a Action) Label() string {
	v, ok := a[ActionKey]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Info is the per-step mapping returned by Environment.Step.
type Info map[string]any

type Step struct {
	Observation Observation `json:"observation"`
	Action      Action      `json:"action"`
	Reward      float64     `json:"reward"`
	Done        bool        `json:"done"`
	Info        Info        `json:"info"`
}

// Trajectory is the recorded sequence of steps for one episode
type Trajectory struct {
	ID        string    `json:"id"`
	WorkerID  int       `json:"worker_id"`
	Prompt    string    `json:"prompt"`
	Steps     []Step    `json:"steps"`
	Reward    float64   `json:"reward"`
	Timestamp time.Time `json:"timestamp"`
}
