// Package reward assigns trajectory rewards from what the environment already
// recorded in each step's info.
package reward

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/boristopalov/paperrl/pkg/core"
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidReward = goerr.New("reward value is not numeric")

var _ core.RewardFn = (*PaperClassification)(nil)

// PaperClassification copies the "reward" entry of the last step's info onto
// the trajectory. It never re-checks correctness.
type PaperClassification struct{}

func New() *PaperClassification {
	return &PaperClassification{}
}

// Compute sets trajectory.Reward and returns the same trajectory. An empty
// trajectory or a missing reward entry yields 0.
func (r *PaperClassification) Compute(trajectory *core.Trajectory) (*core.Trajectory, error) {
	if trajectory == nil {
		return nil, goerr.New("trajectory is nil")
	}
	if len(trajectory.Steps) == 0 {
		trajectory.Reward = 0.0
		return trajectory, nil
	}

	last := trajectory.Steps[len(trajectory.Steps)-1]
	v, ok := last.Info[core.InfoReward]
	if !ok {
		trajectory.Reward = 0.0
		return trajectory, nil
	}

	value, err := ToFloat(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read reward from last step",
			goerr.V("trajectory_id", trajectory.ID),
			goerr.V("steps", len(trajectory.Steps)),
		)
	}
	trajectory.Reward = value
	return trajectory, nil
}

// ToFloat coerces a numeric info value to float64. nil counts as 0.
func ToFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, goerr.Wrap(ErrInvalidReward, "invalid json number", goerr.V("value", x.String()))
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, goerr.Wrap(ErrInvalidReward, "invalid numeric string", goerr.V("value", x))
		}
		return f, nil
	default:
		return 0, goerr.Wrap(ErrInvalidReward, "unsupported reward type", goerr.V("value", v))
	}
}
