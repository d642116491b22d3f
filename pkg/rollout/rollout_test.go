package rollout_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/boristopalov/paperrl/internal/logging"
	"github.com/boristopalov/paperrl/pkg/core"
	"github.com/boristopalov/paperrl/pkg/dataset"
	"github.com/boristopalov/paperrl/pkg/environment"
	"github.com/boristopalov/paperrl/pkg/reward"
	"github.com/boristopalov/paperrl/pkg/rollout"
	"github.com/m-mizutani/gt"
)

var examples = []dataset.Example{
	{Input: "Classify paper X", Output: "A"},
	{Input: "Classify paper Y", Output: "B"},
	{Input: "Classify paper Z", Output: "C"},
}

type oracleAgent struct {
	labels map[string]string
}

func (a *oracleAgent) Act(ctx context.Context, obs core.Observation) (core.Action, error) {
	return core.NewAction(strings.ToLower(a.labels[obs.Observation])), nil
}

type constantAgent struct {
	label string
}

func (a *constantAgent) Act(ctx context.Context, obs core.Observation) (core.Action, error) {
	return core.NewAction(a.label), nil
}

type flakyAgent struct {
	calls atomic.Int64
}

func (a *flakyAgent) Act(ctx context.Context, obs core.Observation) (core.Action, error) {
	if a.calls.Add(1)%2 == 0 {
		return nil, errors.New("rate limited")
	}
	return core.NewAction("A"), nil
}

type brokenFactory struct{}

func (brokenFactory) NewEnvironment(n int) (core.Environment, error) {
	return nil, errors.New("no gpu")
}

func newFactory() *environment.Factory {
	seed := uint64(11)
	return environment.NewFactory(examples, 1, &seed)
}

func testContext() context.Context {
	return logging.With(context.Background(), logging.TestLogger())
}

func TestRunnerOracle(t *testing.T) {
	labels := map[string]string{}
	for _, ex := range examples {
		labels[ex.Input] = ex.Output
	}

	var recorded bytes.Buffer
	r, err := rollout.New(newFactory(), &oracleAgent{labels: labels}, reward.New(),
		rollout.WithName("oracle"),
		rollout.WithEpisodes(40),
		rollout.WithWorkers(4),
		rollout.WithRecorder(&recorded),
		rollout.WithKeepRecent(10),
	)
	gt.NoError(t, err)

	summary, err := r.Run(testContext())
	gt.NoError(t, err)
	gt.Equal(t, summary.Name, "oracle")
	gt.Equal(t, summary.Episodes, 40)
	gt.Equal(t, summary.Correct, 40)
	gt.Equal(t, summary.Failed, 0)
	gt.Equal(t, summary.Accuracy, 1.0)
	gt.Equal(t, summary.MeanReward, 1.0)

	gt.A(t, r.Recent()).Length(10)
	status := r.GetStatus()
	gt.False(t, status.Running)
	gt.Equal(t, status.Completed, 40)

	ids := map[string]bool{}
	scanner := bufio.NewScanner(&recorded)
	for scanner.Scan() {
		var tr core.Trajectory
		gt.NoError(t, json.Unmarshal(scanner.Bytes(), &tr))
		gt.Equal(t, tr.Reward, 1.0)
		gt.A(t, tr.Steps).Length(1)
		gt.True(t, tr.Steps[0].Done)
		gt.Equal(t, tr.Steps[0].Info[core.InfoIsCorrect], any(true))
		ids[tr.ID] = true
	}
	gt.Equal(t, len(ids), 40)
}

func TestRunnerWrongAgent(t *testing.T) {
	r, err := rollout.New(newFactory(), &constantAgent{label: "Z"}, reward.New(),
		rollout.WithEpisodes(9),
		rollout.WithWorkers(3),
	)
	gt.NoError(t, err)

	summary, err := r.Run(testContext())
	gt.NoError(t, err)
	gt.Equal(t, summary.Episodes, 9)
	gt.Equal(t, summary.Correct, 0)
	gt.Equal(t, summary.MeanReward, -1.0)
}

func TestRunnerAgentFailures(t *testing.T) {
	r, err := rollout.New(newFactory(), &flakyAgent{}, reward.New(),
		rollout.WithEpisodes(10),
		rollout.WithWorkers(1),
	)
	gt.NoError(t, err)

	summary, err := r.Run(testContext())
	gt.NoError(t, err)
	gt.Equal(t, summary.Failed, 5)
	gt.Equal(t, summary.Episodes, 5)
	gt.A(t, r.GetStatus().Errors).Length(5)
}

func TestRunnerErrors(t *testing.T) {
	t.Run("environment construction", func(t *testing.T) {
		r, err := rollout.New(brokenFactory{}, &constantAgent{label: "A"}, reward.New(), rollout.WithEpisodes(3))
		gt.NoError(t, err)
		_, err = r.Run(testContext())
		gt.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		r, err := rollout.New(newFactory(), &constantAgent{label: "A"}, reward.New(), rollout.WithEpisodes(100))
		gt.NoError(t, err)
		ctx, cancel := context.WithCancel(testContext())
		cancel()
		_, err = r.Run(ctx)
		gt.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := rollout.New(newFactory(), &constantAgent{}, reward.New(), rollout.WithEpisodes(0))
		gt.Error(t, err)
		_, err = rollout.New(newFactory(), &constantAgent{}, reward.New(), rollout.WithWorkers(0))
		gt.Error(t, err)
		_, err = rollout.New(nil, &constantAgent{}, reward.New())
		gt.Error(t, err)
	})
}

func TestAppendStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats", "rollout_stats.csv")
	s := &rollout.Summary{Name: "run", Episodes: 4, Correct: 3, Accuracy: 0.75, MeanReward: 0.5}
	gt.NoError(t, rollout.AppendStats(path, s))
	gt.NoError(t, rollout.AppendStats(path, s))

	raw, err := os.ReadFile(path)
	gt.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	gt.A(t, lines).Length(3)
	gt.True(t, strings.HasPrefix(lines[0], "Timestamp,Name,Episodes"))
	gt.True(t, strings.Contains(lines[1], ",run,4,0,3,0.7500,0.5000,"))
}
