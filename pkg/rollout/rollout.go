// Package rollout drives reset → step → reward cycles of an agent against
// independent environment instances, one per worker.
package rollout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/boristopalov/paperrl/internal/logging"
	"github.com/boristopalov/paperrl/pkg/core"
	"github.com/boristopalov/paperrl/pkg/memory"
	"github.com/boristopalov/paperrl/pkg/messaging"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

const (
	collectorID = "collector"
	recorderID  = "recorder"
)

// EnvFactory builds the private environment of worker n.
type EnvFactory interface {
	NewEnvironment(n int) (core.Environment, error)
}

// Status reports the progress of a Runner.
type Status struct {
	Running   bool
	StartTime time.Time
	EndTime   time.Time
	Completed int
	Errors    []error
}

// Summary aggregates finished trajectories.
type Summary struct {
	Name       string
	Episodes   int
	Failed     int
	Correct    int
	Accuracy   float64
	MeanReward float64
	Duration   time.Duration
}

type Runner struct {
	name     string
	factory  EnvFactory
	agent    core.Agent
	rewardFn core.RewardFn
	episodes int
	workers  int
	recorder io.Writer
	recent   *memory.Buffer[core.Trajectory]

	mu     sync.RWMutex
	status Status
}

type Option func(*Runner)

func WithName(name string) Option {
	return func(r *Runner) {
		r.name = name
	}
}

func WithEpisodes(n int) Option {
	return func(r *Runner) {
		r.episodes = n
	}
}

func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithRecorder writes every finished trajectory to w as one JSON line.
func WithRecorder(w io.Writer) Option {
	return func(r *Runner) {
		r.recorder = w
	}
}

// WithKeepRecent sets how many finished trajectories Recent returns.
func WithKeepRecent(n int) Option {
	return func(r *Runner) {
		r.recent = memory.NewBuffer[core.Trajectory](n)
	}
}

func New(factory EnvFactory, agent core.Agent, rewardFn core.RewardFn, opts ...Option) (*Runner, error) {
	r := &Runner{
		name:     "rollout",
		factory:  factory,
		agent:    agent,
		rewardFn: rewardFn,
		episodes: 1,
		workers:  1,
		recent:   memory.NewBuffer[core.Trajectory](100),
	}
	for _, opt := range opts {
		opt(r)
	}

	if factory == nil || agent == nil || rewardFn == nil {
		return nil, goerr.New("factory, agent and reward function are required")
	}
	if r.episodes < 1 {
		return nil, goerr.New("episodes must be at least 1", goerr.V("episodes", r.episodes))
	}
	if r.workers < 1 {
		return nil, goerr.New("workers must be at least 1", goerr.V("workers", r.workers))
	}
	r.workers = min(r.workers, r.episodes)
	return r, nil
}

// GetStatus returns a snapshot of the runner status.
func (r *Runner) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.status
	s.Errors = append([]error(nil), r.status.Errors...)
	return s
}

// Recent returns the most recently finished trajectories, oldest first.
func (r *Runner) Recent() []core.Trajectory {
	return r.recent.All()
}

// Run plays all episodes. Agent failures are recorded in the status and the
// episode is counted as failed; environment and reward errors abort the run.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	logger := logging.From(ctx)

	r.mu.Lock()
	r.status = Status{Running: true, StartTime: time.Now()}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.status.Running = false
		r.status.EndTime = time.Now()
		r.mu.Unlock()
	}()

	broker := messaging.NewBroker[core.Trajectory]()
	defer broker.Reset()

	collected := make(chan messaging.Message[core.Trajectory], r.workers)
	if err := broker.Subscribe(collectorID, collected); err != nil {
		return nil, err
	}
	var recorded chan messaging.Message[core.Trajectory]
	if r.recorder != nil {
		recorded = make(chan messaging.Message[core.Trajectory], r.workers)
		if err := broker.Subscribe(recorderID, recorded); err != nil {
			return nil, err
		}
	}

	summary := &Summary{Name: r.name}
	var totalReward float64
	var sinks errgroup.Group
	sinks.Go(func() error {
		for msg := range collected {
			tr := msg.Content
			summary.Episodes++
			totalReward += tr.Reward
			if isCorrect(tr) {
				summary.Correct++
			}
			r.recent.Store(tr)
			r.mu.Lock()
			r.status.Completed++
			r.mu.Unlock()
		}
		return nil
	})
	if recorded != nil {
		sinks.Go(func() error {
			enc := json.NewEncoder(r.recorder)
			enc.SetEscapeHTML(false)
			var failed error
			for msg := range recorded {
				if failed != nil {
					continue
				}
				if err := enc.Encode(msg.Content); err != nil {
					failed = goerr.Wrap(err, "failed to record trajectory", goerr.V("id", msg.Content.ID))
				}
			}
			return failed
		})
	}

	jobs := make(chan int)
	workers, workCtx := errgroup.WithContext(ctx)
	workers.Go(func() error {
		defer close(jobs)
		for i := range r.episodes {
			select {
			case jobs <- i:
			case <-workCtx.Done():
				return nil
			}
		}
		return nil
	})

	var failedMu sync.Mutex
	for w := range r.workers {
		workers.Go(func() error {
			env, err := r.factory.NewEnvironment(w)
			if err != nil {
				return goerr.Wrap(err, "failed to create environment", goerr.V("worker", w))
			}
			workerID := "worker-" + strconv.Itoa(w)

			for episode := range jobs {
				tr, err := r.runEpisode(workCtx, env, w)
				var agentErr *agentError
				if errors.As(err, &agentErr) {
					logger.Warn("agent failed, episode skipped",
						slog.String("worker", workerID),
						slog.Int("episode", episode),
						slog.Any("error", agentErr.err),
					)
					failedMu.Lock()
					summary.Failed++
					failedMu.Unlock()
					r.mu.Lock()
					r.status.Errors = append(r.status.Errors, agentErr.err)
					r.mu.Unlock()
					continue
				}
				if err != nil {
					return err
				}

				logger.Debug("episode finished",
					slog.String("worker", workerID),
					slog.Int("episode", episode),
					slog.String("trajectory_id", tr.ID),
					slog.Float64("reward", tr.Reward),
				)
				if err := broker.Publish(workCtx, messaging.Message[core.Trajectory]{
					From:      workerID,
					Content:   *tr,
					Timestamp: time.Now(),
				}); err != nil {
					return err
				}
			}
			return nil
		})
	}

	runErr := workers.Wait()
	close(collected)
	if recorded != nil {
		close(recorded)
	}
	sinkErr := sinks.Wait()

	if runErr != nil {
		return nil, runErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sinkErr != nil {
		return nil, sinkErr
	}

	if summary.Episodes > 0 {
		summary.Accuracy = float64(summary.Correct) / float64(summary.Episodes)
		summary.MeanReward = totalReward / float64(summary.Episodes)
	}
	summary.Duration = time.Since(r.GetStatus().StartTime)

	logger.Info("rollout finished",
		slog.String("name", summary.Name),
		slog.Int("episodes", summary.Episodes),
		slog.Int("failed", summary.Failed),
		slog.Float64("accuracy", summary.Accuracy),
		slog.Float64("mean_reward", summary.MeanReward),
		slog.Duration("took", summary.Duration),
	)
	return summary, nil
}

type agentError struct {
	err error
}

func (e *agentError) Error() string { return e.err.Error() }
func (e *agentError) Unwrap() error { return e.err }

func (r *Runner) runEpisode(ctx context.Context, env core.Environment, worker int) (*core.Trajectory, error) {
	obs, err := env.Reset()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to reset environment", goerr.V("worker", worker))
	}
	tr := &core.Trajectory{
		ID:        uuid.NewString(),
		WorkerID:  worker,
		Prompt:    obs.Observation,
		Timestamp: time.Now(),
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		action, err := r.agent.Act(ctx, obs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &agentError{err: err}
		}
		next, reward, done, info, err := env.Step(action)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to step environment", goerr.V("worker", worker))
		}
		tr.Steps = append(tr.Steps, core.Step{
			Observation: next,
			Action:      action,
			Reward:      reward,
			Done:        done,
			Info:        info,
		})
		if done {
			break
		}
		obs = next
	}

	tr, err = r.rewardFn.Compute(tr)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compute trajectory reward", goerr.V("worker", worker))
	}
	return tr, nil
}

func isCorrect(tr core.Trajectory) bool {
	if len(tr.Steps) == 0 {
		return false
	}
	ok, _ := tr.Steps[len(tr.Steps)-1].Info[core.InfoIsCorrect].(bool)
	return ok
}
