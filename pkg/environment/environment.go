// Package environment implements the single-step paper classification
// environment sampled during RL rollouts.
package environment

import (
	"math/rand/v2"
	"strings"

	"github.com/boristopalov/paperrl/pkg/core"
	"github.com/boristopalov/paperrl/pkg/dataset"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrNoData              = dataset.ErrNoData
	ErrMalformedExample    = dataset.ErrMalformedExample
	ErrEpisodeAlreadyEnded = goerr.New("episode has already ended")
	ErrNoActiveEpisode     = goerr.New("step called before reset")
	ErrInvalidMaxSteps     = goerr.New("max steps must be at least 1")
)

const (
	DefaultMaxSteps = 1

	RewardCorrect   = 1.0
	RewardIncorrect = -1.0
)

var _ core.Environment = (*PaperClassification)(nil)

// PaperClassification samples one labelled example per episode and rewards a
// predicted label with +1 when it matches the ground truth and -1 otherwise.
//
// An instance is not safe for concurrent use; run one per worker. The example
// slice is never mutated and may be shared between instances.
type PaperClassification struct {
	examples []dataset.Example
	maxSteps int
	rng      *rand.Rand

	current *dataset.Example
	step    int
}

type params struct {
	maxSteps int
	rng      *rand.Rand
}

type Option func(*params)

// WithMaxSteps sets the step budget of an episode.
func WithMaxSteps(n int) Option {
	return func(p *params) {
		p.maxSteps = n
	}
}

// WithRand sets the random source used to pick examples.
func WithRand(rng *rand.Rand) Option {
	return func(p *params) {
		p.rng = rng
	}
}

// WithSeed makes sampling reproducible.
func WithSeed(seed uint64) Option {
	return func(p *params) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// New validates examples and returns an environment sampling from them.
func New(examples []dataset.Example, opts ...Option) (*PaperClassification, error) {
	p := &params{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(p)
	}

	if p.maxSteps < 1 {
		return nil, goerr.Wrap(ErrInvalidMaxSteps, "invalid environment config", goerr.V("max_steps", p.maxSteps))
	}
	if len(examples) == 0 {
		return nil, ErrNoData
	}
	for i, ex := range examples {
		if ex.Input == "" || ex.Output == "" {
			return nil, goerr.Wrap(ErrMalformedExample, "example has empty input or output", goerr.V("index", i))
		}
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &PaperClassification{
		examples: examples,
		maxSteps: p.maxSteps,
		rng:      p.rng,
	}, nil
}

// Load reads the JSONL dataset at path and builds an environment from it.
func Load(path string, opts ...Option) (*PaperClassification, error) {
	examples, err := dataset.LoadJSONL(path)
	if err != nil {
		return nil, err
	}
	return New(examples, opts...)
}

// Reset picks a new example uniformly at random and returns its prompt.
func (e *PaperClassification) Reset() (core.Observation, error) {
	e.step = 0
	e.current = &e.examples[e.rng.IntN(len(e.examples))]
	return core.Observation{Observation: e.current.Input}, nil
}

// Step scores the predicted label in action against the current example.
func (e *PaperClassification) Step(action core.Action) (core.Observation, float64, bool, core.Info, error) {
	if e.current == nil {
		return core.Observation{}, 0, false, nil, ErrNoActiveEpisode
	}
	if e.step >= e.maxSteps {
		return core.Observation{}, 0, false, nil, goerr.Wrap(ErrEpisodeAlreadyEnded, "step budget exhausted",
			goerr.V("max_steps", e.maxSteps),
		)
	}
	e.step++

	predicted := NormalizeLabel(action.Label())
	truth := NormalizeLabel(e.current.Output)

	reward := RewardIncorrect
	if predicted == truth {
		reward = RewardCorrect
	}
	done := e.step >= e.maxSteps

	next := core.Observation{}
	if !done {
		next.Observation = e.current.Input
	}

	info := core.Info{
		core.InfoPredictedLabel: predicted,
		core.InfoTrueLabel:      truth,
		core.InfoIsCorrect:      reward > 0,
		core.InfoReward:         reward,
	}
	return next, reward, done, info, nil
}

// MaxSteps returns the step budget of an episode.
func (e *PaperClassification) MaxSteps() int {
	return e.maxSteps
}

// NormalizeLabel trims surrounding whitespace and upper-cases label.
func NormalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}
