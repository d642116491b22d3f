package environment

import (
	"github.com/boristopalov/paperrl/pkg/core"
	"github.com/boristopalov/paperrl/pkg/dataset"
)

// Factory builds independent environments over one shared example pool.
type Factory struct {
	examples []dataset.Example
	maxSteps int
	seed     *uint64
}

func NewFactory(examples []dataset.Example, maxSteps int, seed *uint64) *Factory {
	return &Factory{
		examples: examples,
		maxSteps: maxSteps,
		seed:     seed,
	}
}

// NewEnvironment returns the environment for worker n. With a base seed the
// worker is seeded with seed+n, so runs are reproducible per worker.
func (f *Factory) NewEnvironment(n int) (core.Environment, error) {
	opts := []Option{WithMaxSteps(f.maxSteps)}
	if f.seed != nil {
		opts = append(opts, WithSeed(*f.seed+uint64(n)))
	}
	return New(f.examples, opts...)
}
