package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/chainguard-dev/clog"
)

// teardown is a LIFO queue of named shutdown steps (metrics push, exporter
// flushes) run once a command finishes, whatever its outcome.
type teardown struct {
	steps []teardownStep
}

type teardownStep struct {
	name string
	fn   func(ctx context.Context) error
}

// Push adds a step, to be run in the reverse order steps were added.
func (t *teardown) Push(name string, fn func(ctx context.Context) error) {
	t.steps = append(t.steps, teardownStep{name: name, fn: fn})
}

// Run calls every step in reverse order, returning all failures joined.
func (t *teardown) Run(ctx context.Context) error {
	var errs error
	for _, step := range slices.Backward(t.steps) {
		if err := step.fn(ctx); err != nil {
			clog.FromContext(ctx).Warn("teardown step failed", "step", step.name, "error", err)
			errs = errors.Join(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	t.steps = nil
	return errs
}
