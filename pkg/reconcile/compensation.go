package reconcile

import (
	"context"

	"github.com/common-fate/clio"
)

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// compensations undoes the completed steps of a multi step provisioning.
type compensations []compensation

func (c *compensations) add(name string, fn func(ctx context.Context) error) {
	*c = append(*c, compensation{name: name, fn: fn})
}

// run executes the registered steps in reverse order. Failures are logged
// and do not stop the remaining steps.
func (c compensations) run(ctx context.Context) {
	for i := len(c) - 1; i >= 0; i-- {
		step := c[i]
		if err := step.fn(ctx); err != nil {
			clio.Errorw("rollback step failed", "step", step.name, "error", err)
			continue
		}
		clio.Infow("rolled back", "step", step.name)
	}
}
