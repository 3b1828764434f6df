package remote

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"
)

// Dispatcher runs mirroring tasks in the background, each under its own
// timeout and detached from the caller's context.
type Dispatcher struct {
	base    context.Context
	timeout time.Duration
	wg      conc.WaitGroup
}

func NewDispatcher(base context.Context, timeout time.Duration) *Dispatcher {
	if base == nil {
		base = context.Background()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{base: base, timeout: timeout}
}

// Go schedules task. Panics inside task are re-raised by Wait.
func (d *Dispatcher) Go(task func(ctx context.Context)) {
	d.wg.Go(func() {
		ctx, cancel := context.WithTimeout(d.base, d.timeout)
		defer cancel()
		task(ctx)
	})
}

// Wait blocks until every scheduled task returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
