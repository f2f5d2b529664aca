package aggregate

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devpulse-io/devpulse/pkg/github"
)

// task is one upstream call in a fan-out set.
type task func(context.Context) error

// joinAll runs every task concurrently and waits for the full set: it
// returns nil only when all tasks succeed, otherwise the first failure,
// which also cancels the remaining tasks. The timeout bounds the whole
// set so one slow endpoint cannot stall the pipeline; expiry surfaces as
// a transient failure.
func joinAll(ctx context.Context, timeout time.Duration, tasks ...task) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error { return t(ctx) })
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &github.TransientError{Err: err}
		}
		return err
	}
	return nil
}
