package aggregate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devpulse-io/devpulse/pkg/github"
)

func TestJoinAll_AllSucceed(t *testing.T) {
	var ran atomic.Int32
	err := joinAll(context.Background(), time.Second,
		func(context.Context) error { ran.Add(1); return nil },
		func(context.Context) error { ran.Add(1); return nil },
		func(context.Context) error { ran.Add(1); return nil },
	)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if ran.Load() != 3 {
		t.Errorf("Expected all 3 tasks to run, got %d", ran.Load())
	}
}

func TestJoinAll_FirstFailureWinsAndCancelsRest(t *testing.T) {
	boom := &github.AuthError{StatusCode: 401}
	var sawCancel atomic.Bool

	err := joinAll(context.Background(), time.Second,
		func(context.Context) error { return boom },
		func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				sawCancel.Store(true)
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		},
	)

	var authErr *github.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected the failing task's error, got %v", err)
	}
	if !sawCancel.Load() {
		t.Error("Expected the sibling task to be cancelled")
	}
}

func TestJoinAll_TimeoutIsTransient(t *testing.T) {
	err := joinAll(context.Background(), 20*time.Millisecond,
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	)

	var te *github.TransientError
	if !errors.As(err, &te) {
		t.Fatalf("Expected a transient failure on timeout, got %v", err)
	}
}
