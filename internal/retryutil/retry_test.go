package retryutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAsyncRetryRunsOnce(t *testing.T) {
	done := make(chan struct{})
	AsyncRetry(nil, "probe", time.Millisecond, time.Second, func(ctx context.Context) error {
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("retry never ran")
	}
}

func TestAsyncRetryFailureDoesNotPanic(t *testing.T) {
	done := make(chan struct{})
	AsyncRetry(nil, "probe", time.Millisecond, time.Second, func(ctx context.Context) error {
		defer close(done)
		return errors.New("boom")
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("retry never ran")
	}
}

func TestAsyncRetryNilFnIsNoop(t *testing.T) {
	AsyncRetry(nil, "probe", time.Millisecond, time.Second, nil)
}
