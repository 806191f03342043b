// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/protean-labs/conductor/pkg/errors"
)

func TestWithTimeoutPassesThrough(t *testing.T) {
	err := WithTimeout(context.Background(), TimeoutConfig{Duration: time.Second}, func(_ context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestWithTimeoutZeroDisablesBound(t *testing.T) {
	called := false
	err := WithTimeout(context.Background(), TimeoutConfig{}, func(ctx context.Context) error {
		called = true
		if _, hasDeadline := ctx.Deadline(); hasDeadline {
			t.Error("zero duration should not impose a deadline")
		}
		return nil
	})
	if err != nil || !called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
}

func TestWithTimeoutExpires(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	err := WithTimeout(context.Background(), TimeoutConfig{Duration: 10 * time.Millisecond}, func(_ context.Context) error {
		<-release
		return nil
	})
	if !errors.IsCode(err, errors.CodeTimeout) {
		t.Fatalf("error = %v, want timeout code", err)
	}
	if !errors.IsRecoverable(err) {
		t.Error("timeout errors should be recoverable")
	}
}

func TestWithTimeoutCancelsOperationContext(t *testing.T) {
	cancelled := make(chan struct{})
	err := WithTimeout(context.Background(), TimeoutConfig{Duration: 10 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	if !errors.IsCode(err, errors.CodeTimeout) {
		t.Fatalf("error = %v, want timeout code", err)
	}
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("operation context was not cancelled after the bound expired")
	}
}

func TestWithTimeoutResultReturnsValue(t *testing.T) {
	value, err := WithTimeoutResult(context.Background(), TimeoutConfig{Duration: time.Second}, func(_ context.Context) (interface{}, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if value != "ok" {
		t.Errorf("value = %v", value)
	}
}

func TestWithTimeoutResultExpires(t *testing.T) {
	cancelled := make(chan struct{})
	value, err := WithTimeoutResult(context.Background(), TimeoutConfig{Duration: 10 * time.Millisecond}, func(ctx context.Context) (interface{}, error) {
		<-ctx.Done()
		close(cancelled)
		return "late", ctx.Err()
	})
	if value != nil {
		t.Errorf("value = %v, want nil on timeout", value)
	}
	if !errors.IsCode(err, errors.CodeTimeout) {
		t.Fatalf("error = %v, want timeout code", err)
	}
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("operation context was not cancelled after the bound expired")
	}
}
