// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/protean-labs/conductor/pkg/errors"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastRetry(3).Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesRecoverableError(t *testing.T) {
	calls := 0
	err := fastRetry(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.CodeBackend, "backend unavailable", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnNonRecoverableError(t *testing.T) {
	calls := 0
	err := fastRetry(3).Do(context.Background(), func() error {
		calls++
		return errors.New(errors.CodeValidation, "bad input", nil)
	})
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, validation errors must not be retried", calls)
	}
}

func TestDoRetriesGenericErrors(t *testing.T) {
	calls := 0
	err := fastRetry(2).Do(context.Background(), func() error {
		calls++
		return stderrors.New("flaky")
	})
	if err == nil || err.Error() != "flaky" {
		t.Fatalf("error = %v, want the last attempt's error", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoHonorsCustomIsRecoverable(t *testing.T) {
	calls := 0
	cfg := fastRetry(3).WithIsRecoverable(func(error) bool { return false })
	cfg.Do(context.Background(), func() error {
		calls++
		return stderrors.New("flaky")
	})
	if calls != 1 {
		t.Errorf("calls = %d, custom predicate should stop retries", calls)
	}
}

func TestDoContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour}

	err := cfg.Do(ctx, func() error {
		cancel()
		return errors.New(errors.CodeBackend, "backend unavailable", nil)
	})
	if !errors.IsCode(err, errors.CodeContextLost) {
		t.Fatalf("error = %v, want context-lost code", err)
	}
}

func TestDoWithResultPassesValue(t *testing.T) {
	calls := 0
	value, err := fastRetry(3).DoWithResult(context.Background(), func() (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, errors.New(errors.CodeTimeout, "slow", nil)
		}
		return 42, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if value != 42 {
		t.Errorf("value = %v, want 42", value)
	}
}

func TestCalculateBackoffCapsAtMaxDelay(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}
	if d := calculateBackoff(10, cfg); d > time.Second {
		t.Errorf("delay = %v, want at most %v", d, time.Second)
	}
}
