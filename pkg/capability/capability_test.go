package capability

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/protean-labs/conductor/pkg/core"
	"github.com/protean-labs/conductor/pkg/errors"
)

func echoCapability(opts ...Option) *Base {
	return NewFunc("echo", "echoes its arguments",
		func(_ context.Context, args map[string]any) (any, error) {
			return args, nil
		}, opts...)
}

func TestRunSuccess(t *testing.T) {
	c := echoCapability(WithParams(
		core.ParamSpec{Name: "text", Type: "string", Required: true},
	))

	result := c.Run(context.Background(), map[string]any{"text": "hello"})
	if !result.Success {
		t.Fatalf("Run failed: %s", result.Error)
	}
	if result.Capability != "echo" {
		t.Errorf("capability = %q, want echo", result.Capability)
	}

	stats := c.Stats()
	if stats.Invocations != 1 || stats.Successes != 1 || stats.Failures != 0 {
		t.Errorf("stats = %+v, want 1/1/0", stats)
	}
}

func TestRunMissingRequiredParameter(t *testing.T) {
	c := echoCapability(WithParams(
		core.ParamSpec{Name: "text", Type: "string", Required: true},
	))

	result := c.Run(context.Background(), map[string]any{})
	if result.Success {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(result.Error, "missing required parameter") {
		t.Errorf("error = %q, want missing parameter message", result.Error)
	}

	stats := c.Stats()
	if stats.Invocations != 1 || stats.Failures != 1 {
		t.Errorf("stats = %+v, want invocation and failure counted", stats)
	}
}

func TestRunAppliesDefaults(t *testing.T) {
	var seen map[string]any
	c := NewFunc("probe", "records args",
		func(_ context.Context, args map[string]any) (any, error) {
			seen = args
			return nil, nil
		},
		WithParams(
			core.ParamSpec{Name: "user_id", Type: "string", Default: "anonymous"},
		))

	if result := c.Run(context.Background(), map[string]any{}); !result.Success {
		t.Fatalf("Run failed: %s", result.Error)
	}
	if seen["user_id"] != "anonymous" {
		t.Errorf("default not applied, args = %v", seen)
	}
}

func TestRunAbsorbsInvokerError(t *testing.T) {
	c := NewFunc("broken", "always fails",
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, errors.New(errors.CodeCapabilityFailure, "workflow exploded", nil)
		})

	result := c.Run(context.Background(), nil)
	if result.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(result.Error, "workflow exploded") {
		t.Errorf("error = %q", result.Error)
	}
}

func TestRunTimeout(t *testing.T) {
	c := NewFunc("slow", "sleeps past its bound",
		func(ctx context.Context, _ map[string]any) (any, error) {
			select {
			case <-time.After(5 * time.Second):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
		WithTimeout(20*time.Millisecond))

	result := c.Run(context.Background(), nil)
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(strings.ToLower(result.Error), "timeout") {
		t.Errorf("error = %q, want a timeout message", result.Error)
	}

	stats := c.Stats()
	if stats.Failures != 1 {
		t.Errorf("failures = %d, want 1", stats.Failures)
	}
}

func TestRunTimeoutCancelsInvoker(t *testing.T) {
	observed := make(chan struct{})
	c := NewFunc("slow", "waits for its context",
		func(ctx context.Context, _ map[string]any) (any, error) {
			<-ctx.Done()
			close(observed)
			return nil, ctx.Err()
		},
		WithTimeout(20*time.Millisecond))

	result := c.Run(context.Background(), nil)
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	// The invoker must see the expired deadline; a timed-out invocation may
	// not keep running on an uncancelled context.
	select {
	case <-observed:
	case <-time.After(2 * time.Second):
		t.Fatal("invoker context was not cancelled after the timeout")
	}
}

func TestCountersMonotoneUnderConcurrency(t *testing.T) {
	c := NewFunc("flaky", "fails on odd input",
		func(_ context.Context, args map[string]any) (any, error) {
			if fail, _ := args["fail"].(bool); fail {
				return nil, errors.New(errors.CodeCapabilityFailure, "odd", nil)
			}
			return "ok", nil
		})

	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.Run(context.Background(), map[string]any{"fail": (w+i)%2 == 1})
			}
		}(w)
	}
	wg.Wait()

	stats := c.Stats()
	if stats.Invocations != workers*perWorker {
		t.Errorf("invocations = %d, want %d", stats.Invocations, workers*perWorker)
	}
	if stats.Successes+stats.Failures != stats.Invocations {
		t.Errorf("successes(%d)+failures(%d) != invocations(%d)", stats.Successes, stats.Failures, stats.Invocations)
	}
}

func TestSchema(t *testing.T) {
	c := echoCapability(WithParams(
		core.ParamSpec{Name: "text", Type: "string", Description: "the text", Required: true},
		core.ParamSpec{Name: "user_id", Type: "string", Default: "anonymous"},
	))

	schema := c.Schema()
	if schema.Name != "echo" {
		t.Errorf("name = %q", schema.Name)
	}
	if len(schema.Parameters) != 2 {
		t.Fatalf("parameters = %d, want 2", len(schema.Parameters))
	}
	if schema.Parameters[0].Name != "text" || !schema.Parameters[0].Required {
		t.Errorf("first param = %+v", schema.Parameters[0])
	}
}
