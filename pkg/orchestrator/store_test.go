package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/protean-labs/conductor/pkg/core"
)

func testArchive(t *testing.T) *Archive {
	t.Helper()
	archive, err := OpenArchive(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { archive.Close() })
	return archive
}

func TestArchiveRecordAndGet(t *testing.T) {
	ctx := context.Background()
	archive := testArchive(t)

	task := core.NewTask("quarterly report", "summarize q3")
	task.AgentName = "Worker"
	if err := task.Start(); err != nil {
		t.Fatal(err)
	}
	task.Complete(map[string]any{"pages": 12})

	if err := archive.Record(ctx, task); err != nil {
		t.Fatal(err)
	}

	got, err := archive.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "quarterly report" || got.Status != core.TaskStatusCompleted {
		t.Errorf("archived task = %+v", got)
	}
	if got.OutputData["pages"] != float64(12) {
		t.Errorf("output = %v, want pages=12", got.OutputData)
	}
}

func TestArchiveGetUnknown(t *testing.T) {
	archive := testArchive(t)
	if _, err := archive.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestArchiveRecordOverwritesEarlierOutcome(t *testing.T) {
	ctx := context.Background()
	archive := testArchive(t)

	task := core.NewTask("flaky", "d")
	task.AgentName = "Worker"
	if err := task.Start(); err != nil {
		t.Fatal(err)
	}
	task.Fail("first attempt failed")
	if err := archive.Record(ctx, task); err != nil {
		t.Fatal(err)
	}

	if !task.Retry() {
		t.Fatal("retry should succeed")
	}
	if err := task.Start(); err != nil {
		t.Fatal(err)
	}
	task.Complete(nil)
	if err := archive.Record(ctx, task); err != nil {
		t.Fatal(err)
	}

	got, err := archive.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != core.TaskStatusCompleted {
		t.Errorf("status = %q, want the final outcome", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}
}

func TestArchiveListByAgent(t *testing.T) {
	ctx := context.Background()
	archive := testArchive(t)

	for i := 0; i < 3; i++ {
		task := core.NewTask("t", "d")
		task.AgentName = "Worker"
		task.Complete(nil)
		if err := archive.Record(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	other := core.NewTask("t", "d")
	other.AgentName = "Other"
	other.Complete(nil)
	if err := archive.Record(ctx, other); err != nil {
		t.Fatal(err)
	}

	got, err := archive.ListByAgent(ctx, "Worker", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("listed %d tasks, want 3", len(got))
	}
}

func TestArchivePrune(t *testing.T) {
	ctx := context.Background()
	archive := testArchive(t)

	old := core.NewTask("old", "d")
	old.AgentName = "Worker"
	old.Complete(nil)
	old.CompletedAt = time.Now().UTC().Add(-2 * time.Hour)
	if err := archive.Record(ctx, old); err != nil {
		t.Fatal(err)
	}

	fresh := core.NewTask("fresh", "d")
	fresh.AgentName = "Worker"
	fresh.Complete(nil)
	if err := archive.Record(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	if err := archive.Prune(ctx, time.Hour); err != nil {
		t.Fatal(err)
	}

	if _, err := archive.Get(ctx, old.ID); err == nil {
		t.Error("old task should have been pruned")
	}
	if _, err := archive.Get(ctx, fresh.ID); err != nil {
		t.Errorf("fresh task should survive: %v", err)
	}
}
