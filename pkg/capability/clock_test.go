package capability

import (
	"context"
	"testing"
	"time"
)

func TestClockReportsFixedTime(t *testing.T) {
	at := time.Date(2026, time.March, 17, 14, 30, 0, 0, time.UTC)
	c := NewClockAt(func() time.Time { return at })

	result := c.Run(context.Background(), nil)
	if !result.Success {
		t.Fatalf("Run failed: %s", result.Error)
	}

	payload, ok := result.Output.(map[string]any)
	if !ok {
		t.Fatalf("output = %T, want map", result.Output)
	}
	if payload["date"] != "2026-03-17" {
		t.Errorf("date = %v", payload["date"])
	}
	if payload["time"] != "14:30" {
		t.Errorf("time = %v", payload["time"])
	}
	if payload["weekday"] != "Tuesday" {
		t.Errorf("weekday = %v", payload["weekday"])
	}
	if payload["natural_text"] == "" {
		t.Error("natural_text missing")
	}
}
