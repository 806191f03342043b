package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestConversationRecordAndRecall(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(10)

	for i := 0; i < 3; i++ {
		if err := c.Record(ctx, fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i), nil); err != nil {
			t.Fatal(err)
		}
	}

	turns, err := c.Recall(ctx, "ignored", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 {
		t.Fatalf("recalled %d turns, want 2", len(turns))
	}
	// Recency-based: the two most recent, oldest first.
	if turns[0].Input != "question 1" || turns[1].Input != "question 2" {
		t.Errorf("turns = %v %v", turns[0].Input, turns[1].Input)
	}
	if !strings.Contains(turns[1].Content, "User: question 2") {
		t.Errorf("content = %q", turns[1].Content)
	}
}

func TestConversationRecallDefaultLimit(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(20)
	for i := 0; i < 8; i++ {
		c.Record(ctx, fmt.Sprintf("q%d", i), "a", nil)
	}

	turns, err := c.Recall(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 5 {
		t.Errorf("default limit returned %d turns, want 5", len(turns))
	}
}

func TestConversationTurnBound(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(3)

	for i := 0; i < 10; i++ {
		c.Record(ctx, fmt.Sprintf("q%d", i), "a", nil)
	}

	if c.TurnCount() != 3 {
		t.Fatalf("turn count = %d, want 3", c.TurnCount())
	}
	turns, _ := c.Recall(ctx, "", 10)
	if turns[0].Input != "q7" {
		t.Errorf("oldest surviving turn = %q, want q7", turns[0].Input)
	}
}

func TestConversationMessageBound(t *testing.T) {
	c := NewConversation(3)

	for i := 0; i < 20; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		c.AppendMessage(role, fmt.Sprintf("m%d", i), nil)
	}

	// Message transcript is bounded at twice the turn capacity.
	if c.MessageCount() != 6 {
		t.Fatalf("message count = %d, want 6", c.MessageCount())
	}
	recent := c.RecentMessages(2)
	if len(recent) != 2 || recent[1].Content != "m19" {
		t.Errorf("recent = %v", recent)
	}
}

func TestConversationClear(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(5)
	c.Record(ctx, "q", "a", nil)
	c.AppendMessage("user", "hello", nil)

	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if c.TurnCount() != 0 || c.MessageCount() != 0 {
		t.Error("clear did not empty both views")
	}
}

func TestConversationStats(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(4)
	c.Record(ctx, "q", "a", nil)
	c.Record(ctx, "q", "a", nil)

	stats := c.Stats()
	if stats.Turns != 2 || stats.MaxSize != 4 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Utilization != 0.5 {
		t.Errorf("utilization = %v, want 0.5", stats.Utilization)
	}
}
