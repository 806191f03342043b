// Copyright 2026 © The Conductor Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory provides memory backends for agents.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/protean-labs/conductor/pkg/core"
)

// Message is a single chat-style entry: a flat role/content record.
type Message struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"` // system, user, assistant
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Conversation is a bounded in-memory conversation store. It keeps two views
// over the same bounded store: input/output turns (Record/Recall) capped at
// maxSize, and a flat role/content transcript (AppendMessage/RecentMessages)
// capped at 2×maxSize to approximate turn pairs.
//
// Recall is recency-based by policy, not semantic search; callers wanting
// richer retrieval substitute a vector-backed memory explicitly.
type Conversation struct {
	mu       sync.RWMutex
	maxSize  int
	turns    []core.Turn
	messages []Message
}

// NewConversation creates a conversation memory bounded at maxSize turns.
func NewConversation(maxSize int) *Conversation {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Conversation{maxSize: maxSize}
}

// Record appends an input/output turn, dropping the oldest entries once the
// bound is exceeded.
func (c *Conversation) Record(_ context.Context, inputText, outputText string, metadata map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if metadata == nil {
		metadata = map[string]any{}
	}
	turn := core.Turn{
		Input:     inputText,
		Output:    outputText,
		Content:   fmt.Sprintf("User: %s\nAgent: %s", inputText, outputText),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Metadata:  metadata,
	}
	c.turns = append(c.turns, turn)

	if len(c.turns) > c.maxSize {
		c.turns = c.turns[len(c.turns)-c.maxSize:]
	}
	return nil
}

// Recall returns the last limit turns, oldest first. The query is accepted
// for interface compatibility; retrieval is purely recency-based.
func (c *Conversation) Recall(_ context.Context, _ string, limit int) ([]core.Turn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}
	if len(c.turns) <= limit {
		return append([]core.Turn(nil), c.turns...), nil
	}
	return append([]core.Turn(nil), c.turns[len(c.turns)-limit:]...), nil
}

// Clear empties both views of the store.
func (c *Conversation) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
	c.messages = nil
	return nil
}

// AppendMessage adds a single chat-style message.
func (c *Conversation) AppendMessage(role, content string, metadata map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	})

	if bound := c.maxSize * 2; len(c.messages) > bound {
		c.messages = c.messages[len(c.messages)-bound:]
	}
}

// RecentMessages returns the last limit chat messages; limit <= 0 returns all.
func (c *Conversation) RecentMessages(limit int) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 || len(c.messages) <= limit {
		return append([]Message(nil), c.messages...)
	}
	return append([]Message(nil), c.messages[len(c.messages)-limit:]...)
}

// TurnCount returns the number of stored input/output turns.
func (c *Conversation) TurnCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// MessageCount returns the number of stored chat messages.
func (c *Conversation) MessageCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// ConversationStats summarizes memory utilization.
type ConversationStats struct {
	Turns       int     `json:"total_conversations"`
	MaxSize     int     `json:"max_size"`
	Utilization float64 `json:"utilization"`
}

// Stats returns utilization of the turn store.
func (c *Conversation) Stats() ConversationStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	util := 0.0
	if c.maxSize > 0 {
		util = float64(len(c.turns)) / float64(c.maxSize)
	}
	return ConversationStats{
		Turns:       len(c.turns),
		MaxSize:     c.maxSize,
		Utilization: util,
	}
}

// Ensure Conversation satisfies the core contract.
var _ core.Memory = (*Conversation)(nil)
