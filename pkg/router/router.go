// Copyright 2026 © The Conductor Authors
// SPDX-License-Identifier: Apache-2.0

// Package router implements intent-based routing of free-text input to
// capabilities: score registered intents, ask for missing slots, dispatch
// through the uniform capability contract, and fall back to open
// conversation when nothing matches.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/protean-labs/conductor/pkg/capability"
	"github.com/protean-labs/conductor/pkg/core"
	"github.com/protean-labs/conductor/pkg/errors"
	"github.com/protean-labs/conductor/pkg/llm"
	"github.com/protean-labs/conductor/pkg/memory"
)

// Intent maps a category of user request to a capability. Declaration order
// matters: ties in score keep the first-declared intent.
type Intent struct {
	// Name identifies the intent.
	Name string
	// Capability is the registered capability to dispatch to.
	Capability string
	// Keywords each score 1 on a substring hit.
	Keywords []string
	// Patterns each score 2 on a regex hit.
	Patterns []*regexp.Regexp
	// Description is used when synthesizing the confirmation ("event added
	// to the calendar").
	Description string
	// RequiredSlots lists information the message must carry before
	// dispatch: "date", "time", "title".
	RequiredSlots []string
	// NeedsFile requires an attachment before dispatch.
	NeedsFile bool
}

// Request is one inbound message with its conversation context.
type Request struct {
	Input    string
	UserID   string
	FileData map[string]any
	History  []memory.Message
}

// Router classifies messages against an ordered intent list and dispatches
// to capabilities. Like conversational agents, Route converts every failure
// into a user-facing string rather than returning an error.
type Router struct {
	name         string
	provider     llm.Provider
	capIndex     map[string]core.Capability
	intents      []Intent
	systemPrompt string
	historyLimit int
}

// Option configures a Router.
type Option func(*Router) error

// New creates a Router. A provider is required for confirmations and the
// conversational fallback.
func New(name string, opts ...Option) (*Router, error) {
	r := &Router{
		name:         name,
		capIndex:     make(map[string]core.Capability),
		historyLimit: 6,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.provider == nil {
		return nil, errors.New(errors.CodeValidation, "router provider is required", nil)
	}
	if r.systemPrompt == "" {
		r.systemPrompt = defaultSystemPrompt
	}
	return r, nil
}

// WithProvider binds the generation backend.
func WithProvider(provider llm.Provider) Option {
	return func(r *Router) error {
		r.provider = provider
		return nil
	}
}

// WithCapabilities registers the dispatchable capabilities.
func WithCapabilities(capabilities ...core.Capability) Option {
	return func(r *Router) error {
		for _, c := range capabilities {
			if _, dup := r.capIndex[c.Name()]; dup {
				return errors.New(errors.CodeValidation, "duplicate capability name", nil).
					WithContext("capability", c.Name())
			}
			r.capIndex[c.Name()] = c
		}
		return nil
	}
}

// WithIntents declares the intent list, in priority order for tie-breaks.
func WithIntents(intents ...Intent) Option {
	return func(r *Router) error {
		for _, intent := range intents {
			if intent.Name == "" || intent.Capability == "" {
				return errors.New(errors.CodeValidation, "intent name and capability are required", nil)
			}
			r.intents = append(r.intents, intent)
		}
		return nil
	}
}

// WithSystemPrompt overrides the conversational system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(r *Router) error {
		r.systemPrompt = prompt
		return nil
	}
}

// WithHistoryLimit bounds how many history messages feed prompts.
func WithHistoryLimit(limit int) Option {
	return func(r *Router) error {
		if limit > 0 {
			r.historyLimit = limit
		}
		return nil
	}
}

const defaultSystemPrompt = `You are a helpful assistant. You can create tasks, add calendar events, save files to cloud storage, and manage email. Ask for any information you need before acting. Keep replies short and friendly.`

// Name returns the router's name.
func (r *Router) Name() string { return r.name }

// Intents returns the declared intent list.
func (r *Router) Intents() []Intent {
	return append([]Intent(nil), r.intents...)
}

// Route processes one message: datetime short-circuit, intent scoring, slot
// check, capability dispatch, conversational fallback.
func (r *Router) Route(ctx context.Context, req Request) string {
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	if isDateTimeQuestion(req.Input) {
		if reply, ok := r.answerDateTime(ctx); ok {
			return reply
		}
	}

	intent, score, matched := r.Classify(req.Input)
	if !matched {
		return r.converse(ctx, req)
	}

	slog.DebugContext(ctx, "router.intent.matched",
		slog.String("intent", intent.Name),
		slog.Int("score", score),
	)

	if question := r.missingSlotQuestion(intent, req); question != "" {
		return question
	}

	return r.dispatch(ctx, intent, req)
}

// Classify scores the message against every intent. The highest positive
// score wins; equal scores keep the earlier declaration.
func (r *Router) Classify(message string) (Intent, int, bool) {
	lower := strings.ToLower(message)

	var best Intent
	bestScore := 0
	for _, intent := range r.intents {
		score := 0
		for _, kw := range intent.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score++
			}
		}
		for _, p := range intent.Patterns {
			if p.MatchString(lower) {
				score += 2
			}
		}
		if score > bestScore {
			bestScore = score
			best = intent
		}
	}
	return best, bestScore, bestScore > 0
}

// missingSlotQuestion checks the intent's slot requirements against the
// message and returns a clarifying question when something is missing. The
// capability is not invoked in that case; the exchange continues in the same
// conversation.
func (r *Router) missingSlotQuestion(intent Intent, req Request) string {
	if intent.NeedsFile && req.FileData == nil {
		return "To save to cloud storage you need to attach a file. Please upload your file."
	}
	if len(intent.RequiredSlots) == 0 {
		return ""
	}

	details := ExtractEventDetails(req.Input)
	var missing []string
	for _, slot := range intent.RequiredSlots {
		switch slot {
		case "date":
			if details.Date == "" {
				missing = append(missing, "a date (e.g. tomorrow, Monday, December 15)")
			}
		case "time":
			if details.Time == "" {
				missing = append(missing, "a time (e.g. 14:00)")
			}
		case "title":
			if details.Title == "" && len(strings.Fields(req.Input)) < 5 {
				missing = append(missing, "a title (what is it for?)")
			}
		}
	}
	if len(missing) == 0 {
		return ""
	}
	return "To add this to the calendar I need:\n• " + strings.Join(missing, "\n• ") + "\n\nCould you provide these details?"
}

// dispatch invokes the matched capability and turns the result into a
// user-facing reply.
func (r *Router) dispatch(ctx context.Context, intent Intent, req Request) string {
	target, ok := r.capIndex[intent.Capability]
	if !ok {
		slog.WarnContext(ctx, "router.capability.missing",
			slog.String("intent", intent.Name),
			slog.String("capability", intent.Capability),
		)
		return fmt.Sprintf("The '%s' action is not available right now.", intent.Capability)
	}

	args := map[string]any{
		"chat_input": req.Input,
		"user_id":    req.UserID,
	}
	if req.FileData != nil {
		args["file_data"] = req.FileData
	}

	result := target.Run(ctx, args)
	if !result.Success {
		return categorizeFailure(intent, result.Error)
	}
	if result.Output == nil {
		return fmt.Sprintf("The request was accepted but no result came back. Please check that the '%s' workflow is active.", intent.Capability)
	}
	return r.confirm(ctx, intent, req, result)
}

// categorizeFailure maps common error substrings to distinct user-facing
// messages.
func categorizeFailure(intent Intent, errText string) string {
	lower := strings.ToLower(errText)
	switch {
	case strings.Contains(lower, "connection") || strings.Contains(lower, "econnrefused"):
		return "Could not reach the workflow service. Please make sure it is running."
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found"):
		return fmt.Sprintf("The workflow was not found. Check the webhook configuration for '%s'.", intent.Capability)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return "The operation timed out. Please try again."
	default:
		return fmt.Sprintf("Something went wrong: %s", errText)
	}
}

// confirm synthesizes a short natural-language confirmation through the
// generation backend, falling back to a canned line when generation fails.
func (r *Router) confirm(ctx context.Context, intent Intent, req Request, result core.CapabilityResult) string {
	action := intent.Description
	if action == "" {
		action = "the request was completed"
	}

	details := extractResultDetails(result.Output)

	var sb strings.Builder
	sb.WriteString("The user's request succeeded. Write a short, natural reply.\n\n")
	if history := formatHistory(req.History, r.historyLimit); history != "" {
		sb.WriteString("Previous conversation:\n" + history + "\n\n")
	}
	fmt.Fprintf(&sb, "User's message: %q\nAction taken: %s\n", req.Input, action)
	if details != "" {
		fmt.Fprintf(&sb, "Details: %s\n", details)
	}
	sb.WriteString("\nRules:\n- Two sentences at most\n- Friendly and natural\n- No markdown\n- Briefly say what was done")

	response, err := r.provider.Generate(ctx, sb.String(), llm.GenerateOptions{
		SystemPrompt: "Give short, natural replies. Do not use markdown formatting.",
	})
	if err != nil {
		slog.ErrorContext(ctx, "router.confirm.generate_failed",
			slog.String("intent", intent.Name),
			slog.String("error", err.Error()),
		)
		return fmt.Sprintf("Done - %s.", action)
	}
	return strings.ReplaceAll(strings.TrimSpace(response), "*", "")
}

// converse answers a message no intent matched, using recent history and the
// standing system prompt.
func (r *Router) converse(ctx context.Context, req Request) string {
	var sb strings.Builder
	sb.WriteString("Chat with the user.\n\n")
	if history := formatHistory(req.History, r.historyLimit); history != "" {
		sb.WriteString("Previous conversation:\n" + history + "\n\n")
	}
	fmt.Fprintf(&sb, "User's message: %q\n", req.Input)
	sb.WriteString("\nYou can: create tasks, add calendar events, save files, manage email.\nRules:\n- Natural and friendly\n- One to three sentences\n- No markdown\n- If they ask for help, say what you can do")

	response, err := r.provider.Generate(ctx, sb.String(), llm.GenerateOptions{
		SystemPrompt: r.systemPrompt,
	})
	if err != nil {
		slog.ErrorContext(ctx, "router.converse.generate_failed",
			slog.String("error", err.Error()),
		)
		return "How can I help? I can create tasks, manage your calendar, or save files for you."
	}
	return strings.ReplaceAll(strings.TrimSpace(response), "*", "")
}

// answerDateTime short-circuits date/time questions through the clock
// capability when one is registered. Returns false to fall through to
// normal routing.
func (r *Router) answerDateTime(ctx context.Context) (string, bool) {
	clock, ok := r.capIndex[capability.ClockName]
	if !ok {
		return "", false
	}
	result := clock.Run(ctx, nil)
	if !result.Success {
		return "", false
	}
	payload, ok := result.Output.(map[string]any)
	if !ok {
		return "", false
	}
	if text, ok := payload["natural_text"].(string); ok && text != "" {
		return text, true
	}
	date, _ := payload["date"].(string)
	weekday, _ := payload["weekday"].(string)
	if date == "" || weekday == "" {
		return "", false
	}
	reply := fmt.Sprintf("Today is %s, %s.", weekday, date)
	if t, ok := payload["time"].(string); ok && t != "" {
		reply += fmt.Sprintf(" The time is %s.", t)
	}
	return reply, true
}

// extractResultDetails pulls a short human summary out of a workflow result.
func extractResultDetails(output any) string {
	obj, ok := output.(map[string]any)
	if !ok {
		return ""
	}
	tasks, ok := obj["tasks"].([]any)
	if !ok || len(tasks) == 0 {
		return ""
	}
	names := make([]string, 0, 3)
	for _, t := range tasks {
		if len(names) == 3 {
			break
		}
		if m, ok := t.(map[string]any); ok {
			if title, ok := m["title"].(string); ok {
				names = append(names, title)
				continue
			}
		}
		names = append(names, fmt.Sprint(t))
	}
	return "Created tasks: " + strings.Join(names, ", ")
}

// formatHistory renders the most recent messages for prompt context.
func formatHistory(history []memory.Message, limit int) string {
	if len(history) == 0 {
		return ""
	}
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		speaker := "User"
		if msg.Role == "assistant" {
			speaker = "Assistant"
		}
		lines = append(lines, speaker+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}
