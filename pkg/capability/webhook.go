// Copyright 2026 © The Conductor Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/protean-labs/conductor/pkg/core"
	"github.com/protean-labs/conductor/pkg/errors"
)

// FilePayload carries an attachment for a webhook invocation.
type FilePayload struct {
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
	Data     string `json:"data"` // base64 encoded
}

// webhookPayload is the outbound wire shape for workflow webhooks.
type webhookPayload struct {
	ChatInput string       `json:"chatInput"`
	UserID    string       `json:"userId"`
	Timestamp string       `json:"timestamp"`
	File      *FilePayload `json:"file,omitempty"`
	Text      string       `json:"text,omitempty"`
	Filename  string       `json:"filename,omitempty"`
}

// WebhookConfig configures a workflow-backed capability.
type WebhookConfig struct {
	// BaseURL of the workflow engine, e.g. http://localhost:5678.
	BaseURL string
	// WebhookID identifies the workflow hook under /webhook/.
	WebhookID string
	// Timeout bounds the whole invocation. Defaults to 2 minutes.
	Timeout time.Duration
	// Client is optional; a default client is built from Timeout.
	Client *http.Client
}

// NewWebhook builds a capability that triggers an external workflow over an
// HTTP webhook, following the uniform invocation contract: the outbound
// payload carries chatInput/userId/timestamp plus optional file data, and
// every failure mode (connection, HTTP status, workflow error, empty body,
// timeout) comes back as result data.
func NewWebhook(name, description string, cfg WebhookConfig, opts ...Option) *Base {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:5678"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	params := []core.ParamSpec{
		{Name: "chat_input", Type: "string", Description: "User's message or instruction", Required: true},
		{Name: "user_id", Type: "string", Description: "User ID for tracking", Required: false, Default: "anonymous"},
		{Name: "file_data", Type: "object", Description: "File data with 'filename', 'mimetype', and 'content' (base64)", Required: false},
	}
	w := &webhookInvoker{
		name:   name,
		url:    fmt.Sprintf("%s/webhook/%s", cfg.BaseURL, cfg.WebhookID),
		client: client,
	}

	baseOpts := append([]Option{WithParams(params...), WithTimeout(cfg.Timeout)}, opts...)
	return New(name, description, w, baseOpts...)
}

type webhookInvoker struct {
	name   string
	url    string
	client *http.Client
}

// Invoke posts the payload and normalizes the workflow response.
func (w *webhookInvoker) Invoke(ctx context.Context, args map[string]any) (any, error) {
	payload := webhookPayload{
		ChatInput: stringArg(args, "chat_input"),
		UserID:    stringArg(args, "user_id"),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if payload.UserID == "" {
		payload.UserID = "anonymous"
	}

	if fd, ok := args["file_data"].(map[string]any); ok {
		payload.File = &FilePayload{
			Filename: stringOr(fd, "filename", "unknown"),
			Mimetype: stringOr(fd, "mimetype", "application/octet-stream"),
			Data:     stringOr(fd, "content", ""),
		}
		// Extracted text rides alongside the raw file when present.
		if text, ok := fd["text"].(string); ok && text != "" {
			payload.Text = text
			payload.Filename = payload.File.Filename
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.New(errors.CodeCapabilityFailure, "failed to marshal webhook payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeCapabilityFailure, "failed to create webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.New(errors.CodeTimeout, "workflow request timed out", err).
				WithContext("workflow", w.name)
		}
		return nil, errors.New(errors.CodeCapabilityFailure, "workflow connection failed: is the server running?", err).
			WithContext("workflow", w.name)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.CodeCapabilityFailure, "failed to read workflow response", err)
	}

	if resp.StatusCode >= 400 {
		return nil, errors.New(errors.CodeCapabilityFailure, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)), nil).
			WithContext("status_code", resp.StatusCode).
			WithContext("workflow", w.name)
	}

	// Empty response means the hook fired but no workflow answered.
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, errors.New(errors.CodeCapabilityFailure, "webhook returned empty response - check if workflow is active", nil).
			WithContext("workflow", w.name)
	}

	// JSON object responses may carry an explicit error marker; anything
	// else (raw text included) is treated as a success payload.
	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return string(respBody), nil
	}

	if obj, ok := decoded.(map[string]any); ok {
		if failed, reason := workflowError(obj); failed {
			return nil, errors.New(errors.CodeCapabilityFailure, reason, nil).
				WithContext("workflow", w.name)
		}
	}

	return decoded, nil
}

// workflowError inspects a decoded JSON object for error markers.
func workflowError(obj map[string]any) (bool, string) {
	if success, ok := obj["success"].(bool); ok && !success {
		if msg, ok := obj["error"].(string); ok && msg != "" {
			return true, msg
		}
		if msg, ok := obj["message"].(string); ok && msg != "" {
			return true, msg
		}
		return true, "workflow returned error"
	}
	if msg, ok := obj["error"].(string); ok && msg != "" {
		return true, msg
	}
	return false, ""
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func stringOr(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
