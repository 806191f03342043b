package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/protean-labs/conductor/pkg/errors"
)

func ollamaServer(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllama(srv.URL, "test-model")
}

func TestOllamaGenerate(t *testing.T) {
	var got ollamaRequest
	p := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Message:         ollamaMessage{Role: "assistant", Content: "hello there"},
			Done:            true,
			EvalCount:       7,
			PromptEvalCount: 3,
		})
	})

	out, err := p.Generate(context.Background(), "say hi", GenerateOptions{
		SystemPrompt: "be brief",
		Temperature:  0.2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello there" {
		t.Errorf("output = %q", out)
	}

	if got.Model != "test-model" || got.Stream {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "say hi" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.Options["temperature"] != 0.2 {
		t.Errorf("options = %v", got.Options)
	}

	if usage := p.Usage(); usage.Requests != 1 || usage.TotalTokens != 10 {
		t.Errorf("usage = %+v, want 1 request and 10 tokens", usage)
	}
}

func TestOllamaGenerateErrorStatus(t *testing.T) {
	p := ollamaServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	_, err := p.Generate(context.Background(), "say hi", GenerateOptions{})
	if !errors.IsCode(err, errors.CodeBackend) {
		t.Fatalf("error = %v, want backend code", err)
	}
}

func TestOllamaGenerateConnectionFailure(t *testing.T) {
	p := NewOllama("http://127.0.0.1:1", "test-model")
	_, err := p.Generate(context.Background(), "say hi", GenerateOptions{})
	if !errors.IsCode(err, errors.CodeBackend) {
		t.Fatalf("error = %v, want backend code", err)
	}
}

func TestOllamaGenerateStream(t *testing.T) {
	p := ollamaServer(t, func(w http.ResponseWriter, _ *http.Request) {
		for _, chunk := range []string{"hel", "lo"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", chunk)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"eval_count":2,"prompt_eval_count":1}`)
	})

	chunks, err := p.GenerateStream(context.Background(), "say hi", GenerateOptions{})
	if err != nil {
		t.Fatal(err)
	}

	var text string
	sawDone := false
	for c := range chunks {
		if c.Err != nil {
			t.Fatal(c.Err)
		}
		if c.Done {
			sawDone = true
			continue
		}
		text += c.Content
	}
	if text != "hello" {
		t.Errorf("streamed text = %q", text)
	}
	if !sawDone {
		t.Error("stream never signalled completion")
	}
	if usage := p.Usage(); usage.TotalTokens != 3 {
		t.Errorf("usage = %+v, want 3 tokens", usage)
	}
}
