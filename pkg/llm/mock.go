package llm

import (
	"context"

	"github.com/protean-labs/conductor/pkg/errors"
)

// MockProvider is a testing implementation of Provider.
type MockProvider struct {
	Response     string
	Err          error
	GenerateFunc func(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

func (m *MockProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// FailingMockProvider always fails with a backend error.
type FailingMockProvider struct {
	Err error
}

func (f *FailingMockProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if f.Err == nil {
		return "", errors.New(errors.CodeBackend, "mock backend failure", nil)
	}
	return "", f.Err
}
