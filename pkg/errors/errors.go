// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Conductor.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Conductor errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeValidation indicates a required capability parameter was missing
	// or the input was otherwise invalid. Never retried.
	CodeValidation ErrorCode = "VALIDATION_ERROR"

	// CodeAgentNotFound indicates a task named an unregistered agent.
	CodeAgentNotFound ErrorCode = "AGENT_NOT_FOUND"

	// CodeCapabilityNotFound indicates an agent was asked for a capability
	// it does not hold.
	CodeCapabilityNotFound ErrorCode = "CAPABILITY_NOT_FOUND"

	// CodeCapabilityFailure wraps any failure raised inside a capability's
	// Invoke. Normalized to result data at the Run boundary.
	CodeCapabilityFailure ErrorCode = "CAPABILITY_FAILURE"

	// CodeBackend indicates a generation backend failure (network, quota, auth).
	CodeBackend ErrorCode = "BACKEND_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeInvalidState indicates an illegal task lifecycle transition.
	CodeInvalidState ErrorCode = "INVALID_STATE"

	// CodeMemory indicates a memory system error.
	CodeMemory ErrorCode = "MEMORY_ERROR"

	// CodeContextLost indicates the context was cancelled mid-operation.
	CodeContextLost ErrorCode = "CONTEXT_LOST"
)

// ConductorError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type ConductorError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
}

// Error implements the error interface.
func (e *ConductorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *ConductorError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *ConductorError) MarshalJSON() ([]byte, error) {
	type Alias ConductorError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new ConductorError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *ConductorError {
	return &ConductorError{
		Code:        code,
		Message:     msg,
		Err:         cause,
		Context:     make(map[string]interface{}),
		Attributes:  make(map[string]string),
		Recoverable: recoverableDefault(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *ConductorError) WithContext(key string, value interface{}) *ConductorError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *ConductorError) WithAttribute(key, value string) *ConductorError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *ConductorError) WithRecoverable(recoverable bool) *ConductorError {
	e.Recoverable = recoverable
	return e
}

// AsConductorError attempts to convert an error to a ConductorError.
// Returns the error as ConductorError if it is one, or wraps it otherwise.
func AsConductorError(err error) *ConductorError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*ConductorError); ok {
		return ce
	}
	return New(CodeInternal, "wrapped error", err)
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	ce, ok := err.(*ConductorError)
	return ok && ce.Code == code
}

// IsRecoverable reports whether err is a ConductorError marked recoverable.
func IsRecoverable(err error) bool {
	ce, ok := err.(*ConductorError)
	return ok && ce.Recoverable
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *ConductorError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// recoverableDefault encodes the retry policy per code: backend, timeout and
// capability failures are transient; routing and validation failures are
// configuration errors and must not be retried.
func recoverableDefault(code ErrorCode) bool {
	switch code {
	case CodeBackend, CodeTimeout, CodeCapabilityFailure:
		return true
	default:
		return false
	}
}
