// Package llm provides the unified LLM adapter across provider dialects.
//
// The local default provider is tried over the chat-completions dialect first
// with a fallback to the provider's native chat endpoint; other providers use
// chat-completions only.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/isocode-ai/isocode/pkg/types"
)

// ToolSchema describes one native tool exposed to the model.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Options carries per-call parameters.
type Options struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	ExpectJSON  bool
	Tools       []ToolSchema
	ToolChoice  string
}

// ToolCall is one native tool invocation in a model reply.
type ToolCall struct {
	Name string
	Args json.RawMessage
}

// Response is a completed (non-streaming) model reply.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Client is the unified adapter interface.
type Client interface {
	Call(ctx context.Context, model string, messages []types.Message, opts Options) (*Response, error)
	Stream(ctx context.Context, model string, messages []types.Message, opts Options, onDelta func(string)) error
	CallVision(ctx context.Context, model, prompt, imageBase64, mimeType string, opts Options) (string, error)
	ListModels(ctx context.Context) ([]types.ModelInfo, error)
	Health(ctx context.Context) types.HealthStatus
}

// NotFoundError indicates the requested model does not exist at the provider.
// It is raised immediately without retries, with a remediation hint.
type NotFoundError struct {
	Model string
	Hint  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model %q not found. %s", e.Model, e.Hint)
}

// IsModelNotFound reports whether an error names a missing model.
func IsModelNotFound(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*NotFoundError); ok {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}
