// Package testutil provides helpers for the integration test suites.
package testutil

import (
	"context"
	"sync"

	"github.com/isocode-ai/isocode/internal/llm"
	"github.com/isocode-ai/isocode/pkg/types"
)

// FakeLLM is a scripted llm.Client for integration tests. Replies are
// consumed in order; when exhausted it keeps returning a final directive.
type FakeLLM struct {
	mu      sync.Mutex
	Replies []string
	Deltas  []string
	pos     int
}

// Call returns the next scripted reply.
func (f *FakeLLM) Call(ctx context.Context, model string, messages []types.Message, opts llm.Options) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.Replies) {
		return &llm.Response{Content: `{"type":"final","content":"done"}`}, nil
	}
	r := f.Replies[f.pos]
	f.pos++
	return &llm.Response{Content: r}, nil
}

// Stream yields the scripted deltas.
func (f *FakeLLM) Stream(ctx context.Context, model string, messages []types.Message, opts llm.Options, onDelta func(string)) error {
	for _, d := range f.Deltas {
		onDelta(d)
	}
	return nil
}

// CallVision returns a fixed description.
func (f *FakeLLM) CallVision(ctx context.Context, model, prompt, imageBase64, mimeType string, opts llm.Options) (string, error) {
	return "an image", nil
}

// ListModels returns one fake model.
func (f *FakeLLM) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	return []types.ModelInfo{{ID: "fake-model", DisplayName: "fake-model"}}, nil
}

// Health always reports healthy.
func (f *FakeLLM) Health(ctx context.Context) types.HealthStatus {
	return types.HealthStatus{OK: true, Provider: "fake"}
}
