package contextmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocode-ai/isocode/internal/llm"
	"github.com/isocode-ai/isocode/pkg/types"
)

// stubClient is a canned llm.Client for compaction tests.
type stubClient struct {
	reply string
	err   error
	calls int
}

func (s *stubClient) Call(ctx context.Context, model string, messages []types.Message, opts llm.Options) (*llm.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.reply}, nil
}

func (s *stubClient) Stream(ctx context.Context, model string, messages []types.Message, opts llm.Options, onDelta func(string)) error {
	return s.err
}

func (s *stubClient) CallVision(ctx context.Context, model, prompt, imageBase64, mimeType string, opts llm.Options) (string, error) {
	return s.reply, s.err
}

func (s *stubClient) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	return nil, s.err
}

func (s *stubClient) Health(ctx context.Context) types.HealthStatus {
	return types.HealthStatus{OK: s.err == nil, Provider: "stub"}
}

func conversation(n int) []types.Message {
	msgs := []types.Message{types.SystemMessage("sys")}
	for i := 0; i < n; i++ {
		msgs = append(msgs, types.UserMessage(fmt.Sprintf("user message %d", i)))
	}
	return msgs
}

func TestCompactShrinks(t *testing.T) {
	client := &stubClient{reply: "- did things\n- changed files"}
	msgs := conversation(12)

	out, err := Compact(context.Background(), client, "m", msgs)
	require.NoError(t, err)

	assert.Less(t, len(out), len(msgs))
	assert.Equal(t, types.RoleSystem, out[0].Role)

	// The last four messages survive verbatim.
	assert.Equal(t, msgs[len(msgs)-KeepTail:], out[len(out)-KeepTail:])

	// The summary is a single assistant observation.
	var obs map[string]any
	require.NoError(t, json.Unmarshal([]byte(out[1].Content), &obs))
	assert.Equal(t, "observation", obs["type"])
	assert.Contains(t, obs["content"], "[summary of 8 messages]")
	assert.Contains(t, obs["content"], "did things")
}

func TestCompactTooShort(t *testing.T) {
	client := &stubClient{reply: "unused"}
	msgs := conversation(KeepTail)

	out, err := Compact(context.Background(), client, "m", msgs)
	require.NoError(t, err)
	assert.Equal(t, msgs, out)
	assert.Zero(t, client.calls)
}

func TestCompactFallbackOnLLMFailure(t *testing.T) {
	client := &stubClient{err: fmt.Errorf("backend down")}
	msgs := conversation(10)

	out, err := Compact(context.Background(), client, "m", msgs)
	require.NoError(t, err)
	assert.Less(t, len(out), len(msgs))

	var obs map[string]any
	require.NoError(t, json.Unmarshal([]byte(out[1].Content), &obs))
	// Deterministic fallback concatenates user message heads.
	assert.Contains(t, obs["content"], "user message 0")
}

func TestCompactNeverGrows(t *testing.T) {
	client := &stubClient{reply: strings.Repeat("long summary ", 100)}
	for n := 1; n <= 20; n++ {
		msgs := conversation(n)
		out, err := Compact(context.Background(), client, "m", msgs)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(out), len(msgs), "n=%d", n)
	}
}

func TestShouldCompact(t *testing.T) {
	small := conversation(2)
	assert.False(t, ShouldCompact(small, 16384))

	big := []types.Message{types.SystemMessage(strings.Repeat("x", 100000))}
	assert.True(t, ShouldCompact(big, 16384))
}
