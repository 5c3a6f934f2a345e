package contextmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/isocode-ai/isocode/internal/llm"
	"github.com/isocode-ai/isocode/internal/logging"
	"github.com/isocode-ai/isocode/pkg/types"
)

const (
	// KeepTail is how many trailing messages compaction never rewrites.
	KeepTail = 4
	// MaxCompactions caps compaction invocations per session.
	MaxCompactions = 3
	// CompactionThreshold is the usage fraction that triggers compaction.
	CompactionThreshold = 0.75

	summaryMaxTokens = 512
	summaryTimeout   = 60 * time.Second
)

const summaryInstruction = `Summarize the conversation so far in 2-4 bullets covering:
- what was asked
- what tools were used
- what changes were made
- what the current state is
Reply with the bullets only.`

// ShouldCompact reports whether estimated usage exceeds the threshold.
func ShouldCompact(messages []types.Message, window int) bool {
	return float64(EstimateConversationTokens(messages)) > float64(Budget(window))*CompactionThreshold
}

// Compact replaces the conversation prefix (everything except the system
// message and the last KeepTail messages) with a single summary observation.
// The summary is LLM-generated; on failure a deterministic fallback is built
// from the user messages. The returned slice is never longer than the input.
func Compact(ctx context.Context, client llm.Client, model string, messages []types.Message) ([]types.Message, error) {
	if len(messages) <= KeepTail+1 {
		return messages, nil
	}

	system := messages[0]
	prefix := messages[1 : len(messages)-KeepTail]
	tail := messages[len(messages)-KeepTail:]

	summary, err := summarize(ctx, client, model, prefix)
	if err != nil {
		logging.Warn().Err(err).Msg("compaction summary failed, using fallback")
		summary = fallbackSummary(prefix)
	}

	obs := map[string]any{
		"type":    "observation",
		"content": fmt.Sprintf("[summary of %d messages] %s", len(prefix), summary),
	}
	data, _ := json.Marshal(obs)

	out := make([]types.Message, 0, len(tail)+2)
	out = append(out, system, types.AssistantMessage(string(data)))
	out = append(out, tail...)
	return out, nil
}

func summarize(ctx context.Context, client llm.Client, model string, prefix []types.Message) (string, error) {
	var transcript strings.Builder
	for _, m := range prefix {
		transcript.WriteString(strings.ToUpper(m.Role))
		transcript.WriteString(": ")
		transcript.WriteString(SmartTruncate(m.Content, 600))
		transcript.WriteString("\n")
	}

	resp, err := client.Call(ctx, model, []types.Message{
		types.SystemMessage(summaryInstruction),
		types.UserMessage(transcript.String()),
	}, llm.Options{
		Temperature: 0.1,
		MaxTokens:   summaryMaxTokens,
		Timeout:     summaryTimeout,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("empty summary")
	}
	return strings.TrimSpace(resp.Content), nil
}

// fallbackSummary concatenates the first 100 chars of each user message.
func fallbackSummary(prefix []types.Message) string {
	var parts []string
	for _, m := range prefix {
		if m.Role != types.RoleUser {
			continue
		}
		c := m.Content
		if len(c) > 100 {
			c = c[:100]
		}
		parts = append(parts, c)
	}
	if len(parts) == 0 {
		return "earlier conversation elided"
	}
	return strings.Join(parts, " | ")
}
