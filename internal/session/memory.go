package session

import (
	"context"
	"strings"
	"time"

	"github.com/isocode-ai/isocode/internal/contextmgr"
	"github.com/isocode-ai/isocode/internal/llm"
	"github.com/isocode-ai/isocode/pkg/types"
)

const memorySummaryInstruction = `Summarize this coding session in 3-5 short lines: the user's goal, what was changed, and anything unfinished. Reply with the lines only.`

// summarizeForMemory produces the cross-session memory summary for a
// finished session. On LLM failure it degrades to the first user request.
func summarizeForMemory(ctx context.Context, client llm.Client, model string, messages []types.Message) string {
	if len(messages) < 2 {
		return ""
	}

	var transcript strings.Builder
	for _, m := range messages[1:] {
		transcript.WriteString(strings.ToUpper(m.Role))
		transcript.WriteString(": ")
		transcript.WriteString(contextmgr.SmartTruncate(m.Content, 400))
		transcript.WriteString("\n")
	}

	callCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := client.Call(callCtx, model, []types.Message{
		types.SystemMessage(memorySummaryInstruction),
		types.UserMessage(transcript.String()),
	}, llm.Options{Temperature: 0.1, MaxTokens: 256, Timeout: 60 * time.Second})
	if err == nil && strings.TrimSpace(resp.Content) != "" {
		return strings.TrimSpace(resp.Content)
	}

	for _, m := range messages {
		if m.Role == types.RoleUser {
			return contextmgr.SmartTruncate(m.Content, 200)
		}
	}
	return ""
}
