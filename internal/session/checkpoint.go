package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/isocode-ai/isocode/internal/contextmgr"
	"github.com/isocode-ai/isocode/internal/logging"
	"github.com/isocode-ai/isocode/pkg/types"
)

// checkpointInterval is how often, in steps, a checkpoint is written.
const checkpointInterval = 8

// saveCheckpoint writes the session's markdown checkpoint: user requests,
// recent thoughts, tool actions, current plan.
func (s *Session) saveCheckpoint(reason string) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Session %s\n\n", s.ID)
	fmt.Fprintf(&sb, "Updated: %s (%s). Step %d.\n\n", time.Now().UTC().Format(time.RFC3339), reason, s.Steps)

	sb.WriteString("## User requests\n\n")
	for _, m := range s.Messages {
		if m.Role == types.RoleUser && !strings.HasPrefix(m.Content, "[") {
			fmt.Fprintf(&sb, "- %s\n", contextmgr.SmartTruncate(m.Content, 300))
		}
	}

	sb.WriteString("\n## Recent thoughts\n\n")
	for _, content := range recentDirectives(s.Messages, types.DirectiveThought, 5) {
		fmt.Fprintf(&sb, "- %s\n", contextmgr.SmartTruncate(content, 300))
	}

	sb.WriteString("\n## Tool actions\n\n")
	for _, content := range recentDirectives(s.Messages, types.DirectiveAction, 10) {
		fmt.Fprintf(&sb, "- %s\n", contextmgr.SmartTruncate(content, 200))
	}

	if s.Plan != "" {
		sb.WriteString("\n## Current plan\n\n")
		fmt.Fprintf(&sb, "%s\n\nCompleted %d of %d tasks.\n", s.Plan, s.CompletedTasks, s.PlannedTasks)
	}

	if err := s.Store.WriteCheckpoint(s.ID, sb.String()); err != nil {
		logging.Warn().Err(err).Str("sessionID", s.ID).Msg("checkpoint write failed")
	}
}

// recentDirectives extracts the trailing assistant directives of one kind.
func recentDirectives(messages []types.Message, kind string, limit int) []string {
	var out []string
	for i := len(messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := messages[i]
		if m.Role != types.RoleAssistant {
			continue
		}
		var d types.Directive
		if err := json.Unmarshal([]byte(m.Content), &d); err != nil || d.Type != kind {
			continue
		}
		switch kind {
		case types.DirectiveAction:
			args, _ := json.Marshal(d.Args)
			out = append(out, fmt.Sprintf("%s %s", d.Tool, args))
		default:
			out = append(out, d.Content)
		}
	}
	// Reverse back into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
