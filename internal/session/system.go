package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/isocode-ai/isocode/internal/contextmgr"
	"github.com/isocode-ai/isocode/internal/tool"
)

const directivePreamble = `You are a coding agent working inside the user's workspace. Every reply must be exactly one JSON object, a directive:
- {"type":"thought","content":"..."} to reason or report progress
- {"type":"action","tool":"<name>","args":{...}} to use a tool
- {"type":"diff_request","filePath":"...","diff":"..."} to propose a file change
- {"type":"delegate","tasks":[{"task":"...","model":"optional"}]} to fan out subtasks
- {"type":"final","content":"..."} to finish with a summary

Never emit more than one directive per reply. Never wrap the JSON in prose or code fences.`

const planningClause = `On your first turn emit a single thought starting with "PLAN:" followed by a numbered task list. On later turns report with thoughts starting with "PROGRESS:" and say "Completed task N" as you finish each one. Only emit final once every planned task is complete.`

const agentPermissions = `Propose every file mutation as a diff_request and wait; the user approves or rejects it, then you continue. Do not call write_file, replace_in_file, or apply_diff expecting direct writes.`

const agentPlusPermissions = `All permissions are granted: apply file mutations directly with write_file, replace_in_file, or apply_diff. Do not emit diff_request. You may delegate independent subtasks.`

const workflowRules = `Workflow rules:
- Read a file before writing or editing it.
- Prefer surgical edits (replace_in_file) over whole-file rewrites.
- Batch related reads with batch_read instead of many single reads.
- Keep observations short; do not re-read what you already saw.`

// promptContext is the downstream-injected context for a new session.
type promptContext struct {
	contextFiles   bool
	projectCtx     string
	projectMap     string
	rules          string
	memoryPrimer   string
	checkpoint     string
	promptOverride string
}

// checkpointResumeCap bounds how much of a prior checkpoint is replayed.
const checkpointResumeCap = 1500

// renderSystemPrompt assembles the deterministic system prompt for a session.
func renderSystemPrompt(agentPlus bool, catalog string, pc promptContext) string {
	var parts []string

	if pc.promptOverride != "" {
		parts = append(parts, pc.promptOverride)
	} else {
		parts = append(parts, directivePreamble)
	}
	parts = append(parts, planningClause)

	if agentPlus {
		parts = append(parts, agentPlusPermissions)
	} else {
		parts = append(parts, agentPermissions)
	}

	parts = append(parts, "Available tools:\n"+catalog)
	parts = append(parts, workflowRules)

	if pc.contextFiles {
		parts = append(parts, "The user attached file context to their message; rely on it before re-reading those files.")
	}
	if pc.projectCtx != "" {
		parts = append(parts, "Project context:\n"+pc.projectCtx)
	}
	if pc.projectMap != "" {
		parts = append(parts, pc.projectMap)
	}
	if pc.rules != "" {
		parts = append(parts, "Project rules:\n"+pc.rules)
	}
	if pc.memoryPrimer != "" {
		parts = append(parts, pc.memoryPrimer)
	}
	if pc.checkpoint != "" {
		parts = append(parts, "Resuming from a prior checkpoint:\n"+contextmgr.SmartTruncate(pc.checkpoint, checkpointResumeCap))
	}

	return strings.Join(parts, "\n\n")
}

// projectContextSummary renders the stored project-context keys for the
// system prompt.
func projectContextSummary(entries map[string]string) string {
	if len(entries) == 0 {
		return ""
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %s\n", k, contextmgr.SmartTruncate(entries[k], 200))
	}
	return sb.String()
}

// catalogFor renders the dispatcher's tool listing.
func catalogFor(d *tool.Dispatcher) string {
	return d.Registry().Catalog()
}
