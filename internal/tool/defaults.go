package tool

import (
	"github.com/isocode-ai/isocode/internal/permission"
	"github.com/isocode-ai/isocode/pkg/types"
)

// DefaultRegistry builds a registry with every built-in tool.
func DefaultRegistry(taskLists *TaskLists, browser *Browser) *Registry {
	r := NewRegistry()

	r.Register(ReadFileTool{})
	r.Register(WriteFileTool{})
	r.Register(ReplaceInFileTool{})
	r.Register(ApplyDiffTool{})
	r.Register(BatchReadTool{})

	r.Register(ListFilesTool{})
	r.Register(GlobTool{})
	r.Register(GrepTool{})
	r.Register(CodebaseSearchTool{})

	r.Register(RunCommandTool{})
	for _, t := range GitTools() {
		r.Register(t)
	}
	r.Register(RunLintTool{})
	r.Register(RunTestsTool{})

	r.Register(MemorySetTool{})
	r.Register(MemoryGetTool{})
	r.Register(MemoryListTool{})

	r.Register(TaskAddTool{Lists: taskLists})
	r.Register(TaskCompleteTool{Lists: taskLists})
	r.Register(TaskListTool{Lists: taskLists})

	r.Register(BrowserOpenTool{Browser: browser})
	r.Register(BrowserReadTool{Browser: browser})
	r.Register(BrowserFindTool{Browser: browser})
	r.Register(BrowserLinksTool{Browser: browser})

	r.Register(ViewImageTool{})

	return r
}

// PolicyFromSettings builds the permission table from the configured
// shell/write/edit actions.
func PolicyFromSettings(s types.Settings) *permission.Policy {
	return permission.NewPolicy(map[string]types.PermissionAction{
		"run_command":     s.ShellPermission,
		"git_commit":      s.ShellPermission,
		"write_file":      s.WritePermission,
		"apply_diff":      s.WritePermission,
		"replace_in_file": s.EditPermission,
	})
}

// ApplySettings updates an existing policy in place from new settings.
func ApplySettings(p *permission.Policy, s types.Settings) {
	if s.ShellPermission != "" {
		p.Set("run_command", s.ShellPermission)
		p.Set("git_commit", s.ShellPermission)
	}
	if s.WritePermission != "" {
		p.Set("write_file", s.WritePermission)
		p.Set("apply_diff", s.WritePermission)
	}
	if s.EditPermission != "" {
		p.Set("replace_in_file", s.EditPermission)
	}
}
