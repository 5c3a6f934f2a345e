package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/isocode-ai/isocode/internal/permission"
	"github.com/isocode-ai/isocode/pkg/types"
)

const (
	// DefaultShellTimeout bounds run_command when the model gives none.
	DefaultShellTimeout = 30 * time.Second
	// MaxShellTimeout is the ceiling for model-supplied timeouts.
	MaxShellTimeout = 10 * time.Minute

	maxStdout = 20000
	maxStderr = 10000
)

// RunCommandTool executes a shell command inside the workspace.
type RunCommandTool struct{}

func (RunCommandTool) Name() string        { return "run_command" }
func (RunCommandTool) Category() string    { return CategoryShell }
func (RunCommandTool) Description() string { return "Run a shell command in the workspace" }
func (RunCommandTool) DefaultAction() types.PermissionAction {
	return types.ActionAsk
}

func (RunCommandTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "Shell command line"},
			"cwd": {"type": "string", "description": "Working directory (default workspace root)"},
			"timeout": {"type": "integer", "description": "Timeout in seconds (default 30)"}
		},
		"required": ["command"]
	}`)
}

func (RunCommandTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	command, err := requireString(args, "command")
	if err != nil {
		return nil, err
	}
	if err := permission.GuardShellCommand(command); err != nil {
		return nil, err
	}

	cwd := argString(args, "cwd")
	if cwd == "" {
		cwd = tctx.WorkspaceRoot
	}

	timeout := time.Duration(argInt(args, "timeout")) * time.Second
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	if timeout > MaxShellTimeout {
		timeout = MaxShellTimeout
	}

	return runShell(ctx, command, cwd, timeout)
}

// runShell executes a command line under sh -c with output caps.
func runShell(ctx context.Context, command, cwd string, timeout time.Duration) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result := map[string]any{
		"stdout":   clip(stdout.String(), maxStdout),
		"stderr":   clip(stderr.String(), maxStderr),
		"exitCode": cmd.ProcessState.ExitCode(),
	}
	if ctx.Err() == context.DeadlineExceeded {
		result["error"] = fmt.Sprintf("command timed out after %s", timeout)
		return result, nil
	}
	if runErr != nil {
		// Non-zero exit is an observation, not a dispatch failure.
		result["error"] = runErr.Error()
	}
	return result, nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + fmt.Sprintf("… [%d bytes clipped]", len(s)-max)
}
