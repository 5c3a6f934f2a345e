package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/isocode-ai/isocode/internal/permission"
	"github.com/isocode-ai/isocode/pkg/types"
)

const gitTimeout = 30 * time.Second

// gitTool is a guarded git invocation with a fixed subcommand.
type gitTool struct {
	name          string
	subcommand    string
	description   string
	defaultAction types.PermissionAction
	extraArgs     func(args map[string]any) ([]string, error)
}

func (t gitTool) Name() string                          { return t.name }
func (t gitTool) Category() string                      { return CategoryGit }
func (t gitTool) Description() string                   { return t.description }
func (t gitTool) DefaultAction() types.PermissionAction { return t.defaultAction }

func (t gitTool) Parameters() json.RawMessage {
	if t.name == "git_commit" {
		return json.RawMessage(`{
			"type": "object",
			"properties": {
				"message": {"type": "string", "description": "Commit message"}
			},
			"required": ["message"]
		}`)
	}
	if t.name == "git_log" {
		return json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "integer", "description": "Number of commits (default 10)"}
			}
		}`)
	}
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t gitTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	argv := []string{"git", t.subcommand}
	if t.extraArgs != nil {
		extra, err := t.extraArgs(args)
		if err != nil {
			return nil, err
		}
		argv = append(argv, extra...)
	}

	command := shellJoin(argv)
	if err := permission.GuardGitCommand(command, t.subcommand); err != nil {
		return nil, err
	}
	return runShell(ctx, command, tctx.WorkspaceRoot, gitTimeout)
}

// GitTools returns the guarded git tool set.
func GitTools() []Tool {
	return []Tool{
		gitTool{
			name: "git_status", subcommand: "status",
			description:   "Show the git working tree status",
			defaultAction: types.ActionAlways,
			extraArgs:     func(map[string]any) ([]string, error) { return []string{"--short", "--branch"}, nil },
		},
		gitTool{
			name: "git_diff", subcommand: "diff",
			description:   "Show unstaged changes",
			defaultAction: types.ActionAlways,
		},
		gitTool{
			name: "git_log", subcommand: "log",
			description:   "Show recent commits",
			defaultAction: types.ActionAlways,
			extraArgs: func(args map[string]any) ([]string, error) {
				limit := argInt(args, "limit")
				if limit <= 0 {
					limit = 10
				}
				return []string{fmt.Sprintf("-%d", limit), "--oneline"}, nil
			},
		},
		gitTool{
			name: "git_commit", subcommand: "commit",
			description:   "Stage changes to tracked files and commit",
			defaultAction: types.ActionAsk,
			extraArgs: func(args map[string]any) ([]string, error) {
				msg, err := requireString(args, "message")
				if err != nil {
					return nil, err
				}
				return []string{"-a", "-m", msg}, nil
			},
		},
		gitTool{
			name: "git_branch", subcommand: "branch",
			description:   "List branches",
			defaultAction: types.ActionAlways,
			extraArgs:     func(map[string]any) ([]string, error) { return []string{"--list"}, nil },
		},
	}
}

// shellJoin quotes argv for sh -c execution.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		if strings.ContainsAny(a, " \t\n'\"$&|;<>()*?[]{}") {
			quoted[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		} else {
			quoted[i] = a
		}
	}
	return strings.Join(quoted, " ")
}
