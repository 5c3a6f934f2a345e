package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/isocode-ai/isocode/pkg/types"
)

const (
	lintTimeout = 45 * time.Second
	testTimeout = 120 * time.Second
)

// projectCommand picks the lint or test command for the detected project type.
func projectCommand(root string, kind string) (string, error) {
	exists := func(name string) bool {
		_, err := os.Stat(filepath.Join(root, name))
		return err == nil
	}

	switch {
	case exists("go.mod"):
		if kind == "lint" {
			return "go vet ./...", nil
		}
		return "go test ./...", nil
	case exists("package.json"):
		if kind == "lint" {
			return "npm run lint --if-present", nil
		}
		return "npm test --if-present", nil
	case exists("pyproject.toml") || exists("requirements.txt"):
		if kind == "lint" {
			return "python -m ruff check . || python -m flake8 .", nil
		}
		return "python -m pytest -q", nil
	case exists("Cargo.toml"):
		if kind == "lint" {
			return "cargo clippy --quiet", nil
		}
		return "cargo test --quiet", nil
	}
	return "", fmt.Errorf("could not detect project type in %s", root)
}

// RunLintTool runs the project's linter.
type RunLintTool struct{}

func (RunLintTool) Name() string        { return "run_lint" }
func (RunLintTool) Category() string    { return CategoryQuality }
func (RunLintTool) Description() string { return "Run the project linter (detected from project type)" }
func (RunLintTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (RunLintTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (RunLintTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	cmd, err := projectCommand(tctx.WorkspaceRoot, "lint")
	if err != nil {
		return nil, err
	}
	result, err := runShell(ctx, cmd, tctx.WorkspaceRoot, lintTimeout)
	if err != nil {
		return nil, err
	}
	result["command"] = cmd
	return result, nil
}

// RunTestsTool runs the project's test suite.
type RunTestsTool struct{}

func (RunTestsTool) Name() string        { return "run_tests" }
func (RunTestsTool) Category() string    { return CategoryQuality }
func (RunTestsTool) Description() string { return "Run the project test suite (detected from project type)" }
func (RunTestsTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (RunTestsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (RunTestsTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	cmd, err := projectCommand(tctx.WorkspaceRoot, "test")
	if err != nil {
		return nil, err
	}
	result, err := runShell(ctx, cmd, tctx.WorkspaceRoot, testTimeout)
	if err != nil {
		return nil, err
	}
	result["command"] = cmd
	return result, nil
}
