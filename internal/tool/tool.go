// Package tool provides the tool registry, permission-checked dispatcher,
// and the built-in workspace tools.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/isocode-ai/isocode/internal/index"
	"github.com/isocode-ai/isocode/internal/llm"
	"github.com/isocode-ai/isocode/internal/storage"
	"github.com/isocode-ai/isocode/pkg/types"
)

// Tool categories used to group the dispatcher listing in the system prompt.
const (
	CategoryFile    = "file"
	CategorySearch  = "search"
	CategoryShell   = "shell"
	CategoryGit     = "git"
	CategoryQuality = "quality"
	CategoryMemory  = "memory"
	CategoryTasks   = "tasks"
	CategoryBrowser = "browser"
	CategoryVision  = "vision"
	CategoryMCP     = "external"
)

// Tool is one dispatchable workspace tool.
type Tool interface {
	// Name returns the tool identifier the model calls it by.
	Name() string

	// Description returns the model-facing description.
	Description() string

	// Category groups the tool in the system-prompt listing.
	Category() string

	// Parameters returns the JSON Schema for the tool arguments.
	Parameters() json.RawMessage

	// DefaultAction is the permission action when the policy table has no
	// explicit entry for this tool.
	DefaultAction() types.PermissionAction

	// Execute runs the tool. The returned map is the observation payload;
	// recoverable failures are reported as {"error": ...} objects by the
	// dispatcher, not by returning an error here unless the input itself is
	// unusable.
	Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error)
}

// Context carries per-invocation state into tools.
type Context struct {
	WorkspaceRoot string
	SessionID     string
	AutoMode      bool

	Store *storage.Store
	Index *index.Index
	LLM   llm.Client

	// VisionModel is the configured model for image questions, may be empty.
	VisionModel string
}

// argString reads a string argument.
func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// argInt reads an integer argument, tolerating float64 from JSON decoding.
func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// argStrings reads a string-array argument.
func argStrings(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// requireString reads a mandatory string argument.
func requireString(args map[string]any, key string) (string, error) {
	s := argString(args, key)
	if s == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return s, nil
}
