package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/isocode-ai/isocode/internal/contextmgr"
	"github.com/isocode-ai/isocode/internal/logging"
	"github.com/isocode-ai/isocode/internal/permission"
)

// Dispatcher validates, permission-checks, executes, and truncates tool runs.
type Dispatcher struct {
	registry *Registry
	policy   *permission.Policy
}

// NewDispatcher creates a dispatcher over a registry and policy.
func NewDispatcher(registry *Registry, policy *permission.Policy) *Dispatcher {
	return &Dispatcher{registry: registry, policy: policy}
}

// Registry exposes the underlying registry (for MCP tool registration and
// the system-prompt catalog).
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Run executes a named tool. Failures are returned as observation objects,
// never as Go errors: the engine's loop treats every result as an
// observation and continues.
func (d *Dispatcher) Run(ctx context.Context, name string, args map[string]any, tctx *Context) map[string]any {
	t, ok := d.registry.Get(name)
	if !ok {
		return map[string]any{
			"error": fmt.Sprintf("unknown tool %q", name),
			"hint":  "known tools: " + strings.Join(d.registry.Names(), ", "),
		}
	}

	if err := d.policy.Check(name, t.DefaultAction(), tctx.AutoMode); err != nil {
		return map[string]any{"error": err.Error()}
	}

	if err := confineArgs(tctx.WorkspaceRoot, args); err != nil {
		return map[string]any{"error": err.Error()}
	}

	result, err := t.Execute(ctx, args, tctx)
	if err != nil {
		logging.Debug().Err(err).Str("tool", name).Msg("tool failed")
		obs := map[string]any{"error": err.Error()}
		if hint := errorHint(err); hint != "" {
			obs["hint"] = hint
		}
		return obs
	}
	if result == nil {
		result = map[string]any{"ok": true}
	}
	return result
}

// Observation serializes and truncates a tool result for the conversation.
func Observation(result map[string]any) string {
	return contextmgr.TruncateToolResult(result)
}

// pathArgKeys are argument names that carry workspace paths and must resolve
// inside the workspace root.
var pathArgKeys = []string{"path", "filePath", "file", "cwd", "dir"}

// confineArgs resolves every path-carrying argument against the workspace
// root, rewriting it to the resolved absolute path, and rejects escapes.
func confineArgs(root string, args map[string]any) error {
	for _, key := range pathArgKeys {
		v, ok := args[key].(string)
		if !ok || v == "" {
			continue
		}
		abs, _, err := ResolvePath(root, v)
		if err != nil {
			return fmt.Errorf("argument %q: %w", key, err)
		}
		args[key] = abs
	}
	if raw, ok := args["paths"].([]any); ok {
		for i, item := range raw {
			s, ok := item.(string)
			if !ok || s == "" {
				continue
			}
			abs, _, err := ResolvePath(root, s)
			if err != nil {
				return fmt.Errorf("argument paths[%d]: %w", i, err)
			}
			raw[i] = abs
		}
	}
	return nil
}

// errorHint attaches a deterministic suggestion to well-known failures.
func errorHint(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "no such file") || strings.Contains(msg, "ENOENT") || strings.Contains(msg, "file not found") {
		return "the path may be wrong; try list_files to probe the directory"
	}
	return ""
}

// schemaProperties lists the property names of a JSON Schema object in
// declaration-independent sorted order, required ones first.
func schemaProperties(schemaJSON json.RawMessage) []string {
	var schema struct {
		Properties map[string]struct{} `json:"properties"`
		Required   []string            `json:"required"`
	}
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return nil
	}

	required := make(map[string]bool, len(schema.Required))
	var names []string
	for _, r := range schema.Required {
		if _, ok := schema.Properties[r]; ok && !required[r] {
			required[r] = true
			names = append(names, r)
		}
	}
	sort.Strings(names)

	var optional []string
	for name := range schema.Properties {
		if !required[name] {
			optional = append(optional, name+"?")
		}
	}
	sort.Strings(optional)
	return append(names, optional...)
}
