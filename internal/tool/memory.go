package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/isocode-ai/isocode/pkg/types"
)

// MemorySetTool stores a key in the agent's persistent key-value memory.
type MemorySetTool struct{}

func (MemorySetTool) Name() string        { return "memory_set" }
func (MemorySetTool) Category() string    { return CategoryMemory }
func (MemorySetTool) Description() string { return "Remember a value under a key across sessions" }
func (MemorySetTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (MemorySetTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"key": {"type": "string", "description": "Memory key"},
			"value": {"type": "string", "description": "Value to store (8000 chars max)"}
		},
		"required": ["key", "value"]
	}`)
}

func (MemorySetTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	key, err := requireString(args, "key")
	if err != nil {
		return nil, err
	}
	value, err := requireString(args, "value")
	if err != nil {
		return nil, err
	}
	if err := tctx.Store.SetAgentMemory(key, value); err != nil {
		return nil, err
	}
	return map[string]any{"stored": key}, nil
}

// MemoryGetTool reads a key from agent memory.
type MemoryGetTool struct{}

func (MemoryGetTool) Name() string        { return "memory_get" }
func (MemoryGetTool) Category() string    { return CategoryMemory }
func (MemoryGetTool) Description() string { return "Recall a remembered value by key" }
func (MemoryGetTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (MemoryGetTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"key": {"type": "string", "description": "Memory key"}
		},
		"required": ["key"]
	}`)
}

func (MemoryGetTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	key, err := requireString(args, "key")
	if err != nil {
		return nil, err
	}
	entries, err := tctx.Store.AgentMemory()
	if err != nil {
		return nil, err
	}
	entry, ok := entries[key]
	if !ok {
		return nil, fmt.Errorf("no memory stored under %q", key)
	}
	return map[string]any{"key": key, "value": entry.Value, "updatedAt": entry.UpdatedAt}, nil
}

// MemoryListTool enumerates stored keys.
type MemoryListTool struct{}

func (MemoryListTool) Name() string        { return "memory_list" }
func (MemoryListTool) Category() string    { return CategoryMemory }
func (MemoryListTool) Description() string { return "List all remembered keys" }
func (MemoryListTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (MemoryListTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (MemoryListTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	entries, err := tctx.Store.AgentMemory()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return map[string]any{"keys": out, "total": len(out)}, nil
}
