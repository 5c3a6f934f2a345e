package mcp

import (
	"context"
	"encoding/json"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/isocode-ai/isocode/internal/tool"
	"github.com/isocode-ai/isocode/pkg/types"
)

// wrappedTool adapts one external server tool into the dispatcher registry.
type wrappedTool struct {
	manager    *Manager
	serverName string
	def        *sdkmcp.Tool
}

func (w *wrappedTool) Name() string {
	return w.serverName + "_" + w.def.Name
}

func (w *wrappedTool) Description() string {
	return strings.TrimSpace(w.def.Description)
}

func (w *wrappedTool) Category() string { return tool.CategoryMCP }

func (w *wrappedTool) DefaultAction() types.PermissionAction {
	return types.ActionAsk
}

func (w *wrappedTool) Parameters() json.RawMessage {
	if w.def.InputSchema != nil {
		if data, err := json.Marshal(w.def.InputSchema); err == nil {
			return data
		}
	}
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (w *wrappedTool) Execute(ctx context.Context, args map[string]any, tctx *tool.Context) (map[string]any, error) {
	out, err := w.manager.CallTool(ctx, w.serverName, w.def.Name, args)
	if err != nil {
		return nil, err
	}
	return map[string]any{"content": out}, nil
}

// RegisterTools wires every live server's tools into the registry, replacing
// any previously registered external tools.
func RegisterTools(m *Manager, registry *tool.Registry) {
	for _, existing := range registry.List() {
		if existing.Category() == tool.CategoryMCP {
			registry.Unregister(existing.Name())
		}
	}
	for serverName, tools := range m.Servers() {
		for _, def := range tools {
			registry.Register(&wrappedTool{manager: m, serverName: serverName, def: def})
		}
	}
}
