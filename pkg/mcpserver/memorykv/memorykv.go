// Package memorykv provides a small MCP server exposing a JSON-file-backed
// key-value store. It exists so the external tool-server path can be
// exercised end to end without third-party binaries.
package memorykv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// KV is the file-backed store behind the server's tools.
type KV struct {
	mu   sync.Mutex
	path string
}

// NewKV creates a store persisting to path.
func NewKV(path string) *KV {
	return &KV{path: path}
}

func (kv *KV) load() (map[string]string, error) {
	data, err := os.ReadFile(kv.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (kv *KV) save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(kv.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(kv.path, data, 0o644)
}

// Get reads one key.
func (kv *KV) Get(key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	entries, err := kv.load()
	if err != nil {
		return "", false, err
	}
	v, ok := entries[key]
	return v, ok, nil
}

// Set writes one key.
func (kv *KV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	entries, err := kv.load()
	if err != nil {
		return err
	}
	entries[key] = value
	return kv.save(entries)
}

// Keys lists all keys, sorted.
func (kv *KV) Keys() ([]string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	entries, err := kv.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// NewServer builds the MCP server over a store at path.
func NewServer(path string) *server.MCPServer {
	kv := NewKV(path)

	s := server.NewMCPServer(
		"memorykv",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	getTool := mcp.NewTool("kv_get",
		mcp.WithDescription("Read a stored value by key"),
		mcp.WithString("key", mcp.Required(), mcp.Description("Key to read")),
	)
	s.AddTool(getTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, ok := req.GetArguments()["key"].(string)
		if !ok || key == "" {
			return mcp.NewToolResultError("key argument is required"), nil
		}
		value, found, err := kv.Get(key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !found {
			return mcp.NewToolResultError(fmt.Sprintf("no value for %q", key)), nil
		}
		return mcp.NewToolResultText(value), nil
	})

	setTool := mcp.NewTool("kv_set",
		mcp.WithDescription("Store a value under a key"),
		mcp.WithString("key", mcp.Required(), mcp.Description("Key to write")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Value to store")),
	)
	s.AddTool(setTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		key, _ := args["key"].(string)
		value, _ := args["value"].(string)
		if key == "" {
			return mcp.NewToolResultError("key argument is required"), nil
		}
		if err := kv.Set(key, value); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("stored " + key), nil
	})

	listTool := mcp.NewTool("kv_list",
		mcp.WithDescription("List all stored keys"),
	)
	s.AddTool(listTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keys, err := kv.Keys()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data, _ := json.Marshal(keys)
		return mcp.NewToolResultText(string(data)), nil
	})

	return s
}
