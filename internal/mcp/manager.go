// Package mcp manages external tool servers spoken to over stdio using the
// Model Context Protocol.
package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/isocode-ai/isocode/internal/logging"
	"github.com/isocode-ai/isocode/pkg/types"
)

// InitializeTimeout bounds the handshake with a freshly spawned server.
// Handshake failure is a hard error latched on the server record.
const InitializeTimeout = 10 * time.Second

// ServerStatus describes one configured server's state.
type ServerStatus struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Tools   []string `json:"tools,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// server is one live (or failed) connection.
type server struct {
	config  types.MCPServerConfig
	session *sdkmcp.ClientSession
	tools   []*sdkmcp.Tool
	err     error
}

// Manager owns the pool of external tool-server processes. It reconnects
// when the configured server list changes (detected by hashing).
type Manager struct {
	mu         sync.Mutex
	client     *sdkmcp.Client
	servers    map[string]*server
	configHash string
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		client: sdkmcp.NewClient(&sdkmcp.Implementation{
			Name:    "isocode",
			Version: "1.0.0",
		}, nil),
		servers: make(map[string]*server),
	}
}

// Sync brings the pool in line with the configured list. An unchanged
// configuration is a no-op; a changed one tears down every server and spawns
// each configured server immediately. Servers are not started lazily on first
// use.
func (m *Manager) Sync(ctx context.Context, configs []types.MCPServerConfig) {
	hash := hashConfigs(configs)

	m.mu.Lock()
	defer m.mu.Unlock()

	if hash == m.configHash {
		return
	}

	for _, s := range m.servers {
		if s.session != nil {
			_ = s.session.Close()
		}
	}
	m.servers = make(map[string]*server)
	m.configHash = hash

	for _, cfg := range configs {
		s := m.connect(ctx, cfg)
		m.servers[cfg.Name] = s
		if s.err != nil {
			logging.Warn().Err(s.err).Str("server", cfg.Name).Msg("external tool server failed to start")
		} else {
			logging.Info().Str("server", cfg.Name).Int("tools", len(s.tools)).Msg("external tool server connected")
		}
	}
}

// connect spawns one server, runs the initialize handshake, and lists tools.
// A failure at any stage is recorded on the server and surfaced to callers
// on every attempted use.
func (m *Manager) connect(ctx context.Context, cfg types.MCPServerConfig) *server {
	s := &server{config: cfg}

	if cfg.Command == "" {
		s.err = fmt.Errorf("server %q has no command", cfg.Name)
		return s
	}

	initCtx, cancel := context.WithTimeout(ctx, InitializeTimeout)
	defer cancel()

	transport := &sdkmcp.CommandTransport{Command: exec.Command(cfg.Command, cfg.Args...)}
	session, err := m.client.Connect(initCtx, transport, nil)
	if err != nil {
		s.err = fmt.Errorf("initialize %q: %w", cfg.Name, err)
		return s
	}
	s.session = session

	list, err := session.ListTools(initCtx, nil)
	if err != nil {
		s.err = fmt.Errorf("tools/list %q: %w", cfg.Name, err)
		_ = session.Close()
		s.session = nil
		return s
	}
	s.tools = list.Tools
	return s
}

// CallTool invokes a named tool on a named server.
func (m *Manager) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (string, error) {
	m.mu.Lock()
	s, ok := m.servers[serverName]
	m.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("no external server %q", serverName)
	}
	if s.err != nil {
		return "", s.err
	}

	result, err := s.session.CallTool(ctx, &sdkmcp.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("call %s/%s: %w", serverName, toolName, err)
	}

	var out string
	for _, c := range result.Content {
		if text, ok := c.(*sdkmcp.TextContent); ok {
			out += text.Text
		}
	}
	if result.IsError {
		return "", fmt.Errorf("%s/%s: %s", serverName, toolName, out)
	}
	return out, nil
}

// Status reports every configured server.
func (m *Manager) Status() []ServerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	var statuses []ServerStatus
	for name, s := range m.servers {
		st := ServerStatus{Name: name, Command: s.config.Command}
		if s.err != nil {
			st.Error = s.err.Error()
		}
		for _, t := range s.tools {
			st.Tools = append(st.Tools, t.Name)
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// Servers returns the live servers and their tool definitions, for registry
// wiring.
func (m *Manager) Servers() map[string][]*sdkmcp.Tool {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]*sdkmcp.Tool)
	for name, s := range m.servers {
		if s.err == nil {
			out[name] = s.tools
		}
	}
	return out
}

// Close shuts down every server process.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.servers {
		if s.session != nil {
			_ = s.session.Close()
		}
	}
	m.servers = make(map[string]*server)
	m.configHash = ""
}

func hashConfigs(configs []types.MCPServerConfig) string {
	data, _ := json.Marshal(configs)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
