package types

// PermissionAction controls whether a tool may run.
type PermissionAction string

const (
	ActionAlways PermissionAction = "always"
	ActionAsk    PermissionAction = "ask"
	ActionNever  PermissionAction = "never"
)

// MCPServerConfig describes one external tool server spawned over stdio.
type MCPServerConfig struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Settings is the merged runtime configuration. Sources, later wins: process
// environment, user-config.json, /config endpoint updates.
type Settings struct {
	Provider string `json:"provider,omitempty"`
	APIBase  string `json:"apiBase,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	Model    string `json:"model,omitempty"`
	Port     int    `json:"port,omitempty"`

	// Permission policy per concern.
	ShellPermission PermissionAction `json:"shellPermission,omitempty"`
	WritePermission PermissionAction `json:"writePermission,omitempty"`
	EditPermission  PermissionAction `json:"editPermission,omitempty"`

	ContextBudget      int     `json:"contextBudget,omitempty"`
	MaxHistoryMessages int     `json:"maxHistoryMessages,omitempty"`
	Temperature        float64 `json:"temperature,omitempty"`
	MaxWorkers         int     `json:"maxWorkers,omitempty"`
	VisionModel        string  `json:"visionModel,omitempty"`
	MaxSteps           int     `json:"maxSteps,omitempty"`

	SystemPromptOverride string            `json:"systemPromptOverride,omitempty"`
	MCPServers           []MCPServerConfig `json:"mcpServers,omitempty"`
}

// DefaultSettings returns the baseline configuration before any source merges.
func DefaultSettings() Settings {
	return Settings{
		Provider:           "local",
		APIBase:            "http://localhost:11434",
		Port:               3999,
		ShellPermission:    ActionAsk,
		WritePermission:    ActionAsk,
		EditPermission:     ActionAsk,
		ContextBudget:      16384,
		MaxHistoryMessages: 100,
		Temperature:        0.2,
		MaxWorkers:         2,
		MaxSteps:           500,
	}
}

// ModelInfo describes one model available at the provider.
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ModifiedAt  string `json:"modifiedAt,omitempty"`
}

// HealthStatus is the provider health report.
type HealthStatus struct {
	OK       bool   `json:"ok"`
	Provider string `json:"provider"`
	Error    string `json:"error,omitempty"`
}
