// Package config loads and persists runtime settings.
//
// Sources are merged in priority order, later wins: built-in defaults,
// process environment variables, user-config.json, and PATCH-style updates
// from the /config endpoint (which are persisted back to disk). Sessions see
// the settings captured at their creation; runtime changes apply to sessions
// created afterwards.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"

	"github.com/isocode-ai/isocode/pkg/types"
)

// UserConfigName is the on-disk settings file inside the config directory.
const UserConfigName = "user-config.json"

// Store owns the merged settings and the persistence path.
type Store struct {
	mu       sync.RWMutex
	settings types.Settings
	path     string
}

// Load builds a Store from defaults, environment, and user-config.json found
// in dir (created on first persist). A .env next to the config is honored.
func Load(dir string) (*Store, error) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	s := types.DefaultSettings()
	applyEnv(&s)

	path := filepath.Join(dir, UserConfigName)
	if data, err := os.ReadFile(path); err == nil {
		data = interpolateEnv(jsonc.ToJSON(data))
		var file types.Settings
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", UserConfigName, err)
		}
		merge(&s, &file)
	}

	return &Store{settings: s, path: path}, nil
}

// Settings returns a copy of the current settings.
func (st *Store) Settings() types.Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.settings
}

// Update merges a partial settings object and persists the result.
func (st *Store) Update(partial types.Settings) (types.Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	merge(&st.settings, &partial)

	data, err := json.MarshalIndent(st.settings, "", "  ")
	if err != nil {
		return st.settings, err
	}
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return st.settings, err
	}
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return st.settings, err
	}
	return st.settings, nil
}

// merge copies non-zero fields of src onto dst.
func merge(dst, src *types.Settings) {
	if src.Provider != "" {
		dst.Provider = src.Provider
	}
	if src.APIBase != "" {
		dst.APIBase = src.APIBase
	}
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.ShellPermission != "" {
		dst.ShellPermission = src.ShellPermission
	}
	if src.WritePermission != "" {
		dst.WritePermission = src.WritePermission
	}
	if src.EditPermission != "" {
		dst.EditPermission = src.EditPermission
	}
	if src.ContextBudget != 0 {
		dst.ContextBudget = src.ContextBudget
	}
	if src.MaxHistoryMessages != 0 {
		dst.MaxHistoryMessages = src.MaxHistoryMessages
	}
	if src.Temperature != 0 {
		dst.Temperature = src.Temperature
	}
	if src.MaxWorkers != 0 {
		dst.MaxWorkers = src.MaxWorkers
	}
	if src.VisionModel != "" {
		dst.VisionModel = src.VisionModel
	}
	if src.MaxSteps != 0 {
		dst.MaxSteps = src.MaxSteps
	}
	if src.SystemPromptOverride != "" {
		dst.SystemPromptOverride = src.SystemPromptOverride
	}
	if src.MCPServers != nil {
		dst.MCPServers = src.MCPServers
	}
}

// applyEnv overlays ISOCODE_* environment variables.
func applyEnv(s *types.Settings) {
	if v := os.Getenv("ISOCODE_PROVIDER"); v != "" {
		s.Provider = v
	}
	if v := os.Getenv("ISOCODE_API_BASE"); v != "" {
		s.APIBase = v
	}
	if v := os.Getenv("ISOCODE_API_KEY"); v != "" {
		s.APIKey = v
	}
	if v := os.Getenv("ISOCODE_MODEL"); v != "" {
		s.Model = v
	}
	if v := os.Getenv("ISOCODE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			s.Port = port
		}
	}
	if v := os.Getenv("ISOCODE_CONTEXT_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.ContextBudget = n
		}
	}
	if v := os.Getenv("ISOCODE_VISION_MODEL"); v != "" {
		s.VisionModel = v
	}
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolateEnv substitutes {env:VAR} placeholders inside config JSON.
func interpolateEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}
