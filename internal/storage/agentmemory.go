package storage

import "time"

const (
	agentMemoryFile = "agent-memory.json"
	// MaxAgentMemoryKeys caps the tool-accessible key-value store.
	MaxAgentMemoryKeys = 200
	// MaxAgentMemoryValue caps each stored value's length.
	MaxAgentMemoryValue = 8000
)

// AgentMemory loads the tool-accessible key-value store, empty when absent.
func (s *Store) AgentMemory() (map[string]ContextEntry, error) {
	entries := make(map[string]ContextEntry)
	if err := s.ReadJSON(&entries, agentMemoryFile); err != nil && err != ErrNotFound {
		return nil, err
	}
	return entries, nil
}

// SetAgentMemory stores one key. Values are clipped to the per-value cap and
// the oldest keys are evicted past the key cap.
func (s *Store) SetAgentMemory(key, value string) error {
	entries, err := s.AgentMemory()
	if err != nil {
		return err
	}

	if len(value) > MaxAgentMemoryValue {
		value = value[:MaxAgentMemoryValue]
	}
	entries[key] = ContextEntry{Value: value, UpdatedAt: time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z07:00")}
	evictOldest(entries, MaxAgentMemoryKeys)

	return s.WriteJSON(entries, agentMemoryFile)
}

// DeleteAgentMemory removes one key.
func (s *Store) DeleteAgentMemory(key string) error {
	entries, err := s.AgentMemory()
	if err != nil {
		return err
	}
	delete(entries, key)
	return s.WriteJSON(entries, agentMemoryFile)
}
