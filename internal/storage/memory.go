package storage

import (
	"os"
	"path/filepath"
	"sort"
)

const (
	memoryDir      = "memory"
	checkpointsDir = "checkpoints"
	rulesFile      = "rules.md"
)

// SessionMemory is an LLM-generated summary of a finished or compacted
// session, used to prime future sessions.
type SessionMemory struct {
	SessionID string `json:"sessionId"`
	Summary   string `json:"summary"`
	UpdatedAt string `json:"updatedAt"`
}

// SaveSessionMemory writes a session summary.
func (s *Store) SaveSessionMemory(mem SessionMemory) error {
	return s.WriteJSON(mem, memoryDir, SanitizeID(mem.SessionID)+".json")
}

// RecentMemories returns the newest session summaries by file mtime.
func (s *Store) RecentMemories(limit int) ([]SessionMemory, error) {
	dir := s.path(memoryDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type dated struct {
		name string
		mod  int64
	}
	var files []dated
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, dated{e.Name(), info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod > files[j].mod })

	var memories []SessionMemory
	for _, f := range files {
		if len(memories) >= limit {
			break
		}
		var mem SessionMemory
		if err := s.ReadJSON(&mem, memoryDir, f.name); err != nil {
			continue
		}
		memories = append(memories, mem)
	}
	return memories, nil
}

// WriteCheckpoint stores a markdown checkpoint for a session.
func (s *Store) WriteCheckpoint(sessionID, markdown string) error {
	return s.WriteRaw([]byte(markdown), checkpointsDir, SanitizeID(sessionID)+".md")
}

// LoadCheckpoint reads a session's checkpoint, empty string when absent.
func (s *Store) LoadCheckpoint(sessionID string) (string, error) {
	data, err := os.ReadFile(s.path(checkpointsDir, SanitizeID(sessionID)+".md"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// ProjectRules reads <workspace>/.isocode/rules.md, empty string when absent.
func (s *Store) ProjectRules() string {
	data, err := os.ReadFile(s.path(rulesFile))
	if err != nil {
		return ""
	}
	return string(data)
}
