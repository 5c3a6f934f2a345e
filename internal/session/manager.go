package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/isocode-ai/isocode/internal/contextmgr"
	"github.com/isocode-ai/isocode/internal/index"
	"github.com/isocode-ai/isocode/internal/storage"
	"github.com/isocode-ai/isocode/pkg/types"
)

// ErrNoPendingDiff is returned for a decision on a session without one.
var ErrNoPendingDiff = errors.New("no pending diff")

// ErrUnknownSession is returned for operations on absent sessions.
var ErrUnknownSession = errors.New("unknown session")

// ContextFile is an explicit file attachment on a chat request.
type ContextFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Manager is the process-wide registry of active sessions. A single mutex
// guards the maps; all per-session mutation happens on the owning request.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	stores   map[string]*storage.Store
	indexes  map[string]*index.Index

	engine *Engine
}

// NewManager wires a manager to its engine.
func NewManager(engine *Engine) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		stores:   make(map[string]*storage.Store),
		indexes:  make(map[string]*index.Index),
	}
	m.engine = engine
	engine.onRemove = m.remove
	return m
}

// Engine returns the wired engine.
func (m *Manager) Engine() *Engine { return m.engine }

// OpenOrGet returns the active session for id, creating it when absent. New
// sessions get the rendered system prompt plus injected workspace context,
// and the initial user message optionally enriched with auto-gathered
// relevance context.
func (m *Manager) OpenOrGet(id string, agentPlus bool, model, workspaceRoot, userMessage string, contextFiles []ContextFile, settings types.Settings) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		if userMessage != "" {
			s.Append(types.UserMessage(renderUserMessage(userMessage, contextFiles, nil)))
		}
		if model != "" {
			s.Model = model
		}
		return s
	}
	store := m.storeForLocked(workspaceRoot)
	ix := m.indexForLocked(workspaceRoot)
	m.mu.Unlock()

	s := &Session{
		ID:            id,
		Model:         model,
		AgentPlus:     agentPlus,
		WorkspaceRoot: workspaceRoot,
		MaxSteps:      settings.MaxSteps,
		Settings:      settings,
		Store:         store,
		Index:         ix,
	}

	pc := promptContext{
		contextFiles:   len(contextFiles) > 0,
		projectMap:     ix.ProjectMap(),
		rules:          store.ProjectRules(),
		memoryPrimer:   contextmgr.MemoryPrimer(store),
		promptOverride: settings.SystemPromptOverride,
	}
	if entries, err := store.ProjectContext(); err == nil && len(entries) > 0 {
		flat := make(map[string]string, len(entries))
		for k, v := range entries {
			flat[k] = v.Value
		}
		pc.projectCtx = projectContextSummary(flat)
	}
	if checkpoint, err := store.LoadCheckpoint(id); err == nil {
		pc.checkpoint = checkpoint
	}

	system := renderSystemPrompt(agentPlus, catalogFor(m.engine.dispatcher), pc)

	// Without explicit attachments, gather relevance context automatically.
	var relevance string
	if len(contextFiles) == 0 {
		relevance = ix.GatherRelevance(userMessage)
	}

	s.Append(
		types.SystemMessage(system),
		types.UserMessage(renderUserMessage(userMessage, contextFiles, &relevance)),
	)
	s.saveCheckpoint("start")

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s
}

// renderUserMessage attaches explicit context files or gathered relevance to
// the caller's message.
func renderUserMessage(message string, contextFiles []ContextFile, relevance *string) string {
	out := message
	for _, cf := range contextFiles {
		out += fmt.Sprintf("\n\n--- %s ---\n%s", cf.Path, contextmgr.SmartTruncate(cf.Content, 4000))
	}
	if relevance != nil && *relevance != "" {
		out += *relevance
	}
	return out
}

// Get looks a session up.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// ResumeWithDecision consumes the pending diff and resumes the loop. On
// approve, apply_diff runs through the dispatcher in auto mode; on reject
// only an observation is pushed.
func (m *Manager) ResumeWithDecision(ctx context.Context, id string, approve bool, emit EmitFunc) error {
	s, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if s.Pending == nil {
		return ErrNoPendingDiff
	}

	if done := m.engine.applyPending(ctx, s, emit, approve); done {
		return nil
	}
	m.engine.Run(ctx, s, emit)
	return nil
}

// Stop sets the stop flag; the loop terminates at its next boundary.
func (m *Manager) Stop(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	s.RequestStop()
	return nil
}

// Clear removes a session from the registry without running termination.
func (m *Manager) Clear(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Compact runs context compaction on a session's conversation, returning the
// before and after message counts.
func (m *Manager) Compact(ctx context.Context, id, model string) (before, after int, err error) {
	s, ok := m.Get(id)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if model == "" {
		model = s.Model
	}

	before = len(s.Messages)
	compacted, err := contextmgr.Compact(ctx, m.engine.llm, model, s.Messages)
	if err != nil {
		return before, before, err
	}
	s.Messages = compacted
	s.Compactions++
	s.saveCheckpoint("compaction")
	return before, len(s.Messages), nil
}

// SwitchModel records the new model. Conversations past four messages are
// compacted, a switch note is appended, and the compaction counter resets.
func (m *Manager) SwitchModel(ctx context.Context, id, newModel string) error {
	s, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	s.Model = newModel
	if len(s.Messages) > 4 {
		if compacted, err := contextmgr.Compact(ctx, m.engine.llm, newModel, s.Messages); err == nil {
			s.Messages = compacted
		}
		note := types.Directive{
			Type:    types.DirectiveThought,
			Content: fmt.Sprintf("Model switched to %s; earlier context was compacted.", newModel),
		}
		s.Append(types.AssistantMessage(note.JSON()))
	}
	s.Compactions = 0
	return nil
}

// List reports all active sessions.
func (m *Manager) List() []types.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Info())
	}
	return out
}

// Store returns the persistence store for a workspace root.
func (m *Manager) Store(workspaceRoot string) *storage.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storeForLocked(workspaceRoot)
}

// Index returns the file index for a workspace root.
func (m *Manager) Index(workspaceRoot string) *index.Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexForLocked(workspaceRoot)
}

func (m *Manager) storeForLocked(workspaceRoot string) *storage.Store {
	if st, ok := m.stores[workspaceRoot]; ok {
		return st
	}
	st := storage.New(workspaceRoot)
	m.stores[workspaceRoot] = st
	return st
}

func (m *Manager) indexForLocked(workspaceRoot string) *index.Index {
	if ix, ok := m.indexes[workspaceRoot]; ok {
		return ix
	}
	ix := index.New(workspaceRoot)
	m.indexes[workspaceRoot] = ix
	return ix
}

// remove is the engine's termination callback.
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()
}
