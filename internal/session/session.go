// Package session implements the session registry and the ReAct agent
// engine that drives reasoning, tool use, approvals, and delegation.
package session

import (
	"sync"

	"github.com/isocode-ai/isocode/internal/index"
	"github.com/isocode-ai/isocode/internal/storage"
	"github.com/isocode-ai/isocode/pkg/types"
)

// Session is one agent conversation and its loop state. All field mutation
// happens on the owning request's goroutine; the registry mutex only guards
// the id → session map.
type Session struct {
	ID            string
	Model         string
	AgentPlus     bool
	WorkspaceRoot string

	Messages []types.Message
	Pending  *types.PendingDiff

	// Plan tracking.
	Plan           string
	PlannedTasks   int
	CompletedTasks int

	// Loop counters.
	Steps              int
	Retries            int
	ConsecutiveFinals  int
	StepsWithoutAction int
	ThoughtStreak      int
	Compactions        int

	// Flags.
	StopRequested      bool
	DelegationDisabled bool

	// MaxSteps is the hard step cap for this session's runs.
	MaxSteps int

	// Captured environment.
	Settings types.Settings
	Store    *storage.Store
	Index    *index.Index

	mu sync.Mutex
}

// Append adds messages to the conversation.
func (s *Session) Append(msgs ...types.Message) {
	s.Messages = append(s.Messages, msgs...)
}

// RequestStop marks the session for cooperative termination; the loop
// observes it between steps and at tool completion.
func (s *Session) RequestStop() {
	s.mu.Lock()
	s.StopRequested = true
	s.mu.Unlock()
}

// Stopped reads the stop flag.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.StopRequested
}

// Info summarizes the session for the /sessions listing.
func (s *Session) Info() types.SessionInfo {
	return types.SessionInfo{
		ID:            s.ID,
		Model:         s.Model,
		AgentPlus:     s.AgentPlus,
		Messages:      len(s.Messages),
		Steps:         s.Steps,
		PendingDiff:   s.Pending != nil,
		StopRequested: s.Stopped(),
	}
}

// EmitFunc delivers one event to the session's client stream. Implementations
// may block; blocking propagates back-pressure into the step loop.
type EmitFunc func(types.Event) error
