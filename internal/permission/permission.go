// Package permission implements the tool permission policy.
package permission

import (
	"fmt"
	"sync"

	"github.com/isocode-ai/isocode/pkg/types"
)

// RejectedError is returned when policy blocks a tool run.
type RejectedError struct {
	Tool    string
	Action  types.PermissionAction
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

// IsRejected reports whether an error is a policy rejection.
func IsRejected(err error) bool {
	_, ok := err.(*RejectedError)
	return ok
}

// Policy maps tool names to actions. Tools without an explicit entry use
// their registered default. The table is mutable at runtime via the server's
// /config endpoint.
type Policy struct {
	mu      sync.RWMutex
	actions map[string]types.PermissionAction
}

// NewPolicy creates a policy seeded with the given table.
func NewPolicy(actions map[string]types.PermissionAction) *Policy {
	p := &Policy{actions: make(map[string]types.PermissionAction)}
	for k, v := range actions {
		p.actions[k] = v
	}
	return p
}

// Set updates one tool's action.
func (p *Policy) Set(tool string, action types.PermissionAction) {
	p.mu.Lock()
	p.actions[tool] = action
	p.mu.Unlock()
}

// ActionFor returns the configured action, or fallback when unset.
func (p *Policy) ActionFor(tool string, fallback types.PermissionAction) types.PermissionAction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if a, ok := p.actions[tool]; ok && a != "" {
		return a
	}
	if fallback == "" {
		return types.ActionAlways
	}
	return fallback
}

// Check enforces the action for one tool run. `ask` passes only in auto mode
// (the engine runs its tools autonomously once a session is approved to act;
// interactive approval happens at the diff boundary, not per tool).
func (p *Policy) Check(tool string, defaultAction types.PermissionAction, autoMode bool) error {
	switch p.ActionFor(tool, defaultAction) {
	case types.ActionAlways:
		return nil
	case types.ActionNever:
		return &RejectedError{
			Tool:    tool,
			Action:  types.ActionNever,
			Message: fmt.Sprintf("tool %q is disabled by policy", tool),
		}
	case types.ActionAsk:
		if autoMode {
			return nil
		}
		return &RejectedError{
			Tool:    tool,
			Action:  types.ActionAsk,
			Message: fmt.Sprintf("tool %q requires approval", tool),
		}
	}
	return nil
}
