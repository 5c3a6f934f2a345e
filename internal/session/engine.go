package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/isocode-ai/isocode/internal/contextmgr"
	"github.com/isocode-ai/isocode/internal/diff"
	"github.com/isocode-ai/isocode/internal/llm"
	"github.com/isocode-ai/isocode/internal/logging"
	"github.com/isocode-ai/isocode/internal/storage"
	"github.com/isocode-ai/isocode/internal/tool"
	"github.com/isocode-ai/isocode/pkg/types"
)

const (
	// noActionLimit ends a run after this many consecutive steps without an
	// action.
	noActionLimit = 10
	// defaultStepCap applies when the server boundary sets no cap.
	defaultStepCap = 12
	// llmRetries is the engine-level retry count for transient LLM failures.
	llmRetries = 2

	maxOutputTokens = 4096

	agentTimeout     = 180 * time.Second
	agentPlusTimeout = 300 * time.Second

	agentTemperature     = 0.2
	agentPlusTemperature = 0.5
)

// stoppedFinal is the terminal message for cooperative stops.
const stoppedFinal = "Agent stopped by user."

// gatedTools are intercepted in agent (non-plus) mode and turned into diff
// requests instead of reaching the dispatcher.
var gatedTools = map[string]bool{
	"apply_diff":      true,
	"write_file":      true,
	"replace_in_file": true,
}

// Engine drives the ReAct loop for sessions.
type Engine struct {
	llm        llm.Client
	dispatcher *tool.Dispatcher
	pool       *Pool

	// onRemove detaches a finished session from the registry.
	onRemove func(*Session)
}

// NewEngine creates an engine over the adapter and dispatcher.
func NewEngine(client llm.Client, dispatcher *tool.Dispatcher) *Engine {
	e := &Engine{llm: client, dispatcher: dispatcher}
	e.pool = NewPool(e, client)
	return e
}

// Run advances the session's loop until a terminal final, a pending diff
// request, or a stop. It never returns an error: every failure path becomes
// a final or an observation event.
func (e *Engine) Run(ctx context.Context, s *Session, emit EmitFunc) {
	// A session awaiting approval accepts no new actions: re-surface the
	// pending diff and leave it untouched.
	if s.Pending != nil {
		_ = emit(types.DiffRequestEvent(s.ID, s.Pending.FilePath, s.Pending.Diff))
		return
	}

	for {
		if s.Stopped() {
			e.finish(ctx, s, emit, stoppedFinal)
			return
		}
		if s.StepsWithoutAction >= noActionLimit {
			e.finish(ctx, s, emit, "Stopping: no actionable progress over the last "+fmt.Sprint(noActionLimit)+" steps.")
			return
		}
		stepCap := s.MaxSteps
		if stepCap <= 0 {
			stepCap = defaultStepCap
		}
		if s.Steps >= stepCap {
			e.finish(ctx, s, emit, fmt.Sprintf("Stopping: reached the %d-step limit.", stepCap))
			return
		}
		s.Steps++

		// Compaction check.
		if s.Compactions < contextmgr.MaxCompactions && contextmgr.ShouldCompact(s.Messages, s.Settings.ContextBudget) {
			compacted, err := contextmgr.Compact(ctx, e.llm, s.Model, s.Messages)
			if err != nil {
				logging.Warn().Err(err).Str("sessionID", s.ID).Msg("compaction failed")
				s.Compactions = contextmgr.MaxCompactions
			} else {
				s.Messages = compacted
				s.Compactions++
				s.saveCheckpoint("compaction")
			}
		}

		// Periodic checkpoint.
		if s.Steps%checkpointInterval == 0 {
			s.saveCheckpoint("periodic")
		}

		trimmed := contextmgr.TrimToBudget(s.Messages, contextmgr.Budget(s.Settings.ContextBudget))

		resp, err := e.callModel(ctx, s, trimmed, emit)
		if err != nil {
			e.finishError(ctx, s, emit, err)
			return
		}

		if done := e.interpret(ctx, s, resp, emit); done {
			return
		}
	}
}

// callModel invokes the adapter with engine-level retries. Transient
// failures are retried twice and announced as thought events; "not found"
// errors abort immediately.
func (e *Engine) callModel(ctx context.Context, s *Session, trimmed []types.Message, emit EmitFunc) (*llm.Response, error) {
	opts := llm.Options{
		Temperature: agentTemperature,
		MaxTokens:   maxOutputTokens,
		Timeout:     agentTimeout,
		ExpectJSON:  true,
	}
	if s.AgentPlus {
		opts.Temperature = agentPlusTemperature
		opts.Timeout = agentPlusTimeout
	}

	var lastErr error
	for attempt := 0; attempt <= llmRetries; attempt++ {
		resp, err := e.llm.Call(ctx, s.Model, trimmed, opts)
		if err == nil {
			s.Retries = 0
			return resp, nil
		}
		lastErr = err
		if llm.IsModelNotFound(err) || ctx.Err() != nil {
			return nil, err
		}
		s.Retries++
		if attempt < llmRetries {
			note := fmt.Sprintf("Model call failed (%v); retrying (%d/%d).", err, attempt+1, llmRetries)
			_ = emit(types.ThoughtEvent(note))
		}
	}
	return nil, lastErr
}

// interpret maps a model reply onto directives and dispatches them. It
// returns true when the run ended (final, pending diff, or stop).
func (e *Engine) interpret(ctx context.Context, s *Session, resp *llm.Response, emit EmitFunc) bool {
	// Native tool calls take precedence: each becomes an action in order.
	if len(resp.ToolCalls) > 0 {
		for _, tc := range resp.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal(tc.Args, &args); err != nil {
				args = map[string]any{}
			}
			d := &types.Directive{Type: types.DirectiveAction, Tool: tc.Name, Args: args}
			if done := e.dispatch(ctx, s, d, emit); done {
				return true
			}
			if s.Stopped() {
				e.finish(ctx, s, emit, stoppedFinal)
				return true
			}
		}
		return false
	}

	d, err := ParseDirective(resp.Content)
	if err != nil {
		// Push the raw text and nudge the model back to JSON.
		s.Append(types.AssistantMessage(resp.Content), types.UserMessage(jsonReminder))
		s.StepsWithoutAction++
		return false
	}
	return e.dispatch(ctx, s, d, emit)
}

// dispatch executes one directive. Returns true when the run ends.
func (e *Engine) dispatch(ctx context.Context, s *Session, d *types.Directive, emit EmitFunc) bool {
	switch d.Type {
	case types.DirectiveThought:
		s.Append(types.AssistantMessage(d.JSON()))
		s.updatePlan(d.Content)
		_ = emit(types.ThoughtEvent(d.Content))

		s.StepsWithoutAction++
		s.ThoughtStreak++
		s.ConsecutiveFinals = 0
		if s.ThoughtStreak >= 2 {
			s.Append(types.UserMessage("You have been thinking for two turns. Take an action next: emit an action, diff_request, or final directive."))
			s.ThoughtStreak = 0
		}
		return false

	case types.DirectiveAction:
		return e.dispatchAction(ctx, s, d, emit)

	case types.DirectiveDiffRequest:
		return e.handleDiffRequest(ctx, s, &types.PendingDiff{FilePath: d.FilePath, Diff: d.Diff}, emit)

	case types.DirectiveDelegate:
		if !s.AgentPlus {
			// Not a known directive in agent mode.
			s.Append(types.AssistantMessage(d.JSON()), types.UserMessage(jsonReminder))
			s.StepsWithoutAction++
			return false
		}
		return e.handleDelegate(ctx, s, d, emit)

	case types.DirectiveFinal:
		return e.handleFinal(ctx, s, d, emit)
	}
	return false
}

// dispatchAction runs one action through the dispatcher, except that in
// agent (non-plus) mode the mutating file tools are converted into a diff
// request for approval.
func (e *Engine) dispatchAction(ctx context.Context, s *Session, d *types.Directive, emit EmitFunc) bool {
	s.StepsWithoutAction = 0
	s.ThoughtStreak = 0
	s.ConsecutiveFinals = 0

	if !s.AgentPlus && gatedTools[d.Tool] {
		return e.gateMutation(ctx, s, d, emit)
	}

	s.Append(types.AssistantMessage(d.JSON()))
	_ = emit(types.ActionEvent(d.Tool, d.Args))

	result := e.dispatcher.Run(ctx, d.Tool, d.Args, e.toolContext(s))
	obs := tool.Observation(result)

	s.Append(types.ToolMessage(obs))
	_ = emit(types.ObservationEvent(obs))

	// Reveal freshly written files to the editor on the direct-write path.
	if s.AgentPlus && result["error"] == nil {
		if rel, ok := result["written"].(string); ok {
			_ = emit(types.OpenFileEvent(rel))
		} else if rel, ok := result["replaced"].(string); ok {
			_ = emit(types.OpenFileEvent(rel))
		}
	}

	if s.Stopped() {
		e.finish(ctx, s, emit, stoppedFinal)
		return true
	}
	return false
}

// gateMutation converts a mutating tool call into a pending diff request.
func (e *Engine) gateMutation(ctx context.Context, s *Session, d *types.Directive, emit EmitFunc) bool {
	pending, err := e.synthesizeDiff(s, d)
	if err != nil {
		s.Append(types.AssistantMessage(d.JSON()))
		obs := tool.Observation(map[string]any{"error": err.Error()})
		s.Append(types.ToolMessage(obs))
		_ = emit(types.ObservationEvent(obs))
		return false
	}

	s.Append(types.AssistantMessage(d.JSON()))
	return e.handleDiffRequest(ctx, s, pending, emit)
}

// synthesizeDiff builds the unified diff between the current file content
// (or empty) and the content the tool call proposes.
func (e *Engine) synthesizeDiff(s *Session, d *types.Directive) (*types.PendingDiff, error) {
	pathArg := "path"
	if d.Tool == "apply_diff" {
		pathArg = "filePath"
	}
	rawPath, _ := d.Args[pathArg].(string)
	if rawPath == "" {
		return nil, fmt.Errorf("%s requires %q", d.Tool, pathArg)
	}
	abs, rel, err := tool.ResolvePath(s.WorkspaceRoot, rawPath)
	if err != nil {
		return nil, err
	}

	current := ""
	if data, err := os.ReadFile(abs); err == nil {
		current = string(data)
	}

	var proposed string
	switch d.Tool {
	case "write_file":
		content, ok := d.Args["content"].(string)
		if !ok {
			return nil, fmt.Errorf("write_file requires \"content\"")
		}
		proposed = content
	case "replace_in_file":
		search, _ := d.Args["search"].(string)
		replace, _ := d.Args["replace"].(string)
		if search == "" {
			return nil, fmt.Errorf("replace_in_file requires \"search\"")
		}
		if !strings.Contains(current, search) {
			return nil, fmt.Errorf("search block not found in %s", rel)
		}
		proposed = strings.Replace(current, search, replace, 1)
	case "apply_diff":
		diffText, _ := d.Args["diff"].(string)
		if diffText == "" {
			return nil, fmt.Errorf("apply_diff requires \"diff\"")
		}
		patched, ok := diff.TryApplyPatch(current, diffText)
		if !ok {
			return nil, fmt.Errorf("proposed diff does not apply to %s", rel)
		}
		proposed = patched
	}

	if proposed == current {
		return nil, fmt.Errorf("proposed change to %s is a no-op", rel)
	}
	return &types.PendingDiff{FilePath: rel, Diff: diff.CreateUnified(rel, current, proposed)}, nil
}

// handleDiffRequest records a pending diff. In agent-plus it is auto-applied
// immediately; in agent the run ends awaiting the user's decision.
func (e *Engine) handleDiffRequest(ctx context.Context, s *Session, pending *types.PendingDiff, emit EmitFunc) bool {
	s.StepsWithoutAction = 0
	s.ThoughtStreak = 0
	s.Pending = pending

	if s.AgentPlus {
		return e.applyPending(ctx, s, emit, true)
	}

	_ = emit(types.DiffRequestEvent(s.ID, pending.FilePath, pending.Diff))
	e.persist(s)
	return true
}

// applyPending consumes the pending diff. approve=true applies it through
// the dispatcher in auto mode; approve=false only records the rejection.
// The loop continues afterwards in both cases.
func (e *Engine) applyPending(ctx context.Context, s *Session, emit EmitFunc, approve bool) bool {
	pending := s.Pending
	s.Pending = nil

	if !approve {
		obs := tool.Observation(map[string]any{
			"content": fmt.Sprintf("User REJECTED the proposed change to %s. Revise the approach and propose a different change or finish.", pending.FilePath),
		})
		s.Append(types.ToolMessage(obs))
		_ = emit(types.ObservationEvent(obs))
		return false
	}

	tctx := e.toolContext(s)
	tctx.AutoMode = true
	result := e.dispatcher.Run(ctx, "apply_diff", map[string]any{
		"filePath": pending.FilePath,
		"diff":     pending.Diff,
	}, tctx)

	if result["error"] == nil {
		result["content"] = "User APPROVED."
	}
	obs := tool.Observation(result)
	s.Append(types.ToolMessage(obs))
	_ = emit(types.ObservationEvent(obs))

	if result["error"] == nil {
		_ = emit(types.OpenFileEvent(pending.FilePath))
	}
	return false
}

// handleDelegate fans tasks out to the worker pool and pushes one aggregated
// observation.
func (e *Engine) handleDelegate(ctx context.Context, s *Session, d *types.Directive, emit EmitFunc) bool {
	s.StepsWithoutAction = 0
	s.ThoughtStreak = 0
	s.Append(types.AssistantMessage(d.JSON()))

	if s.DelegationDisabled {
		s.Append(types.UserMessage("Delegation is disabled for this session. Continue in single-agent mode."))
		return false
	}

	results, err := e.pool.Run(ctx, s, d.Tasks)
	if err != nil {
		logging.Warn().Err(err).Str("sessionID", s.ID).Msg("delegation failed")
		s.DelegationDisabled = true
		s.Append(types.UserMessage(fmt.Sprintf("Delegation failed (%v). Continue in single-agent mode.", err)))
		return false
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "[Subtask %d] %s\n", i+1, r)
	}
	obs := tool.Observation(map[string]any{"swarm": true, "results": len(results), "content": sb.String()})
	s.Append(types.ToolMessage(obs))
	_ = emit(types.ObservationEvent(obs))
	return false
}

// handleFinal ends the run unless the plan is demonstrably unfinished.
func (e *Engine) handleFinal(ctx context.Context, s *Session, d *types.Directive, emit EmitFunc) bool {
	s.Append(types.AssistantMessage(d.JSON()))

	if s.planIncomplete() && s.ConsecutiveFinals < 2 {
		s.ConsecutiveFinals++
		nudge := fmt.Sprintf("Only %d/%d planned tasks are done. Continue with the remaining tasks before finishing.", s.CompletedTasks, s.PlannedTasks)
		s.Append(types.UserMessage(nudge))
		return false
	}

	e.terminate(ctx, s, emit, d.Content, "final")
	return true
}

// finish terminates the run with a synthesized final message.
func (e *Engine) finish(ctx context.Context, s *Session, emit EmitFunc, content string) {
	reason := "final"
	if content == stoppedFinal {
		reason = "abort"
	}
	e.terminate(ctx, s, emit, content, reason)
}

// finishError terminates the run after an unrecoverable LLM failure.
func (e *Engine) finishError(ctx context.Context, s *Session, emit EmitFunc, err error) {
	e.terminate(ctx, s, emit, fmt.Sprintf("The model backend failed: %v", err), "error")
}

// terminate writes the final checkpoint and summary, emits the final event,
// and removes the session from the registry.
func (e *Engine) terminate(ctx context.Context, s *Session, emit EmitFunc, content, reason string) {
	s.saveCheckpoint(reason)
	e.persist(s)
	// Persistence survives a client disconnect mid-final.
	e.summarize(context.WithoutCancel(ctx), s)

	_ = emit(types.FinalEvent(content))

	if e.onRemove != nil {
		e.onRemove(s)
	}
}

// persist saves the conversation tail to disk.
func (e *Engine) persist(s *Session) {
	if err := s.Store.SaveConversation(s.ID, s.Model, s.Compactions > 0, s.Messages); err != nil {
		logging.Warn().Err(err).Str("sessionID", s.ID).Msg("conversation persist failed")
	}
}

// summarize writes the cross-session memory summary for this session.
func (e *Engine) summarize(ctx context.Context, s *Session) {
	summary := summarizeForMemory(ctx, e.llm, s.Model, s.Messages)
	if summary == "" {
		return
	}
	err := s.Store.SaveSessionMemory(storage.SessionMemory{
		SessionID: s.ID,
		Summary:   summary,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		logging.Warn().Err(err).Str("sessionID", s.ID).Msg("memory summary persist failed")
	}
}

// toolContext builds the dispatcher context for this session. Tools run with
// auto-mode enabled in both modes; in agent mode the mutating file tools are
// intercepted for diff review before they reach the dispatcher.
func (e *Engine) toolContext(s *Session) *tool.Context {
	return &tool.Context{
		WorkspaceRoot: s.WorkspaceRoot,
		SessionID:     s.ID,
		AutoMode:      true,
		Store:         s.Store,
		Index:         s.Index,
		LLM:           e.llm,
		VisionModel:   s.Settings.VisionModel,
	}
}
