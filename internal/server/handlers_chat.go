package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/isocode-ai/isocode/internal/llm"
	"github.com/isocode-ai/isocode/internal/logging"
	"github.com/isocode-ai/isocode/internal/session"
	"github.com/isocode-ai/isocode/pkg/types"
)

// chatRequest is the POST /chat body.
type chatRequest struct {
	Message       string                `json:"message"`
	AutoMode      bool                  `json:"autoMode"`
	AgentPlus     bool                  `json:"agentPlus"`
	Model         string                `json:"model"`
	SessionID     string                `json:"sessionId"`
	Decision      string                `json:"decision,omitempty"`
	Context       []session.ContextFile `json:"context,omitempty"`
	WorkspaceRoot string                `json:"workspaceRoot"`
}

// chat serves chat, agent, and agent-plus turns. With an SSE-negotiating
// client the reply is an event stream; otherwise collected JSON.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Message == "" && req.Decision == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.Model == "" {
		req.Model = s.configStore.Settings().Model
	}
	if req.WorkspaceRoot == "" {
		req.WorkspaceRoot = s.workspaceRoot
	}

	agentRun := req.AutoMode || req.AgentPlus || req.Decision != ""
	if !agentRun {
		s.streamChat(w, r, req)
		return
	}
	s.agentTurn(w, r, req)
}

// streamChat forwards token deltas from the adapter untouched.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, req chatRequest) {
	messages := []types.Message{types.UserMessage(req.Message)}

	opts := llm.Options{
		Temperature: s.configStore.Settings().Temperature,
		MaxTokens:   4096,
		Timeout:     180 * time.Second,
	}

	if !wantsSSE(r) {
		var sb strings.Builder
		err := s.adapter.Stream(r.Context(), req.Model, messages, opts, func(delta string) {
			sb.WriteString(delta)
		})
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"content": sb.String()})
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	err = s.adapter.Stream(r.Context(), req.Model, messages, opts, func(delta string) {
		_ = sse.writeEvent(types.ChunkEvent(delta))
	})
	if err != nil {
		_ = sse.writeEvent(types.ErrorEvent(err.Error()))
	}
	_ = sse.writeEvent(types.DoneEvent())
}

// agentTurn runs (or resumes) the ReAct loop, draining session events from
// the bus into the response until a terminal frame.
func (s *Server) agentTurn(w http.ResponseWriter, r *http.Request, req chatRequest) {
	if req.SessionID == "" {
		if req.Decision != "" {
			writeError(w, http.StatusBadRequest, "sessionId is required with a decision")
			return
		}
		req.SessionID = strings.ToLower(ulid.Make().String())
	}

	// Validate the decision before opening a stream: a decision against a
	// session without a pending diff fails fast.
	if req.Decision != "" {
		sess, ok := s.sessions.Get(req.SessionID)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown session: "+req.SessionID)
			return
		}
		if sess.Pending == nil {
			writeError(w, http.StatusBadRequest, "no pending diff")
			return
		}
	}

	streaming := wantsSSE(r)
	var sse *sseWriter
	var collected []types.Event
	if streaming {
		var err error
		sse, err = newSSEWriter(w)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	// The engine publishes to the bus; this handler drains and frames. The
	// bounded subscription gives slow clients back-pressure into the loop.
	drainCtx, cancelDrain := context.WithCancel(r.Context())
	defer cancelDrain()

	events, err := s.bus.Subscribe(drainCtx, req.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	emit := s.bus.Emitter(req.SessionID)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		defer func() {
			if rec := recover(); rec != nil {
				logging.Error().Any("panic", rec).Str("sessionID", req.SessionID).Msg("engine panic")
				_ = emit(types.FinalEvent("internal error: the agent run failed"))
			}
		}()
		s.runAgent(drainCtx, req, emit)
	}()

	deliver := func(ev types.Event) (terminal bool) {
		if streaming {
			if err := sse.writeEvent(ev); err != nil {
				cancelDrain()
				return true
			}
		} else {
			collected = append(collected, ev)
		}
		return ev.Type == types.EventFinal || ev.Type == types.EventDiffRequest || ev.Type == types.EventError
	}

drain:
	for {
		select {
		case ev, ok := <-events:
			if !ok || deliver(ev) {
				break drain
			}
		case <-runDone:
			// The run ended; flush whatever is still buffered, then stop.
			for {
				select {
				case ev, ok := <-events:
					if !ok || deliver(ev) {
						break drain
					}
				default:
					break drain
				}
			}
		case <-r.Context().Done():
			break drain
		}
	}

	<-runDone
	if !streaming {
		writeJSON(w, http.StatusOK, map[string]any{"sessionId": req.SessionID, "events": collected})
	}
}

// runAgent enters the engine for a fresh message or a decision resume.
func (s *Server) runAgent(ctx context.Context, req chatRequest, emit session.EmitFunc) {
	if req.Decision != "" {
		approve := strings.EqualFold(req.Decision, "approve")
		if err := s.sessions.ResumeWithDecision(ctx, req.SessionID, approve, emit); err != nil {
			_ = emit(types.ErrorEvent(err.Error()))
		}
		return
	}

	sess := s.sessions.OpenOrGet(
		req.SessionID,
		req.AgentPlus,
		req.Model,
		req.WorkspaceRoot,
		req.Message,
		req.Context,
		s.configStore.Settings(),
	)
	s.sessions.Engine().Run(ctx, sess, emit)
}
