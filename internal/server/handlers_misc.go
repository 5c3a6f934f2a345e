package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/isocode-ai/isocode/internal/mcp"
	"github.com/isocode-ai/isocode/internal/storage"
	"github.com/isocode-ai/isocode/internal/tool"
	"github.com/isocode-ai/isocode/pkg/types"
)

// statusPage renders the informational HTML landing page.
func (s *Server) statusPage(w http.ResponseWriter, r *http.Request) {
	settings := s.configStore.Settings()
	health := s.adapter.Health(r.Context())

	state := "degraded"
	if health.OK {
		state = "ok"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html><head><title>isocode</title></head><body>
<h1>isocode server</h1>
<p>Status: %s</p>
<p>Provider: %s</p>
<p>Model: %s</p>
<p>Uptime: %s</p>
<p>Active sessions: %d</p>
</body></html>
`, state, settings.Provider, settings.Model, time.Since(s.startedAt).Round(time.Second), len(s.sessions.List()))
}

// getHealth reports provider health.
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.adapter.Health(r.Context()))
}

// getModels lists provider models; HTTP 200 even on backend failure.
func (s *Server) getModels(w http.ResponseWriter, r *http.Request) {
	settings := s.configStore.Settings()
	models, err := s.adapter.ListModels(r.Context())

	resp := map[string]any{
		"models":   models,
		"provider": settings.Provider,
	}
	if models == nil {
		resp["models"] = []types.ModelInfo{}
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// updateConfig merges runtime settings and propagates them to the policy
// table and external tool servers. Sessions created afterwards see the
// changes.
func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var partial types.Settings
	if err := decodeBody(r, &partial); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	merged, err := s.configStore.Update(partial)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tool.ApplySettings(s.policy, merged)
	s.syncMCP(r.Context())

	writeJSON(w, http.StatusOK, merged)
}

// getMCPStatus lists configured external tool servers.
func (s *Server) getMCPStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.mcpManager.Status()
	if statuses == nil {
		statuses = []mcp.ServerStatus{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"servers": statuses})
}

// sessionIDRequest is the common {sessionId} body.
type sessionIDRequest struct {
	SessionID string `json:"sessionId"`
	Model     string `json:"model,omitempty"`
}

// stopAgent sets the stop flag on a running session.
func (s *Server) stopAgent(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if err := decodeBody(r, &req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if err := s.sessions.Stop(req.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stopped": req.SessionID})
}

// clearSession removes a session from the registry.
func (s *Server) clearSession(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if err := decodeBody(r, &req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	s.sessions.Clear(req.SessionID)
	writeJSON(w, http.StatusOK, map[string]any{"cleared": req.SessionID})
}

// compactSession runs compaction, returning before and after counts.
func (s *Server) compactSession(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if err := decodeBody(r, &req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	before, after, err := s.sessions.Compact(r.Context(), req.SessionID, req.Model)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"before": before, "after": after})
}

// switchModel updates the session model and compacts longer conversations.
func (s *Server) switchModel(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if err := decodeBody(r, &req); err != nil || req.SessionID == "" || req.Model == "" {
		writeError(w, http.StatusBadRequest, "sessionId and model are required")
		return
	}
	if err := s.sessions.SwitchModel(r.Context(), req.SessionID, req.Model); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"model": req.Model})
}

// listSessions reports active sessions and persisted conversations.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	store := s.sessions.Store(s.workspaceRoot)
	saved, err := store.ListConversations()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if saved == nil {
		saved = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active": s.sessions.List(),
		"saved":  saved,
	})
}

// getSavedSession loads a persisted conversation.
func (s *Server) getSavedSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	rec, err := s.sessions.Store(s.workspaceRoot).LoadConversation(id)
	if err != nil {
		if err == storage.ErrNotFound {
			writeError(w, http.StatusNotFound, "no saved conversation: "+id)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// deleteSavedSession removes a persisted conversation.
func (s *Server) deleteSavedSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.sessions.Store(s.workspaceRoot).DeleteConversation(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// getCodebase reports the current file-index snapshot.
func (s *Server) getCodebase(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Index(s.workspaceRoot).Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   snap.Total,
		"dirs":    snap.Dirs,
		"builtAt": snap.BuiltAt,
	})
}

// reindexCodebase invalidates the file index.
func (s *Server) reindexCodebase(w http.ResponseWriter, r *http.Request) {
	s.sessions.Index(s.workspaceRoot).Invalidate()
	writeJSON(w, http.StatusOK, map[string]any{"reindexed": true})
}
