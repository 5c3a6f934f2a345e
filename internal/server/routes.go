package server

import "github.com/go-chi/chi/v5"

// setupRoutes configures the API surface.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/", s.statusPage)
	r.Get("/health", s.getHealth)
	r.Get("/models", s.getModels)
	r.Post("/config", s.updateConfig)
	r.Get("/mcp-status", s.getMCPStatus)

	r.Post("/chat", s.chat)
	r.Post("/stop-agent", s.stopAgent)
	r.Post("/clear-session", s.clearSession)
	r.Post("/compact", s.compactSession)
	r.Post("/switch-model", s.switchModel)

	r.Get("/sessions", s.listSessions)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.getSavedSession)
		r.Delete("/", s.deleteSavedSession)
	})

	r.Get("/codebase", s.getCodebase)
	r.Post("/codebase/reindex", s.reindexCodebase)
}
