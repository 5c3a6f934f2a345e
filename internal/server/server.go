// Package server exposes the HTTP and SSE surface consumed by the editor
// extension.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/isocode-ai/isocode/internal/config"
	"github.com/isocode-ai/isocode/internal/event"
	"github.com/isocode-ai/isocode/internal/llm"
	"github.com/isocode-ai/isocode/internal/logging"
	"github.com/isocode-ai/isocode/internal/mcp"
	"github.com/isocode-ai/isocode/internal/permission"
	"github.com/isocode-ai/isocode/internal/session"
	"github.com/isocode-ai/isocode/internal/tool"
)

// Server owns the router and the core collaborators.
type Server struct {
	router    *chi.Mux
	httpSrv   *http.Server
	startedAt time.Time

	configStore *config.Store
	adapter     llm.Client
	sessions    *session.Manager
	dispatcher  *tool.Dispatcher
	policy      *permission.Policy
	bus         *event.Bus
	mcpManager  *mcp.Manager

	// workspaceRoot is the default workspace served when a request carries
	// none of its own.
	workspaceRoot string
}

// New assembles the server and all core components for one workspace.
func New(configStore *config.Store, workspaceRoot string) *Server {
	return NewWithClient(configStore, workspaceRoot, llm.New(configStore.Settings()))
}

// NewWithClient assembles the server around an explicit LLM client.
func NewWithClient(configStore *config.Store, workspaceRoot string, adapter llm.Client) *Server {
	settings := configStore.Settings()

	policy := tool.PolicyFromSettings(settings)
	registry := tool.DefaultRegistry(tool.NewTaskLists(), tool.NewBrowser())
	dispatcher := tool.NewDispatcher(registry, policy)
	engine := session.NewEngine(adapter, dispatcher)

	s := &Server{
		router:        chi.NewRouter(),
		startedAt:     time.Now(),
		configStore:   configStore,
		adapter:       adapter,
		sessions:      session.NewManager(engine),
		dispatcher:    dispatcher,
		policy:        policy,
		bus:           event.NewBus(),
		mcpManager:    mcp.NewManager(),
		workspaceRoot: workspaceRoot,
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	s.setupRoutes()

	s.syncMCP(context.Background())
	return s
}

// syncMCP reconciles external tool servers with the current configuration
// and registers their tools.
func (s *Server) syncMCP(ctx context.Context) {
	s.mcpManager.Sync(ctx, s.configStore.Settings().MCPServers)
	mcp.RegisterTools(s.mcpManager, s.dispatcher.Registry())
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	settings := s.configStore.Settings()
	addr := fmt.Sprintf("127.0.0.1:%d", settings.Port)

	s.httpSrv = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// No write timeout: SSE streams are long-lived.
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		s.mcpManager.Close()
		_ = s.bus.Close()
	}()

	logging.Info().Str("addr", addr).Str("workspace", s.workspaceRoot).Msg("server listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }
