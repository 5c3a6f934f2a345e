package testutil

import (
	"net/http/httptest"
	"os"

	"github.com/isocode-ai/isocode/internal/config"
	"github.com/isocode-ai/isocode/internal/llm"
	"github.com/isocode-ai/isocode/internal/server"
)

// TestServer wraps a running HTTP server over a temp workspace.
type TestServer struct {
	BaseURL   string
	Workspace string

	httpSrv *httptest.Server
}

// StartServer boots a server over a fresh temp workspace with the given LLM
// client.
func StartServer(client llm.Client) (*TestServer, error) {
	workspace, err := os.MkdirTemp("", "isocode-citest-*")
	if err != nil {
		return nil, err
	}

	store, err := config.Load(workspace)
	if err != nil {
		os.RemoveAll(workspace)
		return nil, err
	}

	srv := server.NewWithClient(store, workspace, client)
	httpSrv := httptest.NewServer(srv.Handler())

	return &TestServer{
		BaseURL:   httpSrv.URL,
		Workspace: workspace,
		httpSrv:   httpSrv,
	}, nil
}

// Close shuts the server down and removes the workspace.
func (ts *TestServer) Close() {
	ts.httpSrv.Close()
	os.RemoveAll(ts.Workspace)
}
