package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocode-ai/isocode/internal/config"
	"github.com/isocode-ai/isocode/internal/llm"
	"github.com/isocode-ai/isocode/pkg/types"
)

// fakeLLM replays scripted replies; empty script means empty replies.
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	pos     int
	stream  []string
	fail    error
}

func (f *fakeLLM) next() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.replies) {
		return `{"type":"final","content":"done"}`
	}
	r := f.replies[f.pos]
	f.pos++
	return r
}

func (f *fakeLLM) Call(ctx context.Context, model string, messages []types.Message, opts llm.Options) (*llm.Response, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return &llm.Response{Content: f.next()}, nil
}

func (f *fakeLLM) Stream(ctx context.Context, model string, messages []types.Message, opts llm.Options, onDelta func(string)) error {
	if f.fail != nil {
		return f.fail
	}
	for _, d := range f.stream {
		onDelta(d)
	}
	return nil
}

func (f *fakeLLM) CallVision(ctx context.Context, model, prompt, imageBase64, mimeType string, opts llm.Options) (string, error) {
	return "", f.fail
}

func (f *fakeLLM) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return []types.ModelInfo{{ID: "fake-model", DisplayName: "fake-model"}}, nil
}

func (f *fakeLLM) Health(ctx context.Context) types.HealthStatus {
	if f.fail != nil {
		return types.HealthStatus{OK: false, Provider: "fake", Error: f.fail.Error()}
	}
	return types.HealthStatus{OK: true, Provider: "fake"}
}

func testServer(t *testing.T, client llm.Client) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	store, err := config.Load(root)
	require.NoError(t, err)
	return NewWithClient(store, root, client), root
}

func postJSON(t *testing.T, h http.Handler, path string, body any, sse bool) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if sse {
		req.Header.Set("Accept", "text/event-stream")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// parseSSE decodes the data: frames of a recorded SSE body.
func parseSSE(t *testing.T, body string) []types.Event {
	t.Helper()
	var events []types.Event
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev types.Event
		require.NoError(t, json.Unmarshal([]byte(line[len("data: "):]), &ev))
		events = append(events, ev)
	}
	return events
}

func TestStatusPage(t *testing.T) {
	srv, _ := testServer(t, &fakeLLM{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "isocode server")
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t, &fakeLLM{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var h types.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.True(t, h.OK)
}

func TestModelsEndpoint200OnFailure(t *testing.T) {
	srv, _ := testServer(t, &fakeLLM{fail: fmt.Errorf("backend gone")})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/models", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "backend gone")
	assert.NotNil(t, resp["models"])
}

func TestConfigUpdate(t *testing.T) {
	srv, _ := testServer(t, &fakeLLM{})
	rec := postJSON(t, srv.Handler(), "/config", map[string]any{"model": "llama3:8b", "maxWorkers": 3}, false)

	assert.Equal(t, http.StatusOK, rec.Code)
	var merged types.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &merged))
	assert.Equal(t, "llama3:8b", merged.Model)
	assert.Equal(t, 3, merged.MaxWorkers)
}

func TestStreamingChatEmptyReply(t *testing.T) {
	srv, _ := testServer(t, &fakeLLM{stream: nil})
	rec := postJSON(t, srv.Handler(), "/chat", map[string]any{"message": "hi", "model": "m"}, true)

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	// An empty model reply emits no chunk, then one done.
	assert.Equal(t, types.EventDone, events[0].Type)
}

func TestStreamingChatChunks(t *testing.T) {
	srv, _ := testServer(t, &fakeLLM{stream: []string{"hel", "lo"}})
	rec := postJSON(t, srv.Handler(), "/chat", map[string]any{"message": "hi", "model": "m"}, true)

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "hel", events[0].Content)
	assert.Equal(t, "lo", events[1].Content)
	assert.Equal(t, types.EventDone, events[2].Type)
}

func TestChatValidation(t *testing.T) {
	srv, _ := testServer(t, &fakeLLM{})

	rec := postJSON(t, srv.Handler(), "/chat", map[string]any{}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, srv.Handler(), "/chat", map[string]any{"decision": "approve"}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "sessionId")
}

func TestAgentFlowOverHTTP(t *testing.T) {
	client := &fakeLLM{replies: []string{
		`{"type":"thought","content":"PLAN:\n1. Write the file"}`,
		`{"type":"action","tool":"write_file","args":{"path":"hello.txt","content":"hi\n"}}`,
		// after approval:
		`{"type":"thought","content":"Completed task 1"}`,
		`{"type":"final","content":"wrote hello.txt"}`,
	}}
	srv, root := testServer(t, client)

	rec := postJSON(t, srv.Handler(), "/chat", map[string]any{
		"message":   "write hello.txt",
		"autoMode":  true,
		"model":     "m",
		"sessionId": "http-sess",
	}, true)

	events := parseSSE(t, rec.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, types.EventDiffRequest, last.Type)
	assert.Equal(t, "hello.txt", last.FilePath)
	assert.Equal(t, "http-sess", last.SessionID)

	// File not yet written.
	_, err := os.Stat(filepath.Join(root, "hello.txt"))
	assert.True(t, os.IsNotExist(err))

	// Approve.
	rec = postJSON(t, srv.Handler(), "/chat", map[string]any{
		"sessionId": "http-sess",
		"decision":  "approve",
		"autoMode":  true,
	}, true)

	events = parseSSE(t, rec.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, types.EventFinal, events[len(events)-1].Type)

	data, err := os.ReadFile(filepath.Join(root, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))
}

func TestDecisionWithoutPendingDiff(t *testing.T) {
	srv, _ := testServer(t, &fakeLLM{})

	rec := postJSON(t, srv.Handler(), "/chat", map[string]any{
		"sessionId": "nope",
		"decision":  "approve",
	}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown session")
}

func TestStopAgentEndpointValidation(t *testing.T) {
	srv, _ := testServer(t, &fakeLLM{})

	rec := postJSON(t, srv.Handler(), "/stop-agent", map[string]any{}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, srv.Handler(), "/stop-agent", map[string]any{"sessionId": "ghost"}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionsEndpoint(t *testing.T) {
	srv, _ := testServer(t, &fakeLLM{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp["saved"])
}

func TestSavedSessionLifecycle(t *testing.T) {
	srv, root := testServer(t, &fakeLLM{})

	// Persist one conversation directly through the store.
	store := srv.sessions.Store(root)
	require.NoError(t, store.SaveConversation("persisted", "m", false, []types.Message{types.UserMessage("hi")}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/persisted", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hi")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/persisted", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/persisted", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCodebaseEndpoints(t *testing.T) {
	srv, root := testServer(t, &fakeLLM{})
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.go"), []byte("package f\n"), 0o644))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/codebase", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/codebase/reindex", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMCPStatusEmpty(t *testing.T) {
	srv, _ := testServer(t, &fakeLLM{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp-status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp["servers"])
}
