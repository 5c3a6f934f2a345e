package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocode-ai/isocode/pkg/types"
)

// fakeBackend serves both the chat-completions and native dialects.
type fakeBackend struct {
	t *testing.T

	// compatStatus forces a status on /v1/chat/completions; 0 means 200.
	compatStatus int
	compatReply  string

	nativeReply  string
	nativeChunks []string

	compatCalls int
	nativeCalls int
	lastCompat  map[string]any
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.compatCalls++
		body, _ := json.Marshal(map[string]any{})
		_ = body
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lastCompat = req

		if f.compatStatus != 0 {
			w.WriteHeader(f.compatStatus)
			fmt.Fprintf(w, `{"error":{"message":"bad request"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, f.compatReply)
	})

	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		f.nativeCalls++
		var req nativeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Stream {
			for _, chunk := range f.nativeChunks {
				fmt.Fprintf(w, `{"message":{"content":%q},"done":false}`+"\n", chunk)
			}
			fmt.Fprint(w, `{"message":{"content":""},"done":true}`+"\n")
			return
		}
		fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q}}`, f.nativeReply)
	})

	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"llama3:8b","size":123},{"name":"qwen2.5-coder:7b"}]}`)
	})

	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[{"id":"compat-model","object":"model"}]}`)
	})

	return mux
}

func newTestAdapter(t *testing.T, f *fakeBackend, provider string) *Adapter {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	return New(types.Settings{Provider: provider, APIBase: srv.URL})
}

func TestCallChatCompletions(t *testing.T) {
	f := &fakeBackend{t: t, compatReply: "hi from compat"}
	a := newTestAdapter(t, f, LocalProvider)

	resp, err := a.Call(context.Background(), "m", []types.Message{types.UserMessage("hi")}, Options{MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "hi from compat", resp.Content)
	assert.Equal(t, 1, f.compatCalls)
	assert.Zero(t, f.nativeCalls)
}

func TestCallFallsBackToNative(t *testing.T) {
	f := &fakeBackend{t: t, compatStatus: http.StatusNotImplemented, nativeReply: "hi from native"}
	a := newTestAdapter(t, f, LocalProvider)

	resp, err := a.Call(context.Background(), "m", []types.Message{types.UserMessage("hi")}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hi from native", resp.Content)
	assert.Positive(t, f.nativeCalls)
}

func TestCallEmptyCompatFallsBack(t *testing.T) {
	f := &fakeBackend{t: t, compatReply: "", nativeReply: "native filled in"}
	a := newTestAdapter(t, f, LocalProvider)

	resp, err := a.Call(context.Background(), "m", []types.Message{types.UserMessage("hi")}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "native filled in", resp.Content)
}

func TestCallNonLocalNoFallback(t *testing.T) {
	f := &fakeBackend{t: t, compatStatus: http.StatusBadGateway}
	a := newTestAdapter(t, f, "remote")

	_, err := a.Call(context.Background(), "m", []types.Message{types.UserMessage("hi")}, Options{})
	require.Error(t, err)
	assert.Zero(t, f.nativeCalls)
}

func TestBadRequestEscalation(t *testing.T) {
	f := &fakeBackend{t: t, compatStatus: http.StatusBadRequest, nativeReply: "native rescued"}
	a := newTestAdapter(t, f, LocalProvider)

	resp, err := a.Call(context.Background(), "m", []types.Message{types.UserMessage("hi")}, Options{
		ExpectJSON: true,
		Tools:      []ToolSchema{{Name: "t", Parameters: json.RawMessage(`{"type":"object"}`)}},
	})
	// All escalation steps fail with 400, then the native endpoint rescues.
	require.NoError(t, err)
	assert.Equal(t, "native rescued", resp.Content)
	assert.GreaterOrEqual(t, f.compatCalls, escalationSteps)
}

func TestStreamNative(t *testing.T) {
	f := &fakeBackend{t: t, compatStatus: http.StatusNotImplemented, nativeChunks: []string{"hel", "lo"}}
	a := newTestAdapter(t, f, LocalProvider)

	var got strings.Builder
	err := a.Stream(context.Background(), "m", []types.Message{types.UserMessage("hi")}, Options{}, func(d string) {
		got.WriteString(d)
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.String())
}

func TestListModelsPrefersNativeTags(t *testing.T) {
	f := &fakeBackend{t: t}
	a := newTestAdapter(t, f, LocalProvider)

	models, err := a.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3:8b", models[0].ID)
	assert.Equal(t, int64(123), models[0].Size)
}

func TestListModelsCompatForRemote(t *testing.T) {
	f := &fakeBackend{t: t}
	a := newTestAdapter(t, f, "remote")

	models, err := a.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "compat-model", models[0].ID)
}

func TestHealth(t *testing.T) {
	f := &fakeBackend{t: t}
	a := newTestAdapter(t, f, LocalProvider)

	h := a.Health(context.Background())
	assert.True(t, h.OK)
	assert.Equal(t, LocalProvider, h.Provider)
}

func TestHealthDown(t *testing.T) {
	a := New(types.Settings{Provider: LocalProvider, APIBase: "http://127.0.0.1:1"})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	h := a.Health(ctx)
	assert.False(t, h.OK)
	assert.NotEmpty(t, h.Error)
}

func TestExpectJSONSetsFormat(t *testing.T) {
	f := &fakeBackend{t: t, compatReply: `{"type":"final","content":"x"}`}
	a := newTestAdapter(t, f, LocalProvider)

	_, err := a.Call(context.Background(), "m", []types.Message{types.UserMessage("hi")}, Options{ExpectJSON: true})
	require.NoError(t, err)

	rf, ok := f.lastCompat["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", rf["type"])
}
