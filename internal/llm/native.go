package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/isocode-ai/isocode/pkg/types"
)

// nativeClient speaks the local provider's native chat dialect: JSON bodies
// on /api/chat with line-delimited JSON streaming, model tags on /api/tags.
type nativeClient struct {
	baseURL string
	httpc   *http.Client
}

func newNativeClient(baseURL string, httpc *http.Client) *nativeClient {
	return &nativeClient{baseURL: baseURL, httpc: httpc}
}

type nativeMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type nativeRequest struct {
	Model    string          `json:"model"`
	Messages []nativeMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

func (n *nativeClient) buildRequest(model string, messages []types.Message, opts Options, stream bool) nativeRequest {
	req := nativeRequest{
		Model:  model,
		Stream: stream,
		Options: map[string]any{
			"temperature": opts.Temperature,
		},
	}
	if opts.MaxTokens > 0 {
		req.Options["num_predict"] = opts.MaxTokens
	}
	if opts.ExpectJSON {
		req.Format = "json"
	}
	for _, m := range messages {
		role := m.Role
		if role == types.RoleTool {
			role = types.RoleUser
		}
		req.Messages = append(req.Messages, nativeMessage{Role: role, Content: m.Content})
	}
	return req
}

func (n *nativeClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("native endpoint %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(raw))
	}
	return resp, nil
}

// call runs a non-streaming chat completion.
func (n *nativeClient) call(ctx context.Context, model string, messages []types.Message, opts Options) (*Response, error) {
	resp, err := n.post(ctx, "/api/chat", n.buildRequest(model, messages, opts, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("native chat: undecodable response: %w", err)
	}

	content := ExtractContent(payload)
	if content == "" {
		return nil, fmt.Errorf("native chat: empty response")
	}
	return &Response{Content: content}, nil
}

// stream reads line-delimited JSON frames until done.
func (n *nativeClient) stream(ctx context.Context, model string, messages []types.Message, opts Options, onDelta func(string)) error {
	resp, err := n.post(ctx, "/api/chat", n.buildRequest(model, messages, opts, true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var frame struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Done bool `json:"done"`
		}
		if err := json.Unmarshal(line, &frame); err != nil {
			continue
		}
		if frame.Message.Content != "" {
			onDelta(frame.Message.Content)
		}
		if frame.Done {
			return nil
		}
	}
	return scanner.Err()
}

// callVision sends the native multimodal shape: base64 images on the message.
func (n *nativeClient) callVision(ctx context.Context, model, prompt, imageBase64 string, opts Options) (string, error) {
	req := n.buildRequest(model, nil, opts, false)
	req.Messages = []nativeMessage{{Role: types.RoleUser, Content: prompt, Images: []string{imageBase64}}}

	resp, err := n.post(ctx, "/api/chat", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", err
	}
	content := ExtractContent(payload)
	if content == "" {
		return "", fmt.Errorf("native vision: empty response")
	}
	return content, nil
}

// listModels queries the native tag endpoint.
func (n *nativeClient) listModels(ctx context.Context) ([]types.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := n.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("native tags: status %d", resp.StatusCode)
	}

	var payload struct {
		Models []struct {
			Name       string `json:"name"`
			Size       int64  `json:"size"`
			ModifiedAt string `json:"modified_at"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	models := make([]types.ModelInfo, 0, len(payload.Models))
	for _, m := range payload.Models {
		models = append(models, types.ModelInfo{
			ID:          m.Name,
			DisplayName: m.Name,
			Size:        m.Size,
			ModifiedAt:  m.ModifiedAt,
		})
	}
	return models, nil
}
