package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/isocode-ai/isocode/internal/logging"
	"github.com/isocode-ai/isocode/pkg/types"
)

const (
	// transientRetries is the retry count for socket and 5xx failures.
	transientRetries = 2
	// escalationSteps is the ladder depth for 400/422 responses.
	escalationSteps = 3
)

// compatClient speaks the chat-completions dialect via go-openai.
type compatClient struct {
	client *openai.Client
}

func newCompatClient(baseURL, apiKey string) *compatClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL + "/v1"
	return &compatClient{client: openai.NewClientWithConfig(cfg)}
}

// call runs a completion with an escalation ladder: on HTTP 400/422 the
// request is retried progressively dropping response_format, then tools,
// while raising temperature and max tokens.
func (c *compatClient) call(ctx context.Context, model string, messages []types.Message, opts Options) (*Response, error) {
	req := c.buildRequest(model, messages, opts)

	var lastErr error
	for step := 0; step < escalationSteps; step++ {
		switch step {
		case 1:
			req.ResponseFormat = nil
		case 2:
			req.Tools = nil
			req.ToolChoice = nil
			req.Temperature += 0.2
			req.MaxTokens = req.MaxTokens * 3 / 2
		}

		resp, err := c.callTransient(ctx, req)
		if err == nil {
			return extractCompat(resp), nil
		}
		lastErr = err

		if !isBadRequest(err) {
			return nil, err
		}
		logging.Debug().Err(err).Int("step", step).Msg("bad request, escalating")
	}
	return nil, lastErr
}

// callTransient retries socket and server errors with exponential backoff.
func (c *compatClient) callTransient(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse

	bo := backoff.WithContext(backoff.WithMaxRetries(newBackoff(), transientRetries), ctx)
	err := backoff.Retry(func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			return nil
		}
		if isBadRequest(err) || IsModelNotFound(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)

	return resp, err
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 15 * time.Second
	b.RandomizationFactor = 0.5
	return b
}

func (c *compatClient) buildRequest(model string, messages []types.Message, opts Options) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}
	if opts.ExpectJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	if opts.ToolChoice != "" && len(req.Tools) > 0 {
		req.ToolChoice = opts.ToolChoice
	}
	return req
}

// stream forwards SSE deltas until [DONE] or a stop finish reason.
func (c *compatClient) stream(ctx context.Context, model string, messages []types.Message, opts Options, onDelta func(string)) error {
	req := c.buildRequest(model, messages, opts)
	req.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			onDelta(choice.Delta.Content)
		}
		if choice.FinishReason == openai.FinishReasonStop {
			return nil
		}
	}
}

// callVision sends the chat-completions image_url content-part shape.
func (c *compatClient) callVision(ctx context.Context, model, prompt, imageBase64, mimeType string, opts Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: fmt.Sprintf("data:%s;base64,%s", mimeType, imageBase64),
					},
				},
			},
		}},
	}

	resp, err := c.callTransient(ctx, req)
	if err != nil {
		return "", err
	}
	return extractCompat(resp).Content, nil
}

func (c *compatClient) listModels(ctx context.Context) ([]types.ModelInfo, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	models := make([]types.ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, types.ModelInfo{ID: m.ID, DisplayName: m.ID})
	}
	return models, nil
}

// extractCompat pulls content and tool calls from a typed response.
func extractCompat(resp openai.ChatCompletionResponse) *Response {
	out := &Response{}
	if len(resp.Choices) == 0 {
		return out
	}
	msg := resp.Choices[0].Message

	out.Content = msg.Content
	if out.Content == "" && msg.ReasoningContent != "" {
		out.Content = msg.ReasoningContent
	}

	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}

// isBadRequest reports HTTP 400/422 responses, which trigger escalation.
func isBadRequest(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 400 || apiErr.HTTPStatusCode == 422
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 400 || reqErr.HTTPStatusCode == 422
	}
	msg := err.Error()
	return strings.Contains(msg, "status code: 400") || strings.Contains(msg, "status code: 422")
}

func toOpenAIMessages(messages []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		// The chat-completions dialect has no free-standing tool role without
		// a call id; observations travel as user turns.
		if role == types.RoleTool {
			role = types.RoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
