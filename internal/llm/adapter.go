package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/isocode-ai/isocode/internal/logging"
	"github.com/isocode-ai/isocode/pkg/types"
)

// LocalProvider is the provider id that gets the native-endpoint fallback.
const LocalProvider = "local"

// Adapter implements Client over the configured provider.
type Adapter struct {
	provider string
	baseURL  string
	apiKey   string
	httpc    *http.Client

	compat *compatClient
	native *nativeClient
}

// New creates an adapter for the given provider settings.
func New(settings types.Settings) *Adapter {
	base := strings.TrimRight(settings.APIBase, "/")
	httpc := &http.Client{}
	return &Adapter{
		provider: settings.Provider,
		baseURL:  base,
		apiKey:   settings.APIKey,
		httpc:    httpc,
		compat:   newCompatClient(base, settings.APIKey),
		native:   newNativeClient(base, httpc),
	}
}

// Call issues a completion request. For the local provider the
// chat-completions dialect is tried first; an empty or failed result falls
// back to the native chat endpoint.
func (a *Adapter) Call(ctx context.Context, model string, messages []types.Message, opts Options) (*Response, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	resp, err := a.compat.call(ctx, model, messages, opts)
	if err == nil && (resp.Content != "" || len(resp.ToolCalls) > 0) {
		return resp, nil
	}
	if err != nil {
		if nf := a.asNotFound(model, err); nf != nil {
			return nil, nf
		}
		if a.provider != LocalProvider {
			return nil, err
		}
		logging.Debug().Err(err).Str("model", model).Msg("chat-completions failed, trying native endpoint")
	}

	if a.provider != LocalProvider {
		if resp != nil {
			return resp, nil
		}
		return nil, err
	}

	nresp, nerr := a.native.call(ctx, model, messages, opts)
	if nerr != nil {
		if nf := a.asNotFound(model, nerr); nf != nil {
			return nil, nf
		}
		if err != nil {
			return nil, fmt.Errorf("chat-completions: %v; native: %w", err, nerr)
		}
		return nil, nerr
	}
	return nresp, nil
}

// Stream yields string deltas through onDelta.
func (a *Adapter) Stream(ctx context.Context, model string, messages []types.Message, opts Options, onDelta func(string)) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	err := a.compat.stream(ctx, model, messages, opts, onDelta)
	if err == nil {
		return nil
	}
	if nf := a.asNotFound(model, err); nf != nil {
		return nf
	}
	if a.provider != LocalProvider {
		return err
	}

	logging.Debug().Err(err).Str("model", model).Msg("chat-completions stream failed, trying native endpoint")
	if nerr := a.native.stream(ctx, model, messages, opts, onDelta); nerr != nil {
		if nf := a.asNotFound(model, nerr); nf != nil {
			return nf
		}
		return fmt.Errorf("chat-completions: %v; native: %w", err, nerr)
	}
	return nil
}

// CallVision sends a multimodal prompt with one inline image.
func (a *Adapter) CallVision(ctx context.Context, model, prompt, imageBase64, mimeType string, opts Options) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if a.provider == LocalProvider {
		if out, err := a.native.callVision(ctx, model, prompt, imageBase64, opts); err == nil {
			return out, nil
		}
	}
	return a.compat.callVision(ctx, model, prompt, imageBase64, mimeType, opts)
}

// ListModels enumerates the provider's models, preferring the native tag
// endpoint and falling back to the chat-completions models endpoint.
func (a *Adapter) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	if a.provider == LocalProvider {
		if models, err := a.native.listModels(ctx); err == nil {
			return models, nil
		}
	}
	return a.compat.listModels(ctx)
}

// Health probes the provider.
func (a *Adapter) Health(ctx context.Context) types.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := a.ListModels(ctx); err != nil {
		return types.HealthStatus{OK: false, Provider: a.provider, Error: healthHint(a.provider, err)}
	}
	return types.HealthStatus{OK: true, Provider: a.provider}
}

// asNotFound converts a provider error naming a missing model into a
// NotFoundError with a remediation hint.
func (a *Adapter) asNotFound(model string, err error) *NotFoundError {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "not found") && !strings.Contains(msg, "does not exist") {
		return nil
	}
	hint := "Check the model id in your provider dashboard."
	if a.provider == LocalProvider {
		hint = fmt.Sprintf("Pull it first, e.g.: ollama pull %s", model)
	}
	return &NotFoundError{Model: model, Hint: hint}
}

// healthHint adds a deterministic remediation hint to a health error.
func healthHint(provider string, err error) string {
	msg := err.Error()
	if strings.Contains(msg, "connection refused") {
		if provider == LocalProvider {
			return msg + " (is the local model server running? try: ollama serve)"
		}
		return msg + " (is the API base URL reachable?)"
	}
	return msg
}
