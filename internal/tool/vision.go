package tool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/isocode-ai/isocode/internal/llm"
	"github.com/isocode-ai/isocode/pkg/types"
)

const (
	maxImageBytes = 10 << 20
	visionTimeout = 120 * time.Second
)

var imageMimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ViewImageTool loads a workspace image and optionally asks the vision model
// a question about it.
type ViewImageTool struct{}

func (ViewImageTool) Name() string     { return "view_image" }
func (ViewImageTool) Category() string { return CategoryVision }
func (ViewImageTool) Description() string {
	return "Load an image file; with a question, ask the vision model about it"
}
func (ViewImageTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (ViewImageTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Workspace-relative image path"},
			"question": {"type": "string", "description": "Question to ask about the image"}
		},
		"required": ["path"]
	}`)
}

func (ViewImageTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}

	mime, ok := imageMimeTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("unsupported image type: %s", filepath.Ext(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if info.Size() > maxImageBytes {
		return nil, fmt.Errorf("image too large: %d bytes", info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	question := argString(args, "question")
	if question == "" || tctx.LLM == nil {
		return map[string]any{
			"path":     path,
			"mimeType": mime,
			"bytes":    len(data),
			"note":     "image loaded; pass a question to have the vision model describe it",
		}, nil
	}

	model := tctx.VisionModel
	if model == "" {
		return nil, fmt.Errorf("no vision model configured")
	}

	answer, err := tctx.LLM.CallVision(ctx, model, question, encoded, mime, llm.Options{
		Temperature: 0.2,
		MaxTokens:   1024,
		Timeout:     visionTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("vision call: %w", err)
	}
	return map[string]any{"path": path, "answer": answer}, nil
}
