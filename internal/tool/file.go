package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/isocode-ai/isocode/internal/diff"
	"github.com/isocode-ai/isocode/pkg/types"
)

const (
	// readPageLines is the auto-pagination window for large files.
	readPageLines = 200
	// maxBatchRead caps batch_read fan-out.
	maxBatchRead = 10
	// fuzzyThreshold is the minimum similarity for a fuzzy block match.
	fuzzyThreshold = 0.85
)

// ReadFileTool reads a workspace file with pagination.
type ReadFileTool struct{}

func (ReadFileTool) Name() string        { return "read_file" }
func (ReadFileTool) Category() string    { return CategoryFile }
func (ReadFileTool) Description() string { return "Read a file; large files paginate 200 lines at a time" }
func (ReadFileTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (ReadFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Workspace-relative file path"},
			"offset": {"type": "integer", "description": "1-based line to start from"},
			"limit": {"type": "integer", "description": "Number of lines to read (default 200)"}
		},
		"required": ["path"]
	}`)
}

func (ReadFileTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	lines := strings.Split(string(data), "\n")
	total := len(lines)

	offset := argInt(args, "offset")
	if offset < 1 {
		offset = 1
	}
	limit := argInt(args, "limit")
	if limit <= 0 {
		limit = readPageLines
	}

	start := offset - 1
	if start >= total {
		return map[string]any{"content": "", "note": fmt.Sprintf("offset %d past end of %d-line file", offset, total)}, nil
	}
	end := start + limit
	if end > total {
		end = total
	}

	result := map[string]any{
		"content":    strings.Join(lines[start:end], "\n"),
		"totalLines": total,
	}
	if end < total {
		result["note"] = fmt.Sprintf(
			"showing lines %d-%d of %d; pass offset=%d and limit to read more",
			offset, end, total, end+1,
		)
	}
	return result, nil
}

// WriteFileTool creates or overwrites a workspace file.
type WriteFileTool struct{}

func (WriteFileTool) Name() string        { return "write_file" }
func (WriteFileTool) Category() string    { return CategoryFile }
func (WriteFileTool) Description() string { return "Create or overwrite a file with the given content" }
func (WriteFileTool) DefaultAction() types.PermissionAction {
	return types.ActionAsk
}

func (WriteFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Workspace-relative file path"},
			"content": {"type": "string", "description": "Full file content"}
		},
		"required": ["path", "content"]
	}`)
}

func (WriteFileTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, fmt.Errorf("missing required argument %q", "content")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, err
	}

	_, rel, _ := ResolvePath(tctx.WorkspaceRoot, path)
	return map[string]any{"written": rel, "bytes": len(content)}, nil
}

// ReplaceInFileTool performs a surgical search/replace, with a fuzzy
// fallback when the exact block is not found.
type ReplaceInFileTool struct{}

func (ReplaceInFileTool) Name() string     { return "replace_in_file" }
func (ReplaceInFileTool) Category() string { return CategoryFile }
func (ReplaceInFileTool) Description() string {
	return "Replace an exact block of text in a file; falls back to the closest matching block"
}
func (ReplaceInFileTool) DefaultAction() types.PermissionAction {
	return types.ActionAsk
}

func (ReplaceInFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Workspace-relative file path"},
			"search": {"type": "string", "description": "Block of text to find"},
			"replace": {"type": "string", "description": "Replacement text"}
		},
		"required": ["path", "search", "replace"]
	}`)
}

func (ReplaceInFileTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	search, err := requireString(args, "search")
	if err != nil {
		return nil, err
	}
	replace, _ := args["replace"].(string)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	content := string(data)

	target := search
	if !strings.Contains(content, target) {
		match, score := closestBlock(content, search)
		if score < fuzzyThreshold {
			return nil, fmt.Errorf("search block not found in %s (best fuzzy match %.0f%%)", path, score*100)
		}
		target = match
	}

	updated := strings.Replace(content, target, replace, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return nil, err
	}

	adds, dels := diff.Stats(content, updated)
	_, rel, _ := ResolvePath(tctx.WorkspaceRoot, path)
	return map[string]any{"replaced": rel, "additions": adds, "deletions": dels}, nil
}

// ApplyDiffTool applies a unified diff to a workspace file.
type ApplyDiffTool struct{}

func (ApplyDiffTool) Name() string        { return "apply_diff" }
func (ApplyDiffTool) Category() string    { return CategoryFile }
func (ApplyDiffTool) Description() string { return "Apply a unified diff to a file" }
func (ApplyDiffTool) DefaultAction() types.PermissionAction {
	return types.ActionAsk
}

func (ApplyDiffTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {"type": "string", "description": "Workspace-relative file path"},
			"diff": {"type": "string", "description": "Unified diff text"}
		},
		"required": ["filePath", "diff"]
	}`)
}

func (ApplyDiffTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	path, err := requireString(args, "filePath")
	if err != nil {
		return nil, err
	}
	diffText, err := requireString(args, "diff")
	if err != nil {
		return nil, err
	}

	original := ""
	if data, err := os.ReadFile(path); err == nil {
		original = string(data)
	}

	patched, err := diff.Apply(original, diffText)
	if err != nil {
		return nil, fmt.Errorf("apply diff to %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(patched), 0o644); err != nil {
		return nil, err
	}

	adds, dels := diff.Stats(original, patched)
	_, rel, _ := ResolvePath(tctx.WorkspaceRoot, path)
	return map[string]any{"applied": rel, "additions": adds, "deletions": dels}, nil
}

// BatchReadTool reads several files in one call.
type BatchReadTool struct{}

func (BatchReadTool) Name() string        { return "batch_read" }
func (BatchReadTool) Category() string    { return CategoryFile }
func (BatchReadTool) Description() string { return "Read up to 10 files in one call" }
func (BatchReadTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (BatchReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"paths": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Workspace-relative file paths"
			}
		},
		"required": ["paths"]
	}`)
}

func (BatchReadTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	paths := argStrings(args, "paths")
	if len(paths) == 0 {
		return nil, fmt.Errorf("missing required argument %q", "paths")
	}
	if len(paths) > maxBatchRead {
		paths = paths[:maxBatchRead]
	}

	files := make([]any, 0, len(paths))
	for _, p := range paths {
		entry := map[string]any{"path": p}
		data, err := os.ReadFile(p)
		if err != nil {
			entry["error"] = err.Error()
		} else {
			content := string(data)
			lines := strings.Count(content, "\n") + 1
			if lines > readPageLines {
				content = strings.Join(strings.SplitN(content, "\n", readPageLines+1)[:readPageLines], "\n")
				entry["note"] = fmt.Sprintf("first %d of %d lines; use read_file with offset for more", readPageLines, lines)
			}
			entry["content"] = content
		}
		files = append(files, entry)
	}
	return map[string]any{"files": files}, nil
}

// closestBlock finds the most similar same-length line block in content.
func closestBlock(content, target string) (string, float64) {
	lines := strings.Split(content, "\n")
	targetLines := strings.Split(target, "\n")
	window := len(targetLines)
	if window == 0 || window > len(lines) {
		return "", 0
	}

	best := ""
	bestScore := 0.0
	for i := 0; i <= len(lines)-window; i++ {
		block := strings.Join(lines[i:i+window], "\n")
		score := similarity(block, target)
		if score > bestScore {
			bestScore = score
			best = block
		}
	}
	return best, bestScore
}

// similarity is normalized Levenshtein similarity in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	// Length-ratio approximation for extreme inputs.
	if len(a) > 10000 || len(b) > 10000 {
		if len(a) > len(b) {
			return float64(len(b)) / float64(len(a))
		}
		return float64(len(a)) / float64(len(b))
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1 - float64(dist)/float64(maxLen)
}
