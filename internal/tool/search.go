package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/isocode-ai/isocode/pkg/types"
)

const (
	maxListEntries  = 200
	maxGlobMatches  = 200
	maxGrepMatches  = 100
	maxGrepFileSize = 1 << 20
)

// ListFilesTool lists a directory.
type ListFilesTool struct{}

func (ListFilesTool) Name() string        { return "list_files" }
func (ListFilesTool) Category() string    { return CategorySearch }
func (ListFilesTool) Description() string { return "List the entries of a workspace directory" }
func (ListFilesTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (ListFilesTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Directory to list (default workspace root)"}
		}
	}`)
}

func (ListFilesTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	dir := argString(args, "path")
	if dir == "" {
		dir = tctx.WorkspaceRoot
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []any
	for _, e := range entries {
		if len(files) >= maxListEntries {
			break
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		files = append(files, name)
	}
	return map[string]any{"files": files, "total": len(entries)}, nil
}

// GlobTool matches files by doublestar pattern.
type GlobTool struct{}

func (GlobTool) Name() string        { return "glob" }
func (GlobTool) Category() string    { return CategorySearch }
func (GlobTool) Description() string { return "Find files matching a glob pattern like **/*.go" }
func (GlobTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (GlobTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "Glob pattern, ** supported"}
		},
		"required": ["pattern"]
	}`)
}

func (GlobTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	pattern, err := requireString(args, "pattern")
	if err != nil {
		return nil, err
	}

	matches, err := doublestar.Glob(os.DirFS(tctx.WorkspaceRoot), pattern)
	if err != nil {
		return nil, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
	}

	var files []any
	for _, m := range matches {
		if skipIndexedPath(m) {
			continue
		}
		files = append(files, m)
		if len(files) >= maxGlobMatches {
			break
		}
	}
	return map[string]any{"files": files, "total": len(files)}, nil
}

// GrepTool searches file contents with a regular expression.
type GrepTool struct{}

func (GrepTool) Name() string        { return "grep" }
func (GrepTool) Category() string    { return CategorySearch }
func (GrepTool) Description() string { return "Search file contents with a regular expression" }
func (GrepTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (GrepTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "Go regular expression"},
			"path": {"type": "string", "description": "Directory to search (default workspace root)"},
			"include": {"type": "string", "description": "Only files matching this glob, e.g. *.go"}
		},
		"required": ["pattern"]
	}`)
}

func (GrepTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	pattern, err := requireString(args, "pattern")
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad regular expression %q: %w", pattern, err)
	}

	root := argString(args, "path")
	if root == "" {
		root = tctx.WorkspaceRoot
	}
	include := argString(args, "include")

	var matches []any
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || len(matches) >= maxGrepMatches {
			if len(matches) >= maxGrepMatches {
				return filepath.SkipAll
			}
			return nil
		}
		rel, _ := filepath.Rel(tctx.WorkspaceRoot, path)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if skipIndexedPath(rel) && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if include != "" {
			if ok, _ := doublestar.Match(include, filepath.Base(path)); !ok {
				return nil
			}
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxGrepFileSize {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				matches = append(matches, fmt.Sprintf("%s:%d: %s", rel, i+1, strings.TrimSpace(line)))
				if len(matches) >= maxGrepMatches {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"matches": matches, "total": len(matches)}, nil
}

// CodebaseSearchTool searches via the shared file index.
type CodebaseSearchTool struct{}

func (CodebaseSearchTool) Name() string     { return "codebase_search" }
func (CodebaseSearchTool) Category() string { return CategorySearch }
func (CodebaseSearchTool) Description() string {
	return "Search the indexed codebase for a phrase; faster than grep for plain text"
}
func (CodebaseSearchTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (CodebaseSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Text to look for"}
		},
		"required": ["query"]
	}`)
}

func (CodebaseSearchTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}
	if tctx.Index == nil {
		return nil, fmt.Errorf("no file index available")
	}

	results, err := tctx.Index.Search(query, 30)
	if err != nil {
		return nil, err
	}
	matches := make([]any, len(results))
	for i, r := range results {
		matches[i] = r
	}
	return map[string]any{"matches": matches, "total": len(matches)}, nil
}

// skipIndexedPath mirrors the index ignore set for ad-hoc walks.
func skipIndexedPath(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		switch part {
		case "node_modules", ".git", "dist", "out", "build", "vendor", "target", "__pycache__":
			return true
		}
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
