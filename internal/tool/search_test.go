package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocode-ai/isocode/internal/index"
)

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "a.go", "package a\n")
	writeWorkspaceFile(t, root, "sub/b.go", "package b\n")

	result, err := ListFilesTool{}.Execute(context.Background(), map[string]any{}, &Context{WorkspaceRoot: root})
	require.NoError(t, err)

	files := result["files"].([]any)
	assert.Contains(t, files, "a.go")
	assert.Contains(t, files, "sub/")
}

func TestGlob(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "x.go", "")
	writeWorkspaceFile(t, root, "sub/y.go", "")
	writeWorkspaceFile(t, root, "sub/z.txt", "")

	result, err := GlobTool{}.Execute(context.Background(), map[string]any{"pattern": "**/*.go"}, &Context{WorkspaceRoot: root})
	require.NoError(t, err)

	files := result["files"].([]any)
	assert.ElementsMatch(t, []any{"x.go", "sub/y.go"}, files)
}

func TestGlobBadPattern(t *testing.T) {
	root := t.TempDir()
	_, err := GlobTool{}.Execute(context.Background(), map[string]any{"pattern": "[unclosed"}, &Context{WorkspaceRoot: root})
	assert.Error(t, err)
}

func TestGrep(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "main.go", "package main\n\nfunc TargetFunc() {}\n")
	writeWorkspaceFile(t, root, "other.go", "package main\n")

	result, err := GrepTool{}.Execute(context.Background(), map[string]any{
		"pattern": `func Target\w+`,
	}, &Context{WorkspaceRoot: root})
	require.NoError(t, err)

	matches := result["matches"].([]any)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0], "main.go:3")
}

func TestGrepBadRegexp(t *testing.T) {
	root := t.TempDir()
	_, err := GrepTool{}.Execute(context.Background(), map[string]any{"pattern": "("}, &Context{WorkspaceRoot: root})
	assert.ErrorContains(t, err, "bad regular expression")
}

func TestGrepIncludeFilter(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "a.go", "needle\n")
	writeWorkspaceFile(t, root, "a.txt", "needle\n")

	result, err := GrepTool{}.Execute(context.Background(), map[string]any{
		"pattern": "needle", "include": "*.go",
	}, &Context{WorkspaceRoot: root})
	require.NoError(t, err)
	assert.Len(t, result["matches"].([]any), 1)
}

func TestCodebaseSearch(t *testing.T) {
	root := t.TempDir()
	writeWorkspaceFile(t, root, "svc.go", "package svc\n// handles billing logic\n")

	result, err := CodebaseSearchTool{}.Execute(context.Background(), map[string]any{
		"query": "billing",
	}, &Context{WorkspaceRoot: root, Index: index.New(root)})
	require.NoError(t, err)

	matches := result["matches"].([]any)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0], "svc.go:2")
}
