package tool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocode-ai/isocode/internal/permission"
	"github.com/isocode-ai/isocode/internal/storage"
	"github.com/isocode-ai/isocode/pkg/types"
)

func testDispatcher(t *testing.T) (*Dispatcher, *Context) {
	t.Helper()
	root := t.TempDir()
	d := NewDispatcher(
		DefaultRegistry(NewTaskLists(), NewBrowser()),
		permission.NewPolicy(nil),
	)
	tctx := &Context{
		WorkspaceRoot: root,
		SessionID:     "test",
		AutoMode:      true,
		Store:         storage.New(root),
	}
	return d, tctx
}

func TestDispatcherUnknownTool(t *testing.T) {
	d, tctx := testDispatcher(t)

	result := d.Run(context.Background(), "no_such_tool", map[string]any{}, tctx)
	assert.Contains(t, result["error"], `unknown tool "no_such_tool"`)
	assert.Contains(t, result["hint"], "read_file")
	assert.Contains(t, result["hint"], "run_command")
}

func TestDispatcherPolicyNever(t *testing.T) {
	d, tctx := testDispatcher(t)
	d.policy.Set("run_command", types.ActionNever)

	result := d.Run(context.Background(), "run_command", map[string]any{"command": "true"}, tctx)
	assert.Contains(t, result["error"], "disabled by policy")
}

func TestDispatcherPolicyAskRequiresAutoMode(t *testing.T) {
	d, tctx := testDispatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(tctx.WorkspaceRoot, "f.txt"), []byte("x"), 0o644))
	args := map[string]any{"path": "f.txt", "content": "y"}

	tctx.AutoMode = false
	result := d.Run(context.Background(), "write_file", args, tctx)
	assert.Contains(t, result["error"], "requires approval")

	tctx.AutoMode = true
	result = d.Run(context.Background(), "write_file", map[string]any{"path": "f.txt", "content": "y"}, tctx)
	assert.Nil(t, result["error"])
}

func TestDispatcherConfinesPaths(t *testing.T) {
	d, tctx := testDispatcher(t)

	result := d.Run(context.Background(), "write_file", map[string]any{
		"path":    "../../etc/passwd",
		"content": "pwned",
	}, tctx)
	assert.Contains(t, result["error"], "escapes the workspace root")

	// Nothing outside the workspace was touched and nothing inside created.
	entries, err := os.ReadDir(tctx.WorkspaceRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDispatcherENOENTHint(t *testing.T) {
	d, tctx := testDispatcher(t)

	result := d.Run(context.Background(), "read_file", map[string]any{"path": "missing.go"}, tctx)
	assert.Contains(t, result["error"], "file not found")
	assert.Contains(t, result["hint"], "list_files")
}

func TestObservationTruncates(t *testing.T) {
	obs := Observation(map[string]any{"ok": true})
	assert.Contains(t, obs, `"ok":true`)
}

func TestRegistryCatalog(t *testing.T) {
	r := DefaultRegistry(NewTaskLists(), NewBrowser())
	catalog := r.Catalog()

	assert.Contains(t, catalog, "## file tools")
	assert.Contains(t, catalog, "## shell tools")
	assert.Contains(t, catalog, "read_file(path, limit?, offset?)")
	assert.Contains(t, catalog, "write_file(content, path)")
	assert.Contains(t, catalog, "git_commit(message)")
}
