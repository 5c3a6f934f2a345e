package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestSnapshotBuild(t *testing.T) {
	root := t.TempDir()
	seed(t, root, map[string]string{
		"go.mod":                "module example.com/x\n",
		"main.go":               "package main\n",
		"internal/svc/svc.go":   "package svc\n",
		"node_modules/dep/a.js": "ignored",
		".git/HEAD":             "ignored",
		"dist/out.js":           "ignored",
		"assets/logo.png":       "binary ignored",
	})

	ix := New(root)
	snap, err := ix.Snapshot()
	require.NoError(t, err)

	var paths []string
	for _, f := range snap.Files {
		paths = append(paths, f.RelativePath)
	}
	assert.ElementsMatch(t, []string{"go.mod", "main.go", "internal/svc/svc.go"}, paths)
	assert.Equal(t, 3, snap.Total)
	assert.Contains(t, snap.Dirs, "internal/svc")
	assert.NotContains(t, snap.Dirs, "node_modules")

	// Key file excerpt captured.
	assert.Contains(t, snap.KeyFiles["go.mod"], "module example.com/x")
}

func TestSnapshotTTLCache(t *testing.T) {
	root := t.TempDir()
	seed(t, root, map[string]string{"a.go": "package a\n"})

	ix := New(root)
	snap1, err := ix.Snapshot()
	require.NoError(t, err)

	// New files are invisible until invalidation or TTL expiry.
	seed(t, root, map[string]string{"b.go": "package a\n"})
	snap2, err := ix.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snap1.Total, snap2.Total)

	ix.Invalidate()
	snap3, err := ix.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, snap3.Total)
}

func TestSearch(t *testing.T) {
	root := t.TempDir()
	seed(t, root, map[string]string{
		"billing.go": "package billing\n// ProcessInvoice handles invoices\n",
		"other.go":   "package other\n",
	})

	ix := New(root)
	results, err := ix.Search("processinvoice", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0], "billing.go:2")
}

func TestProjectMap(t *testing.T) {
	root := t.TempDir()
	seed(t, root, map[string]string{
		"go.mod":   "module example.com/proj\n",
		"cmd/m.go": "package main\n",
	})

	pm := New(root).ProjectMap()
	assert.Contains(t, pm, "2 files")
	assert.Contains(t, pm, "cmd")
	assert.Contains(t, pm, "module example.com/proj")
}

func TestGatherRelevance(t *testing.T) {
	root := t.TempDir()
	seed(t, root, map[string]string{
		"auth/login.go": "package auth\nfunc Login() {}\n",
		"readme.txt":    "nothing related\n",
	})

	ix := New(root)
	out := ix.GatherRelevance("fix the login flow in auth")
	assert.Contains(t, out, "auth/login.go")
	assert.LessOrEqual(t, len(out), maxRelevanceChars+100)

	assert.Empty(t, ix.GatherRelevance("zzz qqq vvv"))
}

func TestWatcherInvalidates(t *testing.T) {
	root := t.TempDir()
	seed(t, root, map[string]string{"a.go": "package a\n"})

	ix := New(root)
	_, err := ix.Snapshot()
	require.NoError(t, err)

	w, err := Watch(root, ix)
	require.NoError(t, err)
	defer w.Close()

	seed(t, root, map[string]string{"b.go": "package a\n"})

	assert.Eventually(t, func() bool {
		snap, err := ix.Snapshot()
		return err == nil && snap.Total == 2
	}, 3*time.Second, 50*time.Millisecond)
}
