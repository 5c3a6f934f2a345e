package tool

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathInside(t *testing.T) {
	root := t.TempDir()

	abs, rel, err := ResolvePath(root, "src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src", "a.ts"), abs)
	assert.Equal(t, "src/a.ts", rel)
}

func TestResolvePathEscapes(t *testing.T) {
	root := t.TempDir()

	for _, p := range []string{
		"../../etc/passwd",
		"../sibling",
		"/etc/passwd",
		"src/../../outside",
	} {
		_, _, err := ResolvePath(root, p)
		assert.Error(t, err, "path %q must be rejected", p)
	}
}

func TestResolvePathIdempotent(t *testing.T) {
	root := t.TempDir()

	abs, _, err := ResolvePath(root, "dir/file.go")
	require.NoError(t, err)

	abs2, rel2, err := ResolvePath(root, abs)
	require.NoError(t, err)
	assert.Equal(t, abs, abs2)
	assert.Equal(t, "dir/file.go", rel2)
}

func TestResolvePathRootItself(t *testing.T) {
	root := t.TempDir()
	abs, rel, err := ResolvePath(root, ".")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(root), abs)
	assert.Equal(t, ".", rel)
}

func TestResolvePathEmpty(t *testing.T) {
	_, _, err := ResolvePath(t.TempDir(), "")
	assert.Error(t, err)

	_, _, err = ResolvePath("", "x")
	assert.Error(t, err)
}
