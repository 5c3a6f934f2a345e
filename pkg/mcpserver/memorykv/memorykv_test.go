package memorykv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVRoundTrip(t *testing.T) {
	kv := NewKV(filepath.Join(t.TempDir(), "store.json"))

	_, found, err := kv.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Set("greeting", "hello"))
	v, found, err := kv.Get("greeting")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", v)

	require.NoError(t, kv.Set("other", "x"))
	keys, err := kv.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"greeting", "other"}, keys)
}

func TestKVPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, NewKV(path).Set("k", "v"))

	v, found, err := NewKV(path).Get("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
}

func TestNewServer(t *testing.T) {
	s := NewServer(filepath.Join(t.TempDir(), "store.json"))
	assert.NotNil(t, s)
}
