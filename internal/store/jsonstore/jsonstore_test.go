package jsonstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRoundTrip(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "nested", "doc.json"), Perm: 0o600}

	var v map[string]int
	ok, err := f.Load(&v)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.Save(map[string]int{"a": 1}))
	info, err := os.Stat(f.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	ok, err = f.Load(&v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v["a"])

	require.NoError(t, f.Remove())
	require.NoError(t, f.Remove())
}

func TestFileLoadCorrupt(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "doc.json")}
	require.NoError(t, os.WriteFile(f.Path, []byte("{"), 0o644))
	var v map[string]int
	_, err := f.Load(&v)
	assert.ErrorContains(t, err, "json unmarshal")
}

func TestFileSaveTightensExistingMode(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "doc.json"), Perm: 0o600}
	require.NoError(t, os.WriteFile(f.Path, []byte("{}"), 0o644))

	require.NoError(t, f.Save(map[string]int{"a": 1}))
	info, err := os.Stat(f.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
