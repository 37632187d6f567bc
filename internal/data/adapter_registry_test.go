package data

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/qlora-pipeline/controlplane/internal/errors"
)

func writeRegistry(t *testing.T, doc string) *AdapterRegistryFile {
	t.Helper()
	p := filepath.Join(t.TempDir(), "adapters.json")
	require.NoError(t, os.WriteFile(p, []byte(doc), 0o600))
	return NewAdapterRegistryFile(p)
}

func TestAdapterRegistryFile_ListMissingFile(t *testing.T) {
	r := NewAdapterRegistryFile(filepath.Join(t.TempDir(), "adapters.json"))
	got, err := r.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAdapterRegistryFile_ListSkipsMalformedEntries(t *testing.T) {
	r := writeRegistry(t, `{"adapters": [{"name": "a", "path": "output/a"}, "junk", 3]}`)
	got, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "output/a", got[0].Path())
}

func TestAdapterRegistryFile_InvalidJSON(t *testing.T) {
	r := writeRegistry(t, `{"adapters": [`)
	_, err := r.List(context.Background())
	require.True(t, apperrors.IsInternal(err))
	assert.Contains(t, err.Error(), "Failed to parse adapters.json")

	_, err = r.Remove(context.Background(), "output/a")
	require.True(t, apperrors.IsInternal(err))
}

func TestAdapterRegistryFile_RemovePreservesOtherFields(t *testing.T) {
	r := writeRegistry(t, `{
		"base_model": "org/base",
		"version": 2,
		"adapters": [
			{"name": "a", "path": "output/a", "metrics": {"loss": 0.4}},
			{"name": "b", "path": "output/b", "description": "keep me"}
		]
	}`)

	removed, err := r.Remove(context.Background(), "output/a")
	require.NoError(t, err)
	assert.Equal(t, "a", removed.Name())
	assert.Equal(t, map[string]any{"loss": 0.4}, removed["metrics"])

	raw, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "org/base", doc["base_model"])
	assert.EqualValues(t, 2, doc["version"])
	assert.Equal(t, []any{
		map[string]any{"name": "b", "path": "output/b", "description": "keep me"},
	}, doc["adapters"])

	info, err := os.Stat(r.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(r.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestAdapterRegistryFile_RemoveNotFound(t *testing.T) {
	r := writeRegistry(t, `{"adapters": [{"name": "a", "path": "output/a"}]}`)
	_, err := r.Remove(context.Background(), "output/b")
	require.True(t, apperrors.IsNotFound(err))

	got, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAdapterRegistryFile_RemoveWithoutRegistry(t *testing.T) {
	r := NewAdapterRegistryFile(filepath.Join(t.TempDir(), "adapters.json"))
	_, err := r.Remove(context.Background(), "output/a")
	require.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, "No adapter registry found", err.Error())
}

func TestAdapterRegistryFile_CanceledContext(t *testing.T) {
	r := writeRegistry(t, `{"adapters": []}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.List(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
