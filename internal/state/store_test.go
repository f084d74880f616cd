package state_test

import (
	"context"
	"mlops-pipeline/internal/state"
	"mlops-pipeline/internal/storage"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type datasetDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func TestLocalStoreWriteRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	store := state.NewLocalStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, state.DatasetKey, datasetDoc{Name: "mnist", Description: "digits"}))

	raw, err := os.ReadFile(filepath.Join(dir, "dataset.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"mnist","description":"digits"}`, string(raw))

	var doc datasetDoc
	require.NoError(t, store.Read(ctx, state.DatasetKey, &doc))
	assert.Equal(t, datasetDoc{Name: "mnist", Description: "digits"}, doc)

	ok, err := store.Exists(ctx, state.DatasetKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalStoreOverwrites(t *testing.T) {
	store := state.NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, state.DatasetKey, datasetDoc{Name: "v1"}))
	require.NoError(t, store.Write(ctx, state.DatasetKey, datasetDoc{Name: "v2"}))

	var doc datasetDoc
	require.NoError(t, store.Read(ctx, state.DatasetKey, &doc))
	assert.Equal(t, "v2", doc.Name)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStoreMissing(t *testing.T) {
	store := state.NewLocalStore(t.TempDir())

	var doc datasetDoc
	err := store.Read(context.Background(), state.TrainingRunKey, &doc)
	assert.ErrorIs(t, err, state.ErrConfigMissing)

	ok, err := store.Exists(context.Background(), state.TrainingRunKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "training_run.json"), []byte("{not json"), 0o644))

	var doc datasetDoc
	err := state.NewLocalStore(dir).Read(context.Background(), state.TrainingRunKey, &doc)
	assert.ErrorIs(t, err, state.ErrConfigMissing)
}

func TestBucketStore(t *testing.T) {
	objects, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	store := state.NewBucketStore(objects, "state-bucket", "runs/main")
	ctx := context.Background()

	var doc datasetDoc
	assert.ErrorIs(t, store.Read(ctx, state.DatasetKey, &doc), state.ErrConfigMissing)

	require.NoError(t, store.Write(ctx, state.DatasetKey, datasetDoc{Name: "mnist"}))
	require.NoError(t, store.Read(ctx, state.DatasetKey, &doc))
	assert.Equal(t, "mnist", doc.Name)

	ok, err := store.Exists(ctx, state.DatasetKey)
	require.NoError(t, err)
	assert.True(t, ok)

	raw, err := objects.GetObject(ctx, "state-bucket", "runs/main/dataset.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"mnist","description":""}`, string(raw))
}

func TestMirroredStoreFallsBackToMirror(t *testing.T) {
	objects, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	mirror := state.NewBucketStore(objects, "state-bucket", "state")
	ctx := context.Background()

	require.NoError(t, mirror.Write(ctx, state.DatasetKey, datasetDoc{Name: "from-mirror"}))

	store := state.NewMirroredStore(state.NewLocalStore(t.TempDir()), mirror)

	var doc datasetDoc
	require.NoError(t, store.Read(ctx, state.DatasetKey, &doc))
	assert.Equal(t, "from-mirror", doc.Name)

	assert.ErrorIs(t, store.Read(ctx, state.TrainingRunKey, &doc), state.ErrConfigMissing)
}

func TestMirroredStoreWritesBoth(t *testing.T) {
	objects, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	local := state.NewLocalStore(t.TempDir())
	mirror := state.NewBucketStore(objects, "state-bucket", "state")
	ctx := context.Background()

	require.NoError(t, state.NewMirroredStore(local, mirror).Write(ctx, state.DatasetKey, datasetDoc{Name: "both"}))

	for _, store := range []state.Store{local, mirror} {
		ok, err := store.Exists(ctx, state.DatasetKey)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
