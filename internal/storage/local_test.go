package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestObjectStore(t *testing.T) (*LocalObjectStore, string) {
	t.Helper()
	dir := t.TempDir()
	objectStore, err := NewLocalObjectStore(dir)
	require.NoError(t, err)
	return objectStore, dir
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
		require.NoError(t, os.WriteFile(path, []byte(content), os.ModePerm))
	}
}

func TestLocalObjectStore_PutGetObject(t *testing.T) {
	objectStore, baseDir := setupTestObjectStore(t)

	content := []byte("Test content")
	err := objectStore.PutObject(context.Background(), "test-bucket", "dir/test-file.txt", bytes.NewReader(content))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(baseDir, "test-bucket", "dir", "test-file.txt"))
	require.NoError(t, err)
	assert.Equal(t, content, data)

	data, err = objectStore.GetObject(context.Background(), "test-bucket", "dir/test-file.txt")
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestLocalObjectStore_GetMissingObject(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)

	_, err := objectStore.GetObject(context.Background(), "test-bucket", "missing.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalObjectStore_ListObjects(t *testing.T) {
	objectStore, baseDir := setupTestObjectStore(t)
	writeFiles(t, filepath.Join(baseDir, "test-bucket"), map[string]string{
		"mnist/train.gz":  "a",
		"mnist/test.gz":   "bb",
		"other/file3.txt": "c",
	})

	objects, err := objectStore.ListObjects(context.Background(), "test-bucket", "mnist/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []Object{{Name: "mnist/train.gz", Size: 1}, {Name: "mnist/test.gz", Size: 2}}, objects)

	objects, err = objectStore.ListObjects(context.Background(), "missing-bucket", "")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestLocalObjectStore_DownloadDirOverwrites(t *testing.T) {
	objectStore, baseDir := setupTestObjectStore(t)
	writeFiles(t, filepath.Join(baseDir, "datasets", "mnist"), map[string]string{
		"train.gz":       "train",
		"nested/test.gz": "test",
	})

	dest := filepath.Join(t.TempDir(), "data")
	writeFiles(t, dest, map[string]string{"unrelated.txt": "keep", "train.gz": "old content"})

	require.NoError(t, objectStore.DownloadDir(context.Background(), "datasets", "mnist", dest, true))

	data, err := os.ReadFile(filepath.Join(dest, "nested", "test.gz"))
	require.NoError(t, err)
	assert.Equal(t, "test", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "train.gz"))
	require.NoError(t, err)
	assert.Equal(t, "train", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "unrelated.txt"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))

	// a second run over populated content is safe
	require.NoError(t, objectStore.DownloadDir(context.Background(), "datasets", "mnist", dest, true))
	assert.FileExists(t, filepath.Join(dest, "train.gz"))
}

func TestLocalObjectStore_DownloadDirNoOverwrite(t *testing.T) {
	objectStore, baseDir := setupTestObjectStore(t)
	writeFiles(t, filepath.Join(baseDir, "datasets", "mnist"), map[string]string{"train.gz": "train"})

	dest := t.TempDir()
	err := objectStore.DownloadDir(context.Background(), "datasets", "mnist", dest, false)
	assert.Error(t, err)
}

func TestLocalObjectStore_UploadDir(t *testing.T) {
	objectStore, baseDir := setupTestObjectStore(t)

	src := t.TempDir()
	writeFiles(t, src, map[string]string{"train.py": "print(1)", "score.py": "print(2)"})

	require.NoError(t, objectStore.UploadDir(context.Background(), "snapshots", "run-1", src))

	data, err := os.ReadFile(filepath.Join(baseDir, "snapshots", "run-1", "score.py"))
	require.NoError(t, err)
	assert.Equal(t, "print(2)", string(data))
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(baseDir, "snapshots", "run-1")), objectStore.URI("snapshots", "run-1"))
}
