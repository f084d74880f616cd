package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalStore keeps one <key>.json file per stage under dir.
type LocalStore struct {
	dir string
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *LocalStore) Write(ctx context.Context, key string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s state: %w", key, err)
	}

	if err := os.MkdirAll(s.dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s state: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s state: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s state: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return fmt.Errorf("failed to replace %s state: %w", key, err)
	}

	slog.Info("stage state written", "key", key, "path", s.Path(key))
	return nil
}

func (s *LocalStore) Read(ctx context.Context, key string, dest any) error {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", s.Path(key), ErrConfigMissing)
		}
		return fmt.Errorf("failed to read %s state: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%s is not valid json (%v): %w", s.Path(key), err, ErrConfigMissing)
	}
	return nil
}

func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := os.Stat(s.Path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s state: %w", key, err)
	}
	return true, nil
}
