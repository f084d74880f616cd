package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// MirroredStore writes every document to both stores and reads from the
// primary, falling back to the mirror when the primary has no copy. This lets
// a stage restart on a machine that never ran its predecessor.
type MirroredStore struct {
	primary Store
	mirror  Store
}

var _ Store = (*MirroredStore)(nil)

func NewMirroredStore(primary, mirror Store) *MirroredStore {
	return &MirroredStore{primary: primary, mirror: mirror}
}

func (s *MirroredStore) Write(ctx context.Context, key string, doc any) error {
	if err := s.primary.Write(ctx, key, doc); err != nil {
		return err
	}
	if err := s.mirror.Write(ctx, key, doc); err != nil {
		return fmt.Errorf("failed to mirror %s state: %w", key, err)
	}
	return nil
}

func (s *MirroredStore) Read(ctx context.Context, key string, dest any) error {
	err := s.primary.Read(ctx, key, dest)
	if err == nil || !errors.Is(err, ErrConfigMissing) {
		return err
	}

	slog.Info("stage state missing locally, reading mirror", "key", key)
	if mirrorErr := s.mirror.Read(ctx, key, dest); mirrorErr != nil {
		return mirrorErr
	}
	return nil
}

func (s *MirroredStore) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.primary.Exists(ctx, key)
	if err != nil || ok {
		return ok, err
	}
	return s.mirror.Exists(ctx, key)
}
