package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mlops-pipeline/internal/storage"
	"path"
)

// BucketStore keeps stage documents as <prefix>/<key>.json objects in a bucket.
type BucketStore struct {
	store  storage.ObjectStore
	bucket string
	prefix string
}

var _ Store = (*BucketStore)(nil)

func NewBucketStore(store storage.ObjectStore, bucket, prefix string) *BucketStore {
	return &BucketStore{store: store, bucket: bucket, prefix: prefix}
}

func (s *BucketStore) objectKey(key string) string {
	return path.Join(s.prefix, key+".json")
}

func (s *BucketStore) Write(ctx context.Context, key string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s state: %w", key, err)
	}
	if err := s.store.PutObject(ctx, s.bucket, s.objectKey(key), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to upload %s state: %w", key, err)
	}
	return nil
}

func (s *BucketStore) Read(ctx context.Context, key string, dest any) error {
	data, err := s.store.GetObject(ctx, s.bucket, s.objectKey(key))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("%s: %w", s.store.URI(s.bucket, s.objectKey(key)), ErrConfigMissing)
		}
		return fmt.Errorf("failed to download %s state: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%s is not valid json (%v): %w", s.store.URI(s.bucket, s.objectKey(key)), err, ErrConfigMissing)
	}
	return nil
}

func (s *BucketStore) Exists(ctx context.Context, key string) (bool, error) {
	objects, err := s.store.ListObjects(ctx, s.bucket, s.objectKey(key))
	if err != nil {
		return false, fmt.Errorf("failed to check %s state: %w", key, err)
	}
	for _, obj := range objects {
		if obj.Name == s.objectKey(key) {
			return true, nil
		}
	}
	return false, nil
}
