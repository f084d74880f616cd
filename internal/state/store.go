package state

import (
	"context"
	"errors"
)

// ErrConfigMissing is returned when the artifact a stage depends on is absent
// or cannot be parsed. Entry points treat it as a soft exit.
var ErrConfigMissing = errors.New("required stage state is missing")

const (
	DatasetKey        = "dataset"
	TrainingRunKey    = "training_run"
	ModelDetailsKey   = "model_details"
	ServiceDetailsKey = "service_details"
)

// Keys lists the artifact keys in pipeline order.
var Keys = []string{DatasetKey, TrainingRunKey, ModelDetailsKey, ServiceDetailsKey}

type Store interface {
	// Write replaces the document stored under key.
	Write(ctx context.Context, key string, doc any) error

	// Read decodes the document stored under key into dest. It returns an
	// error wrapping ErrConfigMissing when the document is absent or corrupt.
	Read(ctx context.Context, key string, dest any) error

	Exists(ctx context.Context, key string) (bool, error)
}
