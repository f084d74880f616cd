package cmd

import (
	"context"
	"errors"
	"fmt"
	"mlops-pipeline/internal/config"
	"mlops-pipeline/internal/messaging"
	"mlops-pipeline/internal/platform"
	"mlops-pipeline/internal/state"
	"mlops-pipeline/internal/storage"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 0, ExitCode(fmt.Errorf("reading dataset: %w", state.ErrConfigMissing)))
	assert.Equal(t, 1, ExitCode(fmt.Errorf("submitting job: %w", platform.ErrOperationFailed)))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
}

func TestNewStateStore(t *testing.T) {
	objects, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.PipelineConfig{StateDir: t.TempDir(), StatePrefix: "state"}
	store, err := NewStateStore(context.Background(), cfg, objects)
	require.NoError(t, err)
	assert.IsType(t, &state.LocalStore{}, store)

	cfg.StateBucket = "pipeline-state"
	store, err = NewStateStore(context.Background(), cfg, objects)
	require.NoError(t, err)
	assert.IsType(t, &state.MirroredStore{}, store)
}

func TestNewObjectStoreDefaultsToLocal(t *testing.T) {
	cfg := &config.PipelineConfig{ObjectStore: config.ObjectStoreLocal, LocalObjectStoreDir: t.TempDir()}
	objects, err := NewObjectStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalObjectStore{}, objects)
}

func TestOptionalBookkeeping(t *testing.T) {
	l, err := NewLedger("")
	require.NoError(t, err)
	assert.Nil(t, l)

	publisher, err := NewPublisher("")
	require.NoError(t, err)
	assert.IsType(t, messaging.DiscardPublisher{}, publisher)
}
