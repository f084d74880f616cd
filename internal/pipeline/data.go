package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"mlops-pipeline/internal/config"
	"mlops-pipeline/internal/platform"
	"mlops-pipeline/internal/state"
	"mlops-pipeline/internal/storage"
)

// DataStage materializes the source dataset locally and registers it.
type DataStage struct {
	cfg      *config.PipelineConfig
	datasets platform.Datasets
	objects  storage.ObjectStore
	store    state.Store
}

func NewDataStage(cfg *config.PipelineConfig, datasets platform.Datasets, objects storage.ObjectStore, store state.Store) *DataStage {
	return &DataStage{cfg: cfg, datasets: datasets, objects: objects, store: store}
}

func (s *DataStage) Name() string {
	return DataStageName
}

func (s *DataStage) Run(ctx context.Context) (Result, error) {
	if err := s.cfg.CheckDataFolder(); err != nil {
		return Result{}, err
	}
	dest, err := s.cfg.DataFolderPath()
	if err != nil {
		return Result{}, err
	}

	bucket, prefix := s.cfg.DatasetSourceBucket, s.cfg.DatasetSourcePrefix
	slog.Info("materializing dataset", "source", s.objects.URI(bucket, prefix), "dest", dest)
	if err := s.objects.DownloadDir(ctx, bucket, prefix, dest, true); err != nil {
		return Result{}, fmt.Errorf("error materializing dataset %s: %w", s.cfg.DatasetName, err)
	}

	version, err := s.datasets.Register(ctx, platform.DatasetRegistration{
		Name:             s.cfg.DatasetName,
		Description:      s.cfg.DatasetDescription,
		URI:              s.objects.URI(bucket, prefix),
		CreateNewVersion: s.cfg.DatasetNewVersion,
	})
	if err != nil {
		return Result{}, fmt.Errorf("error registering dataset %s: %w", s.cfg.DatasetName, err)
	}
	slog.Info("dataset registered", "dataset", version.Name, "version", version.Version, "new_version", s.cfg.DatasetNewVersion)

	artifact := DatasetArtifact{
		Name:        s.cfg.DatasetName,
		Description: s.cfg.DatasetDescription,
		Version:     version.Version,
		URI:         version.URI,
	}
	if err := s.store.Write(ctx, state.DatasetKey, artifact); err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeCompleted, Artifact: artifact}, nil
}
