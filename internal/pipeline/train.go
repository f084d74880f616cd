package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mlops-pipeline/internal/config"
	"mlops-pipeline/internal/platform"
	"mlops-pipeline/internal/state"
	"mlops-pipeline/internal/storage"
	"path"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

const condaPythonVersion = "python=3.8"

// TrainStage provisions compute, registers the training environment, and runs
// the training script against the registered dataset.
type TrainStage struct {
	cfg      *config.PipelineConfig
	platform platform.Platform
	objects  storage.ObjectStore
	store    state.Store
}

func NewTrainStage(cfg *config.PipelineConfig, p platform.Platform, objects storage.ObjectStore, store state.Store) *TrainStage {
	return &TrainStage{cfg: cfg, platform: p, objects: objects, store: store}
}

func (s *TrainStage) Name() string {
	return TrainStageName
}

func (s *TrainStage) Run(ctx context.Context) (Result, error) {
	var dataset DatasetArtifact
	if err := s.store.Read(ctx, state.DatasetKey, &dataset); err != nil {
		return Result{}, err
	}
	slog.Info("using dataset", "dataset", dataset.Name, "version", dataset.Version)

	if _, err := s.prepareCompute(ctx); err != nil {
		return Result{}, err
	}

	env, err := s.prepareEnvironment(ctx)
	if err != nil {
		return Result{}, err
	}

	snapshotURI, err := s.uploadSnapshot(ctx)
	if err != nil {
		return Result{}, err
	}

	op, err := s.platform.Jobs.Submit(ctx, s.jobSpec(dataset, env.Ref(), snapshotURI))
	if err != nil {
		return Result{}, fmt.Errorf("error submitting training run: %w", err)
	}

	run, err := op.Wait(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("error waiting for training run %s: %w", op.ID(), err)
	}
	if run.Status != platform.RunCompleted {
		slog.Warn("training run did not complete", "run_id", run.RunID, "status", run.Status)
	}

	metrics, err := s.platform.Jobs.Metrics(ctx, s.cfg.ExperimentName, run.RunID)
	switch {
	case errors.Is(err, platform.ErrNotFound):
		slog.Warn("training run has no metrics", "run_id", run.RunID, "status", run.Status)
		metrics = map[string]float64{}
	case err != nil:
		return Result{}, fmt.Errorf("error getting metrics of run %s: %w", run.RunID, err)
	}

	artifact := ProjectTrainingRun(run, metrics, dataset, env.Ref())
	if err := s.store.Write(ctx, state.TrainingRunKey, artifact); err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeCompleted, Artifact: artifact}, nil
}

func (s *TrainStage) prepareCompute(ctx context.Context) (platform.ComputeTarget, error) {
	name := s.cfg.ComputeName

	target, err := s.platform.Computes.Get(ctx, name)
	if err == nil {
		if target.Type != platform.ComputeTypeAml {
			return target, fmt.Errorf("compute %s has type %s, expected %s", name, target.Type, platform.ComputeTypeAml)
		}
		slog.Info("found compute target, reusing it", "compute", name, "state", target.ProvisioningState)
		return target, nil
	}
	if !errors.Is(err, platform.ErrNotFound) {
		return target, fmt.Errorf("error getting compute %s: %w", name, err)
	}

	slog.Info("creating compute target", "compute", name, "vm_size", s.cfg.ComputeSKU,
		"min_nodes", s.cfg.ComputeMinNodes, "max_nodes", s.cfg.ComputeMaxNodes)

	op, err := s.platform.Computes.Create(ctx, platform.ComputeSpec{
		Name:     name,
		Type:     platform.ComputeTypeAml,
		VMSize:   s.cfg.ComputeSKU,
		MinNodes: s.cfg.ComputeMinNodes,
		MaxNodes: s.cfg.ComputeMaxNodes,
	})
	if err != nil {
		return target, fmt.Errorf("error creating compute %s: %w", name, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ComputeProvisionTimeout)
	defer cancel()

	target, err = op.Wait(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return target, fmt.Errorf("compute %s not provisioned within %s: %w", name, s.cfg.ComputeProvisionTimeout, platform.ErrTimeout)
		}
		return target, fmt.Errorf("error provisioning compute %s: %w", name, err)
	}
	return target, nil
}

type condaFile struct {
	Name         string        `yaml:"name"`
	Channels     []string      `yaml:"channels"`
	Dependencies []interface{} `yaml:"dependencies"`
}

func renderCondaFile(name string, pipPackages []string) (string, error) {
	out, err := yaml.Marshal(condaFile{
		Name:     name,
		Channels: []string{"conda-forge"},
		Dependencies: []interface{}{
			condaPythonVersion,
			"pip",
			map[string][]string{"pip": pipPackages},
		},
	})
	if err != nil {
		return "", fmt.Errorf("error rendering conda file for %s: %w", name, err)
	}
	return string(out), nil
}

func (s *TrainStage) prepareEnvironment(ctx context.Context) (platform.Environment, error) {
	conda, err := renderCondaFile(s.cfg.EnvironmentName, s.cfg.EnvironmentPipPackages)
	if err != nil {
		return platform.Environment{}, err
	}

	env, err := s.platform.Environments.Register(ctx, platform.EnvironmentSpec{
		Name:        s.cfg.EnvironmentName,
		PipPackages: s.cfg.EnvironmentPipPackages,
		CondaFile:   conda,
	})
	if err != nil {
		return env, fmt.Errorf("error registering environment %s: %w", s.cfg.EnvironmentName, err)
	}
	slog.Info("environment registered", "environment", env.Name, "version", env.Version)
	return env, nil
}

func (s *TrainStage) uploadSnapshot(ctx context.Context) (string, error) {
	if err := s.objects.CreateBucket(ctx, s.cfg.SnapshotBucket); err != nil {
		return "", fmt.Errorf("error creating snapshot bucket: %w", err)
	}

	prefix := path.Join(s.cfg.ExperimentName, uuid.New().String())
	if err := s.objects.UploadDir(ctx, s.cfg.SnapshotBucket, prefix, s.cfg.ScriptFolder()); err != nil {
		return "", fmt.Errorf("error uploading script snapshot from %s: %w", s.cfg.ScriptFolder(), err)
	}
	return s.objects.URI(s.cfg.SnapshotBucket, prefix), nil
}

// DatasetMountPath is where the dataset is mounted on the compute nodes.
func DatasetMountPath(dataset string) string {
	return path.Join("/mnt/datasets", dataset)
}

func (s *TrainStage) jobSpec(dataset DatasetArtifact, env platform.EnvironmentRef, snapshotURI string) platform.JobSpec {
	mount := DatasetMountPath(dataset.Name)
	return platform.JobSpec{
		Experiment: s.cfg.ExperimentName,
		ScriptName: s.cfg.TrainScriptName,
		Arguments: []string{
			"--data-folder", mount,
			"--regularization", strconv.FormatFloat(s.cfg.Regularization, 'f', -1, 64),
			"--model_name", s.cfg.ModelName,
		},
		ComputeTarget: s.cfg.ComputeName,
		Environment:   env,
		Inputs: []platform.DatasetInput{
			{Name: dataset.Name, Version: dataset.Version, Mode: "mount", PathOnCompute: mount},
		},
		SnapshotURI: snapshotURI,
	}
}
