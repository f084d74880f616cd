package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"mlops-pipeline/internal/config"
	"mlops-pipeline/internal/platform"
	"mlops-pipeline/internal/state"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	ServiceNamePrefix  = "mnist-digits-svc-"
	serviceDescription = "Predict MNIST with sklearn"
)

var serviceTags = map[string]string{"data": "MNIST", "method": "sklearn"}

// NewServiceName returns the prefix followed by the first 4 hex characters of
// a random UUID.
func NewServiceName() string {
	return ServiceNamePrefix + uuid.New().String()[:4]
}

// DeployStage hosts the registered model behind a scoring endpoint.
type DeployStage struct {
	cfg      *config.PipelineConfig
	platform platform.Platform
	store    state.Store
}

func NewDeployStage(cfg *config.PipelineConfig, p platform.Platform, store state.Store) *DeployStage {
	return &DeployStage{cfg: cfg, platform: p, store: store}
}

func (s *DeployStage) Name() string {
	return DeployStageName
}

func (s *DeployStage) Run(ctx context.Context) (Result, error) {
	var details ModelArtifact
	if err := s.store.Read(ctx, state.ModelDetailsKey, &details); err != nil {
		return Result{}, err
	}

	if !details.Promoted && !s.cfg.DeployForce {
		slog.Info("model was not promoted, skipping deployment", "model", s.cfg.ModelName, "reason", details.Reason)
		return Result{Outcome: OutcomeSkipped}, nil
	}

	model, err := s.resolveModel(ctx)
	if err != nil {
		return Result{}, err
	}

	env, err := s.platform.Environments.Get(ctx, s.cfg.EnvironmentName, s.cfg.EnvironmentVersion)
	if err != nil {
		return Result{}, fmt.Errorf("error getting environment %s:%s: %w", s.cfg.EnvironmentName, s.cfg.EnvironmentVersion, err)
	}

	script, err := os.ReadFile(s.cfg.ScoreScriptPath())
	if err != nil {
		return Result{}, fmt.Errorf("error reading scoring script: %w", err)
	}

	spec := platform.ServiceSpec{
		Name:   NewServiceName(),
		Models: []platform.ModelRef{{Name: model.Name, Version: model.Version}},
		Inference: platform.InferenceConfig{
			EntryScript:        filepath.Base(s.cfg.ScoreScriptPath()),
			EntryScriptContent: string(script),
			Environment:        env.Ref(),
		},
		Deployment: platform.DeploymentConfig{
			ComputeType: platform.ComputeTypeACI,
			CPUCores:    s.cfg.DeployCPUCores,
			MemoryGB:    s.cfg.DeployMemoryGB,
			Tags:        serviceTags,
			Description: serviceDescription,
		},
	}

	slog.Info("deploying model", "service", spec.Name, "model", model.Name, "version", model.Version)
	op, err := s.platform.Services.Deploy(ctx, spec)
	if err != nil {
		return Result{}, fmt.Errorf("error deploying service %s: %w", spec.Name, err)
	}

	svc, err := op.Wait(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("error waiting for service %s: %w", spec.Name, err)
	}
	slog.Info("service deployed", "service", svc.Name, "scoring_uri", svc.ScoringURI)

	artifact := ProjectService(svc)
	if err := s.store.Write(ctx, state.ServiceDetailsKey, artifact); err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeCompleted, Artifact: artifact}, nil
}

// resolveModel returns the pinned version when DEPLOY_MODEL_VERSION is set and
// the latest registered version otherwise.
func (s *DeployStage) resolveModel(ctx context.Context) (platform.ModelRecord, error) {
	if v := s.cfg.DeployModelVersion; v > 0 {
		model, err := s.platform.Models.Get(ctx, s.cfg.ModelName, v)
		if err != nil {
			return model, fmt.Errorf("error getting model %s version %d: %w", s.cfg.ModelName, v, err)
		}
		return model, nil
	}

	model, err := s.platform.Models.Latest(ctx, s.cfg.ModelName)
	if err != nil {
		return model, fmt.Errorf("error getting latest model %s: %w", s.cfg.ModelName, err)
	}
	return model, nil
}
