package pipeline

import (
	"context"
	"fmt"
	"mlops-pipeline/internal/config"
	"mlops-pipeline/internal/platform"
	"mlops-pipeline/internal/state"
	"mlops-pipeline/internal/storage"
)

const (
	DataStageName     = "data"
	TrainStageName    = "train"
	RegisterStageName = "register"
	DeployStageName   = "deploy"
)

var StageNames = []string{DataStageName, TrainStageName, RegisterStageName, DeployStageName}

type Outcome string

const (
	OutcomeCompleted Outcome = "COMPLETED"
	// OutcomeSkipped means the stage ran but decided there was nothing to do.
	OutcomeSkipped Outcome = "SKIPPED"
)

type Result struct {
	Outcome  Outcome
	Artifact any
}

type Stage interface {
	Name() string

	// Run does the stage's unit of work. A missing predecessor artifact is
	// reported as an error wrapping state.ErrConfigMissing.
	Run(ctx context.Context) (Result, error)
}

// NewStage builds the named stage.
func NewStage(name string, cfg *config.PipelineConfig, p platform.Platform, objects storage.ObjectStore, store state.Store) (Stage, error) {
	switch name {
	case DataStageName:
		return NewDataStage(cfg, p.Datasets, objects, store), nil
	case TrainStageName:
		return NewTrainStage(cfg, p, objects, store), nil
	case RegisterStageName:
		return NewRegisterStage(cfg, p.Jobs, p.Models, store), nil
	case DeployStageName:
		return NewDeployStage(cfg, p, store), nil
	}
	return nil, fmt.Errorf("unknown stage %q, expected one of %v", name, StageNames)
}

// NewStages returns the stages in pipeline order starting at from. An empty
// from starts at the first stage.
func NewStages(from string, cfg *config.PipelineConfig, p platform.Platform, objects storage.ObjectStore, store state.Store) ([]Stage, error) {
	start := 0
	if from != "" {
		start = -1
		for i, name := range StageNames {
			if name == from {
				start = i
			}
		}
		if start < 0 {
			return nil, fmt.Errorf("unknown stage %q, expected one of %v", from, StageNames)
		}
	}

	stages := make([]Stage, 0, len(StageNames)-start)
	for _, name := range StageNames[start:] {
		stage, err := NewStage(name, cfg, p, objects, store)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, nil
}
