package pipeline

import (
	"encoding/json"
	"fmt"
	"mlops-pipeline/internal/platform"
	"time"
)

// DatasetArtifact is persisted under state.DatasetKey.
type DatasetArtifact struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     int    `json:"version,omitempty"`
	URI         string `json:"uri,omitempty"`
}

// TrainingArtifact is persisted under state.TrainingRunKey. It is an
// allow-list of RunDetails; dataset bindings are never part of it.
type TrainingArtifact struct {
	RunID         string                  `json:"runId"`
	Experiment    string                  `json:"experiment"`
	Target        string                  `json:"target"`
	Status        string                  `json:"status"`
	StartTimeUTC  string                  `json:"startTimeUtc,omitempty"`
	EndTimeUTC    string                  `json:"endTimeUtc,omitempty"`
	Properties    map[string]string       `json:"properties,omitempty"`
	RunDefinition json.RawMessage         `json:"runDefinition,omitempty"`
	LogFiles      map[string]string       `json:"logFiles,omitempty"`
	SubmittedBy   string                  `json:"submittedBy,omitempty"`
	Error         *platform.RunError      `json:"error,omitempty"`
	Metrics       map[string]float64      `json:"metrics,omitempty"`
	Dataset       DatasetArtifact         `json:"dataset"`
	Environment   platform.EnvironmentRef `json:"environment"`
}

func ProjectTrainingRun(run platform.RunDetails, metrics map[string]float64, dataset DatasetArtifact, env platform.EnvironmentRef) TrainingArtifact {
	return TrainingArtifact{
		RunID:         run.RunID,
		Experiment:    run.Experiment,
		Target:        run.Target,
		Status:        run.Status,
		StartTimeUTC:  run.StartTimeUTC,
		EndTimeUTC:    run.EndTimeUTC,
		Properties:    run.Properties,
		RunDefinition: run.RunDefinition,
		LogFiles:      run.LogFiles,
		SubmittedBy:   run.SubmittedBy,
		Error:         run.Error,
		Metrics:       metrics,
		Dataset:       dataset,
		Environment:   env,
	}
}

// ModelArtifact is persisted under state.ModelDetailsKey. Model is the newly
// registered version when Promoted is set, otherwise the baseline (or nil).
type ModelArtifact struct {
	Model           *platform.ModelRecord `json:"model"`
	Run             TrainingArtifact      `json:"run"`
	Promoted        bool                  `json:"promoted"`
	BaselineVersion int                   `json:"baselineVersion,omitempty"`
	Reason          string                `json:"reason"`
}

// ServiceArtifact is persisted under state.ServiceDetailsKey.
type ServiceArtifact struct {
	ServiceName string                  `json:"serviceName"`
	ScoringURI  string                  `json:"scoringUri"`
	State       string                  `json:"state"`
	ComputeType string                  `json:"computeType"`
	Tags        map[string]string       `json:"tags,omitempty"`
	Description string                  `json:"description,omitempty"`
	ModelIDs    []string                `json:"modelIds"`
	Environment platform.EnvironmentRef `json:"environment"`
	CPUCores    float64                 `json:"cpuCores"`
	MemoryGB    float64                 `json:"memoryGb"`
	CreatedTime time.Time               `json:"createdTime"`
}

func ProjectService(svc platform.Service) ServiceArtifact {
	ids := make([]string, 0, len(svc.Models))
	for _, m := range svc.Models {
		ids = append(ids, fmt.Sprintf("%s:%d", m.Name, m.Version))
	}

	return ServiceArtifact{
		ServiceName: svc.Name,
		ScoringURI:  svc.ScoringURI,
		State:       svc.State,
		ComputeType: svc.ComputeType,
		Tags:        svc.Tags,
		Description: svc.Description,
		ModelIDs:    ids,
		Environment: svc.Environment,
		CPUCores:    svc.CPUCores,
		MemoryGB:    svc.MemoryGB,
		CreatedTime: svc.CreatedTime,
	}
}
