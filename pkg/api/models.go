package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type StageRun struct {
	Id             uuid.UUID       `json:"id"`
	PipelineRunId  uuid.UUID       `json:"pipeline_run_id"`
	Stage          string          `json:"stage"`
	Status         string          `json:"status"`
	StartTime      time.Time       `json:"start_time"`
	CompletionTime *time.Time      `json:"completion_time,omitempty"`
	Artifact       json.RawMessage `json:"artifact,omitempty"`
	Error          string          `json:"error,omitempty"`
}

type StageStatus struct {
	Stage       string          `json:"stage"`
	StateKey    string          `json:"state_key"`
	HasArtifact bool            `json:"has_artifact"`
	Artifact    json.RawMessage `json:"artifact,omitempty"`
	LastRun     *StageRun       `json:"last_run,omitempty"`
}

type ListRunsParams struct {
	Stage         string    `schema:"stage"`
	PipelineRunId uuid.UUID `schema:"pipeline_run_id"`
	Limit         int       `schema:"limit"`
}

type StageEvent struct {
	EventId       uuid.UUID       `json:"event_id"`
	PipelineRunId uuid.UUID       `json:"pipeline_run_id"`
	Stage         string          `json:"stage"`
	Status        string          `json:"status"`
	Artifact      json.RawMessage `json:"artifact,omitempty"`
	Error         string          `json:"error,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}
