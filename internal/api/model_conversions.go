package api

import (
	"encoding/json"
	"mlops-pipeline/internal/ledger"
	"mlops-pipeline/internal/messaging"
	"mlops-pipeline/pkg/api"
)

func convertStageRun(r ledger.StageRun) api.StageRun {
	run := api.StageRun{
		Id:            r.Id,
		PipelineRunId: r.PipelineRunId,
		Stage:         r.Stage,
		Status:        r.Status,
		StartTime:     r.StartTime,
		Error:         r.Error,
	}
	if r.CompletionTime.Valid {
		completed := r.CompletionTime.Time
		run.CompletionTime = &completed
	}
	if len(r.Artifact) > 0 {
		run.Artifact = json.RawMessage(r.Artifact)
	}
	return run
}

func convertStageRuns(rs []ledger.StageRun) []api.StageRun {
	runs := make([]api.StageRun, 0, len(rs))
	for _, r := range rs {
		runs = append(runs, convertStageRun(r))
	}
	return runs
}

func convertStageEvent(e messaging.StageEvent) api.StageEvent {
	return api.StageEvent{
		EventId:       e.EventId,
		PipelineRunId: e.PipelineRunId,
		Stage:         e.Stage,
		Status:        e.Status,
		Artifact:      e.Artifact,
		Error:         e.Error,
		Timestamp:     e.Timestamp,
	}
}
