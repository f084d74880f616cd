package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mlops-pipeline/internal/ledger"
	"mlops-pipeline/internal/messaging"
	"mlops-pipeline/internal/state"
	"time"

	"github.com/google/uuid"
)

// Runner executes stages and records each execution in the ledger and as a
// stage event. Bookkeeping failures are logged and never change the outcome
// of a stage.
type Runner struct {
	ledger        *ledger.Ledger
	publisher     messaging.Publisher
	pipelineRunId uuid.UUID
}

// NewRunner creates a runner. ledger may be nil.
func NewRunner(l *ledger.Ledger, publisher messaging.Publisher) *Runner {
	if publisher == nil {
		publisher = messaging.DiscardPublisher{}
	}
	return &Runner{ledger: l, publisher: publisher, pipelineRunId: uuid.New()}
}

func (r *Runner) PipelineRunId() uuid.UUID {
	return r.pipelineRunId
}

func stageStatus(result Result, err error) string {
	switch {
	case errors.Is(err, state.ErrConfigMissing):
		return ledger.StageMissingInput
	case err != nil:
		return ledger.StageFailed
	case result.Outcome == OutcomeSkipped:
		return ledger.StageSkipped
	}
	return ledger.StageCompleted
}

func (r *Runner) Run(ctx context.Context, stage Stage) (Result, error) {
	slog.Info("executing stage", "stage", stage.Name(), "pipeline_run_id", r.pipelineRunId)
	start := time.Now()

	var stageRunId uuid.UUID
	if r.ledger != nil {
		id, err := r.ledger.StartStage(ctx, r.pipelineRunId, stage.Name())
		if err != nil {
			slog.Warn("stage run will not be recorded in ledger", "stage", stage.Name(), "error", err)
		}
		stageRunId = id
	}

	result, err := stage.Run(ctx)
	status := stageStatus(result, err)

	// the outcome is recorded even when the stage was cut short by ctx
	bookkeepingCtx := context.WithoutCancel(ctx)

	if r.ledger != nil && stageRunId != uuid.Nil {
		if ledgerErr := r.ledger.FinishStage(bookkeepingCtx, stageRunId, status, result.Artifact, err); ledgerErr != nil {
			slog.Warn("failed to record stage outcome in ledger", "stage", stage.Name(), "error", ledgerErr)
		}
	}

	r.publish(bookkeepingCtx, stage.Name(), status, result, err)

	switch status {
	case ledger.StageFailed:
		slog.Error("stage failed", "stage", stage.Name(), "elapsed", time.Since(start).Round(time.Second), "error", err)
	case ledger.StageMissingInput:
		slog.Warn("stage input missing", "stage", stage.Name(), "error", err)
	default:
		slog.Info("stage finished", "stage", stage.Name(), "status", status, "elapsed", time.Since(start).Round(time.Second))
	}

	return result, err
}

func (r *Runner) publish(ctx context.Context, stage, status string, result Result, stageErr error) {
	event := messaging.StageEvent{
		EventId:       uuid.New(),
		PipelineRunId: r.pipelineRunId,
		Stage:         stage,
		Status:        status,
		Timestamp:     time.Now().UTC(),
	}
	if result.Artifact != nil {
		data, err := json.Marshal(result.Artifact)
		if err != nil {
			slog.Warn("failed to encode stage artifact for event", "stage", stage, "error", err)
		} else {
			event.Artifact = data
		}
	}
	if stageErr != nil {
		event.Error = stageErr.Error()
	}

	if err := r.publisher.PublishStageEvent(ctx, event); err != nil {
		slog.Warn("failed to publish stage event", "stage", stage, "error", err)
	}
}

// RunAll runs stages in order. It stops at the first error, including a
// missing predecessor artifact; a skipped stage does not stop the run.
func (r *Runner) RunAll(ctx context.Context, stages []Stage) error {
	for _, stage := range stages {
		if _, err := r.Run(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}
