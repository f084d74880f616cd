package integrationtests

import (
	"context"
	"errors"
	"mlops-pipeline/internal/ledger"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresLedger(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dsn := setupPostgresContainer(t, ctx)

	runLedger, err := ledger.Open(dsn)
	require.NoError(t, err)
	defer runLedger.Close()

	pipelineRunId := uuid.New()

	trainId, err := runLedger.StartStage(ctx, pipelineRunId, "train")
	require.NoError(t, err)
	require.NoError(t, runLedger.FinishStage(ctx, trainId, ledger.StageCompleted, map[string]any{"runId": "run-1", "accuracy": 0.93}, nil))

	registerId, err := runLedger.StartStage(ctx, pipelineRunId, "register")
	require.NoError(t, err)
	require.NoError(t, runLedger.FinishStage(ctx, registerId, ledger.StageFailed, nil, errors.New("registry unavailable")))

	run, err := runLedger.GetRun(ctx, trainId)
	require.NoError(t, err)
	assert.Equal(t, ledger.StageCompleted, run.Status)
	assert.True(t, run.CompletionTime.Valid)
	assert.JSONEq(t, `{"runId":"run-1","accuracy":0.93}`, string(run.Artifact))

	runs, err := runLedger.ListRuns(ctx, ledger.RunFilter{PipelineRunId: pipelineRunId})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "register", runs[0].Stage)
	assert.Equal(t, "registry unavailable", runs[0].Error)

	latest, err := runLedger.LatestRun(ctx, "train")
	require.NoError(t, err)
	assert.Equal(t, trainId, latest.Id)

	// migrations are safe to run again
	reopened, err := ledger.Open(dsn)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err = reopened.ListRuns(ctx, ledger.RunFilter{Stage: "train"})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
