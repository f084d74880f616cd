package rest

import (
	"context"
	"log/slog"
	"mlops-pipeline/internal/platform"
	"net/http"
)

type jobs struct {
	c *Client
}

func (j *jobs) Submit(ctx context.Context, spec platform.JobSpec) (platform.Operation[platform.RunDetails], error) {
	var run platform.RunDetails
	err := j.c.do(ctx, "submit run to "+spec.Experiment, request{
		method: http.MethodPost,
		path:   "/experiments/{experiment}/runs",
		params: map[string]string{"experiment": spec.Experiment},
		body:   spec,
	}, &run)
	if err != nil {
		return nil, err
	}

	slog.Info("run submitted", "experiment", spec.Experiment, "run_id", run.RunID, "status", run.Status)

	return platform.NewPollingOperation(run.RunID, func(ctx context.Context) (platform.RunDetails, bool, error) {
		current, err := j.Get(ctx, spec.Experiment, run.RunID)
		if err != nil {
			return current, false, err
		}
		return current, platform.IsTerminalRunStatus(current.Status), nil
	}, j.c.waitOptions("running "+run.RunID, 0)), nil
}

func (j *jobs) Get(ctx context.Context, experiment, runID string) (platform.RunDetails, error) {
	var run platform.RunDetails
	err := j.c.do(ctx, "get run "+runID, request{
		method: http.MethodGet,
		path:   "/experiments/{experiment}/runs/{runId}",
		params: map[string]string{"experiment": experiment, "runId": runID},
	}, &run)
	return run, err
}

func (j *jobs) Metrics(ctx context.Context, experiment, runID string) (map[string]float64, error) {
	var metrics map[string]float64
	err := j.c.do(ctx, "get run metrics "+runID, request{
		method: http.MethodGet,
		path:   "/experiments/{experiment}/runs/{runId}/metrics",
		params: map[string]string{"experiment": experiment, "runId": runID},
	}, &metrics)
	return metrics, err
}
