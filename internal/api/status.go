package api

import (
	"encoding/json"
	"errors"
	"mlops-pipeline/internal/ledger"
	"mlops-pipeline/internal/pipeline"
	"mlops-pipeline/internal/state"
	"mlops-pipeline/pkg/api"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

const defaultRunLimit = 50

var stageKeys = map[string]string{
	pipeline.DataStageName:     state.DatasetKey,
	pipeline.TrainStageName:    state.TrainingRunKey,
	pipeline.RegisterStageName: state.ModelDetailsKey,
	pipeline.DeployStageName:   state.ServiceDetailsKey,
}

// StatusService serves a read-only view of the pipeline state, the run ledger
// and recent stage events. ledger and events may be nil.
type StatusService struct {
	store  state.Store
	ledger *ledger.Ledger
	events *EventFeed
}

func NewStatusService(store state.Store, l *ledger.Ledger, events *EventFeed) *StatusService {
	return &StatusService{store: store, ledger: l, events: events}
}

func (s *StatusService) AddRoutes(r chi.Router) {
	r.Get("/health", jsonHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/stages", func(r chi.Router) {
		r.Get("/", jsonHandler(s.ListStages))
		r.Get("/{stage}", jsonHandler(s.GetStage))
	})
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", jsonHandler(s.ListRuns))
		r.Get("/{run_id}", jsonHandler(s.GetRun))
	})
	r.Get("/events", jsonHandler(s.ListEvents))
}

func (s *StatusService) stageStatus(r *http.Request, stage string, withArtifact bool) (api.StageStatus, error) {
	key := stageKeys[stage]
	status := api.StageStatus{Stage: stage, StateKey: key}

	var artifact json.RawMessage
	err := s.store.Read(r.Context(), key, &artifact)
	switch {
	case err == nil:
		status.HasArtifact = true
		if withArtifact {
			status.Artifact = artifact
		}
	case errors.Is(err, state.ErrConfigMissing):
	default:
		return status, internalError(err, "error reading state of stage %s", stage)
	}

	if s.ledger != nil {
		run, err := s.ledger.LatestRun(r.Context(), stage)
		switch {
		case err == nil:
			converted := convertStageRun(run)
			status.LastRun = &converted
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return status, internalError(err, "error getting runs of stage %s", stage)
		}
	}

	return status, nil
}

func (s *StatusService) ListStages(r *http.Request) (any, error) {
	statuses := make([]api.StageStatus, 0, len(pipeline.StageNames))
	for _, stage := range pipeline.StageNames {
		status, err := s.stageStatus(r, stage, false)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *StatusService) GetStage(r *http.Request) (any, error) {
	stage := chi.URLParam(r, "stage")
	if _, ok := stageKeys[stage]; !ok {
		return nil, notFound("unknown stage '%s'", stage)
	}
	return s.stageStatus(r, stage, true)
}

func (s *StatusService) requireLedger() error {
	if s.ledger == nil {
		return unavailable("run ledger is not configured, set LEDGER_DSN")
	}
	return nil
}

func (s *StatusService) ListRuns(r *http.Request) (any, error) {
	if err := s.requireLedger(); err != nil {
		return nil, err
	}

	params, err := decodeQuery[api.ListRunsParams](r)
	if err != nil {
		return nil, err
	}
	if params.Stage != "" {
		if _, ok := stageKeys[params.Stage]; !ok {
			return nil, badRequest("unknown stage '%s'", params.Stage)
		}
	}
	if params.Limit <= 0 {
		params.Limit = defaultRunLimit
	}

	runs, err := s.ledger.ListRuns(r.Context(), ledger.RunFilter{
		Stage:         params.Stage,
		PipelineRunId: params.PipelineRunId,
		Limit:         params.Limit,
	})
	if err != nil {
		return nil, internalError(err, "error listing stage runs")
	}

	return convertStageRuns(runs), nil
}

func (s *StatusService) GetRun(r *http.Request) (any, error) {
	if err := s.requireLedger(); err != nil {
		return nil, err
	}

	runId, err := uuidParam(r, "run_id")
	if err != nil {
		return nil, err
	}

	run, err := s.ledger.GetRun(r.Context(), runId)
	if err != nil {
		return nil, err
	}

	return convertStageRun(run), nil
}

func (s *StatusService) ListEvents(r *http.Request) (any, error) {
	if s.events == nil {
		return nil, unavailable("stage events are not configured, set EVENTS_AMQP_URL")
	}

	recent := s.events.Recent()
	events := make([]api.StageEvent, 0, len(recent))
	for _, e := range recent {
		events = append(events, convertStageEvent(e))
	}
	return events, nil
}
