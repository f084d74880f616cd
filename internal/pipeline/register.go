package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mlops-pipeline/internal/config"
	"mlops-pipeline/internal/platform"
	"mlops-pipeline/internal/state"
)

// ShouldPromote reports whether a candidate with the given accuracy replaces
// the baseline. A nil baseline means there is nothing to beat.
func ShouldPromote(candidate float64, baseline *float64) bool {
	if baseline == nil {
		return true
	}
	return candidate > *baseline
}

type promotionDecision struct {
	promote bool
	reason  string
}

func decidePromotion(run platform.RunDetails, metrics map[string]float64, baseline *platform.ModelRecord) promotionDecision {
	if run.Status != platform.RunCompleted {
		return promotionDecision{reason: fmt.Sprintf("training run %s ended with status %s", run.RunID, run.Status)}
	}

	candidate, ok := metrics[platform.AccuracyMetric]
	if !ok {
		return promotionDecision{reason: fmt.Sprintf("training run %s reported no %s metric", run.RunID, platform.AccuracyMetric)}
	}

	if baseline == nil {
		return promotionDecision{promote: true, reason: "no registered baseline"}
	}

	baselineAcc, ok := baseline.Accuracy()
	if !ok {
		return promotionDecision{promote: true, reason: fmt.Sprintf("baseline version %d has no %s metric", baseline.Version, platform.AccuracyMetric)}
	}

	if ShouldPromote(candidate, &baselineAcc) {
		return promotionDecision{promote: true, reason: fmt.Sprintf("candidate accuracy %v beats baseline %v", candidate, baselineAcc)}
	}
	return promotionDecision{reason: fmt.Sprintf("candidate accuracy %v does not beat baseline %v", candidate, baselineAcc)}
}

// registeredFrom reports whether model was registered from the given run, so
// that re-running the stage keeps the earlier promotion.
func registeredFrom(model platform.ModelRecord, runID string) bool {
	return runID != "" && (model.RunID == runID || model.Tags["runId"] == runID)
}

// RegisterStage registers the trained model only when it outperforms the
// latest registered version.
type RegisterStage struct {
	cfg    *config.PipelineConfig
	jobs   platform.Jobs
	models platform.Models
	store  state.Store
}

func NewRegisterStage(cfg *config.PipelineConfig, jobs platform.Jobs, models platform.Models, store state.Store) *RegisterStage {
	return &RegisterStage{cfg: cfg, jobs: jobs, models: models, store: store}
}

func (s *RegisterStage) Name() string {
	return RegisterStageName
}

func (s *RegisterStage) Run(ctx context.Context) (Result, error) {
	var training TrainingArtifact
	if err := s.store.Read(ctx, state.TrainingRunKey, &training); err != nil {
		return Result{}, err
	}

	run, err := s.jobs.Get(ctx, s.cfg.ExperimentName, training.RunID)
	if err != nil {
		return Result{}, fmt.Errorf("error getting training run %s: %w", training.RunID, err)
	}

	metrics, err := s.jobs.Metrics(ctx, s.cfg.ExperimentName, run.RunID)
	if err != nil {
		return Result{}, fmt.Errorf("error getting metrics of run %s: %w", run.RunID, err)
	}

	var baseline *platform.ModelRecord
	latest, err := s.models.Latest(ctx, s.cfg.ModelName)
	switch {
	case err == nil:
		baseline = &latest
	case errors.Is(err, platform.ErrNotFound):
		slog.Info("no baseline model registered", "model", s.cfg.ModelName)
	default:
		return Result{}, fmt.Errorf("error getting baseline model %s: %w", s.cfg.ModelName, err)
	}

	if baseline != nil && registeredFrom(*baseline, run.RunID) {
		reason := fmt.Sprintf("training run %s is already registered as version %d", run.RunID, baseline.Version)
		slog.Info("model already registered", "model", baseline.Name, "version", baseline.Version, "run_id", run.RunID)

		artifact := ModelArtifact{
			Model:           baseline,
			Run:             training,
			Promoted:        true,
			BaselineVersion: baseline.Version,
			Reason:          reason,
		}
		if err := s.store.Write(ctx, state.ModelDetailsKey, artifact); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeCompleted, Artifact: artifact}, nil
	}

	decision := decidePromotion(run, metrics, baseline)

	artifact := ModelArtifact{
		Model:    baseline,
		Run:      training,
		Promoted: decision.promote,
		Reason:   decision.reason,
	}
	if baseline != nil {
		artifact.BaselineVersion = baseline.Version
	}

	outcome := OutcomeSkipped
	if decision.promote {
		model, err := s.models.Register(ctx, platform.ModelRegistration{
			Name:        s.cfg.ModelName,
			Path:        fmt.Sprintf("outputs/%s.pkl", s.cfg.ModelName),
			RunID:       run.RunID,
			Description: s.cfg.ModelDescription,
			Tags:        map[string]string{"runId": run.RunID},
			Metrics:     metrics,
		})
		if err != nil {
			return Result{}, fmt.Errorf("error registering model %s from run %s: %w", s.cfg.ModelName, run.RunID, err)
		}
		slog.Info("model registered", "model", model.Name, "version", model.Version, "description", model.Description, "reason", decision.reason)

		artifact.Model = &model
		outcome = OutcomeCompleted
	} else {
		slog.Info("model not promoted", "model", s.cfg.ModelName, "run_id", run.RunID, "reason", decision.reason)
	}

	if err := s.store.Write(ctx, state.ModelDetailsKey, artifact); err != nil {
		return Result{}, err
	}

	return Result{Outcome: outcome, Artifact: artifact}, nil
}
