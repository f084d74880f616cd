package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Ledger records one row per stage execution.
type Ledger struct {
	db *gorm.DB
}

// Open connects to a postgres URL or a sqlite file path and migrates the
// schema.
func Open(dsn string) (*Ledger, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("error opening ledger database: %w", err)
	}

	return New(db)
}

func New(db *gorm.DB) (*Ledger, error) {
	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("error migrating ledger database: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) StartStage(ctx context.Context, pipelineRunId uuid.UUID, stage string) (uuid.UUID, error) {
	run := StageRun{
		Id:            uuid.New(),
		PipelineRunId: pipelineRunId,
		Stage:         stage,
		Status:        StageRunning,
		StartTime:     time.Now().UTC(),
	}

	if err := l.db.WithContext(ctx).Create(&run).Error; err != nil {
		slog.Error("error recording stage start", "stage", stage, "error", err)
		return uuid.Nil, fmt.Errorf("error recording start of stage %s: %w", stage, err)
	}
	return run.Id, nil
}

// FinishStage sets the terminal status of a run. artifact is stored as json
// when non-nil.
func (l *Ledger) FinishStage(ctx context.Context, id uuid.UUID, status string, artifact any, stageErr error) error {
	updates := map[string]any{
		"status":          status,
		"completion_time": sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}

	if artifact != nil {
		data, err := json.Marshal(artifact)
		if err != nil {
			return fmt.Errorf("error encoding artifact for stage run %s: %w", id, err)
		}
		updates["artifact"] = datatypes.JSON(data)
	}
	if stageErr != nil {
		updates["error"] = stageErr.Error()
	}

	if err := l.db.WithContext(ctx).Model(&StageRun{Id: id}).Updates(updates).Error; err != nil {
		slog.Error("error updating stage run", "stage_run_id", id, "status", status, "error", err)
		return fmt.Errorf("error updating stage run %s: %w", id, err)
	}
	return nil
}

func (l *Ledger) GetRun(ctx context.Context, id uuid.UUID) (StageRun, error) {
	var run StageRun
	if err := l.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return run, fmt.Errorf("error getting stage run %s: %w", id, err)
	}
	return run, nil
}

type RunFilter struct {
	Stage         string
	PipelineRunId uuid.UUID
	Limit         int
}

// ListRuns returns runs newest first.
func (l *Ledger) ListRuns(ctx context.Context, filter RunFilter) ([]StageRun, error) {
	query := l.db.WithContext(ctx).Order("start_time DESC")
	if filter.Stage != "" {
		query = query.Where("stage = ?", filter.Stage)
	}
	if filter.PipelineRunId != uuid.Nil {
		query = query.Where("pipeline_run_id = ?", filter.PipelineRunId)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var runs []StageRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("error listing stage runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recent run of stage, or gorm.ErrRecordNotFound.
func (l *Ledger) LatestRun(ctx context.Context, stage string) (StageRun, error) {
	var run StageRun
	err := l.db.WithContext(ctx).Where("stage = ?", stage).Order("start_time DESC").First(&run).Error
	if err != nil {
		return run, fmt.Errorf("error getting latest run of stage %s: %w", stage, err)
	}
	return run, nil
}

func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
