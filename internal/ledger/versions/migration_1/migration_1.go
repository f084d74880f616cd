package migration_1

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StageRun struct {
	PipelineRunId uuid.UUID `gorm:"type:uuid;index"`
}

// Migration groups existing rows under a nil pipeline run id; each of them
// came from a standalone stage binary.
func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&StageRun{}, "PipelineRunId"); err != nil {
		return fmt.Errorf("error adding PipelineRunId column: %w", err)
	}

	if err := db.Model(&StageRun{}).
		Where("pipeline_run_id IS NULL").
		Update("pipeline_run_id", uuid.Nil).Error; err != nil {
		return fmt.Errorf("error setting default value for PipelineRunId: %w", err)
	}

	if err := db.Migrator().CreateIndex(&StageRun{}, "PipelineRunId"); err != nil {
		return fmt.Errorf("error indexing PipelineRunId: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&StageRun{}, "pipeline_run_id"); err != nil {
		return fmt.Errorf("error dropping PipelineRunId column: %w", err)
	}
	return nil
}
