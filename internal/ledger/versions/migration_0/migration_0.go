package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StageRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Stage          string `gorm:"size:20;not null;index"`
	Status         string `gorm:"size:20;not null"`
	StartTime      time.Time
	CompletionTime sql.NullTime

	Artifact datatypes.JSON `gorm:"type:jsonb"`
	Error    string
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&StageRun{}); err != nil {
		return fmt.Errorf("error creating stage_runs table: %w", err)
	}
	return nil
}
