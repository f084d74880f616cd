package ledger

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StageRunning   string = "RUNNING"
	StageCompleted string = "COMPLETED"
	StageSkipped   string = "SKIPPED"
	// StageMissingInput marks a stage that stopped because its predecessor's
	// state was absent.
	StageMissingInput string = "MISSING_INPUT"
	StageFailed       string = "FAILED"
)

type StageRun struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey"`
	PipelineRunId uuid.UUID `gorm:"type:uuid;index"`

	Stage          string `gorm:"size:20;not null;index"`
	Status         string `gorm:"size:20;not null"`
	StartTime      time.Time
	CompletionTime sql.NullTime

	Artifact datatypes.JSON `gorm:"type:jsonb"`
	Error    string
}
