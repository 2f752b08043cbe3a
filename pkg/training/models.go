package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/synaptica-ai/clinical-insights/pkg/insights"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	SourceInline  = "inline"
	SourceRecords = "records"
	SourceCSV     = "csv"
)

type RunModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	ModelName    string            `gorm:"column:model_name;index"`
	Source       string            `gorm:"column:source"`
	TargetColumn string            `gorm:"column:target_column"`
	Features     datatypes.JSON    `gorm:"column:features"`
	Status       string            `gorm:"column:status"`
	Metrics      datatypes.JSONMap `gorm:"column:metrics"`
	ArtifactPath string            `gorm:"column:artifact_path"`
	ErrorMessage string            `gorm:"column:error_message"`
	CreatedAt    time.Time         `gorm:"column:created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at"`
}

func (RunModel) TableName() string {
	return "training_runs"
}

// Artifact is the on-disk form of a fitted model.
type Artifact struct {
	RunID     uuid.UUID       `json:"run_id"`
	ModelName string          `json:"model_name"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
	Model     *insights.Model `json:"model"`
}

type Run struct {
	ID           uuid.UUID
	Source       string
	Status       string
	ArtifactPath string
	Result       insights.TrainResult
}
