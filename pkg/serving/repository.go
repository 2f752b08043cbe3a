package serving

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/synaptica-ai/clinical-insights/pkg/insights"
)

// PredictionLog is the persistence model for serving analytics.
type PredictionLog struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	PatientID      string            `gorm:"column:patient_id;index"`
	ModelName      string            `gorm:"column:model_name"`
	Features       datatypes.JSONMap `gorm:"column:features"`
	Response       datatypes.JSONMap `gorm:"column:response"`
	PredictedLabel bool              `gorm:"column:predicted_label"`
	Confidence     float64           `gorm:"column:confidence"`
	LatencyMs      float64           `gorm:"column:latency_ms"`
	CreatedAt      time.Time         `gorm:"column:created_at"`
}

// TableName overrides gorm naming.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// Repository handles prediction log queries.
type Repository struct {
	db        *gorm.DB
	modelName string
}

func NewRepository(db *gorm.DB, modelName string) *Repository {
	return &Repository{db: db, modelName: modelName}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLog{})
}

func (r *Repository) RecordPrediction(ctx context.Context, patientID string, record insights.PatientRecord, result insights.PredictionResult, latency time.Duration) error {
	log := NewLog(r.modelName, patientID, record, result, latency)
	return r.db.WithContext(ctx).Create(&log).Error
}

// Recent returns the most recent prediction logs up to limit.
func (r *Repository) Recent(ctx context.Context, limit int) ([]PredictionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []PredictionLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// NewLog builds the row for one prediction. Confidence is the probability of
// the predicted class.
func NewLog(modelName, patientID string, record insights.PatientRecord, result insights.PredictionResult, latency time.Duration) PredictionLog {
	features := make(map[string]interface{}, len(record))
	for name, value := range record {
		features[name] = value
	}
	probabilities := make([]interface{}, len(result.Classes))
	confidence := 0.0
	for i, pair := range result.Classes {
		probabilities[i] = map[string]interface{}{"class": pair.Class, "probability": pair.Probability}
		if pair.Class == result.PredictedClass {
			confidence = pair.Probability
		}
	}
	return PredictionLog{
		ID:        uuid.New(),
		PatientID: patientID,
		ModelName: modelName,
		Features:  datatypes.JSONMap(features),
		Response: datatypes.JSONMap{
			"complication_predicted": result.PredictedLabel,
			"predicted_class":        result.PredictedClass,
			"probabilities":          probabilities,
		},
		PredictedLabel: result.PredictedLabel,
		Confidence:     confidence,
		LatencyMs:      math.Round(float64(latency.Microseconds())) / 1000.0,
		CreatedAt:      time.Now().UTC(),
	}
}
