package models

import (
	"time"
)

// Event bus types
const (
	EventModelTrained        = "model.trained"
	EventPredictionCompleted = "prediction.completed"
	EventNotesAnalyzed       = "notes.analyzed"
)

type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // model.trained, prediction.completed, notes.analyzed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Model training
type TrainRequest struct {
	Source       string                   `json:"source,omitempty"` // "inline" (default) or "records"
	TargetColumn string                   `json:"target_column,omitempty"`
	Columns      []string                 `json:"columns,omitempty"`
	Rows         []map[string]interface{} `json:"rows,omitempty"`
}

type TrainResponse struct {
	RunID     string    `json:"run_id"`
	Accuracy  float64   `json:"accuracy"`
	Features  []string  `json:"features"`
	Classes   []float64 `json:"classes"`
	TrainRows int       `json:"train_rows"`
	TestRows  int       `json:"test_rows"`
	TrainedAt time.Time `json:"trained_at"`
}

type TrainingRun struct {
	ID           string                 `json:"id"`
	ModelName    string                 `json:"model_name"`
	Source       string                 `json:"source"`
	TargetColumn string                 `json:"target_column"`
	Status       string                 `json:"status"`
	Metrics      map[string]interface{} `json:"metrics,omitempty"`
	ArtifactPath string                 `json:"artifact_path,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}

type ModelStatus struct {
	Trained   bool       `json:"trained"`
	Features  []string   `json:"features,omitempty"`
	Classes   []float64  `json:"classes,omitempty"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	TrainedAt *time.Time `json:"trained_at,omitempty"`
}

// Model serving
type PredictionRequest struct {
	PatientID   string                 `json:"patient_id,omitempty"`
	PatientData map[string]interface{} `json:"patient_data"`
}

type ClassProbability struct {
	Class       float64 `json:"class"`
	Probability float64 `json:"probability"`
}

type Prediction struct {
	ComplicationPredicted bool               `json:"complication_predicted"`
	Probabilities         []float64          `json:"probabilities"`
	Classes               []ClassProbability `json:"classes"`
}

type PredictionResponse struct {
	PatientID       string             `json:"patient_id,omitempty"`
	Prediction      Prediction         `json:"prediction"`
	PatientDataUsed map[string]float64 `json:"patient_data_used,omitempty"`
	LatencyMs       float64            `json:"latency_ms"`
	Timestamp       time.Time          `json:"timestamp"`
}

// Note analysis
type NotesRequest struct {
	Notes string `json:"notes"`
}

type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

type ProcessedNotes struct {
	OriginalNotes     string   `json:"original_notes"`
	ExtractedEntities []Entity `json:"extracted_entities"`
	Keywords          []string `json:"keywords"`
	MedicalTerms      []string `json:"medical_terms"`
}

type NotesResponse struct {
	PatientID      string         `json:"patient_id,omitempty"`
	ProcessedNotes ProcessedNotes `json:"processed_notes"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Dashboard insights
type InsightRequest struct {
	PatientData map[string]interface{} `json:"patient_data"`
	Notes       string                 `json:"notes"`
}

type InsightResponse struct {
	PatientID      string         `json:"patient_id,omitempty"`
	PatientName    string         `json:"patient_name,omitempty"`
	Insights       string         `json:"insights"`
	Prediction     Prediction     `json:"prediction"`
	ProcessedNotes ProcessedNotes `json:"processed_notes"`
	LatestVitals   interface{}    `json:"latest_vital_signs,omitempty"`
	LatestLabs     interface{}    `json:"latest_lab_results,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
