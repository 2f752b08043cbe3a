package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/synaptica-ai/clinical-insights/pkg/common/logger"
	"github.com/synaptica-ai/clinical-insights/pkg/common/models"
	"github.com/synaptica-ai/clinical-insights/pkg/dlp"
	"github.com/synaptica-ai/clinical-insights/pkg/insights"
	"github.com/synaptica-ai/clinical-insights/pkg/nlp"
	"github.com/synaptica-ai/clinical-insights/pkg/observability/metrics"
	"github.com/synaptica-ai/clinical-insights/pkg/records"
	"github.com/synaptica-ai/clinical-insights/pkg/training"
)

type Trainer interface {
	Train(ctx context.Context, ds insights.Dataset, target, source string) (training.Run, error)
	Runs(ctx context.Context, limit int) ([]training.RunModel, error)
}

type NoteAnalyzer interface {
	Analyze(ctx context.Context, text string) (nlp.NoteAnalysis, error)
}

// Patients is satisfied by records.Service.
type Patients interface {
	CreatePatient(ctx context.Context, in records.CreatePatientInput) (*records.Patient, error)
	ListPatients(ctx context.Context) ([]records.Patient, error)
	GetPatient(ctx context.Context, id uint) (*records.Patient, error)
	AddVitalSigns(ctx context.Context, patientID uint, in records.VitalSignsInput) (*records.VitalSigns, error)
	AddLabResults(ctx context.Context, patientID uint, in records.LabResultsInput) (*records.LabResults, error)
	AddClinicalNote(ctx context.Context, patientID uint, in records.ClinicalNoteInput) (*records.ClinicalNote, error)
	Latest(ctx context.Context, patientID uint) (records.Latest, error)
	FeatureSnapshot(ctx context.Context, patientID uint) (insights.PatientRecord, error)
	TrainingDataset(ctx context.Context, target string) (insights.Dataset, error)
}

type PredictionLogger interface {
	RecordPrediction(ctx context.Context, patientID string, record insights.PatientRecord, result insights.PredictionResult, latency time.Duration) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, eventType, partitionKey string, data map[string]interface{}) error
}

// Deps wires the handler. Patients, Logs, Publisher and Scrubber are optional.
type Deps struct {
	Agent        *insights.Agent
	Trainer      Trainer
	Analyzer     NoteAnalyzer
	Patients     Patients
	Logs         PredictionLogger
	Publisher    Publisher
	Scrubber     *dlp.Detector
	TargetColumn string
}

type Handler struct {
	Deps
}

func NewHandler(deps Deps) *Handler {
	if deps.TargetColumn == "" {
		deps.TargetColumn = "complication"
	}
	return &Handler{Deps: deps}
}

// Register mounts the API under router, normally the /api/v1 subrouter.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/model/train", h.handleTrain).Methods(http.MethodPost)
	router.HandleFunc("/model", h.handleModelStatus).Methods(http.MethodGet)
	router.HandleFunc("/model/runs", h.handleRuns).Methods(http.MethodGet)
	router.HandleFunc("/predict", h.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/notes/analyze", h.handleAnalyze).Methods(http.MethodPost)
	router.HandleFunc("/insights", h.handleInsights).Methods(http.MethodPost)
	h.registerPatients(router)
}

// RegisterOps mounts health and metrics endpoints.
func (h *Handler) RegisterOps(router *mux.Router, lexiconReady func() bool) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, trained := h.Agent.Model()
		body := map[string]interface{}{
			"status":        "healthy",
			"model_trained": trained,
			"records":       h.Patients != nil,
		}
		if lexiconReady != nil {
			body["lexicon_loaded"] = lexiconReady()
		}
		writeJSON(w, http.StatusOK, body)
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)
}

func (h *Handler) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req models.TrainRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target := strings.TrimSpace(req.TargetColumn)
	if target == "" {
		target = h.TargetColumn
	}

	var (
		ds     insights.Dataset
		source string
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(req.Source)) {
	case training.SourceRecords:
		if h.Patients == nil {
			writeError(w, r, errRecordsUnavailable)
			return
		}
		source = training.SourceRecords
		ds, err = h.Patients.TrainingDataset(r.Context(), target)
	case "", training.SourceInline:
		source = training.SourceInline
		ds, err = insights.NewDataset(req.Columns, req.Rows)
	default:
		err = insights.NewValidationError(errors.New("source must be 'inline' or 'records'"))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	run, err := h.Trainer.Train(r.Context(), ds, target, source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrainResponse(run))
}

func (h *Handler) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toModelStatus(h.Agent.Model()))
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Trainer.Runs(r.Context(), 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]models.TrainingRun, 0, len(runs))
	for _, run := range runs {
		out = append(out, toTrainingRun(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	record, err := insights.ParsePatientRecord(req.PatientData)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.predict(r.Context(), req.PatientID, record)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) predict(ctx context.Context, patientID string, record insights.PatientRecord) (models.PredictionResponse, error) {
	start := time.Now()
	result, err := h.Agent.Predict(record)
	if err != nil {
		return models.PredictionResponse{}, err
	}
	latency := time.Since(start)

	if h.Logs != nil {
		if err := h.Logs.RecordPrediction(ctx, patientID, record, result, latency); err != nil {
			logger.Log.WithError(err).WithField("patient_id", patientID).Warn("failed to record prediction log")
		}
	}
	h.publish(ctx, models.EventPredictionCompleted, patientID, map[string]interface{}{
		"patient_id":             patientID,
		"complication_predicted": result.PredictedLabel,
		"probabilities":          result.Probabilities,
	})

	return models.PredictionResponse{
		PatientID:       patientID,
		Prediction:      toPrediction(result),
		PatientDataUsed: record,
		LatencyMs:       float64(latency.Microseconds()) / 1000.0,
		Timestamp:       time.Now().UTC(),
	}, nil
}

type analyzeRequest struct {
	Notes *string `json:"notes"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Notes == nil {
		writeError(w, r, insights.NewValidationError(errors.New(`field "notes" is required`)))
		return
	}
	analysis, err := h.analyze(r.Context(), "", *req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NotesResponse{
		ProcessedNotes: toProcessedNotes(analysis),
		Timestamp:      time.Now().UTC(),
	})
}

func (h *Handler) analyze(ctx context.Context, patientID, text string) (nlp.NoteAnalysis, error) {
	analysis, err := h.Analyzer.Analyze(ctx, text)
	if err != nil {
		return nlp.NoteAnalysis{}, err
	}
	logger.Log.WithFields(map[string]interface{}{
		"patient_id":    patientID,
		"entities":      len(analysis.Entities),
		"medical_terms": len(analysis.MedicalTerms),
	}).Debug("Clinical notes analyzed")

	if strings.TrimSpace(text) != "" {
		h.publish(ctx, models.EventNotesAnalyzed, patientID, map[string]interface{}{
			"patient_id":    patientID,
			"entity_count":  len(analysis.Entities),
			"medical_terms": analysis.MedicalTerms,
			"keywords":      analysis.Keywords,
		})
	}
	return analysis, nil
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req models.InsightRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	record, err := insights.ParsePatientRecord(req.PatientData)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.insight(r.Context(), "", record, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) insight(ctx context.Context, patientID string, record insights.PatientRecord, notes string) (models.InsightResponse, error) {
	prediction, err := h.predict(ctx, patientID, record)
	if err != nil {
		return models.InsightResponse{}, err
	}
	analysis, err := h.analyze(ctx, patientID, notes)
	if err != nil {
		return models.InsightResponse{}, err
	}
	result := insights.PredictionResult{
		PredictedLabel: prediction.Prediction.ComplicationPredicted,
		Probabilities:  prediction.Prediction.Probabilities,
	}
	return models.InsightResponse{
		PatientID:      patientID,
		Insights:       insights.Synthesize(result, analysis),
		Prediction:     prediction.Prediction,
		ProcessedNotes: toProcessedNotes(analysis),
		Timestamp:      time.Now().UTC(),
	}, nil
}

// publish scrubs identifiers from the payload before it leaves the process.
func (h *Handler) publish(ctx context.Context, eventType, key string, data map[string]interface{}) {
	if h.Publisher == nil {
		return
	}
	if err := h.Publisher.PublishEvent(ctx, eventType, key, h.Scrubber.Sanitize(data)); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("failed to publish event")
	}
}
