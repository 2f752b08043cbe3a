package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/synaptica-ai/clinical-insights/pkg/common/models"
	"github.com/synaptica-ai/clinical-insights/pkg/insights"
	"github.com/synaptica-ai/clinical-insights/pkg/records"
)

func (h *Handler) registerPatients(router *mux.Router) {
	router.HandleFunc("/patients", h.handleListPatients).Methods(http.MethodGet)
	router.HandleFunc("/patients", h.handleCreatePatient).Methods(http.MethodPost)
	router.HandleFunc("/patients/{id:[0-9]+}", h.handleGetPatient).Methods(http.MethodGet)
	router.HandleFunc("/patients/{id:[0-9]+}/vital-signs", h.handleAddVitalSigns).Methods(http.MethodPost)
	router.HandleFunc("/patients/{id:[0-9]+}/lab-results", h.handleAddLabResults).Methods(http.MethodPost)
	router.HandleFunc("/patients/{id:[0-9]+}/clinical-notes", h.handleAddClinicalNote).Methods(http.MethodPost)
	router.HandleFunc("/patients/{id:[0-9]+}/predict-complications", h.handlePredictPatient).Methods(http.MethodGet)
	router.HandleFunc("/patients/{id:[0-9]+}/process-notes", h.handleProcessNotes).Methods(http.MethodPost)
	router.HandleFunc("/patients/{id:[0-9]+}/dashboard-insights", h.handleDashboardInsights).Methods(http.MethodGet)
}

// patientID resolves the {id} route variable. It writes the error response
// itself and reports false when the request cannot proceed.
func (h *Handler) patientID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	if h.Patients == nil {
		writeError(w, r, errRecordsUnavailable)
		return 0, false
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil || id == 0 {
		writeError(w, r, insights.NewValidationError(errors.New("invalid patient id")))
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) handleListPatients(w http.ResponseWriter, r *http.Request) {
	if h.Patients == nil {
		writeError(w, r, errRecordsUnavailable)
		return
	}
	patients, err := h.Patients.ListPatients(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if patients == nil {
		patients = []records.Patient{}
	}
	writeJSON(w, http.StatusOK, patients)
}

func (h *Handler) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	if h.Patients == nil {
		writeError(w, r, errRecordsUnavailable)
		return
	}
	var in records.CreatePatientInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	patient, err := h.Patients.CreatePatient(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

func (h *Handler) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.patientID(w, r)
	if !ok {
		return
	}
	patient, err := h.Patients.GetPatient(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

func (h *Handler) handleAddVitalSigns(w http.ResponseWriter, r *http.Request) {
	id, ok := h.patientID(w, r)
	if !ok {
		return
	}
	var in records.VitalSignsInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	row, err := h.Patients.AddVitalSigns(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (h *Handler) handleAddLabResults(w http.ResponseWriter, r *http.Request) {
	id, ok := h.patientID(w, r)
	if !ok {
		return
	}
	var in records.LabResultsInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	row, err := h.Patients.AddLabResults(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (h *Handler) handleAddClinicalNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.patientID(w, r)
	if !ok {
		return
	}
	var in records.ClinicalNoteInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	row, err := h.Patients.AddClinicalNote(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (h *Handler) handlePredictPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.patientID(w, r)
	if !ok {
		return
	}
	record, err := h.Patients.FeatureSnapshot(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.predict(r.Context(), formatID(id), record)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleProcessNotes analyzes the posted notes, or the patient's latest
// clinical note when the body carries none.
func (h *Handler) handleProcessNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.patientID(w, r)
	if !ok {
		return
	}
	var req models.NotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, insights.NewValidationError(errors.New("invalid request body: "+err.Error())))
		return
	}

	text := req.Notes
	if strings.TrimSpace(text) == "" {
		note, err := h.latestNote(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		text = note
	}

	analysis, err := h.analyze(r.Context(), formatID(id), text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NotesResponse{
		PatientID:      formatID(id),
		ProcessedNotes: toProcessedNotes(analysis),
		Timestamp:      time.Now().UTC(),
	})
}

func (h *Handler) handleDashboardInsights(w http.ResponseWriter, r *http.Request) {
	id, ok := h.patientID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	patient, err := h.Patients.GetPatient(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	record, err := h.Patients.FeatureSnapshot(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	latest, err := h.Patients.Latest(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	notes := ""
	if latest.ClinicalNote != nil {
		notes = latest.ClinicalNote.Content
	}

	resp, err := h.insight(ctx, formatID(id), record, notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp.PatientName = patient.Name
	if latest.VitalSigns != nil {
		resp.LatestVitals = latest.VitalSigns
	}
	if latest.LabResults != nil {
		resp.LatestLabs = latest.LabResults
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) latestNote(ctx context.Context, id uint) (string, error) {
	// GetPatient surfaces ErrPatientNotFound before Latest returns empty rows.
	if _, err := h.Patients.GetPatient(ctx, id); err != nil {
		return "", err
	}
	latest, err := h.Patients.Latest(ctx, id)
	if err != nil {
		return "", err
	}
	if latest.ClinicalNote == nil {
		return "", nil
	}
	return latest.ClinicalNote.Content, nil
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
