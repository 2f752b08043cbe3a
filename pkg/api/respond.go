package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/synaptica-ai/clinical-insights/pkg/common/logger"
	"github.com/synaptica-ai/clinical-insights/pkg/common/models"
	"github.com/synaptica-ai/clinical-insights/pkg/gateway/middleware"
	"github.com/synaptica-ai/clinical-insights/pkg/insights"
	"github.com/synaptica-ai/clinical-insights/pkg/nlp"
	"github.com/synaptica-ai/clinical-insights/pkg/records"
)

var errRecordsUnavailable = errors.New("patient records store not configured")

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.WithError(err).Warn("failed to encode response")
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case insights.IsValidationError(err), insights.IsConfigurationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, insights.ErrNotTrained):
		status = http.StatusConflict
	case errors.Is(err, records.ErrPatientNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errRecordsUnavailable):
		status = http.StatusServiceUnavailable
	case nlp.IsModelUnavailable(err):
		status = http.StatusInternalServerError
	default:
		message = "internal server error"
	}

	entry := logger.Log.WithError(err).WithFields(map[string]interface{}{
		"path":       r.URL.Path,
		"status":     status,
		"request_id": middleware.RequestID(r.Context()),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}

	writeJSON(w, status, models.ErrorResponse{Error: message})
}

func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return insights.NewValidationError(errors.New("invalid request body: " + err.Error()))
	}
	return nil
}
