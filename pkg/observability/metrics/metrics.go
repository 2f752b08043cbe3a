package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sync/atomic"
)

var (
	trainingRuns       atomic.Int64
	trainingFailures   atomic.Int64
	lastAccuracyBits   atomic.Uint64
	predictions        atomic.Int64
	predictionFailures atomic.Int64
	notesAnalyzed      atomic.Int64
	noteCacheHits      atomic.Int64
	lexiconFetches     atomic.Int64
)

func ObserveTraining(accuracy float64) {
	trainingRuns.Add(1)
	lastAccuracyBits.Store(math.Float64bits(accuracy))
}

// SetActiveAccuracy reports the accuracy of a model installed without
// training, such as one restored from an artifact.
func SetActiveAccuracy(accuracy float64) {
	lastAccuracyBits.Store(math.Float64bits(accuracy))
}

func ObserveTrainingFailure() {
	trainingFailures.Add(1)
}

func ObservePrediction(err error) {
	if err != nil {
		predictionFailures.Add(1)
		return
	}
	predictions.Add(1)
}

func ObserveNoteAnalysis(cacheHit bool) {
	notesAnalyzed.Add(1)
	if cacheHit {
		noteCacheHits.Add(1)
	}
}

func ObserveLexiconFetch() {
	lexiconFetches.Add(1)
}

// LastAccuracy is the held-out accuracy of the active model.
func LastAccuracy() float64 {
	return math.Float64frombits(lastAccuracyBits.Load())
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeMetric(w, "clinical_model_training_runs_total", "counter", "Number of successful training runs.", fmt.Sprintf("%d", trainingRuns.Load()))
	writeMetric(w, "clinical_model_training_failures_total", "counter", "Number of training runs rejected or failed.", fmt.Sprintf("%d", trainingFailures.Load()))
	writeMetric(w, "clinical_model_accuracy", "gauge", "Held-out accuracy of the active complication model.", fmt.Sprintf("%g", LastAccuracy()))
	writeMetric(w, "clinical_predictions_total", "counter", "Number of complication predictions served.", fmt.Sprintf("%d", predictions.Load()))
	writeMetric(w, "clinical_prediction_failures_total", "counter", "Number of complication predictions that failed.", fmt.Sprintf("%d", predictionFailures.Load()))
	writeMetric(w, "clinical_notes_analyzed_total", "counter", "Number of clinical notes analyzed.", fmt.Sprintf("%d", notesAnalyzed.Load()))
	writeMetric(w, "clinical_notes_cache_hits_total", "counter", "Number of note analyses served from cache.", fmt.Sprintf("%d", noteCacheHits.Load()))
	writeMetric(w, "clinical_lexicon_fetches_total", "counter", "Number of times the clinical lexicon was downloaded.", fmt.Sprintf("%d", lexiconFetches.Load()))
}

func writeMetric(w http.ResponseWriter, name, kind, help, value string) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %s\n", name, value)
}
