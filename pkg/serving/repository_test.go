package serving

import (
	"testing"
	"time"

	"github.com/synaptica-ai/clinical-insights/pkg/insights"
)

func TestNewLog(t *testing.T) {
	result := insights.PredictionResult{
		PredictedLabel: true,
		PredictedClass: 1,
		Probabilities:  []float64{0.25, 0.75},
		Classes: []insights.ClassProbability{
			{Class: 0, Probability: 0.25},
			{Class: 1, Probability: 0.75},
		},
	}
	log := NewLog("complication", "7", insights.PatientRecord{"age": 65}, result, 1500*time.Microsecond)

	if log.Confidence != 0.75 {
		t.Fatalf("expected confidence of predicted class, got %v", log.Confidence)
	}
	if log.LatencyMs != 1.5 {
		t.Fatalf("expected 1.5ms latency, got %v", log.LatencyMs)
	}
	if log.Features["age"] != 65.0 {
		t.Fatalf("unexpected features %v", log.Features)
	}
	if log.Response["complication_predicted"] != true {
		t.Fatalf("unexpected response %v", log.Response)
	}
	if log.ID.String() == "" || log.PatientID != "7" {
		t.Fatalf("unexpected identity fields %+v", log)
	}
}
