package insights

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/synaptica-ai/clinical-insights/pkg/ml/forest"
	"github.com/synaptica-ai/clinical-insights/pkg/observability/metrics"
)

var vitalColumns = []string{"pressure", "temperature", "glucose", "age", "outcome"}

// vitalsDataset builds rows where fever and high glucose mark a complication.
func vitalsDataset(n int) Dataset {
	ds := Dataset{Columns: vitalColumns}
	for i := 0; i < n; i++ {
		complicated := i%2 == 0
		row := PatientRecord{
			"pressure":    110 + float64(i%7)*5,
			"temperature": 36.5 + float64(i%5)*0.1,
			"glucose":     90 + float64(i%9)*3,
			"age":         30 + float64(i%40),
			"outcome":     0,
		}
		if complicated {
			row["temperature"] = 38.4 + float64(i%5)*0.1
			row["glucose"] = 160 + float64(i%9)*4
			row["outcome"] = 1
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}

func TestPredictBeforeTrain(t *testing.T) {
	agent := NewAgent(DefaultOptions())
	_, err := agent.Predict(PatientRecord{"age": 65})
	if !errors.Is(err, ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
	if _, ok := agent.Model(); ok {
		t.Fatal("untrained agent must not expose a model")
	}
}

func TestTrainAndPredict(t *testing.T) {
	agent := NewAgent(DefaultOptions())
	result, err := agent.Train(vitalsDataset(60), "outcome")
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if result.Accuracy < 0 || result.Accuracy > 1 {
		t.Fatalf("accuracy out of range: %v", result.Accuracy)
	}
	if result.TestRows != 12 || result.TrainRows != 48 {
		t.Fatalf("expected 48/12 split, got %d/%d", result.TrainRows, result.TestRows)
	}
	if len(result.Features) != 4 || result.Features[0] != "pressure" || result.Features[3] != "age" {
		t.Fatalf("unexpected features %v", result.Features)
	}

	pred, err := agent.Predict(PatientRecord{"pressure": 130, "temperature": 38.5, "glucose": 150, "age": 65})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(pred.Probabilities) != 2 || len(pred.Classes) != 2 {
		t.Fatalf("expected 2 probabilities, got %v", pred.Probabilities)
	}
	if pred.Classes[0].Class != 0 || pred.Classes[1].Class != 1 {
		t.Fatalf("classes must be ascending, got %+v", pred.Classes)
	}
	sum := pred.Probabilities[0] + pred.Probabilities[1]
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities must sum to 1, got %v", sum)
	}
	if pred.PredictedLabel != (pred.PredictedClass != 0) {
		t.Fatalf("label %v inconsistent with class %v", pred.PredictedLabel, pred.PredictedClass)
	}
}

func TestPredictWithMissingFeatures(t *testing.T) {
	agent := NewAgent(DefaultOptions())
	if _, err := agent.Train(vitalsDataset(40), "outcome"); err != nil {
		t.Fatalf("train: %v", err)
	}
	pred, err := agent.Predict(PatientRecord{"age": 70, "unknown": 1})
	if err != nil {
		t.Fatalf("predict with sparse record: %v", err)
	}
	if len(pred.Probabilities) != 2 {
		t.Fatalf("expected 2 probabilities, got %v", pred.Probabilities)
	}
}

func TestTrainingIsDeterministic(t *testing.T) {
	ds := vitalsDataset(50)
	record := PatientRecord{"pressure": 125, "temperature": 37.9, "glucose": 140, "age": 55}

	a, b := NewAgent(DefaultOptions()), NewAgent(DefaultOptions())
	ra, err := a.Train(ds, "outcome")
	if err != nil {
		t.Fatal(err)
	}
	rb, err := b.Train(ds, "outcome")
	if err != nil {
		t.Fatal(err)
	}
	if ra.Accuracy != rb.Accuracy {
		t.Fatalf("accuracy differs between identical runs: %v vs %v", ra.Accuracy, rb.Accuracy)
	}
	pa, _ := a.Predict(record)
	pb, _ := b.Predict(record)
	for i := range pa.Probabilities {
		if pa.Probabilities[i] != pb.Probabilities[i] {
			t.Fatalf("probabilities differ: %v vs %v", pa.Probabilities, pb.Probabilities)
		}
	}
}

func TestTrainRejectsBadInput(t *testing.T) {
	agent := NewAgent(DefaultOptions())

	cases := map[string]struct {
		ds     Dataset
		target string
	}{
		"missing target":  {ds: vitalsDataset(10), target: "mortality"},
		"single row":      {ds: vitalsDataset(1), target: "outcome"},
		"only target":     {ds: Dataset{Columns: []string{"outcome"}, Rows: []PatientRecord{{"outcome": 1}, {"outcome": 0}}}, target: "outcome"},
		"unlabelled rows": {ds: Dataset{Columns: vitalColumns, Rows: []PatientRecord{{"age": 1}, {"age": 2, "outcome": 1}}}, target: "outcome"},
	}
	for name, tc := range cases {
		if _, err := agent.Train(tc.ds, tc.target); !IsConfigurationError(err) {
			t.Fatalf("%s: expected ConfigurationError, got %v", name, err)
		}
	}
	if _, ok := agent.Model(); ok {
		t.Fatal("failed training must leave the agent untrained")
	}
}

func TestFailedRetrainKeepsPreviousModel(t *testing.T) {
	agent := NewAgent(DefaultOptions())
	if _, err := agent.Train(vitalsDataset(30), "outcome"); err != nil {
		t.Fatal(err)
	}
	before, _ := agent.Model()
	if _, err := agent.Train(vitalsDataset(30), "mortality"); err == nil {
		t.Fatal("expected retrain to fail")
	}
	after, ok := agent.Model()
	if !ok || after != before {
		t.Fatal("failed retrain must keep the previous model")
	}
}

// Predictions racing a retrain must always see a forest and feature set
// from the same training run.
func TestConcurrentRetrainSwapsAtomically(t *testing.T) {
	agent := NewAgent(Options{TestRatio: 0.2, Seed: 42, Trees: 10})
	if _, err := agent.Train(vitalsDataset(40), "outcome"); err != nil {
		t.Fatal(err)
	}

	narrow := Dataset{Columns: []string{"temperature", "outcome"}}
	for _, row := range vitalsDataset(40).Rows {
		narrow.Rows = append(narrow.Rows, PatientRecord{"temperature": row["temperature"], "outcome": row["outcome"]})
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := agent.Predict(PatientRecord{"pressure": 120, "temperature": 38.6, "glucose": 170, "age": 60}); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		ds := vitalsDataset(40)
		if i%2 == 0 {
			ds = narrow
		}
		if _, err := agent.Train(ds, "outcome"); err != nil {
			t.Fatalf("retrain %d: %v", i, err)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("prediction during retrain failed: %v", err)
	}

	model, _ := agent.Model()
	if model.Forest.FeatureCount != len(model.Features) {
		t.Fatalf("model feature count %d does not match feature set %v", model.Forest.FeatureCount, model.Features)
	}
}

func TestRestoreValidatesArtifact(t *testing.T) {
	trained := NewAgent(DefaultOptions())
	if _, err := trained.Train(vitalsDataset(30), "outcome"); err != nil {
		t.Fatal(err)
	}
	model, _ := trained.Model()

	fresh := NewAgent(DefaultOptions())
	if err := fresh.Restore(nil); err == nil {
		t.Fatal("expected error restoring nil model")
	}
	broken := *model
	broken.Features = broken.Features[:1]
	if err := fresh.Restore(&broken); err == nil {
		t.Fatal("expected error for feature count mismatch")
	}
	if err := fresh.Restore(model); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := fresh.Predict(PatientRecord{"age": 50}); err != nil {
		t.Fatalf("predict after restore: %v", err)
	}
}

func stump(feature int, leftDist []float64) *forest.Forest {
	return &forest.Forest{
		Classes:      []float64{0, 1},
		FeatureCount: 4,
		Trees: []forest.Tree{{Nodes: []forest.Node{
			{Feature: feature, Threshold: 37.5, Left: 1, Right: 2},
			{Leaf: true, Distribution: leftDist},
			{Leaf: true, Distribution: []float64{0, 1}},
		}}},
	}
}

func TestRestoreRejectsCorruptForest(t *testing.T) {
	features := FeatureSet{"pressure", "temperature", "glucose", "age"}
	agent := NewAgent(DefaultOptions())

	cases := map[string]*forest.Forest{
		"feature out of range":  stump(9, []float64{1, 0}),
		"distribution too long": stump(1, []float64{0.5, 0.25, 0.25}),
	}
	for name, f := range cases {
		if err := agent.Restore(&Model{Forest: f, Features: features}); !errors.Is(err, forest.ErrInvalidModel) {
			t.Fatalf("%s: expected ErrInvalidModel, got %v", name, err)
		}
	}
	if _, ok := agent.Model(); ok {
		t.Fatal("corrupt forest must not be installed")
	}

	if err := agent.Restore(&Model{Forest: stump(1, []float64{1, 0}), Features: features, Accuracy: 0.75}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := metrics.LastAccuracy(); got != 0.75 {
		t.Fatalf("expected accuracy gauge 0.75 after restore, got %v", got)
	}
	pred, err := agent.Predict(PatientRecord{"temperature": 36.8})
	if err != nil || pred.PredictedClass != 0 {
		t.Fatalf("unexpected prediction %+v %v", pred, err)
	}
}

func TestFitDoesNotInstall(t *testing.T) {
	agent := NewAgent(Options{Trees: 10, Seed: 42})
	result, model, err := agent.Fit(vitalsDataset(30), "outcome")
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if _, ok := agent.Model(); ok {
		t.Fatal("fit must leave the agent untrained")
	}
	agent.Install(model)
	active, ok := agent.Model()
	if !ok || active != model {
		t.Fatal("expected installed model to be active")
	}
	if metrics.LastAccuracy() != result.Accuracy {
		t.Fatalf("expected accuracy gauge %v, got %v", result.Accuracy, metrics.LastAccuracy())
	}
}
