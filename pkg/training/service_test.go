package training

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/synaptica-ai/clinical-insights/pkg/common/models"
	"github.com/synaptica-ai/clinical-insights/pkg/insights"
)

type memoryRuns struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*RunModel
}

func newMemoryRuns() *memoryRuns {
	return &memoryRuns{runs: map[uuid.UUID]*RunModel{}}
}

func (m *memoryRuns) Create(ctx context.Context, run *RunModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *memoryRuns) Complete(ctx context.Context, id uuid.UUID, features datatypes.JSON, metrics map[string]interface{}, artifactPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := m.runs[id]
	run.Status = StatusCompleted
	run.Features = features
	run.Metrics = datatypes.JSONMap(metrics)
	run.ArtifactPath = artifactPath
	return nil
}

func (m *memoryRuns) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := m.runs[id]
	run.Status = StatusFailed
	run.ErrorMessage = errorMessage
	return nil
}

func (m *memoryRuns) List(ctx context.Context, limit int) ([]RunModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RunModel
	for _, run := range m.runs {
		out = append(out, *run)
	}
	return out, nil
}

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, eventType, key string, data map[string]interface{}) error {
	p.events = append(p.events, eventType)
	return nil
}

func sampleDataset() insights.Dataset {
	ds := insights.Dataset{Columns: []string{"temperature", "glucose", "age", "complication"}}
	for i := 0; i < 30; i++ {
		row := insights.PatientRecord{"temperature": 36.6, "glucose": 95 + float64(i), "age": 40 + float64(i), "complication": 0}
		if i%3 == 0 {
			row["temperature"] = 38.9
			row["glucose"] = 190
			row["complication"] = 1
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}

func TestTrainPersistsRunAndArtifact(t *testing.T) {
	dir := t.TempDir()
	runs := newMemoryRuns()
	pub := &recordingPublisher{}
	svc, err := NewService(insights.NewAgent(insights.Options{Trees: 10, Seed: 42}), runs, pub, dir, "complication")
	if err != nil {
		t.Fatal(err)
	}

	run, err := svc.Train(context.Background(), sampleDataset(), "complication", SourceInline)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if run.Status != StatusCompleted {
		t.Fatalf("expected completed run, got %s", run.Status)
	}
	if _, err := os.Stat(run.ArtifactPath); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "complication_latest.json")); err != nil {
		t.Fatalf("latest artifact missing: %v", err)
	}
	stored := runs.runs[run.ID]
	if stored == nil || stored.Status != StatusCompleted || stored.Metrics["accuracy"] == nil {
		t.Fatalf("unexpected stored run %+v", stored)
	}
	if len(pub.events) != 1 || pub.events[0] != models.EventModelTrained {
		t.Fatalf("expected one model.trained event, got %v", pub.events)
	}
}

func TestTrainFailureRecordsRun(t *testing.T) {
	runs := newMemoryRuns()
	svc, err := NewService(insights.NewAgent(insights.DefaultOptions()), runs, nil, t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	run, err := svc.Train(context.Background(), sampleDataset(), "mortality", SourceInline)
	if !insights.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if runs.runs[run.ID].Status != StatusFailed || runs.runs[run.ID].ErrorMessage == "" {
		t.Fatalf("expected failed run with message, got %+v", runs.runs[run.ID])
	}
}

func TestRestoreLatest(t *testing.T) {
	dir := t.TempDir()
	first, err := NewService(insights.NewAgent(insights.Options{Trees: 10, Seed: 42}), nil, nil, dir, "complication")
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := first.RestoreLatest(); ok || err != nil {
		t.Fatalf("expected no artifact yet, got %v %v", ok, err)
	}
	if _, err := first.Train(context.Background(), sampleDataset(), "complication", SourceInline); err != nil {
		t.Fatal(err)
	}

	agent := insights.NewAgent(insights.DefaultOptions())
	second, err := NewService(agent, nil, nil, dir, "complication")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := second.RestoreLatest()
	if err != nil || !ok {
		t.Fatalf("restore: %v %v", ok, err)
	}

	record := insights.PatientRecord{"temperature": 39, "glucose": 200, "age": 70}
	want, err := mustAgent(t, first).Predict(record)
	if err != nil {
		t.Fatal(err)
	}
	got, err := agent.Predict(record)
	if err != nil {
		t.Fatalf("predict after restore: %v", err)
	}
	for i := range want.Probabilities {
		if want.Probabilities[i] != got.Probabilities[i] {
			t.Fatalf("restored model diverges: %v vs %v", want.Probabilities, got.Probabilities)
		}
	}
}

func mustAgent(t *testing.T, svc *Service) *insights.Agent {
	t.Helper()
	if _, ok := svc.agent.Model(); !ok {
		t.Fatal("service agent is untrained")
	}
	return svc.agent
}

func TestLoadArtifactRejectsEmptyModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(`{"run_id":"`+uuid.NewString()+`"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadArtifact(path); err == nil {
		t.Fatal("expected error for artifact without model")
	}
}

func TestTrainKeepsPreviousModelWhenArtifactWriteFails(t *testing.T) {
	dir := t.TempDir()
	runs := newMemoryRuns()
	agent := insights.NewAgent(insights.Options{Trees: 10, Seed: 42})
	svc, err := NewService(agent, runs, nil, dir, "complication")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Train(context.Background(), sampleDataset(), "complication", SourceInline); err != nil {
		t.Fatal(err)
	}
	before, _ := agent.Model()

	// A non-empty directory in place of the latest artifact makes the rename fail.
	latest := filepath.Join(dir, "complication_latest.json")
	if err := os.Remove(latest); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(latest, "occupied"), 0o755); err != nil {
		t.Fatal(err)
	}

	narrower := sampleDataset()
	narrower.Columns = []string{"temperature", "glucose", "complication"}
	run, err := svc.Train(context.Background(), narrower, "complication", SourceInline)
	if err == nil {
		t.Fatal("expected artifact write error")
	}
	if run.Status != StatusFailed || runs.runs[run.ID].Status != StatusFailed {
		t.Fatalf("expected failed run, got %s / %s", run.Status, runs.runs[run.ID].Status)
	}
	after, ok := agent.Model()
	if !ok || after != before {
		t.Fatal("expected the previous model to stay active")
	}
	if len(after.Features) != 3 {
		t.Fatalf("expected previous feature set, got %v", after.Features)
	}
	if _, err := os.Stat(filepath.Join(dir, run.ID.String()+".json")); !os.IsNotExist(err) {
		t.Fatalf("expected orphan run artifact to be removed, got %v", err)
	}
	if _, err := os.Stat(latest + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp artifact to be removed, got %v", err)
	}
}
