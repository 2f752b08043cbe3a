package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/synaptica-ai/clinical-insights/pkg/common/logger"
	"github.com/synaptica-ai/clinical-insights/pkg/common/models"
	"github.com/synaptica-ai/clinical-insights/pkg/insights"
	"github.com/synaptica-ai/clinical-insights/pkg/observability/metrics"
)

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType, partitionKey string, data map[string]interface{}) error
}

// Service trains the agent and persists each run and its artifact.
type Service struct {
	// mu keeps the artifact written by a run paired with the model it trained.
	mu          sync.Mutex
	agent       *insights.Agent
	runs        RunStore
	publisher   Publisher
	artifactDir string
	modelName   string
}

func NewService(agent *insights.Agent, runs RunStore, publisher Publisher, artifactDir, modelName string) (*Service, error) {
	if modelName == "" {
		modelName = "complication"
	}
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return nil, err
	}
	return &Service{
		agent:       agent,
		runs:        runs,
		publisher:   publisher,
		artifactDir: artifactDir,
		modelName:   modelName,
	}, nil
}

func (s *Service) Train(ctx context.Context, ds insights.Dataset, target, source string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := uuid.New()
	now := time.Now().UTC()
	if s.runs != nil {
		run := &RunModel{
			ID:           runID,
			ModelName:    s.modelName,
			Source:       source,
			TargetColumn: target,
			Status:       StatusRunning,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.runs.Create(ctx, run); err != nil {
			logger.Log.WithError(err).Warn("failed to record training run")
		}
	}

	result, model, err := s.agent.Fit(ds, target)
	if err != nil {
		s.failRun(ctx, runID, err)
		return Run{ID: runID, Source: source, Status: StatusFailed}, err
	}

	path, err := s.writeArtifact(Artifact{
		RunID:     runID,
		ModelName: s.modelName,
		Source:    source,
		CreatedAt: result.TrainedAt,
		Model:     model,
	})
	if err != nil {
		// The previous model stays active and matches <model>_latest.json.
		err = fmt.Errorf("artifact write failed: %w", err)
		metrics.ObserveTrainingFailure()
		s.failRun(ctx, runID, err)
		return Run{ID: runID, Source: source, Status: StatusFailed, Result: result}, err
	}
	s.agent.Install(model)

	scores := map[string]interface{}{
		"accuracy":   result.Accuracy,
		"train_rows": result.TrainRows,
		"test_rows":  result.TestRows,
		"classes":    result.Classes,
	}
	if s.runs != nil {
		if err := s.runs.Complete(ctx, runID, featuresJSON(result.Features), scores, path); err != nil {
			logger.Log.WithError(err).Warn("failed to mark training run complete")
		}
	}
	s.publish(ctx, runID, result)

	return Run{ID: runID, Source: source, Status: StatusCompleted, ArtifactPath: path, Result: result}, nil
}

// RestoreLatest loads the newest artifact into the agent. It reports false
// when no artifact exists yet.
func (s *Service) RestoreLatest() (bool, error) {
	artifact, err := LoadArtifact(s.latestPath())
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.agent.Restore(artifact.Model); err != nil {
		return false, err
	}
	logger.Log.WithFields(map[string]interface{}{
		"run_id":   artifact.RunID.String(),
		"accuracy": artifact.Model.Accuracy,
	}).Info("Restored complication model from artifact")
	return true, nil
}

func (s *Service) Runs(ctx context.Context, limit int) ([]RunModel, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.List(ctx, limit)
}

func (s *Service) latestPath() string {
	return filepath.Join(s.artifactDir, fmt.Sprintf("%s_latest.json", s.modelName))
}

func (s *Service) failRun(ctx context.Context, runID uuid.UUID, err error) {
	logger.Log.WithError(err).WithField("run_id", runID.String()).Error("training run failed")
	if s.runs != nil {
		_ = s.runs.Fail(ctx, runID, err.Error())
	}
}

func (s *Service) publish(ctx context.Context, runID uuid.UUID, result insights.TrainResult) {
	if s.publisher == nil {
		return
	}
	data := map[string]interface{}{
		"run_id":     runID.String(),
		"model_name": s.modelName,
		"accuracy":   result.Accuracy,
		"features":   []string(result.Features),
		"trained_at": result.TrainedAt,
	}
	if err := s.publisher.PublishEvent(ctx, models.EventModelTrained, s.modelName, data); err != nil {
		logger.Log.WithError(err).Warn("failed to publish model.trained event")
	}
}

// writeArtifact stores <run_id>.json and replaces <model>_latest.json.
func (s *Service) writeArtifact(artifact Artifact) (string, error) {
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.artifactDir, fmt.Sprintf("%s.json", artifact.RunID.String()))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", err
	}
	tmp := s.latestPath() + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	if err := os.Rename(tmp, s.latestPath()); err != nil {
		_ = os.Remove(tmp)
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// LoadArtifact reads a model artifact written by a training run.
func LoadArtifact(path string) (*Artifact, error) {
	payload, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("decoding artifact %s: %w", path, err)
	}
	if artifact.Model == nil {
		return nil, fmt.Errorf("artifact %s has no model", path)
	}
	return &artifact, nil
}

func featuresJSON(features insights.FeatureSet) datatypes.JSON {
	payload, _ := json.Marshal([]string(features))
	return datatypes.JSON(payload)
}
