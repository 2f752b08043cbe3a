package api

import (
	"github.com/synaptica-ai/clinical-insights/pkg/common/models"
	"github.com/synaptica-ai/clinical-insights/pkg/insights"
	"github.com/synaptica-ai/clinical-insights/pkg/nlp"
	"github.com/synaptica-ai/clinical-insights/pkg/training"
)

func toPrediction(result insights.PredictionResult) models.Prediction {
	pairs := make([]models.ClassProbability, len(result.Classes))
	for i, c := range result.Classes {
		pairs[i] = models.ClassProbability{Class: c.Class, Probability: c.Probability}
	}
	return models.Prediction{
		ComplicationPredicted: result.PredictedLabel,
		Probabilities:         result.Probabilities,
		Classes:               pairs,
	}
}

func toProcessedNotes(analysis nlp.NoteAnalysis) models.ProcessedNotes {
	entities := make([]models.Entity, len(analysis.Entities))
	for i, e := range analysis.Entities {
		entities[i] = models.Entity{Text: e.Text, Label: e.Label}
	}
	return models.ProcessedNotes{
		OriginalNotes:     analysis.OriginalText,
		ExtractedEntities: entities,
		Keywords:          analysis.Keywords,
		MedicalTerms:      analysis.MedicalTerms,
	}
}

func toTrainResponse(run training.Run) models.TrainResponse {
	return models.TrainResponse{
		RunID:     run.ID.String(),
		Accuracy:  run.Result.Accuracy,
		Features:  []string(run.Result.Features),
		Classes:   run.Result.Classes,
		TrainRows: run.Result.TrainRows,
		TestRows:  run.Result.TestRows,
		TrainedAt: run.Result.TrainedAt,
	}
}

func toTrainingRun(run training.RunModel) models.TrainingRun {
	out := models.TrainingRun{
		ID:           run.ID.String(),
		ModelName:    run.ModelName,
		Source:       run.Source,
		TargetColumn: run.TargetColumn,
		Status:       run.Status,
		ArtifactPath: run.ArtifactPath,
		ErrorMessage: run.ErrorMessage,
		CreatedAt:    run.CreatedAt,
		CompletedAt:  run.CompletedAt,
	}
	if run.Metrics != nil {
		out.Metrics = map[string]interface{}(run.Metrics)
	}
	return out
}

func toModelStatus(model *insights.Model, ok bool) models.ModelStatus {
	if !ok {
		return models.ModelStatus{Trained: false}
	}
	accuracy := model.Accuracy
	trainedAt := model.TrainedAt
	return models.ModelStatus{
		Trained:   true,
		Features:  []string(model.Features),
		Classes:   model.Forest.Classes,
		Accuracy:  &accuracy,
		TrainedAt: &trainedAt,
	}
}
