package insights

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/synaptica-ai/clinical-insights/pkg/common/logger"
	"github.com/synaptica-ai/clinical-insights/pkg/ml/forest"
	"github.com/synaptica-ai/clinical-insights/pkg/observability/metrics"
)

type Options struct {
	TestRatio float64
	Seed      int64
	Trees     int
}

// DefaultOptions holds the fixed 80/20 split, seed and forest size.
func DefaultOptions() Options {
	return Options{TestRatio: 0.2, Seed: 42, Trees: 100}
}

// Model is an immutable trained state: the forest and the feature set that
// produced it always travel together.
type Model struct {
	Forest    *forest.Forest `json:"forest"`
	Features  FeatureSet     `json:"features"`
	Target    string         `json:"target"`
	Accuracy  float64        `json:"accuracy"`
	TrainRows int            `json:"train_rows"`
	TestRows  int            `json:"test_rows"`
	TrainedAt time.Time      `json:"trained_at"`
}

type TrainResult struct {
	Accuracy  float64
	Features  FeatureSet
	Classes   []float64
	TrainRows int
	TestRows  int
	TrainedAt time.Time
}

type ClassProbability struct {
	Class       float64
	Probability float64
}

type PredictionResult struct {
	PredictedLabel bool
	PredictedClass float64
	// Probabilities follow ascending class order; Classes pairs each
	// probability with its class value.
	Probabilities []float64
	Classes       []ClassProbability
}

// Agent owns the trained model handle. Readers load it lock-free; the single
// writer path (Install/Restore) swaps it whole.
type Agent struct {
	opts    Options
	mu      sync.Mutex
	current atomic.Pointer[Model]
}

func NewAgent(opts Options) *Agent {
	if opts.TestRatio <= 0 || opts.TestRatio >= 1 {
		opts.TestRatio = 0.2
	}
	if opts.Trees <= 0 {
		opts.Trees = 100
	}
	return &Agent{opts: opts}
}

// Train fits a model and installs it as the active one.
func (a *Agent) Train(ds Dataset, target string) (TrainResult, error) {
	result, model, err := a.Fit(ds, target)
	if err != nil {
		return TrainResult{}, err
	}
	a.Install(model)
	return result, nil
}

// Fit trains a model without installing it, so callers can persist it first.
func (a *Agent) Fit(ds Dataset, target string) (TrainResult, *Model, error) {
	result, model, err := a.fit(ds, target)
	if err != nil {
		metrics.ObserveTrainingFailure()
		return TrainResult{}, nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"accuracy":   fmt.Sprintf("%.2f", result.Accuracy),
		"features":   []string(result.Features),
		"train_rows": result.TrainRows,
		"test_rows":  result.TestRows,
	}).Info("Complication model trained")

	return result, model, nil
}

// Install swaps in a freshly fitted model.
func (a *Agent) Install(model *Model) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current.Store(model)
	metrics.ObserveTraining(model.Accuracy)
}

func (a *Agent) fit(ds Dataset, target string) (TrainResult, *Model, error) {
	features, err := DeriveFeatureSet(ds.Columns, target)
	if err != nil {
		return TrainResult{}, nil, err
	}
	if len(ds.Rows) < 2 {
		return TrainResult{}, nil, ConfigurationError{reason: fmt.Errorf("need at least 2 rows to split train/test, got %d", len(ds.Rows))}
	}
	samples, labels, err := ds.matrix(features, target)
	if err != nil {
		return TrainResult{}, nil, err
	}

	trainIdx, testIdx := splitIndices(len(samples), a.opts.TestRatio, a.opts.Seed)
	trainX, trainY := pick(samples, labels, trainIdx)
	testX, testY := pick(samples, labels, testIdx)

	model, err := forest.Fit(trainX, trainY, forest.Options{
		Trees:           a.opts.Trees,
		MinSamplesSplit: 2,
		Seed:            a.opts.Seed,
	})
	if err != nil {
		return TrainResult{}, nil, ConfigurationError{reason: err}
	}
	accuracy, err := model.Accuracy(testX, testY)
	if err != nil {
		return TrainResult{}, nil, fmt.Errorf("evaluating model: %w", err)
	}

	trainedAt := time.Now().UTC()
	result := TrainResult{
		Accuracy:  accuracy,
		Features:  features.Clone(),
		Classes:   append([]float64(nil), model.Classes...),
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
		TrainedAt: trainedAt,
	}
	return result, &Model{
		Forest:    model,
		Features:  features,
		Target:    target,
		Accuracy:  accuracy,
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
		TrainedAt: trainedAt,
	}, nil
}

func (a *Agent) Predict(record PatientRecord) (PredictionResult, error) {
	model := a.current.Load()
	if model == nil {
		metrics.ObservePrediction(ErrNotTrained)
		return PredictionResult{}, ErrNotTrained
	}

	if missing := model.Features.Missing(record); len(missing) > 0 {
		logger.Log.WithField("missing_features", missing).Debug("Predicting with missing features")
	}

	class, proba, err := model.Forest.Predict(model.Features.Align(record))
	metrics.ObservePrediction(err)
	if err != nil {
		return PredictionResult{}, fmt.Errorf("classifying record: %w", err)
	}

	pairs := make([]ClassProbability, len(proba))
	for i, p := range proba {
		pairs[i] = ClassProbability{Class: model.Forest.Classes[i], Probability: p}
	}
	return PredictionResult{
		PredictedLabel: class != 0,
		PredictedClass: class,
		Probabilities:  proba,
		Classes:        pairs,
	}, nil
}

// Model returns the active model, or false while untrained.
func (a *Agent) Model() (*Model, bool) {
	model := a.current.Load()
	return model, model != nil
}

// Restore installs a previously persisted model.
func (a *Agent) Restore(model *Model) error {
	if model == nil || model.Forest == nil || len(model.Forest.Trees) == 0 {
		return errors.New("restore: artifact has no fitted forest")
	}
	if len(model.Features) == 0 || model.Forest.FeatureCount != len(model.Features) {
		return fmt.Errorf("restore: forest expects %d features, artifact lists %d", model.Forest.FeatureCount, len(model.Features))
	}
	if err := model.Forest.Validate(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current.Store(model)
	metrics.SetActiveAccuracy(model.Accuracy)
	return nil
}

func splitIndices(n int, testRatio float64, seed int64) ([]int, []int) {
	nTest := int(math.Ceil(testRatio * float64(n)))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest]
}

func pick(samples [][]float64, labels []float64, idx []int) ([][]float64, []float64) {
	x := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for i, j := range idx {
		x[i] = samples[j]
		y[i] = labels[j]
	}
	return x, y
}
