// Package forest implements a random-forest classifier over dense float64
// feature vectors. NaN marks a missing value both at fit and predict time.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
)

var (
	ErrEmptyDataset    = errors.New("forest: empty dataset")
	ErrNotFitted       = errors.New("forest: model not fitted")
	ErrFeatureMismatch = errors.New("forest: feature count mismatch")
	ErrInvalidModel    = errors.New("forest: invalid model")
)

type Options struct {
	Trees           int
	MaxFeatures     int // 0 selects floor(sqrt(features))
	MaxDepth        int // 0 grows until leaves are pure
	MinSamplesSplit int
	Seed            int64
}

func DefaultOptions() Options {
	return Options{Trees: 100, MinSamplesSplit: 2, Seed: 42}
}

type Node struct {
	Feature      int       `json:"feature"`
	Threshold    float64   `json:"threshold"`
	Left         int       `json:"left"`
	Right        int       `json:"right"`
	MissingLeft  bool      `json:"missing_left"`
	Leaf         bool      `json:"leaf"`
	Distribution []float64 `json:"distribution,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is safe for concurrent prediction once fitted.
type Forest struct {
	Classes      []float64 `json:"classes"`
	FeatureCount int       `json:"feature_count"`
	Trees        []Tree    `json:"trees"`
}

func Fit(samples [][]float64, labels []float64, opts Options) (*Forest, error) {
	if len(samples) == 0 || len(labels) == 0 {
		return nil, ErrEmptyDataset
	}
	if len(samples) != len(labels) {
		return nil, fmt.Errorf("forest: %d samples but %d labels", len(samples), len(labels))
	}
	featureCount := len(samples[0])
	if featureCount == 0 {
		return nil, fmt.Errorf("forest: samples have no features: %w", ErrFeatureMismatch)
	}
	for i, sample := range samples {
		if len(sample) != featureCount {
			return nil, fmt.Errorf("forest: sample %d has %d features, want %d: %w", i, len(sample), featureCount, ErrFeatureMismatch)
		}
		if math.IsNaN(labels[i]) || math.IsInf(labels[i], 0) {
			return nil, fmt.Errorf("forest: label %d is not finite", i)
		}
	}

	opts = normalizeOptions(opts, featureCount)
	classes, encoded := encodeLabels(labels)

	// Seeds are drawn up front so the result does not depend on scheduling.
	rng := rand.New(rand.NewSource(opts.Seed))
	seeds := make([]int64, opts.Trees)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	trees := make([]Tree, opts.Trees)
	workers := runtime.GOMAXPROCS(0)
	if workers > opts.Trees {
		workers = opts.Trees
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range trees {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			trees[i] = growTree(samples, encoded, len(classes), opts, seeds[i])
		}(i)
	}
	wg.Wait()

	return &Forest{Classes: classes, FeatureCount: featureCount, Trees: trees}, nil
}

// PredictProba averages the leaf class distributions of every tree. The
// result is indexed like f.Classes (ascending class value).
func (f *Forest) PredictProba(sample []float64) ([]float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if len(sample) != f.FeatureCount {
		return nil, fmt.Errorf("forest: got %d features, want %d: %w", len(sample), f.FeatureCount, ErrFeatureMismatch)
	}
	proba := make([]float64, len(f.Classes))
	for t := range f.Trees {
		dist, err := f.Trees[t].leaf(sample)
		if err != nil {
			return nil, err
		}
		for c, p := range dist {
			proba[c] += p
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.Trees))
	}
	return proba, nil
}

// Predict returns the most probable class; ties resolve to the lowest class.
func (f *Forest) Predict(sample []float64) (float64, []float64, error) {
	proba, err := f.PredictProba(sample)
	if err != nil {
		return 0, nil, err
	}
	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return f.Classes[best], proba, nil
}

// Accuracy is the fraction of samples whose predicted class equals the label.
func (f *Forest) Accuracy(samples [][]float64, labels []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmptyDataset
	}
	var correct int
	for i, sample := range samples {
		predicted, _, err := f.Predict(sample)
		if err != nil {
			return 0, err
		}
		if predicted == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(samples)), nil
}

// Validate checks a deserialised forest before it is used for prediction.
// Children always follow their parent in Nodes, so any other layout is
// rejected as corrupt.
func (f *Forest) Validate() error {
	if f == nil || len(f.Trees) == 0 {
		return ErrNotFitted
	}
	if f.FeatureCount <= 0 || len(f.Classes) == 0 {
		return fmt.Errorf("forest: %d features and %d classes: %w", f.FeatureCount, len(f.Classes), ErrInvalidModel)
	}
	for t, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("forest: tree %d has no nodes: %w", t, ErrInvalidModel)
		}
		for i, node := range tree.Nodes {
			if node.Leaf {
				if len(node.Distribution) != len(f.Classes) {
					return fmt.Errorf("forest: tree %d node %d has %d class weights, want %d: %w", t, i, len(node.Distribution), len(f.Classes), ErrInvalidModel)
				}
				continue
			}
			if node.Feature < 0 || node.Feature >= f.FeatureCount {
				return fmt.Errorf("forest: tree %d node %d splits on feature %d of %d: %w", t, i, node.Feature, f.FeatureCount, ErrInvalidModel)
			}
			for _, child := range []int{node.Left, node.Right} {
				if child <= i || child >= len(tree.Nodes) {
					return fmt.Errorf("forest: tree %d node %d points at node %d: %w", t, i, child, ErrInvalidModel)
				}
			}
		}
	}
	return nil
}

func (t Tree) leaf(sample []float64) ([]float64, error) {
	idx := 0
	for {
		if idx < 0 || idx >= len(t.Nodes) {
			return nil, errors.New("forest: invalid tree state")
		}
		node := t.Nodes[idx]
		if node.Leaf {
			return node.Distribution, nil
		}
		value := sample[node.Feature]
		switch {
		case math.IsNaN(value):
			if node.MissingLeft {
				idx = node.Left
			} else {
				idx = node.Right
			}
		case value <= node.Threshold:
			idx = node.Left
		default:
			idx = node.Right
		}
	}
}

func normalizeOptions(opts Options, featureCount int) Options {
	if opts.Trees <= 0 {
		opts.Trees = 100
	}
	if opts.MinSamplesSplit < 2 {
		opts.MinSamplesSplit = 2
	}
	if opts.MaxFeatures <= 0 {
		opts.MaxFeatures = int(math.Sqrt(float64(featureCount)))
	}
	if opts.MaxFeatures < 1 {
		opts.MaxFeatures = 1
	}
	if opts.MaxFeatures > featureCount {
		opts.MaxFeatures = featureCount
	}
	return opts
}

func encodeLabels(labels []float64) ([]float64, []int) {
	seen := make(map[float64]struct{})
	for _, label := range labels {
		seen[label] = struct{}{}
	}
	classes := make([]float64, 0, len(seen))
	for label := range seen {
		classes = append(classes, label)
	}
	sort.Float64s(classes)

	index := make(map[float64]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded := make([]int, len(labels))
	for i, label := range labels {
		encoded[i] = index[label]
	}
	return classes, encoded
}
