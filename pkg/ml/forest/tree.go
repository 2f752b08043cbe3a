package forest

import (
	"math"
	"math/rand"
	"sort"
)

type builder struct {
	samples  [][]float64
	labels   []int
	classes  int
	features int
	opts     Options
	rng      *rand.Rand
	nodes    []Node
}

type split struct {
	feature     int
	threshold   float64
	missingLeft bool
	impurity    float64
}

type valueLabel struct {
	value float64
	label int
}

func growTree(samples [][]float64, labels []int, classes int, opts Options, seed int64) Tree {
	b := &builder{
		samples:  samples,
		labels:   labels,
		classes:  classes,
		features: len(samples[0]),
		opts:     opts,
		rng:      rand.New(rand.NewSource(seed)),
	}

	// Bootstrap: n draws with replacement.
	n := len(samples)
	boot := make([]int, n)
	for i := range boot {
		boot[i] = b.rng.Intn(n)
	}
	b.grow(boot, 0)
	return Tree{Nodes: b.nodes}
}

func (b *builder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{})

	counts := b.counts(idx)
	if b.shouldStop(idx, counts, depth) {
		b.nodes[id] = leafNode(counts, len(idx))
		return id
	}

	best, ok := b.bestSplit(idx)
	if !ok {
		b.nodes[id] = leafNode(counts, len(idx))
		return id
	}

	left, right := b.partition(idx, best)
	if len(left) == 0 || len(right) == 0 {
		b.nodes[id] = leafNode(counts, len(idx))
		return id
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{
		Feature:     best.feature,
		Threshold:   best.threshold,
		Left:        l,
		Right:       r,
		MissingLeft: best.missingLeft,
	}
	return id
}

func (b *builder) shouldStop(idx []int, counts []float64, depth int) bool {
	if len(idx) < b.opts.MinSamplesSplit {
		return true
	}
	if b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth {
		return true
	}
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// bestSplit draws features in random order and stops once MaxFeatures
// non-constant features have been evaluated.
func (b *builder) bestSplit(idx []int) (split, bool) {
	best := split{impurity: math.Inf(1)}
	found := false
	evaluated := 0
	for _, feature := range b.rng.Perm(b.features) {
		if evaluated >= b.opts.MaxFeatures {
			break
		}
		candidate, ok := b.evaluate(idx, feature)
		if !ok {
			continue
		}
		evaluated++
		if candidate.impurity < best.impurity {
			best = candidate
			found = true
		}
	}
	return best, found
}

func (b *builder) evaluate(idx []int, feature int) (split, bool) {
	values := make([]valueLabel, 0, len(idx))
	missing := make([]float64, b.classes)
	var missingTotal float64
	for _, i := range idx {
		v := b.samples[i][feature]
		if math.IsNaN(v) {
			missing[b.labels[i]]++
			missingTotal++
			continue
		}
		values = append(values, valueLabel{value: v, label: b.labels[i]})
	}
	if len(values) < 2 {
		return split{}, false
	}
	sort.Slice(values, func(a, c int) bool { return values[a].value < values[c].value })
	if values[0].value == values[len(values)-1].value {
		return split{}, false
	}

	left := make([]float64, b.classes)
	right := make([]float64, b.classes)
	for _, v := range values {
		right[v.label]++
	}

	total := float64(len(values)) + missingTotal
	best := split{feature: feature, impurity: math.Inf(1)}
	for k := 0; k < len(values)-1; k++ {
		left[values[k].label]++
		right[values[k].label]--
		if values[k].value == values[k+1].value {
			continue
		}
		nLeft := float64(k + 1)
		nRight := float64(len(values) - k - 1)

		// Missing values follow the larger child.
		missingLeft := nLeft >= nRight
		var impurity float64
		if missingLeft {
			impurity = (nLeft+missingTotal)*gini(left, missing, nLeft+missingTotal) + nRight*gini(right, nil, nRight)
		} else {
			impurity = nLeft*gini(left, nil, nLeft) + (nRight+missingTotal)*gini(right, missing, nRight+missingTotal)
		}
		impurity /= total

		if impurity < best.impurity {
			threshold := (values[k].value + values[k+1].value) / 2
			if threshold >= values[k+1].value {
				threshold = values[k].value
			}
			best.threshold = threshold
			best.missingLeft = missingLeft
			best.impurity = impurity
		}
	}
	return best, !math.IsInf(best.impurity, 1)
}

func (b *builder) partition(idx []int, s split) ([]int, []int) {
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		v := b.samples[i][s.feature]
		switch {
		case math.IsNaN(v):
			if s.missingLeft {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		case v <= s.threshold:
			left = append(left, i)
		default:
			right = append(right, i)
		}
	}
	return left, right
}

func (b *builder) counts(idx []int) []float64 {
	counts := make([]float64, b.classes)
	for _, i := range idx {
		counts[b.labels[i]]++
	}
	return counts
}

func gini(counts, extra []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for c, count := range counts {
		if extra != nil {
			count += extra[c]
		}
		p := count / total
		impurity -= p * p
	}
	return impurity
}

func leafNode(counts []float64, total int) Node {
	dist := make([]float64, len(counts))
	for c, count := range counts {
		dist[c] = count / float64(total)
	}
	return Node{Feature: -1, Left: -1, Right: -1, Leaf: true, Distribution: dist}
}
