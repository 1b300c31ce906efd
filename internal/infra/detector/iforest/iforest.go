// Package iforest implements the Isolation Forest algorithm for anomaly detection.
package iforest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// ErrNotTrained is returned by scoring calls before Fit or Load.
var ErrNotTrained = errors.New("model not trained")

// IsolationForest implements unsupervised anomaly detection using isolation trees.
type IsolationForest struct {
	mu sync.RWMutex

	nTrees        int
	sampleSize    int
	contamination float64
	minThreshold  float64
	threshold     float64
	maxDepth      int
	rng           *rand.Rand

	trees     []*Tree
	nFeatures int
	trained   bool

	avgPathLength float64
}

// Tree is a single isolation tree. Fields are exported for gob.
type Tree struct {
	Root *Node
}

// Node is an internal split or, when both children are nil, a leaf.
type Node struct {
	SplitFeature int
	SplitValue   float64
	Left         *Node
	Right        *Node
	// Size is the number of samples that reached a leaf.
	Size int
}

// Option configures an IsolationForest.
type Option func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *IsolationForest) {
		f.nTrees = n
	}
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *IsolationForest) {
		f.sampleSize = n
	}
}

// WithContamination sets the expected proportion of anomalies.
func WithContamination(c float64) Option {
	return func(f *IsolationForest) {
		f.contamination = c
	}
}

// WithMinThreshold sets a floor for the fitted threshold, so data without
// outliers does not get its top scores flagged anyway.
func WithMinThreshold(t float64) Option {
	return func(f *IsolationForest) {
		f.minThreshold = t
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.rng = rand.New(rand.NewSource(seed))
	}
}

// New creates a new IsolationForest with the given options.
func New(opts ...Option) *IsolationForest {
	f := &IsolationForest{
		nTrees:        100,
		sampleSize:    256,
		contamination: 0.1,
		threshold:     0.5,
		rng:           rand.New(rand.NewSource(42)),
	}

	for _, opt := range opts {
		opt(f)
	}

	f.maxDepth = int(math.Ceil(math.Log2(float64(f.sampleSize))))

	return f
}

// Fit trains the forest on row-major data. Every row must have the same
// number of features.
func (f *IsolationForest) Fit(data [][]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(data) == 0 {
		return errors.New("empty training data")
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	if nFeatures == 0 {
		return errors.New("training data has no features")
	}
	for _, row := range data {
		if len(row) != nFeatures {
			return errors.New("training rows differ in length")
		}
	}

	sampleSize := f.sampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}
	// depth limit follows the sample actually drawn
	f.maxDepth = int(math.Ceil(math.Log2(float64(max(sampleSize, 2)))))

	f.trees = make([]*Tree, f.nTrees)
	for i := 0; i < f.nTrees; i++ {
		indices := f.rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}

		f.trees[i] = &Tree{Root: f.buildNode(sample, nFeatures, 0)}
	}

	f.avgPathLength = averagePathLength(float64(sampleSize))
	f.nFeatures = nFeatures
	f.trained = true

	f.threshold = 0.5
	if f.contamination > 0 {
		scores := f.predict(data)
		f.threshold = percentile(scores, 100*(1-f.contamination))
	}
	if f.threshold < f.minThreshold {
		f.threshold = f.minThreshold
	}

	return nil
}

func (f *IsolationForest) buildNode(data [][]float64, nFeatures, depth int) *Node {
	n := len(data)

	if depth >= f.maxDepth || n <= 1 {
		return &Node{Size: n}
	}

	feature := f.rng.Intn(nFeatures)

	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}

	if minVal == maxVal {
		return &Node{Size: n}
	}

	splitValue := minVal + f.rng.Float64()*(maxVal-minVal)

	var leftData, rightData [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	return &Node{
		SplitFeature: feature,
		SplitValue:   splitValue,
		Left:         f.buildNode(leftData, nFeatures, depth+1),
		Right:        f.buildNode(rightData, nFeatures, depth+1),
	}
}

// Predict returns anomaly scores in [0, 1] for the given samples; higher is
// more anomalous.
func (f *IsolationForest) Predict(data [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, ErrNotTrained
	}
	for _, row := range data {
		if len(row) != f.nFeatures {
			return nil, errors.New("sample has wrong number of features")
		}
	}

	return f.predict(data), nil
}

func (f *IsolationForest) predict(data [][]float64) []float64 {
	scores := make([]float64, len(data))
	for i, sample := range data {
		scores[i] = f.predictOne(sample)
	}
	return scores
}

// PredictOne returns the anomaly score for a single sample.
func (f *IsolationForest) PredictOne(sample []float64) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return 0, ErrNotTrained
	}
	if len(sample) != f.nFeatures {
		return 0, errors.New("sample has wrong number of features")
	}

	return f.predictOne(sample), nil
}

func (f *IsolationForest) predictOne(sample []float64) float64 {
	var totalPath float64
	for _, tree := range f.trees {
		totalPath += pathLength(sample, tree.Root, 0)
	}
	avgPath := totalPath / float64(len(f.trees))

	// single-sample forests have c(n) = 0
	if f.avgPathLength == 0 {
		return 0.5
	}
	// s = 2^(-E[h(x)] / c(n))
	return math.Pow(2, -avgPath/f.avgPathLength)
}

func pathLength(sample []float64, n *Node, currentDepth int) float64 {
	if n.Left == nil && n.Right == nil {
		return float64(currentDepth) + averagePathLength(float64(n.Size))
	}

	if sample[n.SplitFeature] < n.SplitValue {
		return pathLength(sample, n.Left, currentDepth+1)
	}
	return pathLength(sample, n.Right, currentDepth+1)
}

// averagePathLength returns the average path length of unsuccessful search in BST.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	// c(n) = 2*H(n-1) - 2*(n-1)/n, H(i) ≈ ln(i) + 0.5772156649
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

// IsAnomaly reports whether score reaches the fitted threshold.
func (f *IsolationForest) IsAnomaly(score float64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return score >= f.threshold
}

// Features returns the number of features the forest was trained on.
func (f *IsolationForest) Features() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nFeatures
}

type snapshot struct {
	NTrees        int
	SampleSize    int
	Contamination float64
	MinThreshold  float64
	Threshold     float64
	AvgPathLength float64
	NFeatures     int
	Trees         []*Tree
}

// Save serializes the trained model.
func (f *IsolationForest) Save() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, ErrNotTrained
	}

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snapshot{
		NTrees:        f.nTrees,
		SampleSize:    f.sampleSize,
		Contamination: f.contamination,
		MinThreshold:  f.minThreshold,
		Threshold:     f.threshold,
		AvgPathLength: f.avgPathLength,
		NFeatures:     f.nFeatures,
		Trees:         f.trees,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (f *IsolationForest) Load(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	if len(s.Trees) == 0 || s.NFeatures == 0 {
		return errors.New("model has no trees")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nTrees = s.NTrees
	f.sampleSize = s.SampleSize
	f.contamination = s.Contamination
	f.minThreshold = s.MinThreshold
	f.threshold = s.Threshold
	f.avgPathLength = s.AvgPathLength
	f.nFeatures = s.NFeatures
	f.trees = s.Trees
	f.maxDepth = int(math.Ceil(math.Log2(float64(f.sampleSize))))
	f.trained = true

	return nil
}

// Threshold returns the current anomaly threshold.
func (f *IsolationForest) Threshold() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.threshold
}

// SetThreshold updates the anomaly threshold.
func (f *IsolationForest) SetThreshold(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = t
}

// percentile calculates the p-th percentile of the data.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}
