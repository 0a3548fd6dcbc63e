// Package iforest implements the Isolation Forest algorithm for anomaly detection.
package iforest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/hed1ad/vitalguard/pkg/detectors"
)

// Compile-time interface guard.
var _ detectors.Detector = (*IsolationForest)(nil)

// ErrNotTrained is returned when scoring or saving before Fit or Load.
var ErrNotTrained = errors.New("model not trained")

const leaf = -1

// IsolationForest implements unsupervised anomaly detection using isolation trees.
type IsolationForest struct {
	mu sync.RWMutex

	// Configuration
	nTrees        int
	sampleSize    int
	contamination float64
	threshold     float64
	rng           *rand.Rand

	// Trained model
	trees     []iTree
	nFeatures int
	trained   bool

	// Statistics from training
	avgPathLength float64
	stats         Stats
}

// Stats summarizes the scores of the training data.
type Stats struct {
	Samples int
	Mean    float64
	StdDev  float64
	Flagged int
}

// iTree is a single isolation tree stored as a flat node table; nodes[0] is the root.
type iTree struct {
	Nodes []node
}

// node is a node in the isolation tree. Leaves have Left == Right == leaf.
type node struct {
	Feature int
	Split   float64
	Left    int
	Right   int
	Size    int
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

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.rng = rand.New(rand.NewSource(seed))
	}
}

// WithConfig applies a detectors.Config.
func WithConfig(cfg detectors.Config) Option {
	return func(f *IsolationForest) {
		WithTrees(cfg.Trees)(f)
		WithSampleSize(cfg.SampleSize)(f)
		WithContamination(cfg.Contamination)(f)
		WithSeed(cfg.RandomSeed)(f)
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

	return f
}

// Fit trains the Isolation Forest on the provided data.
func (f *IsolationForest) Fit(data [][]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(data) == 0 {
		return errors.New("empty training data")
	}
	if f.nTrees <= 0 || f.sampleSize <= 0 {
		return fmt.Errorf("invalid forest shape: %d trees, sample size %d", f.nTrees, f.sampleSize)
	}
	if f.contamination < 0 || f.contamination >= 1 {
		return fmt.Errorf("contamination %v outside [0, 1)", f.contamination)
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	for i, row := range data {
		if len(row) != nFeatures {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), nFeatures)
		}
	}

	// Adjust sample size if needed
	sampleSize := f.sampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize))))

	// Build trees
	f.trees = make([]iTree, f.nTrees)
	for i := 0; i < f.nTrees; i++ {
		// Sample without replacement
		indices := f.rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}

		var t iTree
		t.grow(f.rng, sample, nFeatures, 0, maxDepth)
		f.trees[i] = t
	}

	// Calculate average path length for normalization
	f.avgPathLength = averagePathLength(float64(sampleSize))
	f.nFeatures = nFeatures
	f.trained = true

	scores, err := f.predict(data)
	if err != nil {
		return err
	}

	// Set threshold based on contamination
	if f.contamination > 0 {
		f.threshold = quantile(scores, 1-f.contamination)
	}

	f.stats = summarize(scores, f.threshold)

	return nil
}

// grow appends the subtree for data and returns its index in the node table.
func (t *iTree) grow(rng *rand.Rand, data [][]float64, nFeatures, depth, maxDepth int) int {
	n := len(data)
	idx := len(t.Nodes)

	// Terminal conditions
	if depth >= maxDepth || n <= 1 {
		t.Nodes = append(t.Nodes, node{Left: leaf, Right: leaf, Size: n})
		return idx
	}

	// Random feature and split value
	feature := rng.Intn(nFeatures)

	// Find min/max for this feature
	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}

	// If all values are the same, return leaf
	if minVal == maxVal {
		t.Nodes = append(t.Nodes, node{Left: leaf, Right: leaf, Size: n})
		return idx
	}

	// Random split value
	splitValue := minVal + rng.Float64()*(maxVal-minVal)

	// Partition data
	var leftData, rightData [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	t.Nodes = append(t.Nodes, node{Feature: feature, Split: splitValue})
	left := t.grow(rng, leftData, nFeatures, depth+1, maxDepth)
	right := t.grow(rng, rightData, nFeatures, depth+1, maxDepth)
	t.Nodes[idx].Left = left
	t.Nodes[idx].Right = right
	t.Nodes[idx].Size = n

	return idx
}

// Predict returns anomaly scores for the given samples.
func (f *IsolationForest) Predict(data [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, ErrNotTrained
	}

	return f.predict(data)
}

func (f *IsolationForest) predict(data [][]float64) ([]float64, error) {
	scores := make([]float64, len(data))

	for i, sample := range data {
		score, err := f.predictOne(sample)
		if err != nil {
			return nil, err
		}
		scores[i] = score
	}

	return scores, nil
}

// PredictOne returns the anomaly score for a single sample.
func (f *IsolationForest) PredictOne(sample []float64) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return 0, ErrNotTrained
	}

	return f.predictOne(sample)
}

func (f *IsolationForest) predictOne(sample []float64) (float64, error) {
	if len(sample) != f.nFeatures {
		return 0, fmt.Errorf("sample has %d features, want %d", len(sample), f.nFeatures)
	}

	// Average path length across all trees
	var totalPath float64
	for i := range f.trees {
		totalPath += f.trees[i].pathLength(sample)
	}
	avgPath := totalPath / float64(len(f.trees))

	// Single-sample forests cannot normalize; every point is equally isolated.
	if f.avgPathLength == 0 {
		return 0.5, nil
	}

	// Anomaly score: 2^(-avgPath / c(n))
	// Higher score = more anomalous
	return math.Pow(2, -avgPath/f.avgPathLength), nil
}

// Evaluate scores a sample and classifies it against the trained threshold.
func (f *IsolationForest) Evaluate(sample []float64) (detectors.Score, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return detectors.Score{}, ErrNotTrained
	}

	score, err := f.predictOne(sample)
	if err != nil {
		return detectors.Score{}, err
	}

	return detectors.Score{
		Value:     score,
		IsAnomaly: score > f.threshold,
		Features:  sample,
	}, nil
}

// pathLength walks the tree for a sample.
func (t *iTree) pathLength(sample []float64) float64 {
	var depth int
	n := t.Nodes[0]
	for n.Left != leaf {
		if sample[n.Feature] < n.Split {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
		depth++
	}
	// Leaf node: add expected path length for remaining isolation
	return float64(depth) + averagePathLength(float64(n.Size))
}

// averagePathLength returns the average path length of unsuccessful search in BST.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	// c(n) = 2*H(n-1) - 2*(n-1)/n, where H is harmonic number
	// Approximation: H(n) ~ ln(n) + 0.5772156649 (Euler-Mascheroni constant)
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

// snapshot is the gob wire form of a trained forest.
type snapshot struct {
	Trees         int
	SampleSize    int
	Features      int
	Contamination float64
	Threshold     float64
	AvgPathLength float64
	Stats         Stats
	Forest        []iTree
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
		Trees:         f.nTrees,
		SampleSize:    f.sampleSize,
		Features:      f.nFeatures,
		Contamination: f.contamination,
		Threshold:     f.threshold,
		AvgPathLength: f.avgPathLength,
		Stats:         f.stats,
		Forest:        f.trees,
	})
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (f *IsolationForest) Load(data []byte) error {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	if err := snap.check(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nTrees = snap.Trees
	f.sampleSize = snap.SampleSize
	f.nFeatures = snap.Features
	f.contamination = snap.Contamination
	f.threshold = snap.Threshold
	f.avgPathLength = snap.AvgPathLength
	f.stats = snap.Stats
	f.trees = snap.Forest
	f.trained = true

	return nil
}

// check rejects snapshots whose node tables could panic during traversal.
func (s *snapshot) check() error {
	if s.Features <= 0 {
		return fmt.Errorf("snapshot has %d features", s.Features)
	}
	if len(s.Forest) == 0 || len(s.Forest) != s.Trees {
		return fmt.Errorf("snapshot has %d trees, header says %d", len(s.Forest), s.Trees)
	}
	for i, t := range s.Forest {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", i)
		}
		for j, n := range t.Nodes {
			if n.Left == leaf && n.Right == leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= s.Features ||
				n.Left <= j || n.Left >= len(t.Nodes) ||
				n.Right <= j || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d is malformed", i, j)
			}
		}
	}
	return nil
}

// Threshold returns the current anomaly threshold.
func (f *IsolationForest) Threshold() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.threshold
}

// Features returns the input width the forest was trained on, or 0 before training.
func (f *IsolationForest) Features() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nFeatures
}

// Stats returns the training score summary.
func (f *IsolationForest) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stats
}

// quantile returns the p-quantile of data with linear interpolation.
func quantile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

func summarize(scores []float64, threshold float64) Stats {
	mean, std := stat.MeanStdDev(scores, nil)
	if len(scores) < 2 {
		std = 0
	}
	var flagged int
	for _, s := range scores {
		if s > threshold {
			flagged++
		}
	}
	return Stats{Samples: len(scores), Mean: mean, StdDev: std, Flagged: flagged}
}
