package predictor

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/gridcast/gridcast/internal/models"
)

// BoostedConfig tunes the gradient-boosted ensemble. Zero values take the
// documented defaults.
type BoostedConfig struct {
	MinSamples   int
	Rounds       int     // trees in the ensemble, default 100
	MaxDepth     int     // default 6
	LearningRate float64 // default 0.1
	MinLeaf      int     // minimum samples on each side of a split, default 5
	Seed         int64   // RNG seed for feature subsampling; same seed, same ensemble
}

const (
	defaultRounds       = 100
	defaultMaxDepth     = 6
	defaultLearningRate = 0.1
	defaultMinLeaf      = 5
	splitCandidates     = 20
	minFeatureSample    = 10
)

func (c BoostedConfig) withDefaults() BoostedConfig {
	if c.MinSamples <= 0 {
		c.MinSamples = DefaultMinTrainingSamples
	}
	if c.Rounds <= 0 {
		c.Rounds = defaultRounds
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = defaultMaxDepth
	}
	if c.LearningRate <= 0 {
		c.LearningRate = defaultLearningRate
	}
	if c.MinLeaf <= 0 {
		c.MinLeaf = defaultMinLeaf
	}
	return c
}

type treeNode struct {
	feature int
	thresh  float64
	left    *treeNode
	right   *treeNode
	leaf    bool
	value   float64
}

// Boosted is an additive ensemble of shallow regression trees fit
// sequentially on residuals. The base prediction is the mean training
// target; each round's tree output is scaled by the learning rate.
type Boosted struct {
	cfg        BoostedConfig
	base       float64
	trees      []*treeNode
	splitCount []int
	trained    bool
}

// NewBoosted constructs an untrained boosted-tree model.
func NewBoosted(cfg BoostedConfig) *Boosted {
	return &Boosted{cfg: cfg.withDefaults()}
}

// Name implements Model.
func (b *Boosted) Name() string { return ModelBoosted }

// Train fits the ensemble on residuals round by round.
func (b *Boosted) Train(samples []models.TrainingSample) (models.Metrics, error) {
	if err := checkSampleCount(len(samples), b.cfg.MinSamples); err != nil {
		return models.Metrics{}, fmt.Errorf("boosted: %w", err)
	}

	n := len(samples)
	x := make([][]float64, n)
	y := make([]float64, n)
	for i, s := range samples {
		x[i] = s.Features.Vector()
		y[i] = s.Demand
	}

	var sum float64
	for _, v := range y {
		sum += v
	}
	b.base = sum / float64(n)
	b.splitCount = make([]int, models.FeatureCount)
	b.trees = b.trees[:0]

	rng := rand.New(rand.NewSource(b.cfg.Seed))
	mtry := int(math.Sqrt(float64(models.FeatureCount)))
	if mtry < minFeatureSample {
		mtry = minFeatureSample
	}

	residuals := make([]float64, n)
	current := make([]float64, n)
	for i := range current {
		current[i] = b.base
		residuals[i] = y[i] - b.base
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	for round := 0; round < b.cfg.Rounds; round++ {
		tree := b.buildTree(x, residuals, indices, 0, mtry, rng)
		b.trees = append(b.trees, tree)
		for i := range current {
			current[i] += b.cfg.LearningRate * predictTree(tree, x[i])
			residuals[i] = y[i] - current[i]
		}
	}
	b.trained = true

	predicted := make([]float64, n)
	for i := range current {
		predicted[i] = current[i]
		if predicted[i] < 0 {
			predicted[i] = 0
		}
	}
	return evaluate(y, predicted), nil
}

// Predict sums the scaled tree outputs onto the base mean, floored at zero.
func (b *Boosted) Predict(fv models.FeatureVector, _ string) (float64, error) {
	if !b.trained {
		return 0, fmt.Errorf("boosted: %w", ErrNotTrained)
	}
	vec := fv.Vector()
	pred := b.base
	for _, tree := range b.trees {
		pred += b.cfg.LearningRate * predictTree(tree, vec)
	}
	if pred < 0 {
		pred = 0
	}
	return pred, nil
}

// Importance reports split-usage counts per feature, normalized to [0,1]
// against the most-used feature.
func (b *Boosted) Importance() map[string]float64 {
	if !b.trained {
		return nil
	}
	max := 0
	for _, c := range b.splitCount {
		if c > max {
			max = c
		}
	}
	out := make(map[string]float64)
	if max == 0 {
		return out
	}
	names := models.FeatureNames()
	for i, c := range b.splitCount {
		if c > 0 {
			out[names[i]] = float64(c) / float64(max)
		}
	}
	return out
}

// buildTree grows one regression tree over the residuals of the samples in
// idx. Leaves hold mean residual; a branch stops when the depth cap is hit,
// too few samples remain, or no sampled split reduces variance.
func (b *Boosted) buildTree(x [][]float64, residuals []float64, idx []int, depth, mtry int, rng *rand.Rand) *treeNode {
	if depth >= b.cfg.MaxDepth || len(idx) < 2*b.cfg.MinLeaf {
		return &treeNode{leaf: true, value: meanAt(residuals, idx)}
	}

	feature, thresh, ok := b.bestSplit(x, residuals, idx, mtry, rng)
	if !ok {
		return &treeNode{leaf: true, value: meanAt(residuals, idx)}
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= thresh {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.splitCount[feature]++

	return &treeNode{
		feature: feature,
		thresh:  thresh,
		left:    b.buildTree(x, residuals, left, depth+1, mtry, rng),
		right:   b.buildTree(x, residuals, right, depth+1, mtry, rng),
	}
}

// bestSplit samples mtry features and scans evenly spaced candidate
// thresholds along each sampled feature's sorted values, maximizing
// variance reduction. Splits leaving either side below the minimum leaf
// size are not candidates at all, so degenerate partitions never score.
func (b *Boosted) bestSplit(x [][]float64, residuals []float64, idx []int, mtry int, rng *rand.Rand) (int, float64, bool) {
	nFeatures := models.FeatureCount
	if mtry > nFeatures {
		mtry = nFeatures
	}
	sampled := rng.Perm(nFeatures)[:mtry]
	sort.Ints(sampled)

	parentSS := sumSquaresAt(residuals, idx)

	bestFeature := -1
	bestThresh := 0.0
	bestReduction := 0.0

	values := make([]float64, len(idx))
	for _, f := range sampled {
		for i, sampleIdx := range idx {
			values[i] = x[sampleIdx][f]
		}
		sort.Float64s(values)
		if values[0] == values[len(values)-1] {
			continue
		}

		for c := 0; c < splitCandidates; c++ {
			pos := (c + 1) * len(values) / (splitCandidates + 1)
			if pos <= 0 || pos >= len(values) {
				continue
			}
			thresh := values[pos]
			if thresh == values[len(values)-1] {
				// everything would fall left
				continue
			}

			var leftSS, rightSS, leftSum, rightSum float64
			leftN, rightN := 0, 0
			for _, sampleIdx := range idx {
				if x[sampleIdx][f] <= thresh {
					leftSum += residuals[sampleIdx]
					leftN++
				} else {
					rightSum += residuals[sampleIdx]
					rightN++
				}
			}
			if leftN < b.cfg.MinLeaf || rightN < b.cfg.MinLeaf {
				continue
			}

			leftMean := leftSum / float64(leftN)
			rightMean := rightSum / float64(rightN)
			for _, sampleIdx := range idx {
				r := residuals[sampleIdx]
				if x[sampleIdx][f] <= thresh {
					d := r - leftMean
					leftSS += d * d
				} else {
					d := r - rightMean
					rightSS += d * d
				}
			}

			if reduction := parentSS - leftSS - rightSS; reduction > bestReduction {
				bestReduction = reduction
				bestFeature = f
				bestThresh = thresh
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThresh, true
}

func predictTree(t *treeNode, vec []float64) float64 {
	for !t.leaf {
		if vec[t.feature] <= t.thresh {
			t = t.left
		} else {
			t = t.right
		}
	}
	return t.value
}

func meanAt(values []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += values[i]
	}
	return sum / float64(len(idx))
}

func sumSquaresAt(values []float64, idx []int) float64 {
	mean := meanAt(values, idx)
	var ss float64
	for _, i := range idx {
		d := values[i] - mean
		ss += d * d
	}
	return ss
}
