package predictor

import (
	"errors"
	"fmt"

	"github.com/gridcast/gridcast/internal/models"
)

// Model names accepted by New.
const (
	ModelLinear  = "linear"
	ModelHybrid  = "hybrid"
	ModelBoosted = "boosted"
)

// DefaultMinTrainingSamples is the floor below which Train fails fast rather
// than fitting a model too thin to mean anything.
const DefaultMinTrainingSamples = 24

// ErrNotTrained is returned by Predict before a successful Train.
var ErrNotTrained = errors.New("model has not been trained")

// ErrInsufficientSamples wraps a fast training failure from too little data.
var ErrInsufficientSamples = errors.New("insufficient training samples")

// Model is the common prediction contract. A model is selected once at
// configuration time; call sites dispatch through the interface and never
// branch on the concrete type.
type Model interface {
	// Train fits the model on the samples and reports fit quality over the
	// training set. Too few samples is an error, not a silent degrade.
	Train(samples []models.TrainingSample) (models.Metrics, error)

	// Predict returns a non-negative demand estimate for the feature vector.
	Predict(fv models.FeatureVector, region string) (float64, error)

	// Name identifies the variant in logs, metrics, and stored runs.
	Name() string
}

// Options carries the tunables shared across variants plus the per-variant
// knobs the engine configuration exposes.
type Options struct {
	MinSamples    int     // minimum training samples, DefaultMinTrainingSamples when 0
	GrowthPercent float64 // hybrid: daily growth applied to profile bounds
	Seed          int64   // boosted: RNG seed for feature subsampling
}

// New constructs the configured model variant. This is the single place the
// model name is switched on.
func New(name string, opts Options) (Model, error) {
	if opts.MinSamples <= 0 {
		opts.MinSamples = DefaultMinTrainingSamples
	}
	switch name {
	case ModelLinear:
		return NewLinear(opts.MinSamples), nil
	case ModelHybrid:
		return NewHybrid(opts.MinSamples, opts.GrowthPercent), nil
	case ModelBoosted:
		return NewBoosted(BoostedConfig{MinSamples: opts.MinSamples, Seed: opts.Seed}), nil
	default:
		return nil, fmt.Errorf("unknown model %q (expected linear, hybrid, or boosted)", name)
	}
}

func checkSampleCount(n, min int) error {
	if n < min {
		return fmt.Errorf("%w: have %d, need at least %d", ErrInsufficientSamples, n, min)
	}
	return nil
}
